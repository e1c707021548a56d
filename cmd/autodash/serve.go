/*
 * Copyright 2024 The Autodash Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rgbkrk/autodash/server"
)

const gracefulTimeout = 10 * time.Second

var (
	flagServeConfPath   string
	flagServeListenAddr string
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve [options]",
		Short: "Start the sync relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := server.NewConfig()
			if flagServeConfPath != "" {
				parsed, err := server.NewConfigFromFile(flagServeConfPath)
				if err != nil {
					return err
				}
				conf = parsed
			}
			if flagServeListenAddr != "" {
				conf.ListenAddr = flagServeListenAddr
			}

			relay, err := server.New(conf)
			if err != nil {
				return err
			}
			if err := relay.Start(); err != nil {
				return err
			}

			return handleSignal(relay)
		},
	}
}

func handleSignal(relay *server.Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), gracefulTimeout)
	defer cancel()
	return relay.Shutdown(ctx)
}

func init() {
	cmd := newServeCmd()
	cmd.Flags().StringVarP(
		&flagServeConfPath,
		"config",
		"c",
		"",
		"Config path",
	)
	cmd.Flags().StringVar(
		&flagServeListenAddr,
		"listen",
		"",
		"Override the websocket listen address",
	)
	rootCmd.AddCommand(cmd)
}
