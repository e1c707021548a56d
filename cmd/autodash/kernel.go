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
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rgbkrk/autodash/client"
	"github.com/rgbkrk/autodash/kernel"
	"github.com/rgbkrk/autodash/pkg/document"
)

var flagKernelOutputDir string

func newKernelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kernel <document-ref>",
		Short: "Watch the document and execute bumped code cells",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := kernel.NewDirStore(flagKernelOutputDir)
			if err != nil {
				return err
			}

			return withSession(args[0], func(ctx context.Context, _ *client.Client, h *document.Handle) error {
				cmd.Println("kernel watching for cells to execute, Ctrl+C to stop")

				ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer cancel()

				watcher := kernel.NewWatcher(h, store)
				if err := watcher.Run(ctx); !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		},
	}
}

func init() {
	cmd := newKernelCmd()
	cmd.Flags().StringVar(
		&flagKernelOutputDir,
		"outputs",
		"./outputs",
		"Directory for execution output artifacts",
	)
	rootCmd.AddCommand(cmd)
}
