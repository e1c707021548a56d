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

// Package main is the entry point of the Autodash CLI.
package main

import (
	"github.com/spf13/cobra"

	"github.com/rgbkrk/autodash/internal/log"
)

var (
	flagRelay      string
	flagStorageDir string
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "autodash",
	Short: "CLI client for Autodash collaborative dashboards",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagVerbose {
			return log.SetLogLevel("debug")
		}
		return nil
	},
}

// Run executes CLI.
func Run() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}

	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&flagRelay,
		"relay",
		"ws://localhost:3030",
		"Websocket address of the sync relay",
	)
	rootCmd.PersistentFlags().StringVar(
		&flagStorageDir,
		"storage-dir",
		"./autodash-data",
		"Directory for the local document snapshots",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&flagVerbose,
		"verbose",
		"v",
		false,
		"Enable verbose debug logging",
	)
}
