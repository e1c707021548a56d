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
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rgbkrk/autodash/pkg/dash"
)

func newToggleDarkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle-dark <document-ref>",
		Short: "Toggle dark mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(args[0], func(state *dash.State, now time.Time) error {
				state.ToggleDark(now)
				cmd.Printf("dark mode: %t\n", state.DarkMode)
				return nil
			})
		},
	}
}

func newSetDarkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-dark <document-ref> <true|false>",
		Short: "Set dark mode on or off",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := strconv.ParseBool(args[1])
			if err != nil {
				return err
			}
			return mutate(args[0], func(state *dash.State, now time.Time) error {
				state.SetDark(enabled, now)
				cmd.Printf("dark mode: %t\n", state.DarkMode)
				return nil
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(newToggleDarkCmd())
	rootCmd.AddCommand(newSetDarkCmd())
}
