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

func newIncrementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "increment <document-ref>",
		Short: "Increment the counter by 1",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(args[0], func(state *dash.State, now time.Time) error {
				state.Increment(now)
				cmd.Printf("counter: %d\n", state.Counter)
				return nil
			})
		},
	}
}

func newDecrementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrement <document-ref>",
		Short: "Decrement the counter by 1",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(args[0], func(state *dash.State, now time.Time) error {
				state.Decrement(now)
				cmd.Printf("counter: %d\n", state.Counter)
				return nil
			})
		},
	}
}

func newSetCounterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-counter <document-ref> <value>",
		Short: "Set the counter to a specific value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return err
			}
			return mutate(args[0], func(state *dash.State, now time.Time) error {
				state.SetCounter(value, now)
				cmd.Printf("counter: %d\n", state.Counter)
				return nil
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(newIncrementCmd())
	rootCmd.AddCommand(newDecrementCmd())
	rootCmd.AddCommand(newSetCounterCmd())
}
