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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rgbkrk/autodash/pkg/dash"
)

func newAddTodoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-todo <document-ref> <text>",
		Short: "Add a todo item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(args[0], func(state *dash.State, now time.Time) error {
				todo := state.AddTodo(args[1], now)
				cmd.Printf("added todo %s\n", todo.ID)
				return nil
			})
		},
	}
}

func newToggleTodoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle-todo <document-ref> <id>",
		Short: "Toggle a todo's completion (id prefix accepted)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(args[0], func(state *dash.State, now time.Time) error {
				if !state.ToggleTodo(args[1], now) {
					return fmt.Errorf("no todo matching %q", args[1])
				}
				return nil
			})
		},
	}
}

func newDeleteTodoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-todo <document-ref> <id>",
		Short: "Delete a todo (id prefix accepted)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(args[0], func(state *dash.State, now time.Time) error {
				if !state.DeleteTodo(args[1], now) {
					return fmt.Errorf("no todo matching %q", args[1])
				}
				return nil
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(newAddTodoCmd())
	rootCmd.AddCommand(newToggleTodoCmd())
	rootCmd.AddCommand(newDeleteTodoCmd())
}
