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

func newAddTagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-tag <document-ref> <tag>",
		Short: "Add a tag (duplicates ignored)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(args[0], func(state *dash.State, now time.Time) error {
				if !state.AddTag(args[1], now) {
					cmd.Printf("tag %q already present\n", args[1])
				}
				return nil
			})
		},
	}
}

func newRemoveTagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-tag <document-ref> <tag>",
		Short: "Remove a tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(args[0], func(state *dash.State, now time.Time) error {
				if !state.RemoveTag(args[1], now) {
					return fmt.Errorf("no tag %q", args[1])
				}
				return nil
			})
		},
	}
}

func newSetTitleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-title <document-ref> <title>",
		Short: "Set the document title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(args[0], func(state *dash.State, now time.Time) error {
				state.SetTitle(args[1], now)
				return nil
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(newAddTagCmd())
	rootCmd.AddCommand(newRemoveTagCmd())
	rootCmd.AddCommand(newSetTitleCmd())
}
