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

func newAddNoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-note <document-ref> <text>",
		Short: "Append a line to the notes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(args[0], func(state *dash.State, now time.Time) error {
				state.AddNote(args[1], now)
				return nil
			})
		},
	}
}

func newSetNotesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-notes <document-ref> <text>",
		Short: "Replace the notes content",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(args[0], func(state *dash.State, now time.Time) error {
				state.SetNotes(args[1], now)
				return nil
			})
		},
	}
}

func newClearNotesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-notes <document-ref>",
		Short: "Clear the notes field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(args[0], func(state *dash.State, now time.Time) error {
				state.ClearNotes(now)
				return nil
			})
		},
	}
}

func newInsertNotesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insert-notes <document-ref> <position> <text>",
		Short: "Insert text at a rune position in the notes",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[1])
			if err != nil {
				return err
			}
			return mutate(args[0], func(state *dash.State, now time.Time) error {
				state.InsertNotes(position, args[2], now)
				return nil
			})
		},
	}
}

func newDeleteNotesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-notes <document-ref> <start> <length>",
		Short: "Delete a rune range from the notes",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := strconv.Atoi(args[1])
			if err != nil {
				return err
			}
			length, err := strconv.Atoi(args[2])
			if err != nil {
				return err
			}
			return mutate(args[0], func(state *dash.State, now time.Time) error {
				state.DeleteNotes(start, length, now)
				return nil
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(newAddNoteCmd())
	rootCmd.AddCommand(newSetNotesCmd())
	rootCmd.AddCommand(newClearNotesCmd())
	rootCmd.AddCommand(newInsertNotesCmd())
	rootCmd.AddCommand(newDeleteNotesCmd())
}
