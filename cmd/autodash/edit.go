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
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rgbkrk/autodash/client"
	"github.com/rgbkrk/autodash/internal/log"
	"github.com/rgbkrk/autodash/internal/tui"
	"github.com/rgbkrk/autodash/pkg/document"
)

var (
	flagEditField string
	flagEditName  string
)

func newEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <document-ref>",
		Short: "Open a collaborative editor on a text field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagEditField != "notes" && flagEditField != "code" {
				return fmt.Errorf("--field must be 'notes' or 'code', got %q", flagEditField)
			}

			// The editor owns the terminal; keep log lines off it.
			log.SetOutput(io.Discard, zap.ErrorLevel)

			return withSession(args[0], func(_ context.Context, cli *client.Client, h *document.Handle) error {
				model, err := tui.New(h, flagEditField, cli.Actor(), flagEditName)
				if err != nil {
					return err
				}
				defer model.Close()

				program := tea.NewProgram(model, tea.WithAltScreen())
				_, err = program.Run()
				return err
			})
		},
	}
}

func init() {
	cmd := newEditCmd()
	cmd.Flags().StringVar(
		&flagEditField,
		"field",
		"notes",
		"Text field to edit: notes or code",
	)
	name := os.Getenv("USER")
	if name == "" {
		name = "anonymous"
	}
	cmd.Flags().StringVar(
		&flagEditName,
		"name",
		name,
		"Display name shown to other editors",
	)
	rootCmd.AddCommand(cmd)
}
