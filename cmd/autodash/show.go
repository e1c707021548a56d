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
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rgbkrk/autodash/client"
	"github.com/rgbkrk/autodash/pkg/dash"
	"github.com/rgbkrk/autodash/pkg/document"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <document-ref> [field]",
		Short: "Display the current document state, or one field of it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(args[0], func(_ context.Context, _ *client.Client, h *document.Handle) error {
				state, err := hydrateState(h)
				if err != nil {
					return err
				}
				if len(args) == 2 {
					return showField(cmd, &state, args[1])
				}
				showOverview(cmd, &state)
				return nil
			})
		},
	}
}

func showField(cmd *cobra.Command, state *dash.State, field string) error {
	switch field {
	case "counter":
		cmd.Printf("%d\n", state.Counter)
	case "temperature":
		cmd.Printf("%d\n", state.Temperature)
	case "darkMode":
		cmd.Printf("%t\n", state.DarkMode)
	case "notes":
		cmd.Println(state.Notes.Value)
	case "code":
		cmd.Println(state.Code.Value)
	case "tags":
		cmd.Println(strings.Join(state.Tags, ", "))
	case "todos":
		cmd.Printf("%s\n", todoTable(state).Render())
	case "cells":
		cmd.Printf("%s\n", cellTable(state).Render())
	case "metadata":
		cmd.Printf("title: %s\ncreated: %s\nmodified: %s\n",
			orEmpty(state.Metadata.Title),
			millisOrDash(state.Metadata.CreatedAt),
			millisOrDash(state.Metadata.LastModified))
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

func showOverview(cmd *cobra.Command, state *dash.State) {
	tw := newPlainTable()
	tw.AppendHeader(table.Row{"FIELD", "VALUE"})
	tw.AppendRow(table.Row{"title", orEmpty(state.Metadata.Title)})
	tw.AppendRow(table.Row{"counter", state.Counter})
	tw.AppendRow(table.Row{"temperature", state.Temperature})
	tw.AppendRow(table.Row{"darkMode", state.DarkMode})
	tw.AppendRow(table.Row{"notes", preview(state.Notes.Value)})
	tw.AppendRow(table.Row{"code", preview(state.Code.Value)})
	tw.AppendRow(table.Row{"tags", strings.Join(state.Tags, ", ")})
	tw.AppendRow(table.Row{"modified", millisOrDash(state.Metadata.LastModified)})
	cmd.Printf("%s\n", tw.Render())

	if len(state.Todos) > 0 {
		cmd.Printf("\n%s\n", todoTable(state).Render())
	}
	if len(state.Cells) > 0 {
		cmd.Printf("\n%s\n", cellTable(state).Render())
	}
}

func todoTable(state *dash.State) table.Writer {
	tw := newPlainTable()
	tw.AppendHeader(table.Row{"ID", "DONE", "TEXT"})
	for _, todo := range state.Todos {
		done := " "
		if todo.Completed {
			done = "x"
		}
		tw.AppendRow(table.Row{todo.ID, done, todo.Text})
	}
	return tw
}

func cellTable(state *dash.State) table.Writer {
	tw := newPlainTable()
	tw.AppendHeader(table.Row{"ID", "TYPE", "COUNT", "SOURCE", "OUTPUTS"})
	for _, cell := range state.Cells {
		count := "-"
		if cell.ExecutionCount != nil {
			count = fmt.Sprintf("%d", *cell.ExecutionCount)
		}
		tw.AppendRow(table.Row{
			cell.ID,
			cell.CellType,
			count,
			preview(cell.Source),
			len(cell.OutputRefs),
		})
	}
	return tw
}

func newPlainTable() table.Writer {
	tw := table.NewWriter()
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.SeparateFooter = false
	tw.Style().Options.SeparateHeader = false
	tw.Style().Options.SeparateRows = false
	return tw
}

// preview flattens a text field to one trimmed line for the overview table.
func preview(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) > 50 {
		return string(runes[:50]) + "..."
	}
	return s
}

func orEmpty(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func millisOrDash(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return time.UnixMilli(*ms).Format(time.RFC3339)
}

func init() {
	rootCmd.AddCommand(newShowCmd())
}
