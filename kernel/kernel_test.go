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

package kernel_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgbkrk/autodash/engine/repo"
	"github.com/rgbkrk/autodash/kernel"
	"github.com/rgbkrk/autodash/pkg/dash"
	"github.com/rgbkrk/autodash/pkg/document"
)

func TestExecute(t *testing.T) {
	t.Run("canned outputs by source pattern test", func(t *testing.T) {
		cases := map[string]struct {
			source string
			want   string
		}{
			"console log":  {`console.log("hello")`, "hello"},
			"print":        {`print('hi there')`, "hi there"},
			"math":         {"Math.sqrt(1764)", "42\n(calculated by hokey kernel)"},
			"calculate":    {"Calculate the total", "42\n(calculated by hokey kernel)"},
			"fetch":        {`fetch("/api")`, "HTTP 200 OK\n{ \"message\": \"Success from hokey kernel\" }"},
			"import":       {"import numpy as np", "✓ Modules loaded successfully\n(hokey kernel)"},
			"empty source": {"   \n  ", ""},
		}
		for name, tc := range cases {
			out := kernel.Execute(tc.source)
			assert.Equal(t, "execute_result", out.OutputType, name)
			assert.Equal(t, tc.want, out.Data["text/plain"], name)
		}
	})

	t.Run("arbitrary source reports code stats test", func(t *testing.T) {
		out := kernel.Execute("let x = 1\nlet y = 2")
		text := out.Data["text/plain"]
		assert.Contains(t, text, "2 lines")
		assert.Contains(t, text, "19 characters")
		assert.Contains(t, text, "Result: Success")
	})

	t.Run("unterminated call falls back test", func(t *testing.T) {
		out := kernel.Execute("console.log(oops")
		assert.Equal(t, "Hello from hokey kernel!", out.Data["text/plain"])
	})
}

func openDoc(t *testing.T) *document.Handle {
	t.Helper()
	r := repo.New(repo.WithActor("kernel-test"))
	t.Cleanup(func() { _ = r.Close() })
	h, err := document.Open(context.Background(), r, "doc-1")
	require.NoError(t, err)
	return h
}

func writeCells(t *testing.T, h *document.Handle, cells []dash.Cell) {
	t.Helper()
	require.NoError(t, document.Reconcile(context.Background(), h, dash.State{Cells: cells}))
}

func newWatcher(t *testing.T, h *document.Handle) *kernel.Watcher {
	t.Helper()
	store, err := kernel.NewDirStore(t.TempDir())
	require.NoError(t, err)
	return kernel.NewWatcher(h, store,
		kernel.WithClock(func() time.Time {
			return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		}))
}

func count(n int64) *int64 { return &n }

func TestWatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("bumped cell executes exactly once test", func(t *testing.T) {
		h := openDoc(t)
		writeCells(t, h, []dash.Cell{
			{ID: "c1", CellType: "code", Source: `console.log("run me")`, ExecutionCount: count(1)},
		})

		w := newWatcher(t, h)
		require.NoError(t, w.Tick(ctx))

		state, err := document.Hydrate[dash.State](h)
		require.NoError(t, err)
		cell := state.CellByID("c1")
		require.NotNil(t, cell)
		require.Len(t, cell.OutputRefs, 1)
		assert.True(t, strings.HasPrefix(cell.OutputRefs[0], "hokey://localhost/outputs/"))
		require.NotNil(t, state.Metadata.LastModified)

		// No bump, no run: the reference stays put.
		ref := cell.OutputRefs[0]
		require.NoError(t, w.Tick(ctx))
		state, err = document.Hydrate[dash.State](h)
		require.NoError(t, err)
		assert.Equal(t, []string{ref}, state.CellByID("c1").OutputRefs)
	})

	t.Run("count rises trigger another run test", func(t *testing.T) {
		h := openDoc(t)
		writeCells(t, h, []dash.Cell{
			{ID: "c1", CellType: "code", Source: "calculate", ExecutionCount: count(1)},
		})

		w := newWatcher(t, h)
		require.NoError(t, w.Tick(ctx))
		state, err := document.Hydrate[dash.State](h)
		require.NoError(t, err)
		first := state.CellByID("c1").OutputRefs[0]

		state.Cells[0].ExecutionCount = count(2)
		require.NoError(t, document.Reconcile(ctx, h, state))
		require.NoError(t, w.Tick(ctx))

		state, err = document.Hydrate[dash.State](h)
		require.NoError(t, err)
		second := state.CellByID("c1").OutputRefs[0]
		assert.NotEqual(t, first, second)
	})

	t.Run("markdown cells never execute test", func(t *testing.T) {
		h := openDoc(t)
		writeCells(t, h, []dash.Cell{
			{ID: "m1", CellType: "markdown", Source: "# title", ExecutionCount: count(3)},
		})

		w := newWatcher(t, h)
		require.NoError(t, w.Tick(ctx))

		state, err := document.Hydrate[dash.State](h)
		require.NoError(t, err)
		assert.Empty(t, state.CellByID("m1").OutputRefs)
	})

	t.Run("unset count means nothing pending test", func(t *testing.T) {
		h := openDoc(t)
		writeCells(t, h, []dash.Cell{
			{ID: "c1", CellType: "code", Source: "print(1)"},
		})

		w := newWatcher(t, h)
		require.NoError(t, w.Tick(ctx))

		state, err := document.Hydrate[dash.State](h)
		require.NoError(t, err)
		assert.Empty(t, state.CellByID("c1").OutputRefs)
		assert.Nil(t, state.Metadata.LastModified)
	})
}
