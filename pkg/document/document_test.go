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

package document_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgbkrk/autodash/engine"
	"github.com/rgbkrk/autodash/engine/repo"
	"github.com/rgbkrk/autodash/pkg/document"
)

type widget struct {
	Label string `doc:"label"`
	Size  int64  `doc:"size"`
}

type panel struct {
	Counter  int64         `doc:"counter"`
	DarkMode bool          `doc:"darkMode"`
	Notes    document.Text `doc:"notes"`
	Title    *string       `doc:"title"`
	Tags     []string      `doc:"tags"`
	Widgets  []widget      `doc:"widgets"`
	Meta     widget        `doc:"metadata"`
	Ignored  string
}

func openHandle(t *testing.T) *document.Handle {
	t.Helper()
	r := repo.New(repo.WithActor("test"))
	t.Cleanup(func() { _ = r.Close() })
	h, err := document.Open(context.Background(), r, "doc-1")
	require.NoError(t, err)
	return h
}

func fieldVer(t *testing.T, h *document.Handle, name string) engine.Version {
	t.Helper()
	f, ok := h.Raw().Snapshot()[name]
	require.True(t, ok, "field %s missing", name)
	return f.Ver
}

func TestHydrateReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("typed state roundtrips test", func(t *testing.T) {
		h := openHandle(t)
		title := "dashboard"
		in := panel{
			Counter:  7,
			DarkMode: true,
			Notes:    document.Collaborative("hello"),
			Title:    &title,
			Tags:     []string{"a", "b"},
			Widgets:  []widget{{Label: "w1", Size: 3}},
			Meta:     widget{Label: "m", Size: 1},
		}
		require.NoError(t, document.Reconcile(ctx, h, in))

		out, err := document.Hydrate[panel](h)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("missing fields hydrate to zero values test", func(t *testing.T) {
		h := openHandle(t)
		out, err := document.Hydrate[panel](h)
		require.NoError(t, err)
		assert.Equal(t, panel{}, out)
		assert.Nil(t, out.Title)
	})

	t.Run("mismatched field reported, rest still hydrates test", func(t *testing.T) {
		h := openHandle(t)
		require.NoError(t, h.Raw().Apply(ctx, map[string]engine.Value{
			"counter":  engine.String("not a number"),
			"darkMode": engine.Bool(true),
		}))

		out, err := document.Hydrate[panel](h)
		require.Error(t, err)
		var fieldErrs document.FieldErrors
		require.ErrorAs(t, err, &fieldErrs)
		assert.True(t, fieldErrs.Has("counter"))
		assert.False(t, fieldErrs.Has("darkMode"))
		assert.True(t, out.DarkMode)
	})

	t.Run("identical state applies nothing test", func(t *testing.T) {
		h := openHandle(t)
		state := panel{Counter: 1, Tags: []string{"x"}}
		require.NoError(t, document.Reconcile(ctx, h, state))
		before := fieldVer(t, h, "counter")

		require.NoError(t, document.Reconcile(ctx, h, state))
		assert.Equal(t, before, fieldVer(t, h, "counter"))
	})

	t.Run("only changed fields get new versions test", func(t *testing.T) {
		h := openHandle(t)
		state := panel{Counter: 1, DarkMode: false, Tags: []string{"x"}}
		require.NoError(t, document.Reconcile(ctx, h, state))
		counterBefore := fieldVer(t, h, "counter")
		tagsBefore := fieldVer(t, h, "tags")

		state.Counter = 2
		require.NoError(t, document.Reconcile(ctx, h, state))
		assert.NotEqual(t, counterBefore, fieldVer(t, h, "counter"))
		assert.Equal(t, tagsBefore, fieldVer(t, h, "tags"))
	})

	t.Run("nil pointer encodes to null test", func(t *testing.T) {
		h := openHandle(t)
		title := "was set"
		require.NoError(t, document.Reconcile(ctx, h, panel{Title: &title}))
		require.NoError(t, document.Reconcile(ctx, h, panel{Title: nil}))

		v, ok := h.Raw().Snapshot().Get("title")
		require.True(t, ok)
		assert.Equal(t, engine.KindNull, v.Kind)

		out, err := document.Hydrate[panel](h)
		require.NoError(t, err)
		assert.Nil(t, out.Title)
	})
}

func TestTextBinding(t *testing.T) {
	ctx := context.Background()

	t.Run("missing field loads as empty collaborative text test", func(t *testing.T) {
		h := openHandle(t)
		b := h.TextField("notes")

		text, err := b.Load()
		require.NoError(t, err)
		assert.Equal(t, "", text.Value)
		assert.False(t, text.Atomic)
	})

	t.Run("store and load roundtrip test", func(t *testing.T) {
		h := openHandle(t)
		b := h.TextField("notes")

		require.NoError(t, b.Store(ctx, "draft one"))
		text, err := b.Load()
		require.NoError(t, err)
		assert.Equal(t, "draft one", text.Value)
		assert.False(t, text.Atomic)
	})

	t.Run("atomic field loads read-only and refuses store test", func(t *testing.T) {
		h := openHandle(t)
		require.NoError(t, h.Raw().Apply(ctx, map[string]engine.Value{
			"notes": engine.String("atomic"),
		}))
		b := h.TextField("notes")

		text, err := b.Load()
		require.NoError(t, err)
		assert.True(t, text.Atomic)

		err = b.Store(ctx, "overwrite")
		var fieldErrs document.FieldErrors
		require.ErrorAs(t, err, &fieldErrs)
		assert.True(t, fieldErrs.Has("notes"))
	})

	t.Run("storing unchanged text writes nothing test", func(t *testing.T) {
		h := openHandle(t)
		b := h.TextField("notes")
		require.NoError(t, b.Store(ctx, "same"))
		before := fieldVer(t, h, "notes")

		require.NoError(t, b.Store(ctx, "same"))
		assert.Equal(t, before, fieldVer(t, h, "notes"))
	})

	t.Run("non text field fails to load test", func(t *testing.T) {
		h := openHandle(t)
		require.NoError(t, h.Raw().Apply(ctx, map[string]engine.Value{
			"notes": engine.Int(5),
		}))

		_, err := h.TextField("notes").Load()
		assert.Error(t, err)
	})
}

func TestAwaitSync(t *testing.T) {
	t.Run("unanswered sync degrades instead of blocking test", func(t *testing.T) {
		h := openHandle(t)

		err := h.AwaitSync(context.Background(), 20*time.Millisecond)
		assert.ErrorIs(t, err, document.ErrSyncUnavailable)
		assert.False(t, h.Synced())

		// A degraded handle still serves local state.
		out, err := document.Hydrate[panel](h)
		require.NoError(t, err)
		assert.Equal(t, panel{}, out)
	})
}

func TestOnChange(t *testing.T) {
	t.Run("remote bursts coalesce into one follow-up test", func(t *testing.T) {
		r := repo.New(repo.WithActor("local"))
		t.Cleanup(func() { _ = r.Close() })
		h, err := document.Open(context.Background(), r, "doc-1")
		require.NoError(t, err)

		connCtx, cancelConn := context.WithCancel(context.Background())
		defer cancelConn()
		recv := make(chan []byte, 16)
		send := make(chan []byte, 16)
		go func() { _ = r.Connect(connCtx, recv, send) }()

		snap := func(seq uint64) []byte {
			data, err := repo.EncodeFrame(repo.Frame{
				Kind:  repo.FrameSnapshot,
				DocID: "doc-1",
				Actor: "remote",
				Fields: engine.Doc{
					"counter": {Value: engine.Int(int64(seq)), Ver: engine.Version{Seq: seq, Actor: "remote"}},
				},
			})
			require.NoError(t, err)
			return data
		}

		gate := make(chan struct{})
		calls := make(chan struct{}, 16)
		cancel := h.OnChange(func() {
			calls <- struct{}{}
			<-gate
		})
		defer cancel()

		recv <- snap(1)
		select {
		case <-calls:
		case <-time.After(3 * time.Second):
			t.Fatal("first change never observed")
		}

		// A burst lands while the callback is still running.
		recv <- snap(2)
		recv <- snap(3)
		recv <- snap(4)
		require.Eventually(t, func() bool {
			v, ok := h.Raw().Snapshot().Get("counter")
			return ok && v.Int == 4
		}, 3*time.Second, time.Millisecond)

		gate <- struct{}{}
		select {
		case <-calls:
		case <-time.After(3 * time.Second):
			t.Fatal("burst produced no follow-up")
		}
		gate <- struct{}{}

		select {
		case <-calls:
			t.Fatal("burst must collapse into a single follow-up")
		case <-time.After(100 * time.Millisecond):
		}
	})
}
