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

package repo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgbkrk/autodash/engine"
	"github.com/rgbkrk/autodash/engine/repo"
)

const waitFor = 3 * time.Second

// crosswire connects two repos directly with in-memory channels, no relay in
// between.
func crosswire(t *testing.T, ctx context.Context, a, b *repo.Repo) {
	t.Helper()
	aToB := make(chan []byte, 64)
	bToA := make(chan []byte, 64)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = a.Connect(ctx, bToA, aToB)
	}()
	go func() {
		defer wg.Done()
		_ = b.Connect(ctx, aToB, bToA)
	}()
	t.Cleanup(wg.Wait)
}

func intField(h engine.Handle, name string) (int64, bool) {
	v, ok := h.Snapshot().Get(name)
	if !ok || v.Kind != engine.KindInt {
		return 0, false
	}
	return v.Int, true
}

func TestRepoSync(t *testing.T) {
	t.Run("write propagates to peer test", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		repoA := repo.New(repo.WithActor("aaa"))
		repoB := repo.New(repo.WithActor("bbb"))
		crosswire(t, ctx, repoA, repoB)

		docA, err := repoA.Open(ctx, "doc-1")
		require.NoError(t, err)
		require.NoError(t, docA.Apply(ctx, map[string]engine.Value{
			"counter": engine.Int(42),
		}))

		docB, err := repoB.Open(ctx, "doc-1")
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			v, ok := intField(docB, "counter")
			return ok && v == 42
		}, waitFor, 10*time.Millisecond)

		// The snapshot that answered the open also confirmed sync.
		assert.True(t, docB.Synced())
		syncCtx, syncCancel := context.WithTimeout(ctx, waitFor)
		defer syncCancel()
		assert.NoError(t, docB.AwaitSync(syncCtx))
	})

	t.Run("concurrent writes converge to one winner test", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		repoA := repo.New(repo.WithActor("aaa"))
		repoB := repo.New(repo.WithActor("bbb"))

		// Write on both sides before wiring so the writes are concurrent.
		docA, err := repoA.Open(ctx, "doc-1")
		require.NoError(t, err)
		require.NoError(t, docA.Apply(ctx, map[string]engine.Value{
			"counter": engine.Int(1),
		}))
		docB, err := repoB.Open(ctx, "doc-1")
		require.NoError(t, err)
		require.NoError(t, docB.Apply(ctx, map[string]engine.Value{
			"counter": engine.Int(2),
		}))

		crosswire(t, ctx, repoA, repoB)

		// Same seq on both writes: the greater actor id wins everywhere.
		require.Eventually(t, func() bool {
			va, okA := intField(docA, "counter")
			vb, okB := intField(docB, "counter")
			return okA && okB && va == vb && va == 2
		}, waitFor, 10*time.Millisecond)
	})

	t.Run("change events carry field names test", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		repoA := repo.New(repo.WithActor("aaa"))
		repoB := repo.New(repo.WithActor("bbb"))
		crosswire(t, ctx, repoA, repoB)

		docB, err := repoB.Open(ctx, "doc-1")
		require.NoError(t, err)

		events := make(chan engine.ChangeEvent, 8)
		unsub := docB.Subscribe(func(ev engine.ChangeEvent) { events <- ev })
		defer unsub()

		docA, err := repoA.Open(ctx, "doc-1")
		require.NoError(t, err)
		require.NoError(t, docA.Apply(ctx, map[string]engine.Value{
			"darkMode": engine.Bool(true),
			"counter":  engine.Int(1),
		}))

		select {
		case ev := <-events:
			assert.Equal(t, engine.DocumentID("doc-1"), ev.DocID)
			assert.Equal(t, []string{"counter", "darkMode"}, ev.Fields)
		case <-time.After(waitFor):
			t.Fatal("no change event")
		}
	})

	t.Run("ephemeral payload reaches peer and is not stored test", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		repoA := repo.New(repo.WithActor("aaa"))
		repoB := repo.New(repo.WithActor("bbb"))
		crosswire(t, ctx, repoA, repoB)

		docA, err := repoA.Open(ctx, "doc-1")
		require.NoError(t, err)
		docB, err := repoB.Open(ctx, "doc-1")
		require.NoError(t, err)

		payloads := make(chan []byte, 8)
		unsub := docB.SubscribeEphemeral(func(ev engine.EphemeralEvent) { payloads <- ev.Payload })
		defer unsub()

		require.NoError(t, docA.Broadcast(ctx, []byte("cursor at 7")))

		select {
		case got := <-payloads:
			assert.Equal(t, []byte("cursor at 7"), got)
		case <-time.After(waitFor):
			t.Fatal("no ephemeral payload")
		}
		assert.Empty(t, docB.Snapshot())
	})

	t.Run("storage seeds replica across restarts test", func(t *testing.T) {
		ctx := context.Background()
		storage := repo.NewMemoryStorage()

		first := repo.New(repo.WithActor("aaa"), repo.WithStorage(storage))
		doc, err := first.Open(ctx, "doc-1")
		require.NoError(t, err)
		require.NoError(t, doc.Apply(ctx, map[string]engine.Value{
			"counter": engine.Int(9),
		}))
		require.NoError(t, doc.Close())

		second := repo.New(repo.WithActor("aaa"), repo.WithStorage(storage))
		doc, err = second.Open(ctx, "doc-1")
		require.NoError(t, err)
		v, ok := intField(doc, "counter")
		assert.True(t, ok)
		assert.Equal(t, int64(9), v)
		// Seeded state is still unconfirmed until a peer answers.
		assert.False(t, doc.Synced())
	})

	t.Run("open after close fails test", func(t *testing.T) {
		r := repo.New()
		require.NoError(t, r.Close())
		_, err := r.Open(context.Background(), "doc-1")
		assert.ErrorIs(t, err, engine.ErrEngineClosed)
	})
}
