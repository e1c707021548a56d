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

package server_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgbkrk/autodash/client"
	"github.com/rgbkrk/autodash/engine"
	"github.com/rgbkrk/autodash/server"
)

const waitFor = 5 * time.Second

func newRelay(t *testing.T) *httptest.Server {
	t.Helper()
	srv, err := server.New(server.NewConfig())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server, actor string) *client.Client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	cli, err := client.Dial(context.Background(), url,
		client.WithActor(actor),
		client.WithSyncTimeout(waitFor),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })
	return cli
}

func counterOf(h interface{ Snapshot() engine.Doc }) (int64, bool) {
	v, ok := h.Snapshot().Get("counter")
	if !ok || v.Kind != engine.KindInt {
		return 0, false
	}
	return v.Int, true
}

func TestRelay(t *testing.T) {
	ctx := context.Background()

	t.Run("two clients converge through the relay test", func(t *testing.T) {
		ts := newRelay(t)
		cliA := dial(t, ts, "actor-a")
		cliB := dial(t, ts, "actor-b")

		docA, err := cliA.Document(ctx, "doc-1")
		require.NoError(t, err)
		docB, err := cliB.Document(ctx, "doc-1")
		require.NoError(t, err)

		require.NoError(t, docA.Raw().Apply(ctx, map[string]engine.Value{
			"counter": engine.Int(11),
		}))

		require.Eventually(t, func() bool {
			v, ok := counterOf(docB.Raw())
			return ok && v == 11
		}, waitFor, 10*time.Millisecond)
	})

	t.Run("fresh document syncs as absent test", func(t *testing.T) {
		ts := newRelay(t)
		cli := dial(t, ts, "actor-a")

		doc, err := cli.Document(ctx, "doc-empty")
		require.NoError(t, err)
		assert.True(t, doc.Synced())
		assert.Empty(t, doc.Raw().Snapshot())
	})

	t.Run("relay answers late joiners from the held copy test", func(t *testing.T) {
		ts := newRelay(t)

		writer := dial(t, ts, "actor-w")
		doc, err := writer.Document(ctx, "doc-2")
		require.NoError(t, err)
		require.NoError(t, doc.Raw().Apply(ctx, map[string]engine.Value{
			"counter": engine.Int(5),
		}))
		// Give the frame time to reach the relay before the writer leaves.
		time.Sleep(200 * time.Millisecond)
		require.NoError(t, writer.Close())

		// The writer is gone; the relay's held copy answers the request.
		reader := dial(t, ts, "actor-r")
		doc, err = reader.Document(ctx, "doc-2")
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			v, ok := counterOf(doc.Raw())
			return ok && v == 5
		}, waitFor, 10*time.Millisecond)
	})

	t.Run("ephemeral payloads fan out without being stored test", func(t *testing.T) {
		ts := newRelay(t)
		cliA := dial(t, ts, "actor-a")
		cliB := dial(t, ts, "actor-b")

		docA, err := cliA.Document(ctx, "doc-3")
		require.NoError(t, err)
		docB, err := cliB.Document(ctx, "doc-3")
		require.NoError(t, err)

		payloads := make(chan []byte, 8)
		unsub := docB.Raw().SubscribeEphemeral(func(ev engine.EphemeralEvent) {
			payloads <- ev.Payload
		})
		defer unsub()

		require.NoError(t, docA.Raw().Broadcast(ctx, []byte("cursor update")))

		select {
		case got := <-payloads:
			assert.Equal(t, []byte("cursor update"), got)
		case <-time.After(waitFor):
			t.Fatal("no ephemeral payload")
		}
		assert.Empty(t, docB.Raw().Snapshot())
	})

	t.Run("writes survive a dropped connection test", func(t *testing.T) {
		ts := newRelay(t)
		cli := dial(t, ts, "actor-a")
		doc, err := cli.Document(ctx, "doc-4")
		require.NoError(t, err)

		// Kill the connection, then write while the supervisor redials. The
		// re-announcement on reconnect carries the local snapshot, so the
		// write still reaches the relay and later joiners.
		ts.CloseClientConnections()
		require.NoError(t, doc.Raw().Apply(ctx, map[string]engine.Value{
			"counter": engine.Int(7),
		}))

		late := dial(t, ts, "actor-b")
		lateDoc, err := late.Document(ctx, "doc-4")
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			v, ok := counterOf(lateDoc.Raw())
			return ok && v == 7
		}, waitFor, 10*time.Millisecond)
	})
}
