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

package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgbkrk/autodash/transport"
)

// echoServer upgrades each request and echoes binary frames back verbatim.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(kind, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestBridge(t *testing.T) {
	t.Run("frames roundtrip through the socket test", func(t *testing.T) {
		srv := echoServer(t)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		bridge, err := transport.Dial(ctx, wsURL(srv))
		require.NoError(t, err)

		inbound := make(chan []byte, 4)
		outbound := make(chan []byte, 4)
		runDone := make(chan error, 1)
		go func() { runDone <- bridge.Run(ctx, inbound, outbound) }()

		outbound <- []byte("frame-1")
		outbound <- []byte("frame-2")

		for _, want := range []string{"frame-1", "frame-2"} {
			select {
			case got := <-inbound:
				assert.Equal(t, want, string(got))
			case <-time.After(3 * time.Second):
				t.Fatalf("no echo for %s", want)
			}
		}

		cancel()
		select {
		case err := <-runDone:
			assert.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("run did not stop on cancel")
		}
	})

	t.Run("closing outbound stops the pump cleanly test", func(t *testing.T) {
		srv := echoServer(t)

		ctx := context.Background()
		bridge, err := transport.Dial(ctx, wsURL(srv))
		require.NoError(t, err)

		inbound := make(chan []byte, 4)
		outbound := make(chan []byte)
		close(outbound)

		assert.NoError(t, bridge.Run(ctx, inbound, outbound))
	})

	t.Run("dial failure wraps connection error test", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_, err := transport.Dial(ctx, "ws://127.0.0.1:1/")
		assert.ErrorIs(t, err, transport.ErrConnection)
	})
}
