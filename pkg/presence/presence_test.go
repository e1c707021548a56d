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

package presence_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgbkrk/autodash/pkg/presence"
)

func encodeCursor(t *testing.T, peerID string, position int) []byte {
	t.Helper()
	payload, err := presence.Message{
		Type:     presence.TypeCursor,
		PeerID:   peerID,
		Name:     peerID,
		Position: position,
	}.Encode()
	require.NoError(t, err)
	return payload
}

func TestMessage(t *testing.T) {
	t.Run("roundtrip test", func(t *testing.T) {
		in := presence.Message{
			Type:           presence.TypeCursor,
			PeerID:         "p1",
			Name:           "ana",
			Position:       7,
			SelectionStart: 2,
			SelectionEnd:   5,
			Timestamp:      1234,
		}
		payload, err := in.Encode()
		require.NoError(t, err)

		out, err := presence.Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("unknown type is a distinct error test", func(t *testing.T) {
		payload, err := presence.Message{Type: "typing", PeerID: "p1"}.Encode()
		require.NoError(t, err)

		_, err = presence.Decode(payload)
		assert.ErrorIs(t, err, presence.ErrUnknownType)
	})

	t.Run("malformed payloads rejected test", func(t *testing.T) {
		cases := map[string][]byte{
			"not json":        []byte("{nope"),
			"missing peer id": mustEncode(t, presence.Message{Type: presence.TypeCursor}),
			"negative offset": mustEncode(t, presence.Message{
				Type: presence.TypeCursor, PeerID: "p1", Position: -1,
			}),
		}
		for name, payload := range cases {
			_, err := presence.Decode(payload)
			assert.Error(t, err, name)
			assert.NotErrorIs(t, err, presence.ErrUnknownType, name)
		}
	})
}

func mustEncode(t *testing.T, m presence.Message) []byte {
	t.Helper()
	payload, err := m.Encode()
	require.NoError(t, err)
	return payload
}

func TestTracker(t *testing.T) {
	t.Run("latest message wins and own reflections skipped test", func(t *testing.T) {
		tr := presence.NewTracker("me")
		tr.Receive(encodeCursor(t, "p1", 3))
		tr.Receive(encodeCursor(t, "p1", 9))
		tr.Receive(encodeCursor(t, "me", 1))

		peers := tr.Peers()
		require.Len(t, peers, 1)
		assert.Equal(t, "p1", peers[0].PeerID)
		assert.Equal(t, 9, peers[0].Position)
	})

	t.Run("peers ordered by id test", func(t *testing.T) {
		tr := presence.NewTracker("me")
		tr.Receive(encodeCursor(t, "zed", 1))
		tr.Receive(encodeCursor(t, "ana", 2))

		peers := tr.Peers()
		require.Len(t, peers, 2)
		assert.Equal(t, "ana", peers[0].PeerID)
		assert.Equal(t, "zed", peers[1].PeerID)
	})

	t.Run("sweep evicts by receipt time test", func(t *testing.T) {
		current := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		var mu sync.Mutex
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return current
		}
		advance := func(d time.Duration) {
			mu.Lock()
			current = current.Add(d)
			mu.Unlock()
		}

		tr := presence.NewTracker("me", presence.WithClock(clock))
		tr.Receive(encodeCursor(t, "stale", 1))
		advance(presence.DefaultTTL / 2)
		tr.Receive(encodeCursor(t, "fresh", 2))

		assert.Equal(t, 0, tr.Sweep())

		advance(presence.DefaultTTL/2 + time.Second)
		assert.Equal(t, 1, tr.Sweep())

		peers := tr.Peers()
		require.Len(t, peers, 1)
		assert.Equal(t, "fresh", peers[0].PeerID)
	})

	t.Run("changed channel coalesces bursts test", func(t *testing.T) {
		tr := presence.NewTracker("me")
		tr.Receive(encodeCursor(t, "p1", 1))
		tr.Receive(encodeCursor(t, "p2", 2))
		tr.Receive(encodeCursor(t, "p3", 3))

		select {
		case <-tr.Changed():
		default:
			t.Fatal("expected a change token")
		}
		select {
		case <-tr.Changed():
			t.Fatal("tokens must coalesce")
		default:
		}
	})
}

func TestBroadcaster(t *testing.T) {
	t.Run("updates within one window collapse to the last test", func(t *testing.T) {
		var mu sync.Mutex
		var sent []presence.Message
		send := func(_ context.Context, payload []byte) error {
			msg, err := presence.Decode(payload)
			if err != nil {
				return err
			}
			mu.Lock()
			sent = append(sent, msg)
			mu.Unlock()
			return nil
		}

		b := presence.NewBroadcaster("me", "ana", send, presence.WithWindow(20*time.Millisecond))
		defer b.Close()

		b.Update(1, 0, 0)
		b.Update(2, 0, 0)
		b.Update(3, 1, 3)

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(sent) == 1
		}, 3*time.Second, time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, sent[0].Position)
		assert.Equal(t, 1, sent[0].SelectionStart)
		assert.Equal(t, 3, sent[0].SelectionEnd)
		assert.Equal(t, "me", sent[0].PeerID)
		assert.Equal(t, "ana", sent[0].Name)
	})

	t.Run("closed broadcaster sends nothing test", func(t *testing.T) {
		var count int32
		var mu sync.Mutex
		send := func(_ context.Context, _ []byte) error {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		}

		b := presence.NewBroadcaster("me", "ana", send, presence.WithWindow(5*time.Millisecond))
		b.Update(1, 0, 0)
		b.Close()

		time.Sleep(30 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		assert.EqualValues(t, 0, count)
	})
}

func TestDecorations(t *testing.T) {
	t.Run("out of bounds peers skipped not evicted test", func(t *testing.T) {
		peers := []presence.PeerCursor{
			{PeerID: "in", Position: 3},
			{PeerID: "out", Position: 50},
		}
		decs := presence.Render(peers, 10)
		require.Len(t, decs, 1)
		assert.Equal(t, "in", decs[0].PeerID)
	})

	t.Run("selection renders only when non-empty and in bounds test", func(t *testing.T) {
		peers := []presence.PeerCursor{
			{PeerID: "a", Position: 2, SelectionStart: 5, SelectionEnd: 1},
			{PeerID: "b", Position: 2, SelectionStart: 2, SelectionEnd: 2},
			{PeerID: "c", Position: 2, SelectionStart: 0, SelectionEnd: 99},
		}
		decs := presence.Render(peers, 10)
		require.Len(t, decs, 3)

		// Reversed bounds normalize.
		assert.True(t, decs[0].HasSelection)
		assert.Equal(t, 1, decs[0].SelectionStart)
		assert.Equal(t, 5, decs[0].SelectionEnd)

		assert.False(t, decs[1].HasSelection)
		assert.False(t, decs[2].HasSelection)
	})

	t.Run("remap shifts offsets through local edits test", func(t *testing.T) {
		decs := []presence.Decoration{
			{PeerID: "before", Position: 2},
			{PeerID: "inside", Position: 6, HasSelection: true, SelectionStart: 5, SelectionEnd: 8},
			{PeerID: "after", Position: 9},
		}

		// Delete 3 runes at offset 4, insert 1.
		out := presence.Remap(decs, 4, 3, 1)
		assert.Equal(t, 2, out[0].Position)
		assert.Equal(t, 4, out[1].Position)
		assert.Equal(t, 7, out[2].Position)

		// The selection collapsed into the deleted range on one side.
		assert.True(t, out[1].HasSelection)
		assert.Equal(t, 4, out[1].SelectionStart)
		assert.Equal(t, 6, out[1].SelectionEnd)
	})

	t.Run("collapsed selection drops after remap test", func(t *testing.T) {
		decs := []presence.Decoration{
			{PeerID: "p", Position: 5, HasSelection: true, SelectionStart: 4, SelectionEnd: 6},
		}
		out := presence.Remap(decs, 3, 5, 0)
		assert.False(t, out[0].HasSelection)
	})
}

func TestColorFor(t *testing.T) {
	t.Run("stable per peer test", func(t *testing.T) {
		a := presence.ColorFor("peer-1")
		b := presence.ColorFor("peer-1")
		assert.Equal(t, a, b)
		assert.NotEmpty(t, a.ANSI)
	})
}
