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

package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rgbkrk/autodash/internal/log"
)

// DefaultWindow is the trailing debounce window for outbound presence.
const DefaultWindow = 100 * time.Millisecond

// SendFunc delivers an encoded presence payload to peers, typically the
// document handle's ephemeral broadcast.
type SendFunc func(ctx context.Context, payload []byte) error

// Broadcaster publishes the local peer's cursor with a trailing debounce:
// any number of selection changes inside one window collapse into a single
// message carrying the latest state at the window's end.
type Broadcaster struct {
	peerID string
	name   string
	send   SendFunc
	window time.Duration
	logger *zap.SugaredLogger
	now    func() time.Time

	mu      sync.Mutex
	pending *Message
	timer   *time.Timer
	closed  bool
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithWindow overrides the debounce window.
func WithWindow(d time.Duration) BroadcasterOption {
	return func(b *Broadcaster) { b.window = d }
}

// WithBroadcasterClock overrides the timestamp source.
func WithBroadcasterClock(now func() time.Time) BroadcasterOption {
	return func(b *Broadcaster) { b.now = now }
}

// NewBroadcaster creates a broadcaster for the local peer.
func NewBroadcaster(peerID, name string, send SendFunc, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		peerID: peerID,
		name:   name,
		send:   send,
		window: DefaultWindow,
		logger: log.Logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Update records the local cursor and selection. The message actually sent
// at the end of the window is whichever update arrived last.
func (b *Broadcaster) Update(position, selectionStart, selectionEnd int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.pending = &Message{
		Type:           TypeCursor,
		PeerID:         b.peerID,
		Name:           b.name,
		Position:       position,
		SelectionStart: selectionStart,
		SelectionEnd:   selectionEnd,
	}
	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.fire)
	}
}

func (b *Broadcaster) fire() {
	b.mu.Lock()
	msg := b.pending
	b.pending = nil
	b.timer = nil
	closed := b.closed
	b.mu.Unlock()

	if msg == nil || closed {
		return
	}
	msg.Timestamp = b.now().UnixMilli()

	payload, err := msg.Encode()
	if err != nil {
		b.logger.Errorf("encode presence broadcast: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.window)
	defer cancel()
	if err := b.send(ctx, payload); err != nil {
		// Presence is lossy by design; the next window carries fresh state.
		b.logger.Debugf("presence broadcast dropped: %v", err)
	}
}

// Close stops the broadcaster. A pending message is discarded; presence is
// ephemeral and peers evict us by TTL anyway.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.pending = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
