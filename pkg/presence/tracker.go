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
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rgbkrk/autodash/internal/log"
)

// Tracker defaults.
const (
	DefaultTTL        = 10 * time.Second
	DefaultSweepEvery = 2 * time.Second
)

// PeerCursor is a remote collaborator's live position. LastSeen is the local
// receipt time of the most recent message, deliberately not the sender's
// timestamp: clock skew between peers must not cause premature or delayed
// eviction.
type PeerCursor struct {
	PeerID         string
	Name           string
	Position       int
	SelectionStart int
	SelectionEnd   int
	LastSeen       time.Time
}

// Tracker owns the live peer-cursor set for one edit session. It is created
// with the session, passed by reference to the renderer and torn down with
// the session; peer state never outlives it.
type Tracker struct {
	self       string
	ttl        time.Duration
	sweepEvery time.Duration
	now        func() time.Time
	logger     *zap.SugaredLogger

	mu    sync.RWMutex
	peers map[string]PeerCursor

	changed chan struct{}
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTTL overrides the staleness TTL.
func WithTTL(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.ttl = d }
}

// WithSweepInterval overrides the eviction sweep interval.
func WithSweepInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.sweepEvery = d }
}

// WithClock overrides the receipt-time source.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker that ignores messages from the given local
// peer id.
func NewTracker(self string, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		self:       self,
		ttl:        DefaultTTL,
		sweepEvery: DefaultSweepEvery,
		now:        time.Now,
		logger:     log.Logger,
		peers:      make(map[string]PeerCursor),
		changed:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Receive handles one ephemeral payload. Malformed payloads are logged and
// dropped; unknown message types and the local peer's own reflections are
// skipped silently. Receipt order per peer does not matter: the latest
// message always wins the map slot.
func (t *Tracker) Receive(payload []byte) {
	msg, err := Decode(payload)
	if err != nil {
		if !errors.Is(err, ErrUnknownType) {
			t.logger.Debugf("dropping presence payload: %v", err)
		}
		return
	}
	if msg.PeerID == t.self {
		return
	}

	t.mu.Lock()
	t.peers[msg.PeerID] = PeerCursor{
		PeerID:         msg.PeerID,
		Name:           msg.Name,
		Position:       msg.Position,
		SelectionStart: msg.SelectionStart,
		SelectionEnd:   msg.SelectionEnd,
		LastSeen:       t.now(),
	}
	t.mu.Unlock()

	t.notify()
}

// Peers returns the live peer cursors, ordered by peer id.
func (t *Tracker) Peers() []PeerCursor {
	t.mu.RLock()
	out := make([]PeerCursor, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].PeerID < out[j].PeerID })
	return out
}

// Sweep evicts peers not refreshed within the TTL and returns how many were
// removed. A removal triggers a change notification.
func (t *Tracker) Sweep() int {
	cutoff := t.now().Add(-t.ttl)

	t.mu.Lock()
	removed := 0
	for id, p := range t.peers {
		if p.LastSeen.Before(cutoff) {
			delete(t.peers, id)
			removed++
		}
	}
	t.mu.Unlock()

	if removed > 0 {
		t.notify()
	}
	return removed
}

// Run sweeps periodically until ctx is done.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}

// Changed returns a channel that receives a token whenever the peer set
// changes. Bursts coalesce; consumers recompute decorations once per token.
func (t *Tracker) Changed() <-chan struct{} { return t.changed }

func (t *Tracker) notify() {
	select {
	case t.changed <- struct{}{}:
	default:
	}
}
