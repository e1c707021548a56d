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

// Package document provides the typed facade over one shared document: a
// handle with bounded sync waiting and coalesced change notification, plus
// Hydrate and Reconcile projections between raw engine documents and typed
// Go structs.
package document

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rgbkrk/autodash/engine"
	"github.com/rgbkrk/autodash/internal/log"
)

// ErrSyncUnavailable is returned by AwaitSync when no remote confirmation
// arrived within the bound. The handle remains usable; its state is whatever
// is locally available and callers must treat it as possibly stale.
var ErrSyncUnavailable = errors.New("document sync unavailable")

// Handle wraps an engine handle with the guarantees the editing surface
// needs: mutations through one handle never overlap, and change callbacks
// fire once per coalesced batch rather than once per byte.
type Handle struct {
	eng    engine.Handle
	logger *zap.SugaredLogger

	// writeMu serializes Reconcile calls. It is never held while delivering
	// notifications or while waiting on the network, only across the
	// snapshot-diff-apply critical section.
	writeMu sync.Mutex
}

// Open obtains a handle for the given document from the engine.
func Open(ctx context.Context, eng engine.Engine, id engine.DocumentID) (*Handle, error) {
	h, err := eng.Open(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open document %s: %w", id, err)
	}
	return Wrap(h), nil
}

// Wrap builds a Handle around an already opened engine handle.
func Wrap(h engine.Handle) *Handle {
	return &Handle{eng: h, logger: log.Logger}
}

// ID returns the document identity.
func (h *Handle) ID() engine.DocumentID { return h.eng.ID() }

// Raw exposes the underlying engine handle for ephemeral broadcast and
// subscription; document mutation must go through Reconcile.
func (h *Handle) Raw() engine.Handle { return h.eng }

// AwaitSync waits up to timeout for the first remote snapshot or confirmed
// absence. On timeout it returns ErrSyncUnavailable; the caller proceeds
// with local state (degraded, not failed).
func (h *Handle) AwaitSync(ctx context.Context, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := h.eng.AwaitSync(waitCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrSyncUnavailable
		}
		return fmt.Errorf("await sync for %s: %w", h.ID(), err)
	}
	return nil
}

// Synced reports whether a remote confirmation has arrived.
func (h *Handle) Synced() bool { return h.eng.Synced() }

// OnChange registers fn to run once per coalesced batch of remote mutations.
// Bursts that arrive while fn is running collapse into a single follow-up
// call. The returned function cancels the subscription.
func (h *Handle) OnChange(fn func()) (cancel func()) {
	pending := make(chan struct{}, 1)
	stop := make(chan struct{})

	unsubscribe := h.eng.Subscribe(func(engine.ChangeEvent) {
		select {
		case pending <- struct{}{}:
		default:
		}
	})

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-pending:
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			close(stop)
		})
	}
}

// Close closes the underlying engine handle.
func (h *Handle) Close() error { return h.eng.Close() }
