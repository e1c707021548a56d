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

package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/rgbkrk/autodash/engine"
)

// replica is one local copy of a shared document. It implements
// engine.Handle. Subscriber callbacks always run after the replica's lock has
// been released, so a callback may call back into the replica.
type replica struct {
	repo *Repo
	id   engine.DocumentID

	mu     sync.RWMutex
	doc    engine.Doc
	seq    uint64
	synced bool
	closed bool

	syncCh chan struct{}

	nextSub int
	subs    map[int]func(engine.ChangeEvent)
	ephSubs map[int]func(engine.EphemeralEvent)
}

func newReplica(r *Repo, id engine.DocumentID) (*replica, error) {
	rep := &replica{
		repo:    r,
		id:      id,
		doc:     engine.Doc{},
		syncCh:  make(chan struct{}),
		subs:    make(map[int]func(engine.ChangeEvent)),
		ephSubs: make(map[int]func(engine.EphemeralEvent)),
	}

	stored, ok, err := r.storage.Load(id)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	if ok {
		// A stored snapshot seeds local state, but the replica still awaits
		// a remote confirmation: the stored copy may be arbitrarily stale.
		rep.doc = stored
		rep.seq = MaxSeq(stored)
	}
	return rep, nil
}

// ID implements engine.Handle.
func (rep *replica) ID() engine.DocumentID { return rep.id }

// AwaitSync blocks until the first remote snapshot or confirmed absence
// arrives, or until ctx is done.
func (rep *replica) AwaitSync(ctx context.Context) error {
	select {
	case <-rep.syncCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Synced reports whether a remote confirmation has arrived.
func (rep *replica) Synced() bool {
	rep.mu.RLock()
	defer rep.mu.RUnlock()
	return rep.synced
}

// Snapshot returns a copy of the current raw document.
func (rep *replica) Snapshot() engine.Doc {
	rep.mu.RLock()
	defer rep.mu.RUnlock()
	return rep.doc.Clone()
}

// Apply writes the given fields into the replica, stamps them with a fresh
// write version and queues a snapshot frame carrying only the written fields.
func (rep *replica) Apply(_ context.Context, fields map[string]engine.Value) error {
	if len(fields) == 0 {
		return nil
	}

	rep.mu.Lock()
	if rep.closed {
		rep.mu.Unlock()
		return engine.ErrDocumentClosed
	}
	rep.seq++
	ver := engine.Version{Seq: rep.seq, Actor: rep.repo.actor}
	written := make(engine.Doc, len(fields))
	for name, v := range fields {
		f := engine.Field{Value: v.Clone(), Ver: ver}
		rep.doc[name] = f
		written[name] = engine.Field{Value: v.Clone(), Ver: ver}
	}
	snapshot := rep.doc.Clone()
	rep.mu.Unlock()

	if err := rep.repo.storage.Save(rep.id, snapshot); err != nil {
		return fmt.Errorf("persist document %s: %w", rep.id, err)
	}

	rep.repo.broadcastFrame(Frame{
		Kind:   FrameSnapshot,
		DocID:  rep.id,
		Actor:  rep.repo.actor,
		Fields: written,
	})
	return nil
}

// Subscribe implements engine.Handle.
func (rep *replica) Subscribe(fn func(engine.ChangeEvent)) func() {
	rep.mu.Lock()
	id := rep.nextSub
	rep.nextSub++
	rep.subs[id] = fn
	rep.mu.Unlock()

	return func() {
		rep.mu.Lock()
		delete(rep.subs, id)
		rep.mu.Unlock()
	}
}

// Broadcast sends an ephemeral payload to the peers of this document. The
// payload is never merged into the document and never persisted.
func (rep *replica) Broadcast(_ context.Context, payload []byte) error {
	rep.mu.RLock()
	closed := rep.closed
	rep.mu.RUnlock()
	if closed {
		return engine.ErrDocumentClosed
	}

	rep.repo.broadcastFrame(Frame{
		Kind:    FrameEphemeral,
		DocID:   rep.id,
		Actor:   rep.repo.actor,
		Payload: payload,
	})
	return nil
}

// SubscribeEphemeral implements engine.Handle.
func (rep *replica) SubscribeEphemeral(fn func(engine.EphemeralEvent)) func() {
	rep.mu.Lock()
	id := rep.nextSub
	rep.nextSub++
	rep.ephSubs[id] = fn
	rep.mu.Unlock()

	return func() {
		rep.mu.Lock()
		delete(rep.ephSubs, id)
		rep.mu.Unlock()
	}
}

// Close persists the final snapshot and detaches the replica from the repo.
func (rep *replica) Close() error {
	rep.mu.Lock()
	if rep.closed {
		rep.mu.Unlock()
		return nil
	}
	rep.closed = true
	snapshot := rep.doc.Clone()
	rep.mu.Unlock()

	rep.repo.removeReplica(rep.id)
	if err := rep.repo.storage.Save(rep.id, snapshot); err != nil {
		return fmt.Errorf("persist document %s: %w", rep.id, err)
	}
	return nil
}

// applyRemote merges a remote snapshot into the replica and notifies change
// subscribers once for the whole batch. Any remote snapshot, even one that
// changes nothing, counts as a sync confirmation.
func (rep *replica) applyRemote(fields engine.Doc) {
	rep.mu.Lock()
	if rep.closed {
		rep.mu.Unlock()
		return
	}
	changed := MergeFields(rep.doc, fields)
	if s := MaxSeq(rep.doc); s > rep.seq {
		rep.seq = s
	}
	rep.markSyncedLocked()
	snapshot := rep.doc.Clone()
	subs := rep.subList()
	rep.mu.Unlock()

	if err := rep.repo.storage.Save(rep.id, snapshot); err != nil {
		rep.repo.logger.Warnf("persist document %s: %v", rep.id, err)
	}

	if len(changed) == 0 {
		return
	}
	ev := engine.ChangeEvent{DocID: rep.id, Fields: changed}
	for _, fn := range subs {
		fn(ev)
	}
}

// confirmAbsent closes the sync gate: no peer holds the document, so the
// locally available state is all there is.
func (rep *replica) confirmAbsent() {
	rep.mu.Lock()
	rep.markSyncedLocked()
	rep.mu.Unlock()
}

func (rep *replica) markSyncedLocked() {
	if !rep.synced {
		rep.synced = true
		close(rep.syncCh)
	}
}

// dispatchEphemeral delivers a peer ephemeral payload to subscribers.
func (rep *replica) dispatchEphemeral(payload []byte) {
	rep.mu.RLock()
	fns := make([]func(engine.EphemeralEvent), 0, len(rep.ephSubs))
	for _, fn := range rep.ephSubs {
		fns = append(fns, fn)
	}
	rep.mu.RUnlock()

	ev := engine.EphemeralEvent{DocID: rep.id, Payload: payload}
	for _, fn := range fns {
		fn(ev)
	}
}

// announce sends a sync request for this document on the given connections.
// When the replica holds local state it sends that too: a fresh peer both
// asks for and offers the document, so offline writes propagate on
// reconnect without waiting for someone else's request.
func (rep *replica) announce(conns []*conn) {
	if len(conns) == 0 {
		return
	}
	frames := []Frame{{Kind: FrameRequest, DocID: rep.id, Actor: rep.repo.actor}}
	if snap := rep.snapshotFrame(); snap != nil {
		frames = append(frames, *snap)
	}
	for _, f := range frames {
		data, err := EncodeFrame(f)
		if err != nil {
			rep.repo.logger.Errorf("encode %s frame: %v", f.Kind, err)
			continue
		}
		for _, c := range conns {
			c.enqueue(data)
		}
	}
}

// snapshotFrame returns a snapshot frame carrying the full current document,
// or nil when the replica holds nothing worth answering a request with.
func (rep *replica) snapshotFrame() *Frame {
	rep.mu.RLock()
	defer rep.mu.RUnlock()
	if len(rep.doc) == 0 {
		return nil
	}
	return &Frame{
		Kind:   FrameSnapshot,
		DocID:  rep.id,
		Actor:  rep.repo.actor,
		Fields: rep.doc.Clone(),
	}
}

func (rep *replica) subList() []func(engine.ChangeEvent) {
	fns := make([]func(engine.ChangeEvent), 0, len(rep.subs))
	for _, fn := range rep.subs {
		fns = append(fns, fn)
	}
	return fns
}
