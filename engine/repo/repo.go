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

// Package repo is the bundled synchronization engine. It keeps whole-value
// last-writer-wins replicas and exchanges CBOR snapshot frames with peers
// through transport bridges. It deliberately implements no character-wise
// text merging; concurrent writes to one field resolve to a single winner.
package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/rgbkrk/autodash/engine"
	"github.com/rgbkrk/autodash/internal/log"
)

// sendQueueSize bounds the per-connection outbound queue. Overflow drops the
// oldest frame: snapshots carry full field values, so a newer queued snapshot
// supersedes a dropped older one, and ephemeral frames are droppable by
// definition.
const sendQueueSize = 64

// Option configures a Repo.
type Option func(*Repo)

// WithStorage sets the snapshot storage. Defaults to in-memory.
func WithStorage(s Storage) Option {
	return func(r *Repo) { r.storage = s }
}

// WithActor sets the actor id stamped on local writes. Defaults to a fresh
// xid.
func WithActor(actor string) Option {
	return func(r *Repo) { r.actor = actor }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(r *Repo) { r.logger = logger }
}

// Repo implements engine.Engine over snapshot frames.
type Repo struct {
	actor   string
	storage Storage
	logger  *zap.SugaredLogger

	mu     sync.RWMutex
	docs   map[engine.DocumentID]*replica
	conns  map[*conn]struct{}
	closed bool
}

// New creates a repo.
func New(opts ...Option) *Repo {
	r := &Repo{
		docs:  make(map[engine.DocumentID]*replica),
		conns: make(map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.storage == nil {
		r.storage = NewMemoryStorage()
	}
	if r.actor == "" {
		r.actor = xid.New().String()
	}
	if r.logger == nil {
		r.logger = log.Logger
	}
	return r
}

// Actor returns the actor id stamped on this repo's writes.
func (r *Repo) Actor() string { return r.actor }

// Open returns a handle for the document, creating a pending replica if none
// exists. The replica is seeded from storage when a snapshot was persisted by
// an earlier run; remote confirmation is still awaited separately.
func (r *Repo) Open(_ context.Context, id engine.DocumentID) (engine.Handle, error) {
	if id == "" {
		return nil, fmt.Errorf("open document: empty id")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, engine.ErrEngineClosed
	}
	if rep, ok := r.docs[id]; ok {
		r.mu.Unlock()
		return rep, nil
	}

	rep, err := newReplica(r, id)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.docs[id] = rep
	conns := r.connList()
	r.mu.Unlock()

	rep.announce(conns)
	return rep, nil
}

// Close closes all replicas, flushes storage and drops connections.
func (r *Repo) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	reps := make([]*replica, 0, len(r.docs))
	for _, rep := range r.docs {
		reps = append(reps, rep)
	}
	r.conns = make(map[*conn]struct{})
	r.mu.Unlock()

	for _, rep := range reps {
		if err := rep.Close(); err != nil {
			r.logger.Warnf("close document %s: %v", rep.ID(), err)
		}
	}
	return r.storage.Close()
}

// Connect runs this repo's end of a transport bridge. Frames arriving on recv
// are applied; frames the repo emits are forwarded to send. Connect blocks
// until ctx is done or recv closes, then unregisters the connection. The
// repo's internal processing never blocks on a stalled send channel; overflow
// is absorbed by the connection queue.
func (r *Repo) Connect(ctx context.Context, recv <-chan []byte, send chan<- []byte) error {
	c := &conn{queue: make(chan []byte, sendQueueSize)}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return engine.ErrEngineClosed
	}
	r.conns[c] = struct{}{}
	reps := make([]*replica, 0, len(r.docs))
	for _, rep := range r.docs {
		reps = append(reps, rep)
	}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.conns, c)
		r.mu.Unlock()
	}()

	// Re-announce every open document so a fresh peer can answer our sync
	// requests and pick up writes made while offline.
	for _, rep := range reps {
		rep.announce([]*conn{c})
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case data := <-c.queue:
				select {
				case send <- data:
				case <-ctx.Done():
					return
				case <-done:
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-recv:
			if !ok {
				return nil
			}
			r.handleFrame(c, data)
		}
	}
}

func (r *Repo) handleFrame(c *conn, data []byte) {
	f, err := DecodeFrame(data)
	if err != nil {
		r.logger.Warnf("dropping frame: %v", err)
		return
	}
	if f.Actor != "" && f.Actor == r.actor {
		// Reflected from a relay that does not filter the sender.
		return
	}

	rep := r.lookup(f.DocID)
	if rep == nil {
		r.logger.Debugf("frame for unopened document %s ignored", f.DocID)
		return
	}

	switch f.Kind {
	case FrameSnapshot:
		rep.applyRemote(f.Fields)
	case FrameAbsent:
		rep.confirmAbsent()
	case FrameEphemeral:
		rep.dispatchEphemeral(f.Payload)
	case FrameRequest:
		// Symmetric sync: answer peers directly when we hold data.
		if snap := rep.snapshotFrame(); snap != nil {
			r.reply(c, *snap)
		}
	}
}

func (r *Repo) lookup(id engine.DocumentID) *replica {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.docs[id]
}

func (r *Repo) connList() []*conn {
	conns := make([]*conn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

func (r *Repo) removeReplica(id engine.DocumentID) {
	r.mu.Lock()
	delete(r.docs, id)
	r.mu.Unlock()
}

// broadcastFrame fans a frame out to every connection without blocking.
func (r *Repo) broadcastFrame(f Frame) {
	data, err := EncodeFrame(f)
	if err != nil {
		r.logger.Errorf("encode outbound frame: %v", err)
		return
	}
	r.mu.RLock()
	conns := r.connList()
	r.mu.RUnlock()
	for _, c := range conns {
		c.enqueue(data)
	}
}

func (r *Repo) reply(c *conn, f Frame) {
	data, err := EncodeFrame(f)
	if err != nil {
		r.logger.Errorf("encode reply frame: %v", err)
		return
	}
	c.enqueue(data)
}

type conn struct {
	queue chan []byte
}

// enqueue adds a frame to the outbound queue, dropping the oldest entry when
// full.
func (c *conn) enqueue(data []byte) {
	select {
	case c.queue <- data:
		return
	default:
	}
	select {
	case <-c.queue:
	default:
	}
	select {
	case c.queue <- data:
	default:
	}
}
