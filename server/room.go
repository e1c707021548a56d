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

package server

import (
	"sync"

	"github.com/rgbkrk/autodash/engine"
	"github.com/rgbkrk/autodash/engine/repo"
)

// room groups the connections interested in one document and holds the
// relay's own merged copy of it. The copy lets the relay answer sync
// requests even when the writer has already disconnected.
type room struct {
	id engine.DocumentID

	mu      sync.RWMutex
	doc     engine.Doc
	members map[string]*member
}

func newRoom(id engine.DocumentID) *room {
	return &room{
		id:      id,
		doc:     make(engine.Doc),
		members: make(map[string]*member),
	}
}

// join registers the member. It reports whether the member was new to the
// room.
func (r *room) join(m *member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[m.id]; ok {
		return false
	}
	r.members[m.id] = m
	return true
}

// leave removes the member and reports the remaining member count.
func (r *room) leave(m *member) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, m.id)
	return len(r.members)
}

// merge folds the snapshot fields into the held copy, last writer wins.
// It reports whether any field changed.
func (r *room) merge(fields engine.Doc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(repo.MergeFields(r.doc, fields)) > 0
}

// snapshot returns a copy of the held document, or nil when the relay has
// not seen any write for it yet.
func (r *room) snapshot() engine.Doc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.doc) == 0 {
		return nil
	}
	out := make(engine.Doc, len(r.doc))
	for name, f := range r.doc {
		out[name] = engine.Field{Value: f.Value.Clone(), Ver: f.Ver}
	}
	return out
}

// broadcast enqueues data on every member except the one named by exclude.
// Members with full queues have the frame dropped; the relay never blocks
// on a stalled socket.
func (r *room) broadcast(exclude string, data []byte, metrics *Metrics) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, m := range r.members {
		if id == exclude {
			continue
		}
		if !m.enqueue(data) {
			metrics.FrameDropped()
		}
	}
}
