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
	"sync"

	"github.com/rgbkrk/autodash/engine"
)

// Storage persists document snapshots between runs. Implementations must be
// safe for concurrent use.
type Storage interface {
	// Load returns the stored snapshot for the document, if any.
	Load(id engine.DocumentID) (engine.Doc, bool, error)

	// Save stores the full snapshot of the document.
	Save(id engine.DocumentID, doc engine.Doc) error

	Close() error
}

// MemoryStorage keeps snapshots in process memory. Used by tests and for
// sessions that do not want a state file.
type MemoryStorage struct {
	mu   sync.RWMutex
	docs map[engine.DocumentID]engine.Doc
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{docs: make(map[engine.DocumentID]engine.Doc)}
}

// Load returns the stored snapshot for the document, if any.
func (s *MemoryStorage) Load(id engine.DocumentID) (engine.Doc, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, false, nil
	}
	return doc.Clone(), true, nil
}

// Save stores the full snapshot of the document.
func (s *MemoryStorage) Save(id engine.DocumentID, doc engine.Doc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id] = doc.Clone()
	return nil
}

// Close is a no-op for in-memory storage.
func (s *MemoryStorage) Close() error { return nil }
