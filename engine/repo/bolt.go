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
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/rgbkrk/autodash/engine"
)

var docsBucket = []byte("documents")

// BoltStorage persists snapshots in a single bbolt file, one CBOR blob per
// document.
type BoltStorage struct {
	db *bolt.DB
}

// NewBoltStorage opens (or creates) the storage file at path.
func NewBoltStorage(path string) (*BoltStorage, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(docsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create documents bucket: %w", err)
	}
	return &BoltStorage{db: db}, nil
}

// Load returns the stored snapshot for the document, if any.
func (s *BoltStorage) Load(id engine.DocumentID) (engine.Doc, bool, error) {
	var raw []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(docsBucket).Get([]byte(id)); b != nil {
			raw = append([]byte(nil), b...)
		}
		return nil
	}); err != nil {
		return nil, false, fmt.Errorf("load %s: %w", id, err)
	}
	if raw == nil {
		return nil, false, nil
	}

	var w map[string]wireField
	if err := decMode.Unmarshal(raw, &w); err != nil {
		return nil, false, fmt.Errorf("decode stored %s: %w", id, err)
	}
	doc, err := wireToDoc(w)
	if err != nil {
		return nil, false, fmt.Errorf("decode stored %s: %w", id, err)
	}
	if doc == nil {
		doc = engine.Doc{}
	}
	return doc, true, nil
}

// Save stores the full snapshot of the document.
func (s *BoltStorage) Save(id engine.DocumentID, doc engine.Doc) error {
	raw, err := encMode.Marshal(docToWire(doc))
	if err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(docsBucket).Put([]byte(id), raw)
	}); err != nil {
		return fmt.Errorf("save %s: %w", id, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *BoltStorage) Close() error {
	return s.db.Close()
}
