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

package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// refScheme is the URL scheme stamped on output references written into the
// document. The scheme is resolvable only by whoever fronts the store; the
// document itself carries references, never payloads.
const refScheme = "hokey://localhost/outputs/%s"

// OutputStore persists execution outputs and hands back a reference to embed
// in the document.
type OutputStore interface {
	Put(ctx context.Context, out Output) (string, error)
}

// DirStore stores outputs as pretty-printed JSON files in a directory.
type DirStore struct {
	dir string
}

// NewDirStore creates the directory if needed and returns a store over it.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return &DirStore{dir: dir}, nil
}

// Put writes the output as <uuid>.json and returns its reference URL.
func (s *DirStore) Put(_ context.Context, out Output) (string, error) {
	id := uuid.New().String()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal output %s: %w", id, err)
	}
	path := filepath.Join(s.dir, id+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write output %s: %w", path, err)
	}
	return fmt.Sprintf(refScheme, id), nil
}
