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

package repo_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgbkrk/autodash/engine"
	"github.com/rgbkrk/autodash/engine/repo"
)

func testStorage(t *testing.T, storage repo.Storage) {
	t.Helper()

	_, ok, err := storage.Load("missing")
	assert.NoError(t, err)
	assert.False(t, ok)

	doc := sampleDoc()
	assert.NoError(t, storage.Save("doc-1", doc))

	loaded, ok, err := storage.Load("doc-1")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, len(doc), len(loaded))
	for name, f := range doc {
		assert.True(t, f.Value.Equal(loaded[name].Value), name)
		assert.Equal(t, f.Ver, loaded[name].Ver, name)
	}

	// Overwrite replaces the snapshot wholesale.
	assert.NoError(t, storage.Save("doc-1", engine.Doc{
		"counter": {Value: engine.Int(1), Ver: engine.Version{Seq: 1, Actor: "a"}},
	}))
	loaded, ok, err = storage.Load("doc-1")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, loaded, 1)
}

func TestMemoryStorage(t *testing.T) {
	storage := repo.NewMemoryStorage()
	defer func() { assert.NoError(t, storage.Close()) }()
	testStorage(t, storage)
}

func TestBoltStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autodash.db")

	storage, err := repo.NewBoltStorage(path)
	require.NoError(t, err)
	testStorage(t, storage)

	// Snapshots survive reopening the file.
	require.NoError(t, storage.Close())
	storage, err = repo.NewBoltStorage(path)
	require.NoError(t, err)
	defer func() { assert.NoError(t, storage.Close()) }()

	loaded, ok, err := storage.Load("doc-1")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), loaded["counter"].Value.Int)
}
