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

package client_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rgbkrk/autodash/client"
	"github.com/rgbkrk/autodash/engine"
)

func TestParseDocumentRef(t *testing.T) {
	t.Run("accepted forms test", func(t *testing.T) {
		cases := map[string]struct {
			ref  string
			want engine.DocumentID
		}{
			"bare id":          {"4VgLSsiuVNfWeZk17m85GgA18VVp", "4VgLSsiuVNfWeZk17m85GgA18VVp"},
			"scheme prefixed":  {"autodash:doc-42", "doc-42"},
			"url fragment":     {"http://localhost:8000/#autodash:doc-42", "doc-42"},
			"surrounding gaps": {"  doc-42\n", "doc-42"},
		}
		for name, tc := range cases {
			got, err := client.ParseDocumentRef(tc.ref)
			assert.NoError(t, err, name)
			assert.Equal(t, tc.want, got, name)
		}
	})

	t.Run("rejected forms test", func(t *testing.T) {
		cases := map[string]string{
			"empty":            "",
			"wrong scheme":     "yjs:doc-42",
			"empty id":         "autodash:",
			"path-like bare":   "docs/42",
			"space inside":     "doc 42",
			"fragment garbage": "http://host/#other:doc-42",
		}
		for name, ref := range cases {
			_, err := client.ParseDocumentRef(ref)
			assert.Error(t, err, name)
		}
	})
}
