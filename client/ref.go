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

package client

import (
	"fmt"
	"strings"

	"github.com/rgbkrk/autodash/engine"
)

// Scheme is the recognized document reference scheme.
const Scheme = "autodash"

// ParseDocumentRef extracts a document id from a user-supplied reference.
// Accepted forms:
//
//	4VgLSsiuVNfWeZk17m85GgA18VVp                      bare id
//	autodash:4VgLSsiuVNfWeZk17m85GgA18VVp             scheme-prefixed
//	http://host/path#autodash:4VgLSsiu...             id in a URL fragment
//
// A reference carrying a scheme other than autodash is a configuration
// error surfaced to the user; it never reaches the engine.
func ParseDocumentRef(ref string) (engine.DocumentID, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty document reference")
	}

	// An embedded fragment wins over everything before it.
	if i := strings.Index(ref, "#"); i >= 0 {
		ref = ref[i+1:]
	}

	if scheme, id, ok := strings.Cut(ref, ":"); ok {
		if scheme != Scheme {
			return "", fmt.Errorf("unrecognized document scheme %q: want %q", scheme, Scheme)
		}
		if id == "" {
			return "", fmt.Errorf("document reference %q has an empty id", ref)
		}
		return engine.DocumentID(id), nil
	}

	if strings.ContainsAny(ref, "/ ") {
		return "", fmt.Errorf("document reference %q: want %s:<id> or a bare id", ref, Scheme)
	}
	return engine.DocumentID(ref), nil
}
