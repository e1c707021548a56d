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

package document

import (
	"fmt"
	"strings"
)

// Text is the tagged variant for text fields. A shared document may hold a
// text field either as an atomic register replaced wholesale or as a
// collaborative text the engine merges; the two look identical as plain
// strings but must not be written the same way. Hydration records the
// classification so writers can refuse to clobber the wrong representation.
type Text struct {
	Value string

	// Atomic is true when the field was stored as an atomic register.
	Atomic bool
}

// Collaborative returns a collaborative text value.
func Collaborative(s string) Text { return Text{Value: s} }

// Atom returns an atomic text value.
func Atom(s string) Text { return Text{Value: s, Atomic: true} }

// String returns the text content.
func (t Text) String() string { return t.Value }

// SchemaMismatchError reports that a field's stored representation does not
// match the expected shape. The mismatch is fatal for that field only;
// sibling fields are unaffected.
type SchemaMismatchError struct {
	Field string
	Want  string
	Got   string
}

// Error implements the error interface.
func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("field %q: want %s, got %s", e.Field, e.Want, e.Got)
}

// FieldErrors collects per-field schema mismatches from one hydration. The
// remaining fields of the batch still hydrated; callers that can degrade
// per-field may inspect the list and keep going.
type FieldErrors []*SchemaMismatchError

// Error implements the error interface.
func (e FieldErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return "schema mismatch: " + strings.Join(msgs, "; ")
}

// Has reports whether the named field failed to hydrate.
func (e FieldErrors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field || strings.HasPrefix(fe.Field, field+".") {
			return true
		}
	}
	return false
}
