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
	"context"
	"fmt"

	"github.com/rgbkrk/autodash/engine"
)

// TextBinding is the editing surface's view of one text field: load the
// current remote text, store the buffer back. Store refuses fields that
// turned out to be atomic registers so the editor can degrade that field to
// read-only instead of clobbering a representation it does not understand.
type TextBinding struct {
	h    *Handle
	name string
}

// TextField returns a binding for the named text field.
func (h *Handle) TextField(name string) *TextBinding {
	return &TextBinding{h: h, name: name}
}

// Name returns the bound field name.
func (b *TextBinding) Name() string { return b.name }

// Load returns the field's current text. A missing field loads as empty
// collaborative text, matching a freshly created document.
func (b *TextBinding) Load() (Text, error) {
	v, ok := b.h.eng.Snapshot().Get(b.name)
	if !ok || v.Kind == engine.KindNull {
		return Collaborative(""), nil
	}
	switch v.Kind {
	case engine.KindText:
		return Collaborative(v.Str), nil
	case engine.KindString:
		return Atom(v.Str), nil
	default:
		return Text{}, FieldErrors{{Field: b.name, Want: "text", Got: v.Kind.String()}}
	}
}

// Store writes the buffer back as the field's whole value. This is
// whole-field overwrite, not a positional merge: edits made remotely inside
// the same flush window lose to the local buffer.
func (b *TextBinding) Store(ctx context.Context, text string) error {
	b.h.writeMu.Lock()
	defer b.h.writeMu.Unlock()

	cur, ok := b.h.eng.Snapshot().Get(b.name)
	if ok && cur.Kind == engine.KindString {
		return FieldErrors{{Field: b.name, Want: "collaborative text", Got: "atomic string"}}
	}
	if ok && cur.Kind == engine.KindText && cur.Str == text {
		return nil
	}

	if err := b.h.eng.Apply(ctx, map[string]engine.Value{b.name: engine.Text(text)}); err != nil {
		return fmt.Errorf("store %s.%s: %w", b.h.ID(), b.name, err)
	}
	return nil
}
