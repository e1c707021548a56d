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
	"reflect"

	"github.com/rgbkrk/autodash/engine"
)

// Reconcile converges the document toward the given typed state by applying
// the minimal field-granular diff: only fields whose encoded value differs
// from the current snapshot are written, and a state equal to the snapshot
// applies nothing at all. Reconciles through one handle are strictly
// serialized; concurrent remote writes still merge at the engine layer.
func Reconcile[T any](ctx context.Context, h *Handle, state T) error {
	rv := reflect.ValueOf(state)
	if rv.Kind() != reflect.Struct {
		panic(fmt.Sprintf("document: Reconcile source must be a struct, got %T", state))
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	doc := h.eng.Snapshot()
	diff := make(map[string]engine.Value)
	for i := 0; i < rv.NumField(); i++ {
		name, ok := fieldTag(rv.Type().Field(i))
		if !ok {
			continue
		}
		want := encodeValue(rv.Field(i))
		cur, exists := doc.Get(name)
		if exists && cur.Equal(want) {
			continue
		}
		diff[name] = want
	}

	if len(diff) == 0 {
		return nil
	}
	if err := h.eng.Apply(ctx, diff); err != nil {
		return fmt.Errorf("reconcile %s: %w", h.ID(), err)
	}
	return nil
}

func encodeValue(v reflect.Value) engine.Value {
	if v.Type() == textType {
		t := v.Interface().(Text)
		if t.Atomic {
			return engine.String(t.Value)
		}
		return engine.Text(t.Value)
	}

	switch v.Kind() {
	case reflect.Bool:
		return engine.Bool(v.Bool())
	case reflect.Int64:
		return engine.Int(v.Int())
	case reflect.String:
		// Plain strings are atomic registers. Fields needing collaborative
		// text use Text explicitly.
		return engine.String(v.String())
	case reflect.Pointer:
		if v.IsNil() {
			return engine.Null()
		}
		return encodeValue(v.Elem())
	case reflect.Slice:
		items := make([]engine.Value, v.Len())
		for i := 0; i < v.Len(); i++ {
			items[i] = encodeValue(v.Index(i))
		}
		return engine.List(items...)
	case reflect.Struct:
		m := make(map[string]engine.Value)
		for i := 0; i < v.NumField(); i++ {
			name, ok := fieldTag(v.Type().Field(i))
			if !ok {
				continue
			}
			m[name] = encodeValue(v.Field(i))
		}
		return engine.Map(m)
	default:
		panic(fmt.Sprintf("document: cannot encode Go type %s", v.Type()))
	}
}
