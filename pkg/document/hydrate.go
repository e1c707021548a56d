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
	"reflect"

	"github.com/rgbkrk/autodash/engine"
)

// tagName is the struct tag binding a Go field to a document field.
const tagName = "doc"

var textType = reflect.TypeOf(Text{})

// Hydrate deserializes the document's current snapshot into a typed state.
// Fields absent from the document hydrate to their zero value; a field whose
// stored representation does not match the struct's shape is reported in the
// returned FieldErrors while the remaining fields still hydrate. A non-nil
// error is therefore always of type FieldErrors, and the returned state is
// usable alongside it.
//
// Hydrate and Reconcile are free functions rather than methods because Go
// methods cannot introduce type parameters.
func Hydrate[T any](h *Handle) (T, error) {
	var state T
	doc := h.eng.Snapshot()

	rv := reflect.ValueOf(&state).Elem()
	if rv.Kind() != reflect.Struct {
		panic(fmt.Sprintf("document: Hydrate target must be a struct, got %T", state))
	}

	var errs FieldErrors
	for i := 0; i < rv.NumField(); i++ {
		name, ok := fieldTag(rv.Type().Field(i))
		if !ok {
			continue
		}
		v, ok := doc.Get(name)
		if !ok {
			continue
		}
		if err := hydrateValue(rv.Field(i), v, name); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return state, errs
	}
	return state, nil
}

func fieldTag(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get(tagName)
	if tag == "" || tag == "-" || !f.IsExported() {
		return "", false
	}
	return tag, true
}

func hydrateValue(dst reflect.Value, v engine.Value, path string) *SchemaMismatchError {
	if dst.Type() == textType {
		switch v.Kind {
		case engine.KindText:
			dst.Set(reflect.ValueOf(Collaborative(v.Str)))
		case engine.KindString:
			dst.Set(reflect.ValueOf(Atom(v.Str)))
		case engine.KindNull:
		default:
			return &SchemaMismatchError{Field: path, Want: "text", Got: v.Kind.String()}
		}
		return nil
	}

	switch dst.Kind() {
	case reflect.Bool:
		if v.Kind != engine.KindBool {
			return &SchemaMismatchError{Field: path, Want: "bool", Got: v.Kind.String()}
		}
		dst.SetBool(v.Bool)

	case reflect.Int64:
		if v.Kind != engine.KindInt {
			return &SchemaMismatchError{Field: path, Want: "int", Got: v.Kind.String()}
		}
		dst.SetInt(v.Int)

	case reflect.String:
		// Plain strings hydrate tolerantly from either representation; the
		// distinction only matters to writers, which use Text.
		if !v.IsTextual() {
			return &SchemaMismatchError{Field: path, Want: "string or text", Got: v.Kind.String()}
		}
		dst.SetString(v.Str)

	case reflect.Pointer:
		if v.Kind == engine.KindNull {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		elem := reflect.New(dst.Type().Elem())
		if err := hydrateValue(elem.Elem(), v, path); err != nil {
			return err
		}
		dst.Set(elem)

	case reflect.Slice:
		if v.Kind != engine.KindList {
			return &SchemaMismatchError{Field: path, Want: "list", Got: v.Kind.String()}
		}
		out := reflect.MakeSlice(dst.Type(), len(v.List), len(v.List))
		for i, item := range v.List {
			if err := hydrateValue(out.Index(i), item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		dst.Set(out)

	case reflect.Struct:
		if v.Kind != engine.KindMap {
			return &SchemaMismatchError{Field: path, Want: "map", Got: v.Kind.String()}
		}
		for i := 0; i < dst.NumField(); i++ {
			name, ok := fieldTag(dst.Type().Field(i))
			if !ok {
				continue
			}
			item, ok := v.Map[name]
			if !ok {
				continue
			}
			if err := hydrateValue(dst.Field(i), item, path+"."+name); err != nil {
				return err
			}
		}

	default:
		return &SchemaMismatchError{
			Field: path,
			Want:  dst.Kind().String(),
			Got:   "unsupported Go type " + dst.Type().String(),
		}
	}
	return nil
}
