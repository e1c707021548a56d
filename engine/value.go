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

package engine

// Kind discriminates the raw value union. String and Text both carry text but
// are distinct kinds: a String is an atomic register replaced wholesale, a
// Text is a field the engine may merge character-wise. The distinction is
// preserved end to end so upper layers can classify fields on hydration.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindString
	KindText
	KindList
	KindMap
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindText:
		return "text"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return "unknown"
}

// Value is a raw document value.
type Value struct {
	Kind Kind
	Bool bool
	Int  int64
	Str  string
	List []Value
	Map  map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Int returns an integer value.
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// String returns an atomic string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Text returns a collaborative text value.
func Text(s string) Value { return Value{Kind: KindText, Str: s} }

// List returns a list value.
func List(vs ...Value) Value { return Value{Kind: KindList, List: vs} }

// Map returns a map value.
func Map(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// IsTextual reports whether the value carries text of either classification.
func (v Value) IsTextual() bool {
	return v.Kind == KindString || v.Kind == KindText
}

// Equal reports deep equality, including kind.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindString, KindText:
		return v.Str == o.Str
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, val := range v.Map {
			other, ok := o.Map[k]
			if !ok || !val.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	out := v
	if v.List != nil {
		out.List = make([]Value, len(v.List))
		for i := range v.List {
			out.List[i] = v.List[i].Clone()
		}
	}
	if v.Map != nil {
		out.Map = make(map[string]Value, len(v.Map))
		for k, val := range v.Map {
			out.Map[k] = val.Clone()
		}
	}
	return out
}

// Version orders writes to a field. Higher Seq wins; equal Seqs break the tie
// on the lexicographically greater actor so all replicas agree.
type Version struct {
	Seq   uint64
	Actor string
}

// Newer reports whether v supersedes o.
func (v Version) Newer(o Version) bool {
	if v.Seq != o.Seq {
		return v.Seq > o.Seq
	}
	return v.Actor > o.Actor
}

// Next returns the version a new write by actor should carry.
func (v Version) Next(actor string) Version {
	return Version{Seq: v.Seq + 1, Actor: actor}
}

// Field is a document field: a value plus the version of its last write.
type Field struct {
	Value Value
	Ver   Version
}

// Doc is a raw document, a flat map of named fields.
type Doc map[string]Field

// Get returns the named field's value.
func (d Doc) Get(name string) (Value, bool) {
	f, ok := d[name]
	if !ok {
		return Value{}, false
	}
	return f.Value, true
}

// Clone returns a deep copy of the document.
func (d Doc) Clone() Doc {
	out := make(Doc, len(d))
	for k, f := range d {
		out[k] = Field{Value: f.Value.Clone(), Ver: f.Ver}
	}
	return out
}
