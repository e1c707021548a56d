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
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/rgbkrk/autodash/engine"
)

// FrameKind discriminates sync frames on the wire.
type FrameKind string

const (
	// FrameRequest asks peers for the current state of a document.
	FrameRequest FrameKind = "req"
	// FrameSnapshot carries the changed fields of a document.
	FrameSnapshot FrameKind = "snap"
	// FrameAbsent confirms that no peer holds the requested document.
	FrameAbsent FrameKind = "absent"
	// FrameEphemeral carries a transient peer payload, never persisted.
	FrameEphemeral FrameKind = "eph"
)

// Frame is one unit of the sync protocol. Frames travel as opaque binary
// blobs through the transport bridge; only engine peers (and the relay, for
// routing and merging) decode them.
type Frame struct {
	Kind    FrameKind
	DocID   engine.DocumentID
	Actor   string
	Fields  engine.Doc
	Payload []byte
}

// encMode is configured with Core Deterministic Encoding so the same logical
// frame always produces identical bytes.
var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("repo: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("repo: CBOR decoder initialization failed: " + err.Error())
	}
}

type wireValue struct {
	Kind uint8                `cbor:"k"`
	Bool bool                 `cbor:"b,omitempty"`
	Int  int64                `cbor:"i,omitempty"`
	Str  string               `cbor:"s,omitempty"`
	List []wireValue          `cbor:"l,omitempty"`
	Map  map[string]wireValue `cbor:"m,omitempty"`
}

type wireField struct {
	Value wireValue `cbor:"v"`
	Seq   uint64    `cbor:"q"`
	Actor string    `cbor:"a"`
}

type wireFrame struct {
	Kind    string               `cbor:"k"`
	DocID   string               `cbor:"d"`
	Actor   string               `cbor:"a,omitempty"`
	Fields  map[string]wireField `cbor:"f,omitempty"`
	Payload []byte               `cbor:"p,omitempty"`
}

func valueToWire(v engine.Value) wireValue {
	w := wireValue{Kind: uint8(v.Kind)}
	switch v.Kind {
	case engine.KindBool:
		w.Bool = v.Bool
	case engine.KindInt:
		w.Int = v.Int
	case engine.KindString, engine.KindText:
		w.Str = v.Str
	case engine.KindList:
		w.List = make([]wireValue, len(v.List))
		for i := range v.List {
			w.List[i] = valueToWire(v.List[i])
		}
	case engine.KindMap:
		w.Map = make(map[string]wireValue, len(v.Map))
		for k, val := range v.Map {
			w.Map[k] = valueToWire(val)
		}
	}
	return w
}

func wireToValue(w wireValue) (engine.Value, error) {
	kind := engine.Kind(w.Kind)
	v := engine.Value{Kind: kind}
	switch kind {
	case engine.KindNull:
	case engine.KindBool:
		v.Bool = w.Bool
	case engine.KindInt:
		v.Int = w.Int
	case engine.KindString, engine.KindText:
		v.Str = w.Str
	case engine.KindList:
		v.List = make([]engine.Value, len(w.List))
		for i := range w.List {
			item, err := wireToValue(w.List[i])
			if err != nil {
				return engine.Value{}, err
			}
			v.List[i] = item
		}
	case engine.KindMap:
		v.Map = make(map[string]engine.Value, len(w.Map))
		for k, item := range w.Map {
			val, err := wireToValue(item)
			if err != nil {
				return engine.Value{}, err
			}
			v.Map[k] = val
		}
	default:
		return engine.Value{}, fmt.Errorf("unknown value kind %d", w.Kind)
	}
	return v, nil
}

func docToWire(d engine.Doc) map[string]wireField {
	if len(d) == 0 {
		return nil
	}
	out := make(map[string]wireField, len(d))
	for name, f := range d {
		out[name] = wireField{
			Value: valueToWire(f.Value),
			Seq:   f.Ver.Seq,
			Actor: f.Ver.Actor,
		}
	}
	return out
}

func wireToDoc(w map[string]wireField) (engine.Doc, error) {
	if len(w) == 0 {
		return nil, nil
	}
	out := make(engine.Doc, len(w))
	for name, f := range w {
		v, err := wireToValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = engine.Field{
			Value: v,
			Ver:   engine.Version{Seq: f.Seq, Actor: f.Actor},
		}
	}
	return out, nil
}

// EncodeFrame serializes a frame for the wire.
func EncodeFrame(f Frame) ([]byte, error) {
	b, err := encMode.Marshal(wireFrame{
		Kind:    string(f.Kind),
		DocID:   string(f.DocID),
		Actor:   f.Actor,
		Fields:  docToWire(f.Fields),
		Payload: f.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.Kind, err)
	}
	return b, nil
}

// DecodeFrame parses a wire frame.
func DecodeFrame(data []byte) (Frame, error) {
	var w wireFrame
	if err := decMode.Unmarshal(data, &w); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	switch FrameKind(w.Kind) {
	case FrameRequest, FrameSnapshot, FrameAbsent, FrameEphemeral:
	default:
		return Frame{}, fmt.Errorf("unknown frame kind %q", w.Kind)
	}
	fields, err := wireToDoc(w.Fields)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Kind:    FrameKind(w.Kind),
		DocID:   engine.DocumentID(w.DocID),
		Actor:   w.Actor,
		Fields:  fields,
		Payload: w.Payload,
	}, nil
}

// MergeFields merges src into dst field by field, last writer wins. It
// returns the sorted names of fields whose value changed in dst. The merge is
// commutative: replicas applying the same writes in any order converge.
func MergeFields(dst, src engine.Doc) []string {
	var changed []string
	for name, in := range src {
		cur, ok := dst[name]
		if ok && !in.Ver.Newer(cur.Ver) {
			continue
		}
		dst[name] = engine.Field{Value: in.Value.Clone(), Ver: in.Ver}
		if !ok || !cur.Value.Equal(in.Value) {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}

// MaxSeq returns the highest write sequence present in the document.
func MaxSeq(d engine.Doc) uint64 {
	var max uint64
	for _, f := range d {
		if f.Ver.Seq > max {
			max = f.Ver.Seq
		}
	}
	return max
}
