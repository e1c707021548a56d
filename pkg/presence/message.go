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

// Package presence exchanges ephemeral cursor and selection state among the
// peers of one document. Presence is independent of document mutation
// history and is never persisted.
package presence

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TypeCursor is the only message type this version emits.
const TypeCursor = "cursor"

// ErrUnknownType marks a well-formed message of a type this version does not
// understand. Receivers skip such messages instead of failing, so newer
// peers can ship new types.
var ErrUnknownType = errors.New("unknown presence message type")

// Message is the ephemeral presence payload. Positions are flat rune
// offsets into the shared text; Timestamp is sender-side unix milliseconds
// and is carried for debugging only — receivers track staleness by local
// receipt time.
type Message struct {
	Type           string `json:"type"`
	PeerID         string `json:"peerId"`
	Name           string `json:"name"`
	Position       int    `json:"position"`
	SelectionStart int    `json:"selectionStart"`
	SelectionEnd   int    `json:"selectionEnd"`
	Timestamp      int64  `json:"timestamp"`
}

// Encode serializes the message.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode presence message: %w", err)
	}
	return data, nil
}

// Decode parses a presence payload. Messages of an unknown type decode to
// ErrUnknownType; anything else that fails to parse or carries out-of-domain
// values is malformed.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode presence message: %w", err)
	}
	if m.Type != TypeCursor {
		return Message{}, ErrUnknownType
	}
	if m.PeerID == "" {
		return Message{}, errors.New("presence message without peerId")
	}
	if m.Position < 0 || m.SelectionStart < 0 || m.SelectionEnd < 0 {
		return Message{}, errors.New("presence message with negative offset")
	}
	return m, nil
}
