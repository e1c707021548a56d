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

// Package engine defines the contract between Autodash and the document
// synchronization engine it rides on. The engine owns merge semantics and the
// wire protocol; everything above it treats documents as raw field maps and
// sync frames as opaque bytes.
package engine

import (
	"context"
	"errors"
)

var (
	// ErrEngineClosed is returned when operating on a closed engine.
	ErrEngineClosed = errors.New("engine closed")

	// ErrDocumentClosed is returned when operating on a closed document handle.
	ErrDocumentClosed = errors.New("document closed")
)

// DocumentID is the identity of a shared document.
type DocumentID string

// ChangeEvent describes one applied batch of remote mutations. Subscribers
// receive a single event per batch regardless of how many fields it touched.
type ChangeEvent struct {
	DocID  DocumentID
	Fields []string
}

// EphemeralEvent carries a transient peer payload. Ephemeral payloads are
// never merged into the document and never persisted.
type EphemeralEvent struct {
	DocID   DocumentID
	Payload []byte
}

// Engine opens document replicas. Implementations must make Open return
// without blocking on the network; synchronization is awaited per handle.
type Engine interface {
	// Open returns a handle for the given document, creating a pending local
	// replica if none exists yet.
	Open(ctx context.Context, id DocumentID) (Handle, error)

	// Close releases all handles and flushes any local persistence.
	Close() error
}

// Handle is one replica of a shared document.
//
// Mutations through a single handle are strictly serialized by callers; the
// handle itself must never invoke subscriber callbacks while holding its
// internal locks.
type Handle interface {
	ID() DocumentID

	// AwaitSync blocks until the replica has received its first remote
	// snapshot or a confirmed absence, or until ctx is done.
	AwaitSync(ctx context.Context) error

	// Synced reports whether a remote confirmation has arrived.
	Synced() bool

	// Snapshot returns a copy of the current raw document.
	Snapshot() Doc

	// Apply writes the given field values into the replica and queues them
	// for broadcast to peers. The engine stamps write versions. It must not
	// block on the network.
	Apply(ctx context.Context, fields map[string]Value) error

	// Subscribe registers fn to run once per applied remote batch. The
	// returned function cancels the subscription.
	Subscribe(fn func(ChangeEvent)) (cancel func())

	// Broadcast sends an ephemeral payload to the peers of this document.
	Broadcast(ctx context.Context, payload []byte) error

	// SubscribeEphemeral registers fn to run for each peer ephemeral payload.
	SubscribeEphemeral(fn func(EphemeralEvent)) (cancel func())

	Close() error
}
