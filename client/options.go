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
	"time"

	"go.uber.org/zap"

	"github.com/rgbkrk/autodash/engine/repo"
)

// DefaultSyncTimeout bounds the wait for a first remote confirmation when
// opening a document.
const DefaultSyncTimeout = 2 * time.Second

// Option configures Options.
type Option func(*Options)

// Options configures how we set up the client.
type Options struct {
	// Actor is the id stamped on this client's writes. Defaults to a fresh
	// generated id.
	Actor string

	// Name is the human-readable collaborator name shown to peers.
	Name string

	// Storage persists document snapshots between runs. Defaults to
	// in-memory.
	Storage repo.Storage

	// SyncTimeout bounds Document's wait for remote state.
	SyncTimeout time.Duration

	// Logger is the logger of the client.
	Logger *zap.SugaredLogger
}

// WithActor configures the actor id stamped on writes.
func WithActor(actor string) Option {
	return func(o *Options) { o.Actor = actor }
}

// WithName configures the collaborator name shown to peers.
func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

// WithStorage configures snapshot storage.
func WithStorage(s repo.Storage) Option {
	return func(o *Options) { o.Storage = s }
}

// WithSyncTimeout configures the bounded wait for remote state.
func WithSyncTimeout(d time.Duration) Option {
	return func(o *Options) { o.SyncTimeout = d }
}

// WithLogger configures the logger of the client.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *Options) { o.Logger = logger }
}
