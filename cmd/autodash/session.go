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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rgbkrk/autodash/client"
	"github.com/rgbkrk/autodash/engine/repo"
	"github.com/rgbkrk/autodash/internal/log"
	"github.com/rgbkrk/autodash/pkg/dash"
	"github.com/rgbkrk/autodash/pkg/document"
)

// withSession dials the relay with local bolt storage, opens the referenced
// document and runs fn, tearing the session down on the way out.
func withSession(ref string, fn func(ctx context.Context, cli *client.Client, h *document.Handle) error) error {
	if err := os.MkdirAll(flagStorageDir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	storage, err := repo.NewBoltStorage(filepath.Join(flagStorageDir, "autodash.db"))
	if err != nil {
		return err
	}

	ctx := context.Background()
	cli, err := client.Dial(ctx, flagRelay, client.WithStorage(storage))
	if err != nil {
		// Dial owns the storage only after it succeeds.
		_ = storage.Close()
		return err
	}
	defer func() {
		if err := cli.Close(); err != nil {
			log.Logger.Warnf("close client: %v", err)
		}
	}()

	handle, err := cli.Document(ctx, ref)
	if err != nil {
		return err
	}
	return fn(ctx, cli, handle)
}

// mutate runs one typed read-modify-write cycle against the document.
func mutate(ref string, fn func(state *dash.State, now time.Time) error) error {
	return withSession(ref, func(ctx context.Context, _ *client.Client, h *document.Handle) error {
		state, err := hydrateState(h)
		if err != nil {
			return err
		}
		if err := fn(&state, time.Now()); err != nil {
			return err
		}
		if err := document.Reconcile(ctx, h, state); err != nil {
			return err
		}
		// Give the outbound queue a moment to reach the relay before the
		// session closes. The write is already persisted locally either way.
		time.Sleep(200 * time.Millisecond)
		return nil
	})
}

// hydrateState reads the typed state, tolerating per-field mismatches so one
// foreign field cannot brick the whole CLI.
func hydrateState(h *document.Handle) (dash.State, error) {
	state, err := document.Hydrate[dash.State](h)
	if err != nil {
		var fieldErrs document.FieldErrors
		if !errors.As(err, &fieldErrs) {
			return dash.State{}, fmt.Errorf("hydrate document: %w", err)
		}
		log.Logger.Warnf("some fields did not match the schema: %v", err)
	}
	return state, nil
}
