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

// Package kernel watches a dashboard document for code cells whose execution
// count was bumped and fills in fake execution outputs. The frontend (or CLI)
// requests a run by incrementing a cell's executionCount; the kernel notices
// the rise, "executes" the source, stores the artifact and writes the
// reference back into the cell.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rgbkrk/autodash/internal/log"
	"github.com/rgbkrk/autodash/pkg/dash"
	"github.com/rgbkrk/autodash/pkg/document"
)

// DefaultInterval is the document polling interval.
const DefaultInterval = 500 * time.Millisecond

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) { w.interval = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// WithClock sets the time source stamped on document updates.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// Watcher polls one document and executes bumped code cells.
type Watcher struct {
	handle *document.Handle
	store  OutputStore

	interval time.Duration
	now      func() time.Time
	logger   *zap.SugaredLogger

	// last remembers each cell's execution count from the previous pass,
	// keyed by cell id so reordering cells does not trigger runs.
	last map[string]*int64
}

// NewWatcher creates a watcher over the handle.
func NewWatcher(handle *document.Handle, store OutputStore, opts ...Option) *Watcher {
	w := &Watcher{
		handle:   handle,
		store:    store,
		interval: DefaultInterval,
		now:      time.Now,
		logger:   log.Logger,
		last:     make(map[string]*int64),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil {
				w.logger.Errorf("kernel pass: %v", err)
			}
		}
	}
}

// Tick runs one watch pass: detect bumped cells, execute them, write the
// results back.
func (w *Watcher) Tick(ctx context.Context) error {
	state, err := w.hydrate()
	if err != nil {
		return err
	}

	for _, cell := range w.takeBumped(state.Cells) {
		if err := w.executeCell(ctx, cell); err != nil {
			w.logger.Errorf("execute cell %s: %v", cell.ID, err)
		}
	}
	return nil
}

// takeBumped returns the code cells whose execution count rose since the
// previous pass and updates the tracking. A cell first seen with a count
// already set counts as a pending request.
func (w *Watcher) takeBumped(cells []dash.Cell) []dash.Cell {
	var bumped []dash.Cell
	for _, cell := range cells {
		if cell.CellType != "code" {
			continue
		}
		prev := w.last[cell.ID]
		cur := cell.ExecutionCount
		if cur != nil && (prev == nil || *cur > *prev) {
			bumped = append(bumped, cell)
		}
		if cur == nil {
			delete(w.last, cell.ID)
		} else {
			count := *cur
			w.last[cell.ID] = &count
		}
	}
	return bumped
}

func (w *Watcher) executeCell(ctx context.Context, cell dash.Cell) error {
	w.logger.Infof("executing cell %s", cell.ID)

	out := Execute(cell.Source)
	ref, err := w.store.Put(ctx, out)
	if err != nil {
		return fmt.Errorf("store output: %w", err)
	}
	w.logger.Debugf("cell %s output stored at %s", cell.ID, ref)

	// Re-hydrate so edits made during execution are not clobbered. The
	// execution count stays as the requester set it; only the output
	// reference and the modification stamp change.
	state, err := w.hydrate()
	if err != nil {
		return err
	}
	updated := state.CellByID(cell.ID)
	if updated == nil {
		w.logger.Warnf("cell %s deleted during execution, dropping output", cell.ID)
		return nil
	}
	updated.OutputRefs = []string{ref}
	state.Touch(w.now())

	return document.Reconcile(ctx, w.handle, state)
}

// hydrate reads the typed state, tolerating per-field schema mismatches.
func (w *Watcher) hydrate() (dash.State, error) {
	state, err := document.Hydrate[dash.State](w.handle)
	if err != nil {
		var fieldErrs document.FieldErrors
		if !errors.As(err, &fieldErrs) {
			return dash.State{}, fmt.Errorf("hydrate document: %w", err)
		}
		w.logger.Debugf("partial hydrate: %v", err)
	}
	return state, nil
}
