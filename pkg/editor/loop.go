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

package editor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rgbkrk/autodash/internal/log"
)

// Loop defaults.
const (
	DefaultInterval   = 500 * time.Millisecond
	DefaultMaxRetries = 3
)

// State is the reconciliation state of one edit session.
type State int

const (
	// Clean means buffer and document agree as far as the session knows.
	Clean State = iota
	// Dirty means local edits await the next flush tick.
	Dirty
	// Applying means a flush or remote replacement is in flight.
	Applying
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Applying:
		return "applying"
	}
	return "unknown"
}

// PlanKind tells the driver what work this tick requires.
type PlanKind int

const (
	// PlanNone means nothing to do this tick.
	PlanNone PlanKind = iota
	// PlanFlush means write Plan.Text to the document, then call FlushDone.
	PlanFlush
	// PlanCheckRemote means load the remote text, then call RemoteText or
	// RemoteFailed.
	PlanCheckRemote
)

// Plan is the outcome of one tick. Drivers run the indicated blocking work
// off the input goroutine and report back, keeping the session itself
// single-threaded.
type Plan struct {
	Kind PlanKind
	Text string
}

// Status feeds the persistent sync indicator.
type Status struct {
	State     State
	LastFlush time.Time
	Err       error
}

// Loop is the per-field reconciliation state machine: Clean to Dirty on
// keystroke, flushed back to Clean on a tick, with remote updates applied
// only while Clean. When local edits and a remote update race, the local
// flush wins and the remote update waits for a following tick; concurrent
// edits inside one tick window on both sides can therefore be lost. That is
// the documented cost of whole-field overwrite.
type Loop struct {
	session *Session
	logger  *zap.SugaredLogger

	state         State
	remotePending bool
	retries       int
	maxRetries    int
	lastFlush     time.Time
	err           error

	now func() time.Time
}

// NewLoop creates a loop driving the given session.
func NewLoop(session *Session) *Loop {
	return &Loop{
		session:    session,
		logger:     log.Logger,
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
	}
}

// Session returns the session the loop drives.
func (l *Loop) Session() *Session { return l.session }

// State returns the current reconciliation state.
func (l *Loop) State() State { return l.state }

// Status returns the current sync indicator values.
func (l *Loop) Status() Status {
	return Status{State: l.state, LastFlush: l.lastFlush, Err: l.err}
}

// MarkDirty records a local edit.
func (l *Loop) MarkDirty() {
	if l.state == Clean {
		l.state = Dirty
	}
}

// MarkRemoteChanged records that the document changed under the session.
// The update is picked up on the next tick the loop is Clean.
func (l *Loop) MarkRemoteChanged() { l.remotePending = true }

// Tick advances the state machine. A Dirty session plans a flush; a Clean
// session with a pending remote change plans a remote check; anything else
// is a no-op. While a plan is in flight subsequent ticks return PlanNone.
func (l *Loop) Tick() Plan {
	switch l.state {
	case Applying:
		return Plan{Kind: PlanNone}
	case Dirty:
		l.state = Applying
		return Plan{Kind: PlanFlush, Text: l.session.Text()}
	case Clean:
		if l.remotePending {
			l.state = Applying
			return Plan{Kind: PlanCheckRemote}
		}
	}
	return Plan{Kind: PlanNone}
}

// FlushDone completes a PlanFlush. On success the flushed text becomes the
// last known synced text; edits typed during the flush leave the session
// Dirty for the next tick. On failure the session returns to Dirty so the
// buffer is never dropped; after maxRetries consecutive failures the error
// is surfaced through Status as a non-fatal warning and retries continue.
func (l *Loop) FlushDone(flushed string, err error) {
	if err != nil {
		l.retries++
		l.state = Dirty
		if l.retries >= l.maxRetries {
			l.err = err
			l.logger.Warnf("flush failed %d times: %v", l.retries, err)
		}
		return
	}
	l.retries = 0
	l.err = nil
	l.lastFlush = l.now()
	l.session.MarkFlushed(flushed)
	if l.session.Dirty() {
		l.state = Dirty
	} else {
		l.state = Clean
	}
}

// RemoteText completes a PlanCheckRemote with the loaded text. A text equal
// to the last known synced text means the change notification was for
// another field or already absorbed. A keystroke that landed while the load
// was in flight takes priority: the buffer is kept, the loop goes Dirty so
// the local edit flushes first, and the pending flag stays set so the remote
// text is reloaded on a following tick.
func (l *Loop) RemoteText(text string) {
	if l.session.Dirty() {
		l.state = Dirty
		return
	}
	l.remotePending = false
	l.state = Clean
	if text == l.session.LastKnown() {
		return
	}
	l.session.SetTextClamped(text)
}

// RemoteFailed completes a PlanCheckRemote that could not load, for example
// on a per-field schema mismatch. The pending flag is cleared; a later
// change notification will retry. A buffer edited during the load goes back
// to Dirty so the edit still flushes.
func (l *Loop) RemoteFailed(err error) {
	l.remotePending = false
	if l.session.Dirty() {
		l.state = Dirty
	} else {
		l.state = Clean
	}
	l.err = err
	l.logger.Warnf("remote load failed: %v", err)
}

// Run drives the loop headlessly with a ticker, executing plans inline with
// the given flush and load functions. It returns when ctx is done, flushing
// a dirty buffer best-effort on the way out.
func (l *Loop) Run(
	ctx context.Context,
	interval time.Duration,
	flush func(context.Context, string) error,
	load func() (string, error),
) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if l.session.Dirty() {
				// Final flush runs on a fresh context: ctx is already done.
				flushCtx, cancel := context.WithTimeout(context.Background(), interval)
				if err := flush(flushCtx, l.session.Text()); err != nil {
					l.logger.Warnf("final flush: %v", err)
				}
				cancel()
			}
			return
		case <-ticker.C:
			l.step(ctx, flush, load)
		}
	}
}

func (l *Loop) step(
	ctx context.Context,
	flush func(context.Context, string) error,
	load func() (string, error),
) {
	switch plan := l.Tick(); plan.Kind {
	case PlanFlush:
		l.FlushDone(plan.Text, flush(ctx, plan.Text))
	case PlanCheckRemote:
		text, err := load()
		if err != nil {
			l.RemoteFailed(err)
			return
		}
		l.RemoteText(text)
	}
}
