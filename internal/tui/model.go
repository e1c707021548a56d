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

// Package tui provides the collaborative editor terminal UI: one shared text
// field in an editable pane, a status bar showing sync state and the peers
// present, and live peer cursors overlaid on the buffer.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rgbkrk/autodash/engine"
	"github.com/rgbkrk/autodash/pkg/document"
	"github.com/rgbkrk/autodash/pkg/editor"
	"github.com/rgbkrk/autodash/pkg/presence"
)

// tickInterval drives the reconciliation loop. Flush latency is bounded by
// one interval, matching the loop's own headless default.
const tickInterval = editor.DefaultInterval

type (
	tickMsg time.Time

	flushDoneMsg struct {
		text string
		err  error
	}

	remoteTextMsg struct {
		text string
		err  error
	}

	docChangedMsg   struct{}
	peersChangedMsg struct{}
)

// Model is the bubbletea model for one edit session.
type Model struct {
	handle  *document.Handle
	binding *document.TextBinding
	field   string

	session *editor.Session
	loop    *editor.Loop

	tracker     *presence.Tracker
	broadcaster *presence.Broadcaster
	decorations []presence.Decoration

	docChanged chan struct{}
	keys       keyMap

	cancelCtx  context.CancelFunc
	cancelSubs []func()

	width    int
	height   int
	scroll   int
	readOnly bool
	showSync bool
	quitting bool
}

// New assembles a model editing the named text field of the document. The
// peer id doubles as the presence identity; name is the human label shown to
// other peers.
func New(handle *document.Handle, field, peerID, name string) (*Model, error) {
	binding := handle.TextField(field)
	text, err := binding.Load()
	if err != nil {
		return nil, err
	}

	session := editor.NewSession(text.Value)
	m := &Model{
		handle:     handle,
		binding:    binding,
		field:      field,
		session:    session,
		loop:       editor.NewLoop(session),
		tracker:    presence.NewTracker(peerID),
		docChanged: make(chan struct{}, 1),
		keys:       defaultKeyMap(),
		readOnly:   text.Atomic,
	}

	m.broadcaster = presence.NewBroadcaster(peerID, name, func(ctx context.Context, payload []byte) error {
		return handle.Raw().Broadcast(ctx, payload)
	})

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelCtx = cancel
	go m.tracker.Run(ctx)

	m.cancelSubs = append(m.cancelSubs,
		handle.OnChange(func() {
			select {
			case m.docChanged <- struct{}{}:
			default:
			}
		}),
		handle.Raw().SubscribeEphemeral(func(ev engine.EphemeralEvent) {
			m.tracker.Receive(ev.Payload)
		}),
	)

	return m, nil
}

// Close tears down presence and subscriptions. Safe to call after the
// program exits.
func (m *Model) Close() {
	for _, cancel := range m.cancelSubs {
		cancel()
	}
	m.broadcaster.Close()
	m.cancelCtx()
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), m.listenDocChange(), m.listenPeers())
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// listenDocChange blocks until the document reports a change.
func (m *Model) listenDocChange() tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-m.docChanged; !ok {
			return nil
		}
		return docChangedMsg{}
	}
}

// listenPeers blocks until the presence tracker reports a change.
func (m *Model) listenPeers() tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-m.tracker.Changed(); !ok {
			return nil
		}
		return peersChangedMsg{}
	}
}

// flushCmd writes text to the document off the update goroutine.
func (m *Model) flushCmd(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), tickInterval)
		defer cancel()
		return flushDoneMsg{text: text, err: m.binding.Store(ctx, text)}
	}
}

// loadCmd reads the remote text off the update goroutine.
func (m *Model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		text, err := m.binding.Load()
		return remoteTextMsg{text: text.Value, err: err}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		var cmd tea.Cmd
		switch plan := m.loop.Tick(); plan.Kind {
		case editor.PlanFlush:
			cmd = m.flushCmd(plan.Text)
		case editor.PlanCheckRemote:
			cmd = m.loadCmd()
		}
		return m, tea.Batch(m.tickCmd(), cmd)

	case flushDoneMsg:
		m.loop.FlushDone(msg.text, msg.err)
		return m, nil

	case remoteTextMsg:
		if msg.err != nil {
			m.loop.RemoteFailed(msg.err)
			return m, nil
		}
		m.loop.RemoteText(msg.text)
		m.renderDecorations()
		return m, nil

	case docChangedMsg:
		m.loop.MarkRemoteChanged()
		return m, m.listenDocChange()

	case peersChangedMsg:
		m.renderDecorations()
		return m, m.listenPeers()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if m.session.Dirty() && !m.readOnly {
			// Best-effort final flush; the quit does not wait for a tick.
			text := m.session.Text()
			return m, tea.Sequence(
				func() tea.Msg {
					ctx, cancel := context.WithTimeout(context.Background(), tickInterval)
					defer cancel()
					_ = m.binding.Store(ctx, text)
					return nil
				},
				tea.Quit,
			)
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.SyncStatus):
		m.showSync = !m.showSync
		return m, nil
	}

	if m.readOnly {
		return m.handleMoveKey(msg)
	}

	switch msg.Type {
	case tea.KeyRunes, tea.KeySpace:
		for _, r := range msg.Runes {
			m.session.InsertRune(r)
		}
		m.afterEdit()
	case tea.KeyEnter:
		m.session.Newline()
		m.afterEdit()
	case tea.KeyBackspace:
		m.session.Backspace()
		m.afterEdit()
	case tea.KeyDelete:
		m.session.Delete()
		m.afterEdit()
	default:
		return m.handleMoveKey(msg)
	}
	return m, nil
}

func (m *Model) handleMoveKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyLeft:
		m.session.MoveLeft()
	case tea.KeyRight:
		m.session.MoveRight()
	case tea.KeyUp:
		m.session.MoveUp()
	case tea.KeyDown:
		m.session.MoveDown()
	case tea.KeyHome, tea.KeyCtrlA:
		m.session.MoveHome()
	case tea.KeyEnd, tea.KeyCtrlE:
		m.session.MoveEnd()
	default:
		return m, nil
	}
	m.announceCursor()
	return m, nil
}

// afterEdit runs the bookkeeping every buffer mutation needs: dirty the
// loop, drag existing peer decorations through the edit and announce the new
// cursor position.
func (m *Model) afterEdit() {
	m.loop.MarkDirty()
	for _, sp := range m.session.TakeSplices() {
		m.decorations = presence.Remap(m.decorations, sp.Pos, sp.Deleted, sp.Inserted)
	}
	m.announceCursor()
}

func (m *Model) announceCursor() {
	off := m.session.Offset()
	m.broadcaster.Update(off, off, off)
}

func (m *Model) renderDecorations() {
	m.decorations = presence.Render(m.tracker.Peers(), m.session.Length())
}
