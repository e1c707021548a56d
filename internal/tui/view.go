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

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rgbkrk/autodash/pkg/editor"
	"github.com/rgbkrk/autodash/pkg/presence"
)

var (
	cursorStyle = lipgloss.NewStyle().Reverse(true)
	statusStyle = lipgloss.NewStyle().Reverse(true).Bold(true)
	helpStyle   = lipgloss.NewStyle().Faint(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}

	areaHeight := m.height - 2
	if areaHeight < 1 {
		areaHeight = 1
	}
	m.clampScroll(areaHeight)

	var b strings.Builder
	lines := m.session.Lines()
	lineStart := 0
	for row := 0; row < m.scroll; row++ {
		lineStart += len(lines[row]) + 1
	}
	for row := m.scroll; row < m.scroll+areaHeight; row++ {
		if row > m.scroll {
			b.WriteByte('\n')
		}
		if row >= len(lines) {
			continue
		}
		b.WriteString(m.renderLine(lines[row], row, lineStart))
		lineStart += len(lines[row]) + 1
	}

	return b.String() + "\n" + m.statusBar() + "\n" + m.helpBar()
}

func (m *Model) clampScroll(areaHeight int) {
	row := m.session.Cursor().Row
	if row < m.scroll {
		m.scroll = row
	}
	if row >= m.scroll+areaHeight {
		m.scroll = row - areaHeight + 1
	}
}

// renderLine renders one buffer line, overlaying the local cursor and any
// peer decorations whose offsets fall on it. The end-of-line position is
// representable, so a phantom space is appended when a cursor sits there.
func (m *Model) renderLine(line []rune, row, lineStart int) string {
	cursor := m.session.Cursor()

	// One extra cell for cursors sitting at end of line.
	cells := make([]rune, len(line)+1)
	copy(cells, line)
	cells[len(line)] = ' '

	var b strings.Builder
	run := strings.Builder{}
	runStyle, runKey := lipgloss.NewStyle(), ""
	flush := func() {
		if run.Len() == 0 {
			return
		}
		if runKey == "" {
			b.WriteString(run.String())
		} else {
			b.WriteString(runStyle.Render(run.String()))
		}
		run.Reset()
	}

	for col, r := range cells {
		style, key := m.cellStyle(row, col, lineStart+col, cursor)
		if key != runKey {
			flush()
			runStyle, runKey = style, key
		}
		run.WriteRune(r)
	}
	flush()
	return b.String()
}

// cellStyle picks the style for one cell: local cursor wins, then a peer
// cursor marker, then a peer selection highlight. The key identifies the
// style so equal-styled neighbors render as one run; empty means unstyled.
func (m *Model) cellStyle(row, col, off int, cursor editor.Cursor) (lipgloss.Style, string) {
	if row == cursor.Row && col == cursor.Col {
		return cursorStyle, "cursor"
	}
	for i := range m.decorations {
		dec := &m.decorations[i]
		if dec.Position == off {
			return lipgloss.NewStyle().
				Foreground(lipgloss.Color(dec.Color.ANSI)).
				Reverse(true), "peer:" + dec.PeerID
		}
	}
	for i := range m.decorations {
		dec := &m.decorations[i]
		if dec.HasSelection && off >= dec.SelectionStart && off < dec.SelectionEnd {
			return lipgloss.NewStyle().
				Background(lipgloss.Color(dec.Color.ANSI)), "sel:" + dec.PeerID
		}
	}
	return lipgloss.NewStyle(), ""
}

func (m *Model) statusBar() string {
	status := m.loop.Status()

	word := "saved"
	switch {
	case m.readOnly:
		word = "read-only"
	case status.State == editor.Dirty:
		word = "editing"
	case status.State == editor.Applying:
		word = "saving"
	}
	if !m.handle.Synced() {
		word = "syncing"
	}

	left := fmt.Sprintf(" %s | %s", m.field, word)
	if m.showSync {
		if status.LastFlush.IsZero() {
			left += " | no flush yet"
		} else {
			left += " | flushed " + status.LastFlush.Format("15:04:05")
		}
	}
	if status.Err != nil {
		left += " | " + warnStyle.Render("sync error")
	}

	var names []string
	for _, p := range m.tracker.Peers() {
		c := presence.ColorFor(p.PeerID)
		names = append(names, lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.ANSI)).
			Render("● "+p.Name))
	}
	right := strings.Join(names, " ") + " "

	pad := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if pad < 1 {
		pad = 1
	}
	return statusStyle.Render(left) + strings.Repeat(" ", pad) + right
}

func (m *Model) helpBar() string {
	return helpStyle.Render(" Ctrl+Q quit  Ctrl+S sync status  arrows move")
}
