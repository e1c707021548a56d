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

// Package editor provides the editable buffer for one text field and the
// reconciliation loop that keeps it converged with the shared document.
package editor

import "strings"

// Cursor is a position in the buffer, zero-based.
type Cursor struct {
	Row int
	Col int
}

// Splice records one local edit as flat rune offsets: Deleted runes removed
// at Pos, then Inserted runes added at Pos. Consumers remap decorations
// through pending splices before replacing them.
type Splice struct {
	Pos      int
	Deleted  int
	Inserted int
}

// Session is the local editing state of one text field: a line buffer, a
// cursor and the last text known to match the shared document. The session
// is not safe for concurrent use; callers confine it to one goroutine.
type Session struct {
	lines     [][]rune
	cursor    Cursor
	lastKnown string
	splices   []Splice
}

// NewSession creates a session holding the given initial text, treated as
// already synced.
func NewSession(text string) *Session {
	return &Session{
		lines:     splitLines(text),
		lastKnown: text,
	}
}

func splitLines(text string) [][]rune {
	parts := strings.Split(text, "\n")
	lines := make([][]rune, len(parts))
	for i, p := range parts {
		lines[i] = []rune(p)
	}
	return lines
}

// Text returns the buffer content.
func (s *Session) Text() string {
	parts := make([]string, len(s.lines))
	for i, line := range s.lines {
		parts[i] = string(line)
	}
	return strings.Join(parts, "\n")
}

// Lines returns the buffer's lines. The returned slices are live; callers
// must not mutate them.
func (s *Session) Lines() [][]rune { return s.lines }

// Cursor returns the current cursor position.
func (s *Session) Cursor() Cursor { return s.cursor }

// Offset returns the cursor as a flat rune offset into Text, counting one
// rune per line break.
func (s *Session) Offset() int {
	off := 0
	for r := 0; r < s.cursor.Row; r++ {
		off += len(s.lines[r]) + 1
	}
	return off + s.cursor.Col
}

// Length returns the buffer length in runes, counting line breaks.
func (s *Session) Length() int {
	n := 0
	for _, line := range s.lines {
		n += len(line) + 1
	}
	return n - 1
}

// Dirty reports whether the buffer has diverged from the last synced text.
func (s *Session) Dirty() bool { return s.Text() != s.lastKnown }

// LastKnown returns the text most recently read from or written to the
// document.
func (s *Session) LastKnown() string { return s.lastKnown }

// MarkFlushed records that the given text was successfully written to the
// document.
func (s *Session) MarkFlushed(text string) { s.lastKnown = text }

// TakeSplices returns the local edits recorded since the previous call and
// resets the record.
func (s *Session) TakeSplices() []Splice {
	out := s.splices
	s.splices = nil
	return out
}

// InsertRune inserts a rune at the cursor.
func (s *Session) InsertRune(r rune) {
	pos := s.Offset()
	line := s.lines[s.cursor.Row]
	newLine := make([]rune, len(line)+1)
	copy(newLine, line[:s.cursor.Col])
	newLine[s.cursor.Col] = r
	copy(newLine[s.cursor.Col+1:], line[s.cursor.Col:])
	s.lines[s.cursor.Row] = newLine
	s.cursor.Col++
	s.splices = append(s.splices, Splice{Pos: pos, Inserted: 1})
}

// Newline splits the current line at the cursor.
func (s *Session) Newline() {
	pos := s.Offset()
	line := s.lines[s.cursor.Row]
	before := make([]rune, s.cursor.Col)
	copy(before, line[:s.cursor.Col])
	after := make([]rune, len(line)-s.cursor.Col)
	copy(after, line[s.cursor.Col:])

	s.lines[s.cursor.Row] = before
	newLines := make([][]rune, len(s.lines)+1)
	copy(newLines, s.lines[:s.cursor.Row+1])
	newLines[s.cursor.Row+1] = after
	copy(newLines[s.cursor.Row+2:], s.lines[s.cursor.Row+1:])
	s.lines = newLines
	s.cursor.Row++
	s.cursor.Col = 0
	s.splices = append(s.splices, Splice{Pos: pos, Inserted: 1})
}

// Backspace deletes the rune before the cursor, merging lines at a line
// start.
func (s *Session) Backspace() {
	pos := s.Offset()
	if s.cursor.Col > 0 {
		line := s.lines[s.cursor.Row]
		s.lines[s.cursor.Row] = append(line[:s.cursor.Col-1], line[s.cursor.Col:]...)
		s.cursor.Col--
		s.splices = append(s.splices, Splice{Pos: pos - 1, Deleted: 1})
	} else if s.cursor.Row > 0 {
		prev := s.lines[s.cursor.Row-1]
		cur := s.lines[s.cursor.Row]
		s.cursor.Col = len(prev)
		s.lines[s.cursor.Row-1] = append(prev, cur...)
		s.lines = append(s.lines[:s.cursor.Row], s.lines[s.cursor.Row+1:]...)
		s.cursor.Row--
		s.splices = append(s.splices, Splice{Pos: pos - 1, Deleted: 1})
	}
}

// Delete removes the rune under the cursor, merging lines at a line end.
func (s *Session) Delete() {
	pos := s.Offset()
	line := s.lines[s.cursor.Row]
	if s.cursor.Col < len(line) {
		s.lines[s.cursor.Row] = append(line[:s.cursor.Col], line[s.cursor.Col+1:]...)
		s.splices = append(s.splices, Splice{Pos: pos, Deleted: 1})
	} else if s.cursor.Row < len(s.lines)-1 {
		next := s.lines[s.cursor.Row+1]
		s.lines[s.cursor.Row] = append(line, next...)
		s.lines = append(s.lines[:s.cursor.Row+1], s.lines[s.cursor.Row+2:]...)
		s.splices = append(s.splices, Splice{Pos: pos, Deleted: 1})
	}
}

// MoveLeft moves the cursor one position left, wrapping to the previous
// line end.
func (s *Session) MoveLeft() {
	if s.cursor.Col > 0 {
		s.cursor.Col--
	} else if s.cursor.Row > 0 {
		s.cursor.Row--
		s.cursor.Col = len(s.lines[s.cursor.Row])
	}
}

// MoveRight moves the cursor one position right, wrapping to the next line
// start.
func (s *Session) MoveRight() {
	if s.cursor.Col < len(s.lines[s.cursor.Row]) {
		s.cursor.Col++
	} else if s.cursor.Row < len(s.lines)-1 {
		s.cursor.Row++
		s.cursor.Col = 0
	}
}

// MoveUp moves the cursor one line up, clamping the column.
func (s *Session) MoveUp() {
	if s.cursor.Row > 0 {
		s.cursor.Row--
		if s.cursor.Col > len(s.lines[s.cursor.Row]) {
			s.cursor.Col = len(s.lines[s.cursor.Row])
		}
	}
}

// MoveDown moves the cursor one line down, clamping the column.
func (s *Session) MoveDown() {
	if s.cursor.Row < len(s.lines)-1 {
		s.cursor.Row++
		if s.cursor.Col > len(s.lines[s.cursor.Row]) {
			s.cursor.Col = len(s.lines[s.cursor.Row])
		}
	}
}

// MoveHome moves the cursor to the line start.
func (s *Session) MoveHome() { s.cursor.Col = 0 }

// MoveEnd moves the cursor to the line end.
func (s *Session) MoveEnd() { s.cursor.Col = len(s.lines[s.cursor.Row]) }

// SetTextClamped replaces the buffer with remote text, preserving the cursor
// where it stays valid and clamping it into bounds where it does not: the
// row is clamped to the new line count, then the column to that line's
// length. The remote text becomes the last known synced text.
func (s *Session) SetTextClamped(remote string) {
	s.lines = splitLines(remote)
	if s.cursor.Row > len(s.lines)-1 {
		s.cursor.Row = len(s.lines) - 1
	}
	if s.cursor.Col > len(s.lines[s.cursor.Row]) {
		s.cursor.Col = len(s.lines[s.cursor.Row])
	}
	s.lastKnown = remote
}
