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

// Package dash defines the Autodash document schema and the mutation helpers
// the CLI commands apply to it.
package dash

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rgbkrk/autodash/pkg/document"
)

// Temperature bounds in degrees Celsius.
const (
	TemperatureMin = 0
	TemperatureMax = 40
)

// Todo is one item of the shared todo list.
type Todo struct {
	ID        string `doc:"id"`
	Text      string `doc:"text"`
	Completed bool   `doc:"completed"`
}

// Cell is one notebook cell. Code cells are picked up by the kernel when
// their execution count rises.
type Cell struct {
	ID             string   `doc:"id"`
	CellType       string   `doc:"cellType"`
	Source         string   `doc:"source"`
	ExecutionCount *int64   `doc:"executionCount"`
	OutputRefs     []string `doc:"outputRefs"`
}

// Metadata carries document-level bookkeeping. Timestamps are unix
// milliseconds.
type Metadata struct {
	CreatedAt    *int64  `doc:"createdAt"`
	LastModified *int64  `doc:"lastModified"`
	Title        *string `doc:"title"`
}

// State is the typed projection of an Autodash document.
type State struct {
	Counter     int64         `doc:"counter"`
	Temperature int64         `doc:"temperature"`
	DarkMode    bool          `doc:"darkMode"`
	Notes       document.Text `doc:"notes"`
	Code        document.Text `doc:"code"`
	Tags        []string      `doc:"tags"`
	Todos       []Todo        `doc:"todos"`
	Cells       []Cell        `doc:"cells"`
	Metadata    Metadata      `doc:"metadata"`
}

// todoSeq disambiguates todo ids minted within the same millisecond.
var todoSeq atomic.Uint64

// Touch stamps the last-modified time.
func (s *State) Touch(now time.Time) {
	ms := now.UnixMilli()
	s.Metadata.LastModified = &ms
}

// Increment raises the counter by one.
func (s *State) Increment(now time.Time) {
	s.Counter++
	s.Touch(now)
}

// Decrement lowers the counter by one.
func (s *State) Decrement(now time.Time) {
	s.Counter--
	s.Touch(now)
}

// SetCounter sets the counter to the given value.
func (s *State) SetCounter(v int64, now time.Time) {
	s.Counter = v
	s.Touch(now)
}

// SetTemperature sets the temperature, clamped to the valid range.
func (s *State) SetTemperature(v int64, now time.Time) {
	if v < TemperatureMin {
		v = TemperatureMin
	}
	if v > TemperatureMax {
		v = TemperatureMax
	}
	s.Temperature = v
	s.Touch(now)
}

// ToggleDark flips dark mode.
func (s *State) ToggleDark(now time.Time) {
	s.DarkMode = !s.DarkMode
	s.Touch(now)
}

// SetDark sets dark mode.
func (s *State) SetDark(enabled bool, now time.Time) {
	s.DarkMode = enabled
	s.Touch(now)
}

// AddNote appends a line to the notes.
func (s *State) AddNote(text string, now time.Time) {
	if s.Notes.Value == "" {
		s.Notes.Value = text
	} else {
		s.Notes.Value += "\n" + text
	}
	s.Touch(now)
}

// SetNotes replaces the notes wholesale.
func (s *State) SetNotes(text string, now time.Time) {
	s.Notes.Value = text
	s.Touch(now)
}

// ClearNotes empties the notes.
func (s *State) ClearNotes(now time.Time) {
	s.Notes.Value = ""
	s.Touch(now)
}

// InsertNotes inserts text at the given rune position, clamped to the end.
func (s *State) InsertNotes(position int, text string, now time.Time) {
	runes := []rune(s.Notes.Value)
	if position < 0 {
		position = 0
	}
	if position > len(runes) {
		position = len(runes)
	}
	s.Notes.Value = string(runes[:position]) + text + string(runes[position:])
	s.Touch(now)
}

// DeleteNotes removes length runes starting at the given rune position.
func (s *State) DeleteNotes(start, length int, now time.Time) {
	runes := []rune(s.Notes.Value)
	if start < 0 {
		start = 0
	}
	if start > len(runes) {
		start = len(runes)
	}
	if length > len(runes)-start {
		length = len(runes) - start
	}
	if length <= 0 {
		return
	}
	s.Notes.Value = string(runes[:start]) + string(runes[start+length:])
	s.Touch(now)
}

// AddTodo appends a todo with a fresh id.
func (s *State) AddTodo(text string, now time.Time) Todo {
	todo := Todo{
		ID:   fmt.Sprintf("%d-%d", now.UnixMilli(), todoSeq.Add(1)),
		Text: text,
	}
	s.Todos = append(s.Todos, todo)
	s.Touch(now)
	return todo
}

// ToggleTodo flips completion of the first todo whose id starts with the
// given prefix. It reports whether a todo matched.
func (s *State) ToggleTodo(idPrefix string, now time.Time) bool {
	for i := range s.Todos {
		if strings.HasPrefix(s.Todos[i].ID, idPrefix) {
			s.Todos[i].Completed = !s.Todos[i].Completed
			s.Touch(now)
			return true
		}
	}
	return false
}

// DeleteTodo removes the first todo whose id starts with the given prefix.
// It reports whether a todo matched.
func (s *State) DeleteTodo(idPrefix string, now time.Time) bool {
	for i := range s.Todos {
		if strings.HasPrefix(s.Todos[i].ID, idPrefix) {
			s.Todos = append(s.Todos[:i], s.Todos[i+1:]...)
			s.Touch(now)
			return true
		}
	}
	return false
}

// AddTag appends a tag unless it is already present.
func (s *State) AddTag(tag string, now time.Time) bool {
	for _, t := range s.Tags {
		if t == tag {
			return false
		}
	}
	s.Tags = append(s.Tags, tag)
	s.Touch(now)
	return true
}

// RemoveTag removes a tag. It reports whether the tag was present.
func (s *State) RemoveTag(tag string, now time.Time) bool {
	for i, t := range s.Tags {
		if t == tag {
			s.Tags = append(s.Tags[:i], s.Tags[i+1:]...)
			s.Touch(now)
			return true
		}
	}
	return false
}

// SetTitle sets the document title.
func (s *State) SetTitle(title string, now time.Time) {
	s.Metadata.Title = &title
	s.Touch(now)
}

// CellByID returns a pointer into the cell slice, or nil.
func (s *State) CellByID(id string) *Cell {
	for i := range s.Cells {
		if s.Cells[i].ID == id {
			return &s.Cells[i]
		}
	}
	return nil
}
