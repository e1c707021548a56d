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

package presence

// Decoration is one peer's visual overlay on the buffer: a zero-width
// cursor marker and, when the peer has an active selection, a highlighted
// range. Offsets are flat rune offsets into the buffer.
type Decoration struct {
	PeerID   string
	Name     string
	Color    Color
	Position int

	HasSelection   bool
	SelectionStart int
	SelectionEnd   int
}

// Render projects the live peer set onto a buffer of the given rune length.
// A peer whose position falls outside the buffer is skipped for this render
// only, not evicted: the peer may be looking at a version of the text this
// replica has not seen yet, and a later render or update brings it back. A
// selection renders only when non-empty and entirely in bounds.
func Render(peers []PeerCursor, length int) []Decoration {
	var decs []Decoration
	for _, p := range peers {
		if p.Position < 0 || p.Position > length {
			continue
		}
		d := Decoration{
			PeerID:   p.PeerID,
			Name:     p.Name,
			Color:    ColorFor(p.PeerID),
			Position: p.Position,
		}
		start, end := p.SelectionStart, p.SelectionEnd
		if start > end {
			start, end = end, start
		}
		if start != end && start >= 0 && end <= length {
			d.HasSelection = true
			d.SelectionStart = start
			d.SelectionEnd = end
		}
		decs = append(decs, d)
	}
	return decs
}

// Remap shifts decorations through one local edit — deleted runes removed at
// pos, then inserted runes added there — so markers placed before the edit
// do not point at stale offsets while waiting for the peers' next presence
// update. Offsets inside the deleted range collapse to the edit position.
func Remap(decs []Decoration, pos, deleted, inserted int) []Decoration {
	out := make([]Decoration, len(decs))
	for i, d := range decs {
		d.Position = remapOffset(d.Position, pos, deleted, inserted)
		if d.HasSelection {
			d.SelectionStart = remapOffset(d.SelectionStart, pos, deleted, inserted)
			d.SelectionEnd = remapOffset(d.SelectionEnd, pos, deleted, inserted)
			if d.SelectionStart == d.SelectionEnd {
				d.HasSelection = false
			}
		}
		out[i] = d
	}
	return out
}

func remapOffset(off, pos, deleted, inserted int) int {
	switch {
	case off <= pos:
		return off
	case off <= pos+deleted:
		return pos
	default:
		return off - deleted + inserted
	}
}
