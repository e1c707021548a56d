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

import "hash/fnv"

// Color is one palette entry. ANSI is a 256-color terminal code usable as a
// lipgloss color value.
type Color struct {
	Name string
	ANSI string
}

// palette is fixed so a peer keeps its color across reconnects on every
// replica without any registry: the color is a pure function of the peer id.
var palette = [...]Color{
	{Name: "red", ANSI: "203"},
	{Name: "green", ANSI: "41"},
	{Name: "yellow", ANSI: "221"},
	{Name: "blue", ANSI: "75"},
	{Name: "magenta", ANSI: "170"},
	{Name: "cyan", ANSI: "80"},
	{Name: "orange", ANSI: "214"},
	{Name: "violet", ANSI: "135"},
}

// ColorFor maps a peer id into the fixed palette.
func ColorFor(peerID string) Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(peerID))
	return palette[h.Sum32()%uint32(len(palette))]
}
