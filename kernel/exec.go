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

package kernel

import (
	"fmt"
	"strings"
)

// Output is one execution result in Jupyter-ish shape: a mime bundle keyed
// by media type.
type Output struct {
	OutputType string            `json:"output_type"`
	Data       map[string]string `json:"data"`
}

// Execute produces a canned output for the given cell source. No code is
// actually run; the result is keyed off surface patterns in the source so
// demos feel alive.
func Execute(source string) Output {
	data := map[string]string{}

	switch {
	case strings.Contains(source, "console.log") || strings.Contains(source, "print"):
		data["text/plain"] = extractPrinted(source)
	case strings.Contains(source, "Math.") || strings.Contains(strings.ToLower(source), "calculate"):
		data["text/plain"] = "42\n(calculated by hokey kernel)"
	case strings.Contains(source, "fetch") || strings.Contains(source, "http"):
		data["text/plain"] = "HTTP 200 OK\n{ \"message\": \"Success from hokey kernel\" }"
	case strings.Contains(source, "import") || strings.Contains(source, "require"):
		data["text/plain"] = "✓ Modules loaded successfully\n(hokey kernel)"
	case strings.TrimSpace(source) == "":
		data["text/plain"] = ""
	default:
		lines := len(strings.Split(source, "\n"))
		chars := len([]rune(source))
		data["text/plain"] = fmt.Sprintf(
			"✓ Executed successfully\n\nCode stats:\n  %d lines\n  %d characters\n\nResult: Success",
			lines, chars,
		)
	}

	return Output{OutputType: "execute_result", Data: data}
}

// extractPrinted pulls the first argument out of a console.log or print
// call. The parsing is deliberately naive; nested parens lose.
func extractPrinted(source string) string {
	for _, call := range []string{"console.log(", "print("} {
		start := strings.Index(source, call)
		if start < 0 {
			continue
		}
		rest := source[start+len(call):]
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return "Hello from hokey kernel!"
		}
		return strings.Trim(rest[:end], "\"'`")
	}
	return "Output from hokey kernel"
}
