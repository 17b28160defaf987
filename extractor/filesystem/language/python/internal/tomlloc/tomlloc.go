// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tomlloc locates declaration lines in raw TOML content. The TOML
// decoder reports no positions, so extractors that want 1-indexed line
// numbers find them by scanning the raw bytes for the declaration text.
package tomlloc

import "strings"

// Locator scans the lines of one file for declarations.
type Locator struct {
	lines []string
}

// New returns a Locator over the given raw file content.
func New(data []byte) *Locator {
	return &Locator{lines: strings.Split(string(data), "\n")}
}

// Value returns the 1-indexed line number and trimmed text of the first line
// at or after the 1-indexed from line that contains text.
func (l *Locator) Value(text string, from int) (line int, decl string, ok bool) {
	if from < 1 {
		from = 1
	}
	for i := from - 1; i < len(l.lines); i++ {
		if strings.Contains(l.lines[i], text) {
			return i + 1, strings.TrimSpace(l.lines[i]), true
		}
	}
	return 0, "", false
}

// Exact returns the 1-indexed line number of the first line at or after the
// 1-indexed from line whose trimmed text equals text. Unlike Value it never
// matches text embedded in a longer line, which matters for lockfiles where
// `name = "pkg"` also shows up inside dependency lists.
func (l *Locator) Exact(text string, from int) (line int, ok bool) {
	if from < 1 {
		from = 1
	}
	for i := from - 1; i < len(l.lines); i++ {
		if strings.TrimSpace(l.lines[i]) == text {
			return i + 1, true
		}
	}
	return 0, false
}

// Key returns the 1-indexed line number and trimmed text of the first
// "name = ..." assignment inside the named table. The table is given without
// brackets, e.g. "tool.poetry.dependencies". An empty table name searches
// the whole file.
func (l *Locator) Key(table, name string) (line int, decl string, ok bool) {
	start := 0
	if table != "" {
		header := "[" + table + "]"
		found := false
		for i, raw := range l.lines {
			if strings.TrimSpace(raw) == header {
				start = i + 1
				found = true
				break
			}
		}
		if !found {
			return 0, "", false
		}
	}
	for i := start; i < len(l.lines); i++ {
		t := strings.TrimSpace(l.lines[i])
		if table != "" && strings.HasPrefix(t, "[") {
			// Next table header ends the search.
			break
		}
		if keyMatches(t, name) {
			return i + 1, t, true
		}
	}
	return 0, "", false
}

// keyMatches reports whether the trimmed line assigns to the given key,
// bare or quoted.
func keyMatches(line, name string) bool {
	for _, form := range []string{name, `"` + name + `"`, "'" + name + "'"} {
		rest, found := strings.CutPrefix(line, form)
		if !found {
			continue
		}
		rest = strings.TrimLeft(rest, " \t")
		if strings.HasPrefix(rest, "=") {
			return true
		}
	}
	return false
}
