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

// Package jsonloc converts gjson byte offsets into 1-indexed line numbers
// and declaration text for JSON manifests and lockfiles.
package jsonloc

import (
	"bytes"
	"strings"
)

// Line returns the 1-indexed line number of the given byte offset. An offset
// outside the data maps to line 1.
func Line(data []byte, offset int) int {
	if offset < 0 || offset > len(data) {
		return 1
	}
	return 1 + bytes.Count(data[:offset], []byte("\n"))
}

// Declaration returns the trimmed text of the line containing the given byte
// offset, with a trailing comma removed.
func Declaration(data []byte, offset int) string {
	if offset < 0 || offset > len(data) {
		return ""
	}
	start := bytes.LastIndexByte(data[:offset], '\n') + 1
	end := bytes.IndexByte(data[offset:], '\n')
	if end < 0 {
		end = len(data)
	} else {
		end += offset
	}
	return strings.TrimSuffix(strings.TrimSpace(string(data[start:end])), ",")
}
