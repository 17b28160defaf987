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

// Package npmver normalizes npm version range expressions to the base
// version used for matching. The raw range stays in the declaration text.
package npmver

import "strings"

// tags are dist-tags that pass through normalization unchanged.
var tags = map[string]bool{
	"latest": true,
	"next":   true,
	"beta":   true,
	"alpha":  true,
	"canary": true,
}

// urlPrefixes mark specs that reference a package by VCS location or URL.
var urlPrefixes = []string{"git", "github:", "gitlab:", "bitbucket:", "http://", "https://"}

// Normalize maps an npm version range to its base version: range operator
// prefixes are stripped, unions and intervals keep their first bound, VCS/URL
// specs become "git", file: specs become "local" and dist-tags pass through.
// An empty or wildcard range becomes "latest".
func Normalize(spec string) string {
	v := strings.TrimSpace(spec)
	if v == "" || v == "*" || v == "x" {
		return "latest"
	}
	if tags[v] {
		return v
	}
	if strings.HasPrefix(v, "file:") {
		return "local"
	}
	for _, p := range urlPrefixes {
		if strings.HasPrefix(v, p) {
			return "git"
		}
	}

	// Union ranges keep the first alternative, intervals the lower bound.
	if before, _, found := strings.Cut(v, "||"); found {
		v = strings.TrimSpace(before)
	}
	if before, _, found := strings.Cut(v, " - "); found {
		v = strings.TrimSpace(before)
	}

	for _, op := range []string{">=", "<=", ">", "<", "^", "~", "="} {
		if rest, found := strings.CutPrefix(v, op); found {
			v = strings.TrimSpace(rest)
			break
		}
	}

	if v == "" {
		return "latest"
	}
	return v
}
