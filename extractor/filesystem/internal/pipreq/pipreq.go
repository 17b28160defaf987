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

// Package pipreq parses individual Python requirement declarations. It is
// shared by the extractors that encounter pip-style requirement strings:
// requirements files, pyproject.toml, setup.py, setup.cfg and conda
// environment files.
package pipreq

import (
	"io"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var (
	// Regex matching comments in requirements files. The "#" must sit at the
	// start of the line or after whitespace so that URL fragments like
	// "#egg=name" survive.
	// https://github.com/pypa/pip/blob/72a32e/src/pip/_internal/req/req_file.py#L492
	reComment = regexp.MustCompile(`(^|\s+)#.*$`)
	reExtras  = regexp.MustCompile(`\[([^\[\]]*)\]`)
	// Per-requirement options. We extract the --hash values and discard
	// everything from the first option onwards.
	// https://pip.pypa.io/en/stable/reference/requirements-file-format/#per-requirement-options
	reTextAfterFirstOptionInclusive = regexp.MustCompile(`(?:--hash|--global-option|--config-settings|-C).*`)
	reHashOption                    = regexp.MustCompile(`--hash=(.+?)(?:$|\s)`)
	// PEP 508 package name grammar.
	reValidName = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)
)

// comparators holds the version comparators in matching order. Two-character
// comparators come first so that ">=" is never read as ">".
var comparators = []string{">=", "<=", "==", "!=", "~=", ">", "<"}

// urlPrefixes mark declarations that reference a package by URL or VCS spec
// instead of by registry name.
var urlPrefixes = []string{"git+", "http://", "https://", "file:"}

// Requirement is one parsed dependency declaration.
type Requirement struct {
	// Name as written in the declaration, extras and constraints removed.
	Name string
	// Constraint is the first version constraint including its comparator,
	// e.g. ">=2.28.0". A declaration that pins no version gets "latest".
	// Additional comma-separated constraints are dropped.
	Constraint string
	// Comparator of the first constraint, e.g. ">=". Empty for unconstrained
	// declarations.
	Comparator string
	// Extras requested in brackets, e.g. requests[security,socks].
	Extras []string
	// Marker is the environment marker after ";", if any.
	Marker string
	// URL of the referenced archive or repository for URL/VCS declarations.
	URL string
	// Editable is true for -e / --editable declarations.
	Editable bool
	// Hashes holds the values of --hash per-requirement options.
	Hashes []string
}

// Parse parses a single requirement declaration. It returns nil when the
// line declares no extractable package: blank lines, comments, pip options,
// or specs whose name or version cannot be determined.
func Parse(line string) *Requirement {
	r := &Requirement{}

	l := reComment.ReplaceAllString(line, "")
	l, r.Hashes = splitPerRequirementOptions(l)
	l = strings.TrimSpace(l)
	if l == "" {
		return nil
	}

	if rest, ok := strings.CutPrefix(l, "-e "); ok {
		r.Editable = true
		l = strings.TrimSpace(rest)
	} else if rest, ok := strings.CutPrefix(l, "--editable "); ok {
		r.Editable = true
		l = strings.TrimSpace(rest)
	}

	if isURL(l) {
		l = r.takeURL(l)
		if l == "" {
			return nil
		}
	}

	if before, after, found := strings.Cut(l, ";"); found {
		l = strings.TrimSpace(before)
		r.Marker = strings.TrimSpace(after)
	}

	if m := reExtras.FindStringSubmatch(l); m != nil {
		for _, e := range strings.Split(m[1], ",") {
			if e = strings.TrimSpace(e); e != "" {
				r.Extras = append(r.Extras, e)
			}
		}
		l = strings.Replace(l, m[0], "", 1)
	}

	name, version, comp := splitConstraint(l)
	name = strings.TrimSpace(name)
	if !reValidName.MatchString(name) {
		return nil
	}
	if comp != "" && version == "" {
		// A comparator with nothing behind it pins no usable version.
		return nil
	}
	r.Name = name
	r.Comparator = comp
	if comp == "" {
		r.Constraint = "latest"
	} else {
		r.Constraint = comp + version
	}
	return r
}

// takeURL records the URL of a URL/VCS declaration on r and returns the
// package name derived from it: the "#egg=" fragment when present, otherwise
// the last path segment with a trailing ".git" removed.
func (r *Requirement) takeURL(l string) string {
	if before, after, found := strings.Cut(l, "#egg="); found {
		r.URL = strings.TrimSpace(before)
		return strings.TrimSpace(after)
	}
	r.URL = l
	u, err := url.Parse(strings.TrimPrefix(l, "git+"))
	if err != nil || u.Path == "" {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	name := parts[len(parts)-1]
	return strings.TrimSuffix(name, ".git")
}

// splitConstraint splits a spec at its first version comparator. The version
// of a multi-constraint spec such as "pkg>=1.0,<2.0" is the first segment.
func splitConstraint(s string) (name, version, comparator string) {
	for _, comp := range comparators {
		before, after, found := strings.Cut(s, comp)
		if !found {
			continue
		}
		version := after
		if v, _, found := strings.Cut(version, ","); found {
			version = v
		}
		return before, strings.TrimSpace(version), comp
	}
	return s, "", ""
}

func isURL(s string) bool {
	for _, p := range urlPrefixes {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// splitPerRequirementOptions removes from the input all text after the first
// per-requirement option and returns the remaining input along with the
// values of the --hash options.
func splitPerRequirementOptions(s string) (string, []string) {
	var hashes []string
	for _, m := range reHashOption.FindAllStringSubmatch(s, -1) {
		hashes = append(hashes, m[1])
	}
	return reTextAfterFirstOptionInclusive.ReplaceAllString(s, ""), hashes
}

// ReadLines reads r as UTF-8 text, falling back to Latin-1 when the content
// is not valid UTF-8. Requirement files in the wild occasionally carry
// Latin-1 comments. The returned slice holds one entry per line with line
// endings removed.
func ReadLines(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		data, err = charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, err
		}
	}
	lines := strings.Split(string(data), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines, nil
}
