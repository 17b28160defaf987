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

// Package setup extracts dependency declarations from setup.py files. The
// file is scanned for string literals inside install_requires lists, it is
// never executed, so requirements built up programmatically are not seen.
package setup

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem"
	"github.com/depscout/depscout/extractor/filesystem/internal/pipreq"
	"github.com/depscout/depscout/extractor/filesystem/internal/units"
	"github.com/depscout/depscout/inventory"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/policy"
	"github.com/depscout/depscout/purl"
	"github.com/depscout/depscout/stats"
)

const (
	// Name is the unique name of this extractor.
	Name = "python/setup"
)

// Config is the configuration for the Extractor.
type Config struct {
	// Stats is a stats collector for reporting metrics.
	Stats stats.Collector
	// MaxFileSizeBytes is the maximum file size this extractor will parse. If
	// `FileRequired` gets a bigger file, it will return false.
	MaxFileSizeBytes int64
	// Policy decides which declared packages make it into the results.
	Policy *policy.Policy
}

// DefaultConfig returns the default configuration for the extractor.
func DefaultConfig() Config {
	return Config{
		MaxFileSizeBytes: 30 * units.MiB,
		Policy:           policy.NewDefault(),
	}
}

// Metadata holds parsing information for a setup.py declaration.
type Metadata struct {
	// The comparator of the first version constraint, e.g. ">=".
	VersionComparator string
}

// Extractor extracts python packages from setup.py files.
type Extractor struct {
	stats            stats.Collector
	maxFileSizeBytes int64
	policy           *policy.Policy
}

// New returns a setup.py extractor.
//
// For most use cases, initialize with:
// ```
// e := New(DefaultConfig())
// ```
func New(cfg Config) *Extractor {
	pol := cfg.Policy
	if pol == nil {
		pol = policy.NewDefault()
	}
	return &Extractor{
		stats:            cfg.Stats,
		maxFileSizeBytes: cfg.MaxFileSizeBytes,
		policy:           pol,
	}
}

// NewDefault returns an extractor with the default config settings.
func NewDefault() filesystem.Extractor { return New(DefaultConfig()) }

// WithPolicy returns a copy of the extractor that consults pol for package
// inclusion decisions.
func (e Extractor) WithPolicy(pol *policy.Policy) filesystem.Extractor {
	e.policy = pol
	return &e
}

// Name of the extractor.
func (e Extractor) Name() string { return Name }

// Version of the extractor.
func (e Extractor) Version() int { return 0 }

// Requirements of the extractor.
func (e Extractor) Requirements() *plugin.Capabilities {
	return &plugin.Capabilities{}
}

// FileRequired returns true if the specified file is a setup.py file.
func (e Extractor) FileRequired(api filesystem.FileAPI) bool {
	p := api.Path()
	if filepath.Base(p) != "setup.py" {
		return false
	}

	fileinfo, err := api.Stat()
	if err != nil {
		return false
	}
	if e.maxFileSizeBytes > 0 && fileinfo.Size() > e.maxFileSizeBytes {
		e.reportFileRequired(p, fileinfo.Size(), stats.FileRequiredResultSizeLimitExceeded)
		return false
	}

	e.reportFileRequired(p, fileinfo.Size(), stats.FileRequiredResultOK)
	return true
}

func (e Extractor) reportFileRequired(path string, fileSizeBytes int64, result stats.FileRequiredResult) {
	if e.stats == nil {
		return
	}
	e.stats.AfterFileRequired(e.Name(), &stats.FileRequiredStats{
		Path:          path,
		Result:        result,
		FileSizeBytes: fileSizeBytes,
	})
}

// Extract extracts packages from setup.py files passed through the scan input.
func (e Extractor) Extract(ctx context.Context, input *filesystem.ScanInput) (inventory.Inventory, error) {
	lines, err := pipreq.ReadLines(input.Reader)
	if e.stats != nil {
		e.exportStats(input, err)
	}
	if err != nil {
		return inventory.Inventory{}, err
	}

	fpath := filepath.ToSlash(input.Path)
	var pkgs []*extractor.Package

	// State of the requires list currently being scanned. inList is true
	// between the opening bracket of an install_requires or setup_requires
	// list and its matching closing bracket.
	inList := false
	discard := false
	depth := 0

	for i := range lines {
		lineNum := i + 1
		line := strings.TrimSpace(lines[i])

		if !inList {
			key := "install_requires"
			idx := strings.Index(line, key)
			if idx < 0 {
				key = "setup_requires"
				idx = strings.Index(line, key)
			}
			if idx < 0 {
				continue
			}
			open := strings.Index(line[idx:], "[")
			if open < 0 {
				continue
			}
			// setup_requires declares build-time tooling, not dependencies.
			discard = key == "setup_requires"
			depth = 1
			content, closed := untilClose(line[idx+open+1:], &depth)
			if !discard {
				pkgs = append(pkgs, e.items(content, lineNum, line, fpath)...)
			}
			inList = !closed
			continue
		}

		content, closed := untilClose(line, &depth)
		if !discard {
			pkgs = append(pkgs, e.items(content, lineNum, line, fpath)...)
		}
		if closed {
			inList = false
		}
	}

	return inventory.Inventory{Packages: pkgs}, nil
}

// items parses the requirement literals in one line's worth of list content.
// Every package found is attributed to that line.
func (e Extractor) items(content string, lineNum int, decl, fpath string) []*extractor.Package {
	var pkgs []*extractor.Package
	for _, item := range splitItems(content) {
		item = strings.Trim(strings.TrimSpace(item), `"'`)
		if item == "" {
			continue
		}
		req := pipreq.Parse(item)
		if req == nil {
			continue
		}
		if !e.policy.Include(policy.Candidate{PURLType: purl.TypePyPi, Name: req.Name, Version: req.Constraint}) {
			continue
		}

		pkgs = append(pkgs, &extractor.Package{
			Name:     req.Name,
			Version:  req.Constraint,
			PURLType: purl.TypePyPi,
			Locations: []*extractor.SourceLocation{{
				FilePath:    fpath,
				Line:        lineNum,
				Declaration: decl,
				FileType:    extractor.FileTypeSetupPy,
			}},
			Extras:            req.Extras,
			EnvironmentMarker: req.Marker,
			URL:               req.URL,
			Metadata:          &Metadata{VersionComparator: req.Comparator},
		})
	}
	return pkgs
}

// untilClose returns the part of s inside the requires list, tracking
// bracket depth across lines so that extras brackets inside requirement
// strings don't end the list early. closed is true once the list's closing
// bracket was seen.
func untilClose(s string, depth *int) (content string, closed bool) {
	for i, r := range s {
		switch r {
		case '[':
			*depth++
		case ']':
			*depth--
			if *depth == 0 {
				return s[:i], true
			}
		}
	}
	return s, false
}

// splitItems splits list content on commas outside brackets, so extras
// lists like pkg[a,b] stay in one piece.
func splitItems(s string) []string {
	var items []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				items = append(items, s[start:i])
				start = i + 1
			}
		}
	}
	return append(items, s[start:])
}

func (e Extractor) exportStats(input *filesystem.ScanInput, err error) {
	var fileSizeBytes int64
	if input.Info != nil {
		fileSizeBytes = input.Info.Size()
	}
	e.stats.AfterFileExtracted(e.Name(), &stats.FileExtractedStats{
		Path:          input.Path,
		Result:        filesystem.ExtractorErrorToFileExtractedResult(err),
		FileSizeBytes: fileSizeBytes,
	})
}

var _ filesystem.Extractor = Extractor{}
