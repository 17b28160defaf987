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

// Package yarnlock extracts resolved package versions from classic
// line-based yarn.lock files.
package yarnlock

import (
	"bufio"
	"context"
	"path/filepath"
	"strings"

	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem"
	"github.com/depscout/depscout/inventory"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/policy"
	"github.com/depscout/depscout/purl"
	"github.com/depscout/depscout/stats"
)

const (
	// Name is the unique name of this extractor.
	Name = "javascript/yarnlock"
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
		Policy: policy.NewDefault(),
	}
}

// Metadata records the version ranges the block's header requested.
type Metadata struct {
	// Ranges are the range parts of the header specifiers that resolved to
	// this package's version.
	Ranges []string
}

// Extractor extracts javascript packages from yarn.lock files.
type Extractor struct {
	stats            stats.Collector
	maxFileSizeBytes int64
	policy           *policy.Policy
}

// New returns a yarn.lock extractor.
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

// FileRequired returns true if the specified file is a yarn.lock file.
func (e Extractor) FileRequired(api filesystem.FileAPI) bool {
	p := api.Path()
	if filepath.Base(p) != "yarn.lock" {
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

// block is one yarn.lock entry under construction: the header line plus the
// indented attribute lines that follow it.
type block struct {
	header  string
	line    int
	version string
}

// Extract extracts packages from yarn.lock files passed through the scan
// input. A block's header lists every range specifier that resolved to the
// same version; the indented version line, not the header ranges, supplies
// the package version, so multiple specifiers collapse into one package.
func (e Extractor) Extract(ctx context.Context, input *filesystem.ScanInput) (inventory.Inventory, error) {
	pkgs, err := e.extract(input)
	if e.stats != nil {
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
	if err != nil {
		return inventory.Inventory{}, err
	}
	return inventory.Inventory{Packages: pkgs}, nil
}

func (e Extractor) extract(input *filesystem.ScanInput) ([]*extractor.Package, error) {
	fpath := filepath.ToSlash(input.Path)

	var pkgs []*extractor.Package
	var current *block

	flush := func() {
		if current != nil {
			pkgs = append(pkgs, e.pkg(current, fpath)...)
			current = nil
		}
	}

	scanner := bufio.NewScanner(input.Reader)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		// An unindented line starts a new block.
		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			flush()
			if strings.HasSuffix(trimmed, ":") {
				current = &block{header: strings.TrimSuffix(trimmed, ":"), line: lineNum}
			}
			continue
		}

		if current == nil {
			continue
		}
		if rest, ok := strings.CutPrefix(trimmed, "version "); ok {
			current.version = strings.Trim(strings.TrimSpace(rest), `"`)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	return pkgs, nil
}

func (e Extractor) pkg(b *block, fpath string) []*extractor.Package {
	specs := strings.Split(b.header, ",")
	var name string
	var ranges []string
	for _, spec := range specs {
		spec = strings.Trim(strings.TrimSpace(spec), `"`)
		n, r := splitSpec(spec)
		if n == "" {
			continue
		}
		if name == "" {
			name = n
		}
		if r != "" {
			ranges = append(ranges, r)
		}
	}

	if name == "" || b.version == "" {
		return nil
	}
	if !e.policy.Include(policy.Candidate{PURLType: purl.TypeNPM, Name: name, Version: b.version}) {
		return nil
	}

	return []*extractor.Package{{
		Name:     name,
		Version:  b.version,
		PURLType: purl.TypeNPM,
		Locations: []*extractor.SourceLocation{{
			FilePath:    fpath,
			Line:        b.line,
			Declaration: b.header + ":",
			FileType:    extractor.FileTypeYarnLock,
		}},
		Metadata: &Metadata{Ranges: ranges},
	}}
}

// splitSpec splits a name@range specifier at the "@" preceding the range.
// Scoped names keep their leading "@", so the split happens at the last "@".
func splitSpec(spec string) (name, rng string) {
	i := strings.LastIndex(spec, "@")
	if i <= 0 {
		// No range, or a scoped name with no range at all.
		return spec, ""
	}
	return spec[:i], spec[i+1:]
}

var _ filesystem.Extractor = Extractor{}
