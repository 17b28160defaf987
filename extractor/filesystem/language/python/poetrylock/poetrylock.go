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

// Package poetrylock extracts locked package versions from poetry.lock files.
package poetrylock

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem"
	"github.com/depscout/depscout/extractor/filesystem/language/python/internal/tomlloc"
	"github.com/depscout/depscout/inventory"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/policy"
	"github.com/depscout/depscout/purl"
	"github.com/depscout/depscout/stats"
)

const (
	// Name is the unique name of this extractor.
	Name = "python/poetrylock"
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

type poetryLockPackageSource struct {
	Type string `toml:"type"`
	URL  string `toml:"url"`
}

type poetryLockPackage struct {
	Name    string                  `toml:"name"`
	Version string                  `toml:"version"`
	Groups  []string                `toml:"groups"`
	Source  poetryLockPackageSource `toml:"source"`
}

type poetryLockFile struct {
	Version  int                 `toml:"version"`
	Packages []poetryLockPackage `toml:"package"`
}

// Metadata records lockfile detail for one locked package.
type Metadata struct {
	// DepGroups holds the dependency groups the package belongs to, when the
	// lockfile records them.
	DepGroups []string
}

// Extractor extracts python packages from poetry.lock files.
type Extractor struct {
	stats            stats.Collector
	maxFileSizeBytes int64
	policy           *policy.Policy
}

// New returns a poetry.lock extractor.
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

// FileRequired returns true if the specified file is a poetry.lock file.
func (e Extractor) FileRequired(api filesystem.FileAPI) bool {
	p := api.Path()
	if filepath.Base(p) != "poetry.lock" {
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

// Extract extracts packages from poetry.lock files passed through the scan
// input. Every locked package is a concrete (name, version) record; optional
// and dev-group packages are materialized in the lockfile like any other and
// are extracted the same way.
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
	data, err := io.ReadAll(input.Reader)
	if err != nil {
		return nil, err
	}

	var parsed poetryLockFile
	if _, err := toml.Decode(string(data), &parsed); err != nil {
		return nil, fmt.Errorf("could not extract from %s: %w", input.Path, err)
	}

	loc := tomlloc.New(data)
	fpath := filepath.ToSlash(input.Path)

	var pkgs []*extractor.Package
	from := 1
	for _, lockPkg := range parsed.Packages {
		decl := fmt.Sprintf("name = %q", lockPkg.Name)
		line, found := loc.Exact(decl, from)
		if found {
			from = line
		} else {
			line, decl = 1, fmt.Sprintf("%s==%s", lockPkg.Name, lockPkg.Version)
		}

		if !e.policy.Include(policy.Candidate{PURLType: purl.TypePyPi, Name: lockPkg.Name, Version: lockPkg.Version}) {
			continue
		}

		var url string
		if lockPkg.Source.Type == "git" || lockPkg.Source.Type == "url" {
			url = lockPkg.Source.URL
		}

		pkgs = append(pkgs, &extractor.Package{
			Name:     lockPkg.Name,
			Version:  lockPkg.Version,
			PURLType: purl.TypePyPi,
			Locations: []*extractor.SourceLocation{{
				FilePath:    fpath,
				Line:        line,
				Declaration: decl,
				FileType:    extractor.FileTypePoetryLock,
			}},
			URL:      url,
			Metadata: &Metadata{DepGroups: lockPkg.Groups},
		})
	}

	return pkgs, nil
}

var _ filesystem.Extractor = Extractor{}
