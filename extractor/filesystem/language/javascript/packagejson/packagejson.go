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

// Package packagejson extracts dependency declarations from package.json
// manifests.
package packagejson

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem"
	"github.com/depscout/depscout/extractor/filesystem/language/javascript/internal/jsonloc"
	"github.com/depscout/depscout/extractor/filesystem/language/javascript/internal/npmver"
	"github.com/depscout/depscout/inventory"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/policy"
	"github.com/depscout/depscout/purl"
	"github.com/depscout/depscout/stats"
	"github.com/tidwall/gjson"
)

const (
	// Name is the unique name of this extractor.
	Name = "javascript/packagejson"
)

// sections are the dependency categories of a package.json, with the
// dev-group flag the policy uses to exclude devDependencies entirely.
var sections = []struct {
	key string
	dev bool
}{
	{key: "dependencies"},
	{key: "devDependencies", dev: true},
	{key: "peerDependencies"},
	{key: "optionalDependencies"},
}

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

// Metadata records which dependency category declared the package.
type Metadata struct {
	// DepGroups holds "dev", "peer" or "optional" for non-regular categories.
	DepGroups []string
	// RawRange is the version range as written in the manifest, before
	// normalization to the base version.
	RawRange string
}

// Extractor extracts javascript packages from package.json manifests.
type Extractor struct {
	stats            stats.Collector
	maxFileSizeBytes int64
	policy           *policy.Policy
}

// New returns a package.json extractor.
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

// FileRequired returns true if the specified file is a package.json file.
// Files under node_modules never reach this check because the walker skips
// that directory.
func (e Extractor) FileRequired(api filesystem.FileAPI) bool {
	p := api.Path()
	if filepath.Base(p) != "package.json" {
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

// Extract extracts packages from package.json manifests passed through the
// scan input.
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
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("could not extract from %s: invalid JSON", input.Path)
	}

	fpath := filepath.ToSlash(input.Path)
	var pkgs []*extractor.Package
	for _, section := range sections {
		var groups []string
		switch section.key {
		case "devDependencies":
			groups = []string{"dev"}
		case "peerDependencies":
			groups = []string{"peer"}
		case "optionalDependencies":
			groups = []string{"optional"}
		}

		gjson.GetBytes(data, section.key).ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			rawRange := value.String()
			version := npmver.Normalize(rawRange)
			if !e.policy.Include(policy.Candidate{PURLType: purl.TypeNPM, Name: name, Version: version, DevGroup: section.dev}) {
				return true
			}

			pkgs = append(pkgs, &extractor.Package{
				Name:     name,
				Version:  version,
				PURLType: purl.TypeNPM,
				Locations: []*extractor.SourceLocation{{
					FilePath:    fpath,
					Line:        jsonloc.Line(data, key.Index),
					Declaration: jsonloc.Declaration(data, key.Index),
					FileType:    extractor.FileTypePackageJSON,
				}},
				Metadata: &Metadata{DepGroups: groups, RawRange: rawRange},
			})
			return true
		})
	}

	return pkgs, nil
}

var _ filesystem.Extractor = Extractor{}
