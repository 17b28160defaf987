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

// Package pipfile extracts dependency declarations from Pipfile manifests.
package pipfile

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
	Name = "python/pipfile"
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

// Metadata records which section of the Pipfile declared the package.
type Metadata struct {
	// DevDependency is true for entries from the [dev-packages] table.
	DevDependency bool
}

type pipfileFile struct {
	Packages    map[string]any `toml:"packages"`
	DevPackages map[string]any `toml:"dev-packages"`
}

// Extractor extracts python packages from Pipfile manifests.
type Extractor struct {
	stats            stats.Collector
	maxFileSizeBytes int64
	policy           *policy.Policy
}

// New returns a Pipfile extractor.
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

// FileRequired returns true if the specified file is a Pipfile.
func (e Extractor) FileRequired(api filesystem.FileAPI) bool {
	p := api.Path()
	if filepath.Base(p) != "Pipfile" {
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

// Extract extracts packages from Pipfile manifests passed through the scan
// input.
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

	var parsed pipfileFile
	md, err := toml.Decode(string(data), &parsed)
	if err != nil {
		return nil, fmt.Errorf("could not extract from %s: %w", input.Path, err)
	}

	loc := tomlloc.New(data)
	fpath := filepath.ToSlash(input.Path)

	// Walking the decoded keys keeps the entries in file order.
	var pkgs []*extractor.Package
	for _, key := range md.Keys() {
		if len(key) != 2 {
			continue
		}
		switch key[0] {
		case "packages":
			pkgs = append(pkgs, e.pkg(key[1], parsed.Packages[key[1]], false, "packages", loc, fpath)...)
		case "dev-packages":
			pkgs = append(pkgs, e.pkg(key[1], parsed.DevPackages[key[1]], true, "dev-packages", loc, fpath)...)
		}
	}

	return pkgs, nil
}

func (e Extractor) pkg(name string, spec any, dev bool, table string, loc *tomlloc.Locator, fpath string) []*extractor.Package {
	version, url := pipfileSpec(spec)
	if !e.policy.Include(policy.Candidate{PURLType: purl.TypePyPi, Name: name, Version: version}) {
		return nil
	}

	line, decl, found := loc.Key(table, name)
	if !found {
		line, decl = 1, fmt.Sprintf("%s = %q", name, version)
	}

	return []*extractor.Package{{
		Name:     name,
		Version:  version,
		PURLType: purl.TypePyPi,
		Locations: []*extractor.SourceLocation{{
			FilePath:    fpath,
			Line:        line,
			Declaration: decl,
			FileType:    extractor.FileTypePipfile,
		}},
		URL:      url,
		Metadata: &Metadata{DevDependency: dev},
	}}
}

// pipfileSpec interprets a Pipfile dependency value: a constraint string such
// as "*" or ">=2.28.0", or a table with version/git keys.
func pipfileSpec(spec any) (version, url string) {
	switch v := spec.(type) {
	case string:
		return orLatest(v), ""
	case map[string]any:
		version := "latest"
		if s, ok := v["version"].(string); ok {
			version = orLatest(s)
		}
		url, _ := v["git"].(string)
		return version, url
	}
	return "latest", ""
}

func orLatest(version string) string {
	if version == "" || version == "*" {
		return "latest"
	}
	return version
}

var _ filesystem.Extractor = Extractor{}
