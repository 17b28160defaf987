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

// Package packagelockjson extracts resolved package versions from
// package-lock.json and npm-shrinkwrap.json lockfiles.
package packagelockjson

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem"
	"github.com/depscout/depscout/extractor/filesystem/language/javascript/internal/jsonloc"
	"github.com/depscout/depscout/inventory"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/policy"
	"github.com/depscout/depscout/purl"
	"github.com/depscout/depscout/stats"
	"github.com/tidwall/gjson"
)

const (
	// Name is the unique name of this extractor.
	Name = "javascript/packagelockjson"
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

// Extractor extracts javascript packages from package-lock.json files.
type Extractor struct {
	stats            stats.Collector
	maxFileSizeBytes int64
	policy           *policy.Policy
}

// New returns a package-lock.json extractor.
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

// FileRequired returns true if the specified file is an npm lockfile.
func (e Extractor) FileRequired(api filesystem.FileAPI) bool {
	p := api.Path()
	base := filepath.Base(p)
	if base != "package-lock.json" && base != "npm-shrinkwrap.json" {
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

// Extract extracts packages from npm lockfiles passed through the scan input.
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

	// Lockfile version 2+ materializes the whole tree in the flat "packages"
	// map; it is authoritative when present. Version 1 nests resolved
	// dependencies recursively.
	if packages := gjson.GetBytes(data, "packages"); packages.Exists() {
		return e.flatPackages(packages, data, fpath), nil
	}
	return e.recursiveDependencies(gjson.GetBytes(data, "dependencies"), data, fpath), nil
}

// flatPackages extracts the v2/v3 "packages" map. Keys are install paths;
// the package name is the path's last node_modules/ segment, which keeps
// scoped names intact. The root entry (empty key) and other non-node_modules
// entries such as workspace links are skipped.
func (e Extractor) flatPackages(packages gjson.Result, data []byte, fpath string) []*extractor.Package {
	var pkgs []*extractor.Package
	packages.ForEach(func(key, value gjson.Result) bool {
		installPath := key.String()
		if installPath == "" || !strings.Contains(installPath, "node_modules/") {
			return true
		}
		parts := strings.Split(installPath, "node_modules/")
		name := parts[len(parts)-1]
		if n := value.Get("name"); n.Exists() {
			// Aliased install, the real package name is recorded inside.
			name = n.String()
		}
		pkgs = append(pkgs, e.pkg(name, value.Get("version").String(), key.Index, data, fpath)...)
		return true
	})
	return pkgs
}

// recursiveDependencies extracts a v1 "dependencies" tree.
func (e Extractor) recursiveDependencies(deps gjson.Result, data []byte, fpath string) []*extractor.Package {
	var pkgs []*extractor.Package
	deps.ForEach(func(key, value gjson.Result) bool {
		pkgs = append(pkgs, e.pkg(key.String(), value.Get("version").String(), key.Index, data, fpath)...)
		if nested := value.Get("dependencies"); nested.Exists() {
			pkgs = append(pkgs, e.recursiveDependencies(nested, data, fpath)...)
		}
		return true
	})
	return pkgs
}

func (e Extractor) pkg(name, version string, offset int, data []byte, fpath string) []*extractor.Package {
	if !e.policy.Include(policy.Candidate{PURLType: purl.TypeNPM, Name: name, Version: version}) {
		return nil
	}
	return []*extractor.Package{{
		Name:     name,
		Version:  version,
		PURLType: purl.TypeNPM,
		Locations: []*extractor.SourceLocation{{
			FilePath:    fpath,
			Line:        jsonloc.Line(data, offset),
			Declaration: jsonloc.Declaration(data, offset),
			FileType:    extractor.FileTypePackageLockJSON,
		}},
	}}
}

var _ filesystem.Extractor = Extractor{}
