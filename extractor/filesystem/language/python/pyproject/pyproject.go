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

// Package pyproject extracts dependency declarations from pyproject.toml
// files, covering both PEP 621 project metadata and Poetry tables.
package pyproject

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem"
	"github.com/depscout/depscout/extractor/filesystem/internal/pipreq"
	"github.com/depscout/depscout/extractor/filesystem/language/python/internal/tomlloc"
	"github.com/depscout/depscout/inventory"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/policy"
	"github.com/depscout/depscout/purl"
	"github.com/depscout/depscout/stats"
)

const (
	// Name is the unique name of this extractor.
	Name = "python/pyproject"
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

// Metadata records which dependency group of the pyproject file declared
// the package.
type Metadata struct {
	// DepGroups is empty for regular dependencies. Optional-dependency and
	// Poetry group entries carry their group name, build-system requirements
	// carry "build".
	DepGroups []string
}

type pyprojectFile struct {
	Project struct {
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
	BuildSystem struct {
		Requires []string `toml:"requires"`
	} `toml:"build-system"`
	Tool struct {
		Poetry struct {
			Dependencies    map[string]any `toml:"dependencies"`
			DevDependencies map[string]any `toml:"dev-dependencies"`
			Group           map[string]struct {
				Dependencies map[string]any `toml:"dependencies"`
			} `toml:"group"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// Extractor extracts python packages from pyproject.toml files.
type Extractor struct {
	stats            stats.Collector
	maxFileSizeBytes int64
	policy           *policy.Policy
}

// New returns a pyproject.toml extractor.
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

// FileRequired returns true if the specified file is a pyproject.toml file.
func (e Extractor) FileRequired(api filesystem.FileAPI) bool {
	p := api.Path()
	if filepath.Base(p) != "pyproject.toml" {
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

// Extract extracts packages from pyproject.toml files passed through the
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

	var proj pyprojectFile
	md, err := toml.Decode(string(data), &proj)
	if err != nil {
		return nil, fmt.Errorf("could not extract from %s: %w", input.Path, err)
	}

	loc := tomlloc.New(data)
	fpath := filepath.ToSlash(input.Path)

	var pkgs []*extractor.Package
	pkgs = append(pkgs, e.stringDeps(proj.Project.Dependencies, nil, loc, fpath)...)

	// Optional dependency groups, in file order.
	for _, key := range md.Keys() {
		if len(key) == 3 && key[0] == "project" && key[1] == "optional-dependencies" {
			group := key[2]
			pkgs = append(pkgs, e.stringDeps(proj.Project.OptionalDependencies[group], []string{group}, loc, fpath)...)
		}
	}

	pkgs = append(pkgs, e.poetryDeps(md, &proj, loc, fpath)...)
	pkgs = append(pkgs, e.stringDeps(proj.BuildSystem.Requires, []string{"build"}, loc, fpath)...)

	return pkgs, nil
}

// stringDeps parses a list of PEP 508 requirement strings. The source line
// of each entry is found by locating its (quoted) text in the raw content.
func (e Extractor) stringDeps(deps []string, groups []string, loc *tomlloc.Locator, fpath string) []*extractor.Package {
	var pkgs []*extractor.Package
	from := 1
	for _, dep := range deps {
		req := pipreq.Parse(dep)
		if req == nil {
			continue
		}
		if !e.policy.Include(policy.Candidate{PURLType: purl.TypePyPi, Name: req.Name, Version: req.Constraint}) {
			continue
		}

		line, decl, found := loc.Value(`"`+dep+`"`, from)
		if !found {
			line, decl, found = loc.Value(dep, from)
		}
		if found {
			from = line
		} else {
			line, decl = 1, dep
		}

		pkgs = append(pkgs, &extractor.Package{
			Name:     req.Name,
			Version:  req.Constraint,
			PURLType: purl.TypePyPi,
			Locations: []*extractor.SourceLocation{{
				FilePath:    fpath,
				Line:        line,
				Declaration: decl,
				FileType:    extractor.FileTypePyprojectTOML,
			}},
			Extras:            req.Extras,
			EnvironmentMarker: req.Marker,
			URL:               req.URL,
			Metadata:          &Metadata{DepGroups: groups},
		})
	}
	return pkgs
}

// poetryDeps walks the decoded document keys once so that entries from all
// Poetry dependency tables come out in file order.
func (e Extractor) poetryDeps(md toml.MetaData, proj *pyprojectFile, loc *tomlloc.Locator, fpath string) []*extractor.Package {
	poetry := proj.Tool.Poetry

	var pkgs []*extractor.Package
	for _, key := range md.Keys() {
		switch {
		case len(key) == 4 && key[0] == "tool" && key[1] == "poetry" && key[2] == "dependencies":
			name := key[3]
			pkgs = append(pkgs, e.poetryDep(name, poetry.Dependencies[name], nil, "tool.poetry.dependencies", loc, fpath)...)
		case len(key) == 4 && key[0] == "tool" && key[1] == "poetry" && key[2] == "dev-dependencies":
			name := key[3]
			pkgs = append(pkgs, e.poetryDep(name, poetry.DevDependencies[name], []string{"dev"}, "tool.poetry.dev-dependencies", loc, fpath)...)
		case len(key) == 6 && key[0] == "tool" && key[1] == "poetry" && key[2] == "group" && key[4] == "dependencies":
			group, name := key[3], key[5]
			table := "tool.poetry.group." + group + ".dependencies"
			pkgs = append(pkgs, e.poetryDep(name, poetry.Group[group].Dependencies[name], []string{group}, table, loc, fpath)...)
		}
	}
	return pkgs
}

func (e Extractor) poetryDep(name string, spec any, groups []string, table string, loc *tomlloc.Locator, fpath string) []*extractor.Package {
	// Poetry's python entry constrains the interpreter, not a package.
	if name == "python" {
		return nil
	}

	version, url, optional := poetrySpec(spec)
	if optional {
		// Optional entries only install through an extras group.
		return nil
	}
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
			FileType:    extractor.FileTypePyprojectTOML,
		}},
		URL:      url,
		Metadata: &Metadata{DepGroups: groups},
	}}
}

// poetrySpec interprets a Poetry dependency value: a constraint string, a
// table with version/git/optional keys, or an array of such tables for
// multiple-constraint dependencies, of which the first entry counts.
func poetrySpec(spec any) (version, url string, optional bool) {
	switch v := spec.(type) {
	case string:
		return orLatest(v), "", false
	case map[string]any:
		version := "latest"
		if s, ok := v["version"].(string); ok {
			version = orLatest(s)
		}
		url, _ := v["git"].(string)
		optional, _ := v["optional"].(bool)
		return version, url, optional
	case []map[string]any:
		if len(v) > 0 {
			return poetrySpec(v[0])
		}
	case []any:
		if len(v) > 0 {
			return poetrySpec(v[0])
		}
	}
	return "latest", "", false
}

func orLatest(version string) string {
	if version == "" || version == "*" {
		return "latest"
	}
	return version
}

var _ filesystem.Extractor = Extractor{}
