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

// Package requirements extracts dependency declarations from pip
// requirements files.
package requirements

import (
	"context"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem"
	"github.com/depscout/depscout/extractor/filesystem/internal/pipreq"
	depscoutfs "github.com/depscout/depscout/fs"
	"github.com/depscout/depscout/inventory"
	"github.com/depscout/depscout/log"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/policy"
	"github.com/depscout/depscout/purl"
	"github.com/depscout/depscout/stats"
)

const (
	// Name is the unique name of this extractor.
	Name = "python/requirements"
)

// Regex matching pip environment variable references, which we don't resolve.
// https://github.com/pypa/pip/blob/72a32e/src/pip/_internal/req/req_file.py#L503
var reEnvVar = regexp.MustCompile(`\$\{[A-Z0-9_]+\}`)

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
		Stats:            nil,
		MaxFileSizeBytes: 0,
		Policy:           policy.NewDefault(),
	}
}

// Metadata holds parsing information for a requirements file declaration.
type Metadata struct {
	// The values of --hash per-requirement options, for hash-checking mode.
	HashCheckingModeValues []string
	// The comparator of the first version constraint, e.g. ">=".
	VersionComparator string
}

// Extractor extracts python packages from requirements.txt files.
type Extractor struct {
	stats            stats.Collector
	maxFileSizeBytes int64
	policy           *policy.Policy
}

// New returns a requirements.txt extractor.
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

// FileRequired returns true for requirements file names: requirements.txt
// and its dev/test variants, and any .txt file inside a requirements/
// directory.
func (e Extractor) FileRequired(api filesystem.FileAPI) bool {
	p := api.Path()
	base := filepath.Base(p)
	if filepath.Ext(base) != ".txt" {
		return false
	}
	if !strings.Contains(base, "requirements") && filepath.Base(filepath.Dir(p)) != "requirements" {
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

type pathQueue []string

// Extract extracts packages from requirements files passed through the scan input.
func (e Extractor) Extract(ctx context.Context, input *filesystem.ScanInput) (inventory.Inventory, error) {
	lines, err := pipreq.ReadLines(input.Reader)
	if e.stats != nil {
		e.exportStats(input, err)
	}
	if err != nil {
		return inventory.Inventory{}, err
	}

	pkgs, extraPaths := e.extractFromLines(lines, input.Path)
	pkgs = append(pkgs, e.extractFromExtraPaths(input.Path, extraPaths, input.FS)...)

	return inventory.Inventory{Packages: pkgs}, nil
}

// extractFromExtraPaths processes requirements files referenced through -r
// includes, breadth-first. Files already visited in this extraction are
// skipped, which both deduplicates diamond includes and stops include cycles.
func (e Extractor) extractFromExtraPaths(initPath string, extraPaths pathQueue, fsys depscoutfs.FS) []*extractor.Package {
	visited := map[string]bool{initPath: true}
	var pkgs []*extractor.Package

	for len(extraPaths) > 0 {
		p := extraPaths[0]
		extraPaths = extraPaths[1:]
		if visited[p] {
			log.Debugf("Requirements file %q included more than once, skipping repeat", p)
			continue
		}
		visited[p] = true
		newPkgs, newPaths, err := e.openAndExtractFromFile(p, fsys)
		if err != nil {
			// Includes pointing outside the scan root or at files that don't
			// exist are common enough to not fail the extraction.
			log.Debugf("Skipping included requirements file %q: %v", p, err)
			continue
		}
		extraPaths = append(extraPaths, newPaths...)
		pkgs = append(pkgs, newPkgs...)
	}

	return pkgs
}

func (e Extractor) openAndExtractFromFile(p string, fsys depscoutfs.FS) ([]*extractor.Package, pathQueue, error) {
	reader, err := fsys.Open(filepath.ToSlash(p))
	if err != nil {
		return nil, nil, err
	}
	defer reader.Close()
	lines, err := pipreq.ReadLines(reader)
	if err != nil {
		return nil, nil, err
	}
	pkgs, extraPaths := e.extractFromLines(lines, p)
	return pkgs, extraPaths, nil
}

// extractFromLines parses the lines of one requirements file. It returns the
// packages declared in the file and the paths of any files pulled in through
// -r includes, resolved relative to the file's directory.
func (e Extractor) extractFromLines(lines []string, fpath string) ([]*extractor.Package, pathQueue) {
	var pkgs []*extractor.Package
	var extraPaths pathQueue

	for i := 0; i < len(lines); i++ {
		lineNum := i + 1
		logical := lines[i]
		// Backslash continuations join with the following lines. The
		// declaration keeps the starting line's number.
		for strings.HasSuffix(logical, `\`) && i+1 < len(lines) {
			i++
			logical = logical[:len(logical)-1] + lines[i]
		}

		decl := strings.TrimSpace(logical)
		if decl == "" || strings.HasPrefix(decl, "#") {
			continue
		}
		if reEnvVar.MatchString(decl) {
			// Environment variable references are not resolved.
			continue
		}

		if rest, ok := cutFlag(decl, "-r", "--requirement"); ok {
			// Path is relative to the current requirement file's dir.
			extraPaths = append(extraPaths, path.Join(path.Dir(filepath.ToSlash(fpath)), rest))
			continue
		}
		if !strings.HasPrefix(decl, "-e ") && !strings.HasPrefix(decl, "--editable ") && strings.HasPrefix(decl, "-") {
			// Global options other than -r are not implemented.
			// https://pip.pypa.io/en/stable/reference/requirements-file-format/#global-options
			continue
		}

		req := pipreq.Parse(decl)
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
				FilePath:    filepath.ToSlash(fpath),
				Line:        lineNum,
				Declaration: decl,
				FileType:    extractor.FileTypeRequirements,
			}},
			Extras:            req.Extras,
			EnvironmentMarker: req.Marker,
			Editable:          req.Editable,
			URL:               req.URL,
			Metadata: &Metadata{
				HashCheckingModeValues: req.Hashes,
				VersionComparator:      req.Comparator,
			},
		})
	}

	return pkgs, extraPaths
}

// cutFlag returns the argument of a "-x arg" or "--long arg" option line and
// whether the line is that option.
func cutFlag(line, short, long string) (string, bool) {
	if rest, ok := strings.CutPrefix(line, short+" "); ok {
		return strings.TrimSpace(rest), true
	}
	if rest, ok := strings.CutPrefix(line, long+" "); ok {
		return strings.TrimSpace(rest), true
	}
	return "", false
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
