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

// Package condaenv extracts dependency declarations from conda environment
// files, including the nested pip sub-list.
package condaenv

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem"
	"github.com/depscout/depscout/extractor/filesystem/internal/pipreq"
	"github.com/depscout/depscout/inventory"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/policy"
	"github.com/depscout/depscout/purl"
	"github.com/depscout/depscout/stats"
	"gopkg.in/yaml.v3"
)

const (
	// Name is the unique name of this extractor.
	Name = "python/condaenv"
)

// fileNames are the conda environment file names the extractor recognizes.
var fileNames = map[string]bool{
	"environment.yml":  true,
	"environment.yaml": true,
	"conda.yml":        true,
	"conda.yaml":       true,
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

// Extractor extracts packages from conda environment files.
type Extractor struct {
	stats            stats.Collector
	maxFileSizeBytes int64
	policy           *policy.Policy
}

// New returns a conda environment file extractor.
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

// FileRequired returns true if the specified file is a conda environment file.
func (e Extractor) FileRequired(api filesystem.FileAPI) bool {
	p := api.Path()
	if !fileNames[filepath.Base(p)] {
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

// Extract extracts packages from conda environment files passed through the
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

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("could not extract from %s: %w", input.Path, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	deps := mappingValue(doc.Content[0], "dependencies")
	if deps == nil || deps.Kind != yaml.SequenceNode {
		return nil, nil
	}

	fpath := filepath.ToSlash(input.Path)
	var pkgs []*extractor.Package
	for _, entry := range deps.Content {
		switch entry.Kind {
		case yaml.ScalarNode:
			pkgs = append(pkgs, e.condaDep(entry, fpath)...)
		case yaml.MappingNode:
			// The nested pip sub-list: `- pip: [...]`.
			if pip := mappingValue(entry, "pip"); pip != nil && pip.Kind == yaml.SequenceNode {
				for _, pipEntry := range pip.Content {
					if pipEntry.Kind == yaml.ScalarNode {
						pkgs = append(pkgs, e.pipDep(pipEntry, fpath)...)
					}
				}
			}
		}
	}

	return pkgs, nil
}

// condaDep parses one conda dependency entry of the form
// name[=version[=build]], with ">=,<=,==" style constraints also accepted.
func (e Extractor) condaDep(node *yaml.Node, fpath string) []*extractor.Package {
	decl := strings.TrimSpace(node.Value)
	name, version := splitCondaSpec(decl)
	if name == "" {
		return nil
	}
	if !e.policy.Include(policy.Candidate{PURLType: purl.TypeConda, Name: name, Version: version}) {
		return nil
	}
	return []*extractor.Package{{
		Name:     name,
		Version:  version,
		PURLType: purl.TypeConda,
		Locations: []*extractor.SourceLocation{{
			FilePath:    fpath,
			Line:        node.Line,
			Declaration: decl,
			FileType:    extractor.FileTypeCondaEnv,
		}},
	}}
}

// pipDep parses one entry of the nested pip sub-list with the shared
// requirement grammar.
func (e Extractor) pipDep(node *yaml.Node, fpath string) []*extractor.Package {
	decl := strings.TrimSpace(node.Value)
	req := pipreq.Parse(decl)
	if req == nil {
		return nil
	}
	if !e.policy.Include(policy.Candidate{PURLType: purl.TypePyPi, Name: req.Name, Version: req.Constraint}) {
		return nil
	}
	return []*extractor.Package{{
		Name:     req.Name,
		Version:  req.Constraint,
		PURLType: purl.TypePyPi,
		Locations: []*extractor.SourceLocation{{
			FilePath:    fpath,
			Line:        node.Line,
			Declaration: decl,
			FileType:    extractor.FileTypeCondaEnv,
		}},
		Extras:            req.Extras,
		EnvironmentMarker: req.Marker,
		Editable:          req.Editable,
		URL:               req.URL,
	}}
}

// splitCondaSpec splits a conda package spec at its version delimiter. Conda
// pins use a single "=" (name=version=build); pip-style comparators also
// appear in channel specs and are kept as part of the version.
func splitCondaSpec(spec string) (name, version string) {
	for _, comp := range []string{">=", "<=", "==", "!=", ">", "<"} {
		if before, after, found := strings.Cut(spec, comp); found {
			return strings.TrimSpace(before), comp + strings.TrimSpace(after)
		}
	}
	parts := strings.Split(spec, "=")
	name = strings.TrimSpace(parts[0])
	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		return name, strings.TrimSpace(parts[1])
	}
	return name, "latest"
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

var _ filesystem.Extractor = Extractor{}
