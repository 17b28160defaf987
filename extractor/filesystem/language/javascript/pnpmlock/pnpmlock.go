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

// Package pnpmlock extracts resolved package versions from pnpm-lock.yaml
// lockfiles.
package pnpmlock

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem"
	"github.com/depscout/depscout/inventory"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/policy"
	"github.com/depscout/depscout/purl"
	"github.com/depscout/depscout/stats"
	"gopkg.in/yaml.v3"
)

const (
	// Name is the unique name of this extractor.
	Name = "javascript/pnpmlock"
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

// Extractor extracts javascript packages from pnpm-lock.yaml files.
type Extractor struct {
	stats            stats.Collector
	maxFileSizeBytes int64
	policy           *policy.Policy
}

// New returns a pnpm-lock.yaml extractor.
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

// FileRequired returns true if the specified file is a pnpm-lock.yaml file.
func (e Extractor) FileRequired(api filesystem.FileAPI) bool {
	p := api.Path()
	if filepath.Base(p) != "pnpm-lock.yaml" {
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

// Extract extracts packages from pnpm-lock.yaml files passed through the
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
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nil
	}

	fpath := filepath.ToSlash(input.Path)
	var pkgs []*extractor.Package

	// The flat dependency maps carry the ranges the manifest requested.
	pkgs = append(pkgs, e.depMap(mappingValue(root, "dependencies"), false, fpath)...)
	pkgs = append(pkgs, e.depMap(mappingValue(root, "devDependencies"), true, fpath)...)

	// The packages map carries every resolved package in the store,
	// including transitive dependencies.
	if packages := mappingValue(root, "packages"); packages != nil && packages.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(packages.Content); i += 2 {
			keyNode := packages.Content[i]
			name, version := splitPackageKey(keyNode.Value)
			pkgs = append(pkgs, e.pkg(name, version, false, keyNode.Line, keyNode.Value+":", fpath)...)
		}
	}

	return pkgs, nil
}

// depMap extracts a top-level name → version map. Values are either a plain
// resolved version (lockfile v5) or a {specifier, version} mapping (v6+).
func (e Extractor) depMap(node *yaml.Node, dev bool, fpath string) []*extractor.Package {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	var pkgs []*extractor.Package
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		name := keyNode.Value

		var version string
		switch valueNode.Kind {
		case yaml.ScalarNode:
			version = valueNode.Value
		case yaml.MappingNode:
			if v := mappingValue(valueNode, "version"); v != nil {
				version = v.Value
			}
		}
		version = trimPeerSuffix(version)

		decl := fmt.Sprintf("%s: %s", name, version)
		pkgs = append(pkgs, e.pkg(name, version, dev, keyNode.Line, decl, fpath)...)
	}
	return pkgs
}

func (e Extractor) pkg(name, version string, dev bool, line int, decl, fpath string) []*extractor.Package {
	if name == "" || version == "" {
		return nil
	}
	if !e.policy.Include(policy.Candidate{PURLType: purl.TypeNPM, Name: name, Version: version, DevGroup: dev}) {
		return nil
	}
	return []*extractor.Package{{
		Name:     name,
		Version:  version,
		PURLType: purl.TypeNPM,
		Locations: []*extractor.SourceLocation{{
			FilePath:    fpath,
			Line:        line,
			Declaration: decl,
			FileType:    extractor.FileTypePnpmLock,
		}},
	}}
}

// splitPackageKey splits a packages-map key into name and version. Keys come
// as /name/version or /@scope/name/version (v5) and /name@version or
// /@scope/name@version (v6+, with the leading slash dropped in v9).
// Parenthesized peer-dependency suffixes are not part of the version.
func splitPackageKey(key string) (name, version string) {
	key = trimPeerSuffix(strings.TrimPrefix(key, "/"))

	if i := strings.LastIndex(key, "@"); i > 0 {
		return key[:i], key[i+1:]
	}
	if i := strings.LastIndex(key, "/"); i > 0 {
		return key[:i], key[i+1:]
	}
	return "", ""
}

func trimPeerSuffix(s string) string {
	if i := strings.IndexByte(s, '('); i >= 0 {
		return s[:i]
	}
	return s
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
