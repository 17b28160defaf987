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

// Package composefile extracts service images from Docker Compose files.
package composefile

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem"
	"github.com/depscout/depscout/extractor/filesystem/internal/units"
	"github.com/depscout/depscout/inventory"
	"github.com/depscout/depscout/log"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/policy"
	"github.com/depscout/depscout/purl"
	"github.com/depscout/depscout/stats"
)

const (
	// Name is the unique name of this extractor.
	Name = "containers/composefile"

	// DefaultMaxFileSizeBytes is the default maximum file size the extractor
	// will attempt to extract. If a file is encountered that is larger than
	// this limit, the file is ignored by `FileRequired`.
	DefaultMaxFileSizeBytes = 1 * units.MiB
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
		MaxFileSizeBytes: DefaultMaxFileSizeBytes,
		Policy:           policy.NewDefault(),
	}
}

// Extractor extracts service images from Docker Compose files.
type Extractor struct {
	stats            stats.Collector
	maxFileSizeBytes int64
	policy           *policy.Policy
}

// New returns a Compose file extractor.
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

// FileRequired returns true for Compose file names: compose.yml/.yaml and
// docker-compose.yml/.yaml including override variants like
// docker-compose.prod.yml.
func (e Extractor) FileRequired(api filesystem.FileAPI) bool {
	p := api.Path()
	fileName := filepath.Base(p)
	ext := filepath.Ext(fileName)
	if ext != ".yml" && ext != ".yaml" {
		return false
	}
	baseName := strings.TrimSuffix(fileName, ext)
	if baseName != "compose" && !strings.HasPrefix(baseName, "docker-compose") {
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

// Extract extracts service images from Compose files passed through the scan
// input.
func (e Extractor) Extract(ctx context.Context, input *filesystem.ScanInput) (inventory.Inventory, error) {
	pkgs, err := e.extract(ctx, input)
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

func (e Extractor) extract(ctx context.Context, input *filesystem.ScanInput) ([]*extractor.Package, error) {
	data, err := io.ReadAll(input.Reader)
	if err != nil {
		return nil, err
	}

	details := types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{Filename: "in-memory.yaml", Content: data},
		},
	}
	// Compose files rarely carry a top-level name key, but the loader
	// requires a project name to be set.
	project, err := loader.LoadWithContext(ctx, details, func(o *loader.Options) {
		o.SetProjectName("depscout", true)
	})
	if err != nil {
		return nil, fmt.Errorf("could not extract from %s: %w", input.Path, err)
	}

	uniq := map[string]bool{}
	var images []string
	for _, s := range project.Services {
		if s.Image == "" {
			if s.Build != nil {
				// Local build contexts have no resolvable image reference.
				log.Debugf("composefile: service %q uses a build context, skipping", s.Name)
			}
			continue
		}
		if !uniq[s.Image] {
			uniq[s.Image] = true
			images = append(images, s.Image)
		}
	}
	sort.Strings(images)

	fpath := filepath.ToSlash(input.Path)
	lines := strings.Split(string(data), "\n")

	var pkgs []*extractor.Package
	for _, image := range images {
		name, version := parseImageRef(image)
		if !e.policy.Include(policy.Candidate{PURLType: purl.TypeDocker, Name: name, Version: version}) {
			continue
		}
		line, decl := imageLocation(lines, image)
		pkgs = append(pkgs, &extractor.Package{
			Name:     name,
			Version:  version,
			PURLType: purl.TypeDocker,
			Locations: []*extractor.SourceLocation{{
				FilePath:    fpath,
				Line:        line,
				Declaration: decl,
				FileType:    extractor.FileTypeDockerCompose,
			}},
		})
	}

	return pkgs, nil
}

// parseImageRef splits an image reference into name and version. The tag
// separator is the last colon after the last slash so registry ports are not
// mistaken for tags. Digest-only references resolve to "latest".
func parseImageRef(image string) (name, version string) {
	if i := strings.IndexByte(image, '@'); i >= 0 {
		image = image[:i]
	}
	if i := strings.LastIndexByte(image, ':'); i > strings.LastIndexByte(image, '/') {
		return image[:i], image[i+1:]
	}
	return image, "latest"
}

// imageLocation finds the first source line declaring the given image. The
// loader drops positions, so the literal is located in the raw file instead.
func imageLocation(lines []string, image string) (int, string) {
	for i, l := range lines {
		trimmed := strings.TrimSpace(l)
		rest, ok := strings.CutPrefix(trimmed, "image:")
		if !ok {
			continue
		}
		if strings.Trim(strings.TrimSpace(rest), `"'`) == image {
			return i + 1, trimmed
		}
	}
	return 1, ""
}

var _ filesystem.Extractor = Extractor{}
