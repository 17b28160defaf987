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

// Package dockerfile extracts base images and packages installed through RUN
// instructions from Dockerfiles.
package dockerfile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem"
	"github.com/depscout/depscout/extractor/filesystem/internal/pipreq"
	"github.com/depscout/depscout/extractor/filesystem/internal/units"
	"github.com/depscout/depscout/inventory"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/policy"
	"github.com/depscout/depscout/purl"
	"github.com/depscout/depscout/stats"
	"github.com/moby/buildkit/frontend/dockerfile/linter"

	mbi "github.com/moby/buildkit/frontend/dockerfile/instructions"
	mbp "github.com/moby/buildkit/frontend/dockerfile/parser"
)

const (
	// Name is the unique name of this extractor.
	Name = "containers/dockerfile"

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

// Extractor extracts container dependencies from Dockerfiles.
type Extractor struct {
	stats            stats.Collector
	maxFileSizeBytes int64
	policy           *policy.Policy
}

// New returns a Dockerfile extractor.
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

// FileRequired returns true for Dockerfile-style file names: Dockerfile,
// Dockerfile.<suffix>, <name>.dockerfile and Containerfile.
func (e Extractor) FileRequired(api filesystem.FileAPI) bool {
	p := api.Path()
	fileName := filepath.Base(p)
	ext := filepath.Ext(fileName)
	baseName := strings.TrimSuffix(fileName, ext)
	lowered := strings.ToLower(baseName)
	if lowered != "dockerfile" && lowered != "containerfile" && strings.ToLower(ext) != ".dockerfile" {
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

// Extract extracts base images and RUN-installed packages from Dockerfiles
// passed through the scan input.
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

	parsed, err := mbp.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("could not extract from %s: %w", input.Path, err)
	}
	stages, metaArgs, err := mbi.Parse(parsed.AST, linter.New(&linter.Config{}))
	if err != nil {
		return nil, fmt.Errorf("could not extract from %s: %w", input.Path, err)
	}

	argsMap := toMap(metaArgs)
	fpath := filepath.ToSlash(input.Path)
	lines := strings.Split(string(data), "\n")

	var pkgs []*extractor.Package
	stageNames := map[string]bool{}
	imagesSeen := map[string]bool{}
	for _, stage := range stages {
		stageNames[stage.Name] = true

		image := resolveArg(stage.BaseName, argsMap)
		if image != "scratch" && !stageNames[stage.BaseName] && !imagesSeen[image] {
			imagesSeen[image] = true
			name, version := parseImageRef(image)
			line := stageLine(stage)
			if e.policy.Include(policy.Candidate{PURLType: purl.TypeDocker, Name: name, Version: version}) {
				pkgs = append(pkgs, &extractor.Package{
					Name:     name,
					Version:  version,
					PURLType: purl.TypeDocker,
					Locations: []*extractor.SourceLocation{{
						FilePath:    fpath,
						Line:        line,
						Declaration: declarationAt(lines, line),
						FileType:    extractor.FileTypeDockerfile,
					}},
				})
			}
		}

		for _, cmd := range stage.Commands {
			run, ok := cmd.(*mbi.RunCommand)
			if !ok {
				continue
			}
			line := commandLine(run.Location())
			for _, installed := range parseRun(strings.Join(run.CmdLine, " ")) {
				if !e.policy.Include(policy.Candidate{PURLType: installed.purlType, Name: installed.name, Version: installed.version}) {
					continue
				}
				pkgs = append(pkgs, &extractor.Package{
					Name:     installed.name,
					Version:  installed.version,
					PURLType: installed.purlType,
					Locations: []*extractor.SourceLocation{{
						FilePath:    fpath,
						Line:        line,
						Declaration: declarationAt(lines, line),
						FileType:    extractor.FileTypeDockerfile,
					}},
				})
			}
		}
	}

	return pkgs, nil
}

// resolveArg substitutes an ARG reference used as a whole FROM value with its
// declared default. References without a default stay as written.
func resolveArg(name string, argsMap map[string]string) string {
	if !strings.HasPrefix(name, "$") {
		return name
	}
	resolved := argsMap[strings.Trim(name, "${}")]
	if resolved == "" {
		return name
	}
	return resolved
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

func toMap(args []mbi.ArgCommand) map[string]string {
	m := make(map[string]string)
	for _, arg := range args {
		for _, kv := range arg.Args {
			if kv.Value != nil {
				m[kv.Key] = *kv.Value
			}
		}
	}
	return m
}

func stageLine(stage mbi.Stage) int {
	return commandLine(stage.Location)
}

func commandLine(loc []mbp.Range) int {
	if len(loc) == 0 {
		return 1
	}
	return loc[0].Start.Line
}

func declarationAt(lines []string, line int) string {
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[line-1])
}

type installedPackage struct {
	name     string
	version  string
	purlType string
}

// managerVerbs maps a package manager command to its install verb and the
// purl type of the packages it manages.
var managerVerbs = map[string]struct {
	verbs    []string
	purlType string
}{
	"apt":      {[]string{"install"}, purl.TypeDebian},
	"apt-get":  {[]string{"install"}, purl.TypeDebian},
	"aptitude": {[]string{"install"}, purl.TypeDebian},
	"yum":      {[]string{"install"}, purl.TypeRPM},
	"dnf":      {[]string{"install"}, purl.TypeRPM},
	"zypper":   {[]string{"install", "in"}, purl.TypeRPM},
	"apk":      {[]string{"add"}, purl.TypeApk},
	"pip":      {[]string{"install"}, purl.TypePyPi},
	"pip3":     {[]string{"install"}, purl.TypePyPi},
	"npm":      {[]string{"install", "i", "add"}, purl.TypeNPM},
	"yarn":     {[]string{"add"}, purl.TypeNPM},
	"pnpm":     {[]string{"add", "install"}, purl.TypeNPM},
}

// parseRun scans a joined RUN command line for package manager install
// invocations. The command is split at shell separators so each manager's
// package list stops at the next chained command.
func parseRun(cmdline string) []installedPackage {
	var pkgs []installedPackage
	for _, segment := range splitShellSegments(cmdline) {
		fields := strings.Fields(segment)
		mgrIdx := -1
		var mgr struct {
			verbs    []string
			purlType string
		}
		for i, f := range fields {
			if m, ok := managerVerbs[f]; ok {
				mgrIdx, mgr = i, m
				break
			}
		}
		if mgrIdx < 0 {
			continue
		}

		verbIdx := -1
		for i := mgrIdx + 1; i < len(fields); i++ {
			f := fields[i]
			if f == "global" || strings.HasPrefix(f, "-") {
				continue
			}
			if slices.Contains(mgr.verbs, f) {
				verbIdx = i
			}
			break
		}
		if verbIdx < 0 {
			continue
		}

		for i := verbIdx + 1; i < len(fields); i++ {
			f := fields[i]
			if strings.HasPrefix(f, "-") {
				if f == "-r" || f == "--requirement" {
					// Requirements files are handled by their own extractor.
					i++
				}
				continue
			}
			if strings.ContainsAny(f, "$`") {
				continue
			}
			if p := parseSpec(f, mgr.purlType); p != nil {
				pkgs = append(pkgs, *p)
			}
		}
	}
	return pkgs
}

func parseSpec(spec, purlType string) *installedPackage {
	name, version := spec, "latest"
	switch purlType {
	case purl.TypeDebian, purl.TypeApk:
		if n, v, ok := strings.Cut(spec, "="); ok {
			name, version = n, v
		}
	case purl.TypeRPM:
		if i := versionDash(spec); i > 0 {
			name, version = spec[:i], spec[i+1:]
		}
	case purl.TypePyPi:
		req := pipreq.Parse(spec)
		if req == nil {
			return nil
		}
		name, version = req.Name, req.Constraint
	case purl.TypeNPM:
		if i := strings.LastIndexByte(spec, '@'); i > 0 {
			name, version = spec[:i], spec[i+1:]
		}
	}
	if name == "" {
		return nil
	}
	return &installedPackage{name: name, version: version, purlType: purlType}
}

// versionDash returns the index of the last dash whose suffix starts with a
// digit, the split point between an rpm package name and its version. Returns
// -1 when the spec carries no version.
func versionDash(spec string) int {
	for i := len(spec) - 2; i > 0; i-- {
		if spec[i] == '-' && spec[i+1] >= '0' && spec[i+1] <= '9' {
			return i
		}
	}
	return -1
}

func splitShellSegments(cmdline string) []string {
	cmdline = strings.ReplaceAll(cmdline, "&&", "\n")
	cmdline = strings.ReplaceAll(cmdline, "||", "\n")
	cmdline = strings.ReplaceAll(cmdline, ";", "\n")
	return strings.Split(cmdline, "\n")
}

var _ filesystem.Extractor = Extractor{}
