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

// Package extractor provides the common interface for extraction plugins
// and the package representation they produce.
package extractor

import (
	"strings"

	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/purl"
)

// Extractor is the common interface of dependency extraction plugins.
type Extractor interface {
	plugin.Plugin
}

// FileType identifies the kind of manifest file a declaration was found in.
// The set is closed: a file that matches none of these is never routed to a
// parser and never contributes source locations.
type FileType string

// FileType values, one per recognized manifest format.
const (
	FileTypeRequirements    FileType = "requirements"
	FileTypePyprojectTOML   FileType = "pyproject-toml"
	FileTypeSetupPy         FileType = "setup-py"
	FileTypeSetupCfg        FileType = "setup-cfg"
	FileTypePipfile         FileType = "pipfile"
	FileTypePoetryLock      FileType = "poetry-lock"
	FileTypeUVLock          FileType = "uv-lock"
	FileTypeCondaEnv        FileType = "conda-env"
	FileTypePackageJSON     FileType = "package-json"
	FileTypeYarnLock        FileType = "yarn-lock"
	FileTypePackageLockJSON FileType = "package-lock-json"
	FileTypePnpmLock        FileType = "pnpm-lock"
	FileTypeDockerfile      FileType = "dockerfile"
	FileTypeDockerCompose   FileType = "docker-compose"
)

// SourceLocation records exactly where one declaration of a package was
// found. A package keeps one SourceLocation per declaring file:line, never
// truncated or sampled.
type SourceLocation struct {
	// The path of the file containing the declaration. Absolute when the scan
	// root has a real location on disk.
	FilePath string
	// The 1-indexed line number of the declaration within the file.
	Line int
	// The raw declaration text with surrounding whitespace trimmed.
	Declaration string
	// The kind of manifest the declaration was found in.
	FileType FileType
}

// Package is an instance of a software package or library found by an extractor.
type Package struct {
	// A human-readable name representation of the package.
	Name string
	// The version of this package. In manifests this is the raw constraint
	// expression (or "latest" when unconstrained), in lockfiles a concrete
	// version. It is never resolved against a registry.
	Version string
	// The type of PURL representing this package's ecosystem.
	PURLType string
	// Every location where this exact (name, version) pair was declared, in
	// discovery order.
	Locations []*SourceLocation
	// Optional extras requested for the package, e.g. requests[security].
	Extras []string
	// Optional environment marker constraining where the dependency applies,
	// e.g. python_version < "3.11".
	EnvironmentMarker string
	// Whether the package was declared as an editable install.
	Editable bool
	// The source URL for packages declared via direct URL or VCS references.
	URL string
	// The names of the plugins that found this package. Set by the core library.
	Plugins []string
	// The additional data found in the manifest entry.
	Metadata any
}

// NormalizedName returns the case-folded, whitespace-trimmed form of the
// package name used for de-duplication.
func (p *Package) NormalizedName() string {
	return strings.ToLower(strings.TrimSpace(p.Name))
}

// PURL computes the package URL of the package.
func (p *Package) PURL() *purl.PackageURL {
	return toPURL(p)
}
