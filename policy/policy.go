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

// Package policy decides whether a discovered dependency candidate becomes a
// reportable package. All extractors consult the same policy before emitting
// a package, so development and build tooling is filtered in one place
// instead of inside each parser.
package policy

import (
	"strings"

	"bitbucket.org/creachadair/stringset"
	"github.com/depscout/depscout/log"
	"github.com/depscout/depscout/purl"
)

var (
	// baseIndicators flags names that look like development or test tooling
	// regardless of ecosystem.
	baseIndicators = []string{"test", "dev", "debug", "mock", "stub", "example", "sample", "demo"}

	// pythonAllow lists packaging and coverage tools that are reported even
	// when a built-in rule matches them. pytest is deliberately absent, so a
	// requirement list declaring it reports runtime dependencies only.
	pythonAllow = stringset.New("coverage", "tox", "setuptools", "wheel", "twine", "build")

	// pythonDeny lists pure code-formatting and linting tools.
	pythonDeny = stringset.New("black", "flake8", "mypy", "pylint", "pre-commit", "isort", "autopep8")

	javascriptDeny = stringset.New(
		"webpack", "babel", "eslint", "prettier", "jest", "mocha",
		"chai", "sinon", "karma", "jasmine", "typescript", "ts-node",
		"nodemon", "concurrently", "cross-env", "rimraf", "husky",
		"lint-staged", "parcel", "rollup", "vite",
	)

	// javascriptDenyPatterns matches bundler and transpiler plugin names
	// anywhere in the package name, not only as a prefix.
	javascriptDenyPatterns = []string{"webpack-", "babel-", "eslint-", "@babel/", "@webpack/"}

	// containerUtilityDeny lists base-image utilities that nearly every
	// build file installs and that would otherwise drown out the packages a
	// reader actually cares about.
	containerUtilityDeny = stringset.New(
		"curl", "wget", "ca-certificates", "gnupg", "lsb-release",
		"apt-transport-https", "software-properties-common",
		"build-essential", "make", "gcc", "g++", "git",
	)
)

// Candidate is a dependency declaration an extractor found, before it
// becomes a reportable package.
type Candidate struct {
	// PURLType is the package-url type the extractor would assign to the
	// package, e.g. purl.TypePyPi. It selects the ecosystem rule set.
	PURLType string
	Name     string
	Version  string
	// DevGroup is set when the declaration came from a development-only
	// dependency group such as devDependencies.
	DevGroup bool
}

// Config allows callers to widen or narrow the built-in rule tables.
type Config struct {
	// ExtraExcluded lists package names that are dropped in every ecosystem
	// in addition to the built-in rules.
	ExtraExcluded []string
	// ExtraAllowed lists package names that are always reported, even when a
	// built-in rule or an extra exclusion matches them.
	ExtraAllowed []string
}

// DefaultConfig returns a config with only the built-in rules active.
func DefaultConfig() Config { return Config{} }

// Policy applies the inclusion rules for all ecosystems.
type Policy struct {
	extraExcluded stringset.Set
	extraAllowed  stringset.Set
}

// New returns a Policy with the given user overrides on top of the built-in
// rule tables.
func New(cfg Config) *Policy {
	return &Policy{
		extraExcluded: stringset.New(normalizeNames(cfg.ExtraExcluded)...),
		extraAllowed:  stringset.New(normalizeNames(cfg.ExtraAllowed)...),
	}
}

// NewDefault returns a Policy with only the built-in rule tables.
func NewDefault() *Policy { return New(DefaultConfig()) }

// Include reports whether the candidate should become a reportable package.
// Candidates with an empty name or version fail validation and are dropped
// silently, they are not an error.
func (p *Policy) Include(c Candidate) bool {
	name := strings.ToLower(strings.TrimSpace(c.Name))
	if name == "" || strings.TrimSpace(c.Version) == "" {
		return false
	}
	if p.extraAllowed.Contains(name) {
		return true
	}
	if p.extraExcluded.Contains(name) {
		log.Debugf("policy: excluding %q per user exclusion", c.Name)
		return false
	}
	switch c.PURLType {
	case purl.TypePyPi, purl.TypeConda:
		return includePython(name)
	case purl.TypeNPM:
		return includeJavascript(name, c.DevGroup)
	case purl.TypeDebian, purl.TypeRPM, purl.TypeApk:
		return includeContainerPackage(name)
	default:
		return !matchesBaseIndicator(name)
	}
}

func includePython(name string) bool {
	if pythonAllow.Contains(name) {
		return true
	}
	if matchesBaseIndicator(name) {
		log.Debugf("policy: excluding development package %q", name)
		return false
	}
	return !pythonDeny.Contains(name)
}

func includeJavascript(name string, devGroup bool) bool {
	if devGroup {
		return false
	}
	if matchesBaseIndicator(name) {
		return false
	}
	if javascriptDeny.Contains(name) {
		return false
	}
	if strings.HasPrefix(name, "@types/") {
		return false
	}
	for _, pattern := range javascriptDenyPatterns {
		if strings.Contains(name, pattern) {
			return false
		}
	}
	return true
}

func includeContainerPackage(name string) bool {
	if matchesBaseIndicator(name) {
		return false
	}
	return !containerUtilityDeny.Contains(name)
}

func matchesBaseIndicator(name string) bool {
	for _, indicator := range baseIndicators {
		if strings.Contains(name, indicator) {
			return true
		}
	}
	return false
}

func normalizeNames(names []string) []string {
	result := make([]string, 0, len(names))
	for _, n := range names {
		result = append(result, strings.ToLower(strings.TrimSpace(n)))
	}
	return result
}

// NormalizeVersion strips a leading constraint operator, an environment
// marker suffix and surrounding quotes from a version string. Extractors
// keep the raw constraint in the package's version field and use this only
// where a bare version is needed for comparison.
func NormalizeVersion(version string) string {
	v := strings.TrimSpace(version)
	for _, op := range []string{">=", "<=", "==", "!=", "~=", ">", "<", "^", "~"} {
		if strings.HasPrefix(v, op) {
			v = strings.TrimSpace(v[len(op):])
		}
	}
	if i := strings.Index(v, ";"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	return strings.Trim(v, `"'`)
}
