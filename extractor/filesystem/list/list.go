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

// Package list provides a public list of the available extraction plugins.
package list

import (
	"fmt"
	"maps"
	"slices"

	"github.com/depscout/depscout/extractor/filesystem"
	"github.com/depscout/depscout/extractor/filesystem/containers/composefile"
	"github.com/depscout/depscout/extractor/filesystem/containers/dockerfile"
	"github.com/depscout/depscout/extractor/filesystem/language/javascript/packagejson"
	"github.com/depscout/depscout/extractor/filesystem/language/javascript/packagelockjson"
	"github.com/depscout/depscout/extractor/filesystem/language/javascript/pnpmlock"
	"github.com/depscout/depscout/extractor/filesystem/language/javascript/yarnlock"
	"github.com/depscout/depscout/extractor/filesystem/language/python/condaenv"
	"github.com/depscout/depscout/extractor/filesystem/language/python/pipfile"
	"github.com/depscout/depscout/extractor/filesystem/language/python/poetrylock"
	"github.com/depscout/depscout/extractor/filesystem/language/python/pyproject"
	"github.com/depscout/depscout/extractor/filesystem/language/python/requirements"
	"github.com/depscout/depscout/extractor/filesystem/language/python/setup"
	"github.com/depscout/depscout/extractor/filesystem/language/python/setupcfg"
	"github.com/depscout/depscout/extractor/filesystem/language/python/uvlock"
	"github.com/depscout/depscout/plugin"
)

// InitFn is the extractor initializer function.
type InitFn func() filesystem.Extractor

// InitMap is a map of extractor names to their initers.
type InitMap map[string][]InitFn

var (
	// PythonSource extractors cover Python manifests and lockfiles.
	PythonSource = InitMap{
		requirements.Name: {requirements.NewDefault},
		pyproject.Name:    {pyproject.NewDefault},
		setup.Name:        {setup.NewDefault},
		setupcfg.Name:     {setupcfg.NewDefault},
		pipfile.Name:      {pipfile.NewDefault},
		poetrylock.Name:   {poetrylock.NewDefault},
		uvlock.Name:       {uvlock.NewDefault},
		condaenv.Name:     {condaenv.NewDefault},
	}
	// JavascriptSource extractors cover npm manifests and lockfiles.
	JavascriptSource = InitMap{
		packagejson.Name:     {packagejson.NewDefault},
		packagelockjson.Name: {packagelockjson.NewDefault},
		yarnlock.Name:        {yarnlock.NewDefault},
		pnpmlock.Name:        {pnpmlock.NewDefault},
	}
	// Containers extractors cover container build and deployment manifests.
	Containers = InitMap{
		dockerfile.Name:  {dockerfile.NewDefault},
		composefile.Name: {composefile.NewDefault},
	}

	// Default extractors that are recommended to be enabled.
	Default = concat(
		PythonSource,
		JavascriptSource,
		Containers,
	)
	// All extractors available from depscout.
	All = concat(
		PythonSource,
		JavascriptSource,
		Containers,
	)

	extractorNames = concat(All, InitMap{
		// Ecosystems.
		"python":     vals(PythonSource),
		"javascript": vals(JavascriptSource),
		"containers": vals(Containers),

		// Collections.
		"default": vals(Default),
		"all":     vals(All),
	})
)

func concat(initMaps ...InitMap) InitMap {
	result := InitMap{}
	for _, m := range initMaps {
		maps.Copy(result, m)
	}
	return result
}

func vals(initMap InitMap) []InitFn {
	return slices.Concat(slices.Collect(maps.Values(initMap))...)
}

// FromCapabilities returns all extractors that can run under the specified
// capabilities (OS, direct filesystem access, network access, etc.) of the
// scanning environment.
func FromCapabilities(capabs *plugin.Capabilities) []filesystem.Extractor {
	all := []filesystem.Extractor{}
	for _, initers := range All {
		for _, initer := range initers {
			all = append(all, initer())
		}
	}
	return FilterByCapabilities(all, capabs)
}

// FilterByCapabilities returns all extractors from the given list that can run
// under the specified capabilities (OS, direct filesystem access, network
// access, etc.) of the scanning environment.
func FilterByCapabilities(exs []filesystem.Extractor, capabs *plugin.Capabilities) []filesystem.Extractor {
	result := []filesystem.Extractor{}
	for _, ex := range exs {
		if err := plugin.ValidateRequirements(ex, capabs); err == nil {
			result = append(result, ex)
		}
	}
	return result
}

// ExtractorsFromNames returns a deduplicated list of extractors from a list of names.
func ExtractorsFromNames(names []string) ([]filesystem.Extractor, error) {
	resultMap := make(map[string]filesystem.Extractor)
	for _, n := range names {
		if initers, ok := extractorNames[n]; ok {
			for _, initer := range initers {
				e := initer()
				if _, ok := resultMap[e.Name()]; !ok {
					resultMap[e.Name()] = e
				}
			}
		} else {
			return nil, fmt.Errorf("unknown extractor %q", n)
		}
	}
	result := make([]filesystem.Extractor, 0, len(resultMap))
	for _, e := range resultMap {
		result = append(result, e)
	}
	return result, nil
}

// ExtractorFromName returns a single extractor based on its exact name.
func ExtractorFromName(name string) (filesystem.Extractor, error) {
	initers, ok := extractorNames[name]
	if !ok {
		return nil, fmt.Errorf("unknown extractor %q", name)
	}
	if len(initers) != 1 {
		return nil, fmt.Errorf("not an exact name for an extractor: %s", name)
	}
	e := initers[0]()
	if e.Name() != name {
		return nil, fmt.Errorf("not an exact name for an extractor: %s", name)
	}
	return e, nil
}
