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

// Package inventory stores the scan result types depscout can return.
package inventory

import (
	"slices"

	"github.com/depscout/depscout/extractor"
)

// Inventory stores the packages that a scan found.
type Inventory struct {
	Packages []*extractor.Package
}

// Append adds one or more inventories to the current one.
func (i *Inventory) Append(other ...Inventory) {
	for _, o := range other {
		i.Packages = append(i.Packages, o.Packages...)
	}
}

// IsEmpty returns true if there are no packages in this Inventory.
func (i Inventory) IsEmpty() bool {
	return len(i.Packages) == 0
}

type mergeKey struct {
	normalizedName string
	version        string
}

// Merge folds the Inventory's packages into a de-duplicated list keyed by
// (normalized name, version). The first occurrence of a key determines the
// position of the merged package, so the result is ordered by first
// observation. Source locations of later duplicates are appended to the
// first-seen package; a location identical in file path and line to one
// already recorded is not added again.
func (i Inventory) Merge() Inventory {
	merged := map[mergeKey]*extractor.Package{}
	var result []*extractor.Package
	for _, pkg := range i.Packages {
		k := mergeKey{normalizedName: pkg.NormalizedName(), version: pkg.Version}
		existing, ok := merged[k]
		if !ok {
			merged[k] = pkg
			result = append(result, pkg)
			continue
		}
		mergeInto(existing, pkg)
	}
	return Inventory{Packages: result}
}

// mergeInto folds a duplicate package into the first-seen one. Locations are
// concatenated in discovery order, scalar fields keep the first non-empty
// value seen.
func mergeInto(dst, src *extractor.Package) {
	for _, loc := range src.Locations {
		if !containsLocation(dst.Locations, loc) {
			dst.Locations = append(dst.Locations, loc)
		}
	}
	for _, p := range src.Plugins {
		if !slices.Contains(dst.Plugins, p) {
			dst.Plugins = append(dst.Plugins, p)
		}
	}
	for _, e := range src.Extras {
		if !slices.Contains(dst.Extras, e) {
			dst.Extras = append(dst.Extras, e)
		}
	}
	if dst.EnvironmentMarker == "" {
		dst.EnvironmentMarker = src.EnvironmentMarker
	}
	if dst.URL == "" {
		dst.URL = src.URL
	}
	dst.Editable = dst.Editable || src.Editable
}

func containsLocation(locations []*extractor.SourceLocation, loc *extractor.SourceLocation) bool {
	for _, l := range locations {
		if l.FilePath == loc.FilePath && l.Line == loc.Line {
			return true
		}
	}
	return false
}
