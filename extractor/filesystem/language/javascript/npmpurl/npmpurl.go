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

// Package npmpurl converts NPM package details into an NPM PackageURL.
package npmpurl

import (
	"strings"

	"github.com/depscout/depscout/purl"
)

// MakePackageURL returns a package URL following the purl NPM spec with
// lowercase package names. Scoped packages like @angular/core store the
// scope in the purl namespace.
func MakePackageURL(name string, version string) *purl.PackageURL {
	name = strings.ToLower(name)
	namespace := ""
	if strings.HasPrefix(name, "@") {
		if scope, pkg, ok := strings.Cut(name, "/"); ok {
			namespace = scope
			name = pkg
		}
	}
	return &purl.PackageURL{
		Type:      purl.TypeNPM,
		Namespace: namespace,
		Name:      name,
		Version:   version,
	}
}
