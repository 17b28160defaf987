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

package depscout_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	depscout "github.com/depscout/depscout"
	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem"
	"github.com/depscout/depscout/extractor/filesystem/language/python/pyproject"
	"github.com/depscout/depscout/extractor/filesystem/language/python/requirements"
	depscoutfs "github.com/depscout/depscout/fs"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/purl"
	"github.com/depscout/depscout/version"
	"github.com/google/go-cmp/cmp"
)

const requirementsTxt = `requests>=2.28.0
flask==2.3.2
`

const pyprojectTOML = `[project]
name = "demo"
version = "0.1.0"
dependencies = [
    "requests>=2.28.0",
]
`

func setupScanDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmp, "requirements.txt"), []byte(requirementsTxt), 0644); err != nil {
		t.Fatalf("writing requirements.txt: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "pyproject.toml"), []byte(pyprojectTOML), 0644); err != nil {
		t.Fatalf("writing pyproject.toml: %v", err)
	}
	return tmp
}

func TestScanMergesAcrossFiles(t *testing.T) {
	tmp := setupScanDir(t)

	cfg := &depscout.ScanConfig{
		Extractors: []filesystem.Extractor{
			requirements.NewDefault(),
			pyproject.NewDefault(),
		},
		ScanRoots:      depscoutfs.RealFSScanRoots(tmp),
		PathsToExtract: []string{"requirements.txt", "pyproject.toml"},
	}

	result := depscout.New().Scan(context.Background(), cfg)

	if result.Status.Status != plugin.ScanStatusSucceeded {
		t.Fatalf("Scan() status %v, want succeeded (reason: %s)", result.Status.Status, result.Status.FailureReason)
	}
	if result.Version != version.ScannerVersion {
		t.Errorf("Scan() result version %q, want %q", result.Version, version.ScannerVersion)
	}

	// Packages come back in first-observation order: requirements.txt is
	// extracted first, so requests (line 1) precedes flask (line 2).
	wantPkgs := []*extractor.Package{
		{
			Name:     "requests",
			Version:  ">=2.28.0",
			PURLType: purl.TypePyPi,
			Locations: []*extractor.SourceLocation{
				{
					FilePath:    "requirements.txt",
					Line:        1,
					Declaration: "requests>=2.28.0",
					FileType:    extractor.FileTypeRequirements,
				},
				{
					FilePath:    "pyproject.toml",
					Line:        5,
					Declaration: `"requests>=2.28.0",`,
					FileType:    extractor.FileTypePyprojectTOML,
				},
			},
			Plugins:  []string{"python/requirements", "python/pyproject"},
			Metadata: &requirements.Metadata{VersionComparator: ">="},
		},
		{
			Name:     "flask",
			Version:  "==2.3.2",
			PURLType: purl.TypePyPi,
			Locations: []*extractor.SourceLocation{{
				FilePath:    "requirements.txt",
				Line:        2,
				Declaration: "flask==2.3.2",
				FileType:    extractor.FileTypeRequirements,
			}},
			Plugins:  []string{"python/requirements"},
			Metadata: &requirements.Metadata{VersionComparator: "=="},
		},
	}

	if diff := cmp.Diff(wantPkgs, result.Inventory.Packages); diff != "" {
		t.Errorf("Scan() packages diff (-want +got):\n%s", diff)
	}
}

func TestScanFilesystemWalk(t *testing.T) {
	tmp := setupScanDir(t)

	cfg := &depscout.ScanConfig{
		Extractors: []filesystem.Extractor{
			requirements.NewDefault(),
			pyproject.NewDefault(),
		},
		ScanRoots: depscoutfs.RealFSScanRoots(tmp),
	}

	result := depscout.New().Scan(context.Background(), cfg)

	if result.Status.Status != plugin.ScanStatusSucceeded {
		t.Fatalf("Scan() status %v, want succeeded (reason: %s)", result.Status.Status, result.Status.FailureReason)
	}
	// requests merges into one package, flask stays separate.
	if len(result.Inventory.Packages) != 2 {
		t.Fatalf("Scan() found %d packages, want 2", len(result.Inventory.Packages))
	}
	var requests *extractor.Package
	for _, pkg := range result.Inventory.Packages {
		if pkg.Name == "requests" {
			requests = pkg
		}
	}
	if requests == nil || len(requests.Locations) != 2 {
		t.Errorf("Scan() merged packages = %v, want requests with 2 locations", result.Inventory.Packages)
	}
}

func TestScanConfigErrors(t *testing.T) {
	tmp := t.TempDir()
	tests := []struct {
		name string
		cfg  *depscout.ScanConfig
	}{
		{
			name: "no extractors",
			cfg: &depscout.ScanConfig{
				ScanRoots: depscoutfs.RealFSScanRoots(tmp),
			},
		},
		{
			name: "no scan root",
			cfg: &depscout.ScanConfig{
				Extractors: []filesystem.Extractor{requirements.NewDefault()},
			},
		},
		{
			name: "explicit paths with several roots",
			cfg: &depscout.ScanConfig{
				Extractors:     []filesystem.Extractor{requirements.NewDefault()},
				ScanRoots:      append(depscoutfs.RealFSScanRoots(tmp), depscoutfs.RealFSScanRoot(tmp)),
				PathsToExtract: []string{"requirements.txt"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := depscout.New().Scan(context.Background(), tt.cfg)
			if result.Status.Status != plugin.ScanStatusFailed {
				t.Errorf("Scan() status %v, want failed", result.Status.Status)
			}
			if result.Status.FailureReason == "" {
				t.Errorf("Scan() failure reason empty, want an error message")
			}
		})
	}
}
