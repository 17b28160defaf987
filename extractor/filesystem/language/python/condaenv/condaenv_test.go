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

package condaenv_test

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem"
	"github.com/depscout/depscout/extractor/filesystem/internal/units"
	"github.com/depscout/depscout/extractor/filesystem/language/python/condaenv"
	"github.com/depscout/depscout/extractor/filesystem/simplefileapi"
	"github.com/depscout/depscout/inventory"
	"github.com/depscout/depscout/purl"
	"github.com/depscout/depscout/stats"
	"github.com/depscout/depscout/testing/extracttest"
	"github.com/depscout/depscout/testing/fakefs"
	"github.com/depscout/depscout/testing/testcollector"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestFileRequired(t *testing.T) {
	tests := []struct {
		name             string
		path             string
		fileSizeBytes    int64
		maxFileSizeBytes int64
		wantRequired     bool
		wantResultMetric stats.FileRequiredResult
	}{
		{
			name:             "environment.yml",
			path:             "environment.yml",
			wantRequired:     true,
			wantResultMetric: stats.FileRequiredResultOK,
		},
		{
			name:             "environment.yaml",
			path:             "ml/environment.yaml",
			wantRequired:     true,
			wantResultMetric: stats.FileRequiredResultOK,
		},
		{
			name:             "conda.yml",
			path:             "conda.yml",
			wantRequired:     true,
			wantResultMetric: stats.FileRequiredResultOK,
		},
		{
			name:         "other yaml file",
			path:         "docker-compose.yml",
			wantRequired: false,
		},
		{
			name:             "environment.yml not required if file size > max file size",
			path:             "environment.yml",
			fileSizeBytes:    1000 * units.KiB,
			maxFileSizeBytes: 100 * units.KiB,
			wantRequired:     false,
			wantResultMetric: stats.FileRequiredResultSizeLimitExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := testcollector.New()
			var e filesystem.Extractor = condaenv.New(condaenv.Config{
				Stats:            collector,
				MaxFileSizeBytes: tt.maxFileSizeBytes,
			})

			fileSizeBytes := tt.fileSizeBytes
			if fileSizeBytes == 0 {
				fileSizeBytes = 100 * units.KiB
			}

			if got := e.FileRequired(simplefileapi.New(tt.path, fakefs.FakeFileInfo{
				FileName: filepath.Base(tt.path),
				FileMode: fs.ModePerm,
				FileSize: fileSizeBytes,
			})); got != tt.wantRequired {
				t.Fatalf("FileRequired(%s): got %v, want %v", tt.path, got, tt.wantRequired)
			}

			gotResultMetric := collector.FileRequiredResult(tt.path)
			if gotResultMetric != tt.wantResultMetric {
				t.Errorf("FileRequired(%s) recorded result metric %v, want result metric %v", tt.path, gotResultMetric, tt.wantResultMetric)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	tests := []extracttest.TestTableEntry{
		{
			Name: "conda dependencies with pip sub-list",
			InputConfig: extracttest.ScanInputMockConfig{
				Path: "testdata/environment.yml",
			},
			WantPackages: []*extractor.Package{
				{
					Name:     "python",
					Version:  "3.11",
					PURLType: purl.TypeConda,
					Locations: []*extractor.SourceLocation{{
						FilePath:    "testdata/environment.yml",
						Line:        6,
						Declaration: "python=3.11",
						FileType:    extractor.FileTypeCondaEnv,
					}},
				},
				{
					Name:     "numpy",
					Version:  "1.24.3",
					PURLType: purl.TypeConda,
					Locations: []*extractor.SourceLocation{{
						FilePath:    "testdata/environment.yml",
						Line:        7,
						Declaration: "numpy=1.24.3",
						FileType:    extractor.FileTypeCondaEnv,
					}},
				},
				{
					Name:     "pandas",
					Version:  ">=2.0",
					PURLType: purl.TypeConda,
					Locations: []*extractor.SourceLocation{{
						FilePath:    "testdata/environment.yml",
						Line:        8,
						Declaration: "pandas>=2.0",
						FileType:    extractor.FileTypeCondaEnv,
					}},
				},
				{
					Name:     "scipy",
					Version:  "latest",
					PURLType: purl.TypeConda,
					Locations: []*extractor.SourceLocation{{
						FilePath:    "testdata/environment.yml",
						Line:        9,
						Declaration: "scipy",
						FileType:    extractor.FileTypeCondaEnv,
					}},
				},
				{
					Name:     "pip",
					Version:  "latest",
					PURLType: purl.TypeConda,
					Locations: []*extractor.SourceLocation{{
						FilePath:    "testdata/environment.yml",
						Line:        10,
						Declaration: "pip",
						FileType:    extractor.FileTypeCondaEnv,
					}},
				},
				{
					Name:     "requests",
					Version:  "==2.28.0",
					PURLType: purl.TypePyPi,
					Locations: []*extractor.SourceLocation{{
						FilePath:    "testdata/environment.yml",
						Line:        12,
						Declaration: "requests==2.28.0",
						FileType:    extractor.FileTypeCondaEnv,
					}},
				},
				{
					Name:     "flask",
					Version:  "latest",
					PURLType: purl.TypePyPi,
					Locations: []*extractor.SourceLocation{{
						FilePath:    "testdata/environment.yml",
						Line:        13,
						Declaration: "flask",
						FileType:    extractor.FileTypeCondaEnv,
					}},
				},
			},
		},
		{
			Name: "invalid yaml",
			InputConfig: extracttest.ScanInputMockConfig{
				Path: "testdata/invalid.yml",
			},
			WantErr: extracttest.ContainsErrStr{Str: "could not extract from"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			extr := condaenv.NewDefault()

			scanInput := extracttest.GenerateScanInputMock(t, tt.InputConfig)
			defer extracttest.CloseTestScanInput(t, scanInput)

			got, err := extr.Extract(context.Background(), &scanInput)

			if diff := cmp.Diff(tt.WantErr, err, cmpopts.EquateErrors()); diff != "" {
				t.Errorf("%s.Extract(%q) error diff (-want +got):\n%s", extr.Name(), tt.InputConfig.Path, diff)
				return
			}

			wantInv := inventory.Inventory{Packages: tt.WantPackages}
			if diff := cmp.Diff(wantInv, got, cmpopts.SortSlices(extracttest.PackageCmpLess)); diff != "" {
				t.Errorf("%s.Extract(%q) diff (-want +got):\n%s", extr.Name(), tt.InputConfig.Path, diff)
			}
		})
	}
}
