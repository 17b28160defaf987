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

package yarnlock_test

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem"
	"github.com/depscout/depscout/extractor/filesystem/internal/units"
	"github.com/depscout/depscout/extractor/filesystem/language/javascript/yarnlock"
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
			name:             "top level yarn.lock",
			path:             "yarn.lock",
			wantRequired:     true,
			wantResultMetric: stats.FileRequiredResultOK,
		},
		{
			name:             "nested yarn.lock",
			path:             "packages/ui/yarn.lock",
			wantRequired:     true,
			wantResultMetric: stats.FileRequiredResultOK,
		},
		{
			name:         "other lock file",
			path:         "package-lock.json",
			wantRequired: false,
		},
		{
			name:             "yarn.lock not required if file size > max file size",
			path:             "yarn.lock",
			fileSizeBytes:    1000 * units.KiB,
			maxFileSizeBytes: 100 * units.KiB,
			wantRequired:     false,
			wantResultMetric: stats.FileRequiredResultSizeLimitExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := testcollector.New()
			var e filesystem.Extractor = yarnlock.New(yarnlock.Config{
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
			Name: "blocks with multiple specifiers collapse to one package",
			InputConfig: extracttest.ScanInputMockConfig{
				Path: "testdata/yarn.lock",
			},
			WantPackages: []*extractor.Package{
				{
					Name:     "lodash",
					Version:  "4.17.21",
					PURLType: purl.TypeNPM,
					Locations: []*extractor.SourceLocation{{
						FilePath:    "testdata/yarn.lock",
						Line:        5,
						Declaration: "lodash@^4.17.19, lodash@^4.17.20:",
						FileType:    extractor.FileTypeYarnLock,
					}},
					Metadata: &yarnlock.Metadata{Ranges: []string{"^4.17.19", "^4.17.20"}},
				},
				{
					Name:     "express",
					Version:  "4.18.2",
					PURLType: purl.TypeNPM,
					Locations: []*extractor.SourceLocation{{
						FilePath:    "testdata/yarn.lock",
						Line:        14,
						Declaration: "express@~4.18.0:",
						FileType:    extractor.FileTypeYarnLock,
					}},
					Metadata: &yarnlock.Metadata{Ranges: []string{"~4.18.0"}},
				},
			},
		},
		{
			Name: "empty file",
			InputConfig: extracttest.ScanInputMockConfig{
				Path: "testdata/empty.lock",
			},
			WantPackages: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			extr := yarnlock.NewDefault()

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
