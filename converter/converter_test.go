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

package converter_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/CycloneDX/cyclonedx-go"
	"github.com/depscout/depscout/converter"
	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem/language/python/requirements"
	"github.com/depscout/depscout/inventory"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/purl"
	"github.com/depscout/depscout/result"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func ptr[T any](v T) *T {
	return &v
}

func TestToCDX(t *testing.T) {
	// Make UUIDs deterministic
	uuid.SetRand(rand.New(rand.NewSource(1)))
	defaultBOM := cyclonedx.NewBOM()

	testCases := []struct {
		desc       string
		scanResult *result.ScanResult
		config     converter.CDXConfig
		want       *cyclonedx.BOM
	}{
		{
			desc: "Package_with_custom_config",
			scanResult: &result.ScanResult{
				Inventory: inventory.Inventory{
					Packages: []*extractor.Package{{
						Name:     "requests",
						Version:  "2.28.0",
						PURLType: purl.TypePyPi,
						Plugins:  []string{requirements.Name},
						Locations: []*extractor.SourceLocation{{
							FilePath: "app/requirements.txt",
							Line:     3,
						}},
					}},
				},
			},
			config: converter.CDXConfig{
				ComponentName:    "sbom-1",
				ComponentVersion: "1.0.0",
				Authors:          []string{"author"},
			},
			want: &cyclonedx.BOM{
				Metadata: &cyclonedx.Metadata{
					Component: &cyclonedx.Component{
						Name:    "sbom-1",
						Version: "1.0.0",
						BOMRef:  "52fdfc07-2182-454f-963f-5f0f9a621d72",
					},
					Authors: ptr([]cyclonedx.OrganizationalContact{{Name: "author"}}),
					Tools: &cyclonedx.ToolsChoice{
						Components: &[]cyclonedx.Component{
							{
								Type: cyclonedx.ComponentTypeApplication,
								Name: "depscout",
								ExternalReferences: ptr([]cyclonedx.ExternalReference{
									{URL: "https://github.com/depscout/depscout", Type: cyclonedx.ERTypeWebsite},
								}),
							},
						},
					},
				},
				Components: ptr([]cyclonedx.Component{
					{
						BOMRef:     "9566c74d-1003-4c4d-bbbb-0407d1e2c649",
						Type:       "library",
						Name:       "requests",
						Version:    "2.28.0",
						PackageURL: "pkg:pypi/requests@2.28.0",
						Evidence: &cyclonedx.Evidence{
							Occurrences: ptr([]cyclonedx.EvidenceOccurrence{
								{Location: "app/requirements.txt", Line: ptr(3)},
							}),
						},
					},
				}),
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got := converter.ToCDX(tc.scanResult, tc.config)
			// Can't mock time.Now() so skip verifying the timestamp.
			tc.want.Metadata.Timestamp = got.Metadata.Timestamp
			// Auto-populated fields
			tc.want.XMLNS = defaultBOM.XMLNS
			tc.want.JSONSchema = defaultBOM.JSONSchema
			tc.want.BOMFormat = defaultBOM.BOMFormat
			tc.want.SpecVersion = defaultBOM.SpecVersion
			tc.want.Version = defaultBOM.Version

			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("converter.ToCDX(%v): unexpected diff (-want +got):\n%s", tc.scanResult, diff)
			}
		})
	}
}

func TestToCDXSortsComponents(t *testing.T) {
	// The inventory is ordered by first observation; the BOM sorts its own
	// copy so serialization is deterministic either way.
	scanResult := &result.ScanResult{
		Inventory: inventory.Inventory{
			Packages: []*extractor.Package{
				{Name: "requests", Version: "2.28.0", PURLType: purl.TypePyPi},
				{Name: "flask", Version: "2.3.2", PURLType: purl.TypePyPi},
			},
		},
	}

	got := converter.ToCDX(scanResult, converter.CDXConfig{})

	var names []string
	for _, comp := range *got.Components {
		names = append(names, comp.Name)
	}
	want := []string{"flask", "requests"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("converter.ToCDX() component order diff (-want +got):\n%s", diff)
	}
	if scanResult.Inventory.Packages[0].Name != "requests" {
		t.Errorf("converter.ToCDX() reordered the input inventory, first package = %q, want requests", scanResult.Inventory.Packages[0].Name)
	}
}

func TestToPURL(t *testing.T) {
	tests := []struct {
		desc string
		pkg  *extractor.Package
		want *purl.PackageURL
	}{
		{
			desc: "Python_package",
			pkg: &extractor.Package{
				Name:     "Django",
				Version:  "4.2.1",
				PURLType: purl.TypePyPi,
				Plugins:  []string{requirements.Name},
			},
			want: &purl.PackageURL{
				Type:    purl.TypePyPi,
				Name:    "django",
				Version: "4.2.1",
			},
		},
		{
			desc: "Container_image",
			pkg: &extractor.Package{
				Name:     "nginx",
				Version:  "1.25",
				PURLType: purl.TypeDocker,
			},
			want: &purl.PackageURL{
				Type:    purl.TypeDocker,
				Name:    "nginx",
				Version: "1.25",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			got := converter.ToPURL(tc.pkg)

			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("converter.ToPURL(%v) returned unexpected diff (-want +got):\n%s", tc.pkg, diff)
			}
		})
	}
}

func TestToJSONReport(t *testing.T) {
	start := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Second)
	scanResult := &result.ScanResult{
		Version:   "0.3.0",
		StartTime: start,
		EndTime:   end,
		Status:    &plugin.ScanStatus{Status: plugin.ScanStatusPartiallySucceeded},
		PluginStatus: []*plugin.Status{
			{
				Name:    "python/requirements",
				Version: 0,
				Status:  &plugin.ScanStatus{Status: plugin.ScanStatusSucceeded},
			},
			{
				Name:    "python/pipfile",
				Version: 0,
				Status: &plugin.ScanStatus{
					Status:        plugin.ScanStatusFailed,
					FailureReason: "encountered 1 error(s) while running plugin; check file-specific errors for details",
					FileErrors: []*plugin.FileError{{
						FilePath:     "app/Pipfile",
						ErrorMessage: "could not extract from app/Pipfile: invalid TOML",
					}},
				},
			},
		},
		Inventory: inventory.Inventory{
			Packages: []*extractor.Package{
				{
					Name:              "requests",
					Version:           "2.28.0",
					PURLType:          purl.TypePyPi,
					Extras:            []string{"security"},
					EnvironmentMarker: `python_version >= "3.8"`,
					Plugins:           []string{requirements.Name},
					Locations: []*extractor.SourceLocation{
						{
							FilePath:    "app/requirements.txt",
							Line:        3,
							Declaration: `requests[security]==2.28.0; python_version >= "3.8"`,
							FileType:    extractor.FileTypeRequirements,
						},
					},
				},
				{
					Name:     "nginx",
					Version:  "1.25",
					PURLType: purl.TypeDocker,
					Locations: []*extractor.SourceLocation{
						{
							FilePath:    "docker-compose.yml",
							Line:        3,
							Declaration: "image: nginx:1.25",
							FileType:    extractor.FileTypeDockerCompose,
						},
						{
							FilePath:    "Dockerfile",
							Line:        1,
							Declaration: "FROM nginx:1.25",
							FileType:    extractor.FileTypeDockerfile,
						},
					},
				},
			},
		},
	}

	want := &converter.JSONReport{
		Version:   "0.3.0",
		StartTime: start,
		EndTime:   end,
		Status:    "PARTIALLY_SUCCEEDED",
		FailedPlugins: []*converter.JSONPluginFailure{{
			Plugin: "python/pipfile",
			Reason: "encountered 1 error(s) while running plugin; check file-specific errors for details",
			Files: []*converter.JSONFileError{{
				FilePath: "app/Pipfile",
				Error:    "could not extract from app/Pipfile: invalid TOML",
			}},
		}},
		Packages: []*converter.JSONPackage{
			{
				Name:              "requests",
				Version:           "2.28.0",
				Ecosystem:         "pypi",
				Extras:            []string{"security"},
				EnvironmentMarker: `python_version >= "3.8"`,
				SourceLocations: []*converter.JSONSourceLocation{{
					FilePath:    "app/requirements.txt",
					LineNumber:  3,
					Declaration: `requests[security]==2.28.0; python_version >= "3.8"`,
					FileType:    "requirements",
				}},
			},
			{
				Name:      "nginx",
				Version:   "1.25",
				Ecosystem: "docker",
				SourceLocations: []*converter.JSONSourceLocation{
					{
						FilePath:    "docker-compose.yml",
						LineNumber:  3,
						Declaration: "image: nginx:1.25",
						FileType:    "docker-compose",
					},
					{
						FilePath:    "Dockerfile",
						LineNumber:  1,
						Declaration: "FROM nginx:1.25",
						FileType:    "dockerfile",
					},
				},
			},
		},
	}

	got := converter.ToJSONReport(scanResult)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("converter.ToJSONReport(%v): unexpected diff (-want +got):\n%s", scanResult, diff)
	}
}
