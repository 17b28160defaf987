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

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/depscout/depscout/converter"
)

func TestScanConfig(t *testing.T) {
	tests := []struct {
		desc           string
		opts           scanOptions
		wantErr        bool
		wantExtractors int
	}{
		{
			desc:           "default_extractors",
			opts:           scanOptions{format: "json", extractors: []string{"default"}},
			wantExtractors: 14,
		},
		{
			desc:           "python_group",
			opts:           scanOptions{format: "json", extractors: []string{"python"}},
			wantExtractors: 8,
		},
		{
			desc:    "unknown_format",
			opts:    scanOptions{format: "xml", extractors: []string{"default"}},
			wantErr: true,
		},
		{
			desc:    "unknown_extractor",
			opts:    scanOptions{format: "json", extractors: []string{"nonexistent"}},
			wantErr: true,
		},
		{
			desc:    "invalid_skip_dir_regex",
			opts:    scanOptions{format: "json", extractors: []string{"default"}, skipDirRegex: "("},
			wantErr: true,
		},
		{
			desc:    "invalid_skip_dir_glob",
			opts:    scanOptions{format: "json", extractors: []string{"default"}, skipDirGlob: "["},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			cfg, err := tc.opts.scanConfig(".")
			if tc.wantErr {
				if err == nil {
					t.Fatalf("scanConfig(%+v) succeeded, want error", tc.opts)
				}
				return
			}
			if err != nil {
				t.Fatalf("scanConfig(%+v): %v", tc.opts, err)
			}
			if len(cfg.Extractors) != tc.wantExtractors {
				t.Errorf("scanConfig(%+v) enabled %d extractors, want %d", tc.opts, len(cfg.Extractors), tc.wantExtractors)
			}
		})
	}
}

func TestScanCmd(t *testing.T) {
	dir := t.TempDir()
	reqs := filepath.Join(dir, "requirements.txt")
	if err := os.WriteFile(reqs, []byte("requests==2.28.0\n"), 0644); err != nil {
		t.Fatalf("WriteFile(%q): %v", reqs, err)
	}
	output := filepath.Join(t.TempDir(), "report.json")

	quiet := true
	cmd := newScanCmd(&quiet)
	cmd.SetArgs([]string{dir, "--output", output})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("ReadFile(%q): %v", output, err)
	}
	var report converter.JSONReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("Unmarshal(%q): %v", output, err)
	}
	if report.Status != "SUCCEEDED" {
		t.Errorf("scan status = %q, want SUCCEEDED", report.Status)
	}
	wantPackages := []*converter.JSONPackage{{
		Name:      "requests",
		Version:   "==2.28.0",
		Ecosystem: "pypi",
		SourceLocations: []*converter.JSONSourceLocation{{
			FilePath:    "requirements.txt",
			LineNumber:  1,
			Declaration: "requests==2.28.0",
			FileType:    "requirements",
		}},
	}}
	if diff := cmp.Diff(wantPackages, report.Packages); diff != "" {
		t.Errorf("scan %s: unexpected packages (-want +got):\n%s", dir, diff)
	}
}

func TestScanCmdExcludePkg(t *testing.T) {
	dir := t.TempDir()
	reqs := filepath.Join(dir, "requirements.txt")
	if err := os.WriteFile(reqs, []byte("requests==2.28.0\nflask==2.3.2\n"), 0644); err != nil {
		t.Fatalf("WriteFile(%q): %v", reqs, err)
	}
	output := filepath.Join(t.TempDir(), "report.json")

	quiet := true
	cmd := newScanCmd(&quiet)
	cmd.SetArgs([]string{dir, "--output", output, "--exclude-pkg", "requests"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("ReadFile(%q): %v", output, err)
	}
	var report converter.JSONReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("Unmarshal(%q): %v", output, err)
	}
	if len(report.Packages) != 1 || report.Packages[0].Name != "flask" {
		t.Errorf("scan %s with --exclude-pkg requests: got packages %+v, want only flask", dir, report.Packages)
	}
}
