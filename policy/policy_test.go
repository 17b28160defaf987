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

package policy_test

import (
	"testing"

	"github.com/depscout/depscout/policy"
	"github.com/depscout/depscout/purl"
)

func TestInclude(t *testing.T) {
	tests := []struct {
		name      string
		candidate policy.Candidate
		want      bool
	}{
		{
			name:      "python_runtime_dependency",
			candidate: policy.Candidate{PURLType: purl.TypePyPi, Name: "requests", Version: "==2.25.1"},
			want:      true,
		},
		{
			name:      "python_test_framework_excluded",
			candidate: policy.Candidate{PURLType: purl.TypePyPi, Name: "pytest", Version: "==6.2.4"},
			want:      false,
		},
		{
			name:      "python_formatter_excluded",
			candidate: policy.Candidate{PURLType: purl.TypePyPi, Name: "black", Version: "==23.1.0"},
			want:      false,
		},
		{
			name:      "python_coverage_tool_allowed",
			candidate: policy.Candidate{PURLType: purl.TypePyPi, Name: "coverage", Version: "==7.2.0"},
			want:      true,
		},
		{
			name:      "python_packaging_tool_allowed",
			candidate: policy.Candidate{PURLType: purl.TypePyPi, Name: "setuptools", Version: ">=65.0"},
			want:      true,
		},
		{
			name:      "python_name_case_insensitive",
			candidate: policy.Candidate{PURLType: purl.TypePyPi, Name: "Flake8", Version: "==6.0.0"},
			want:      false,
		},
		{
			name:      "conda_uses_python_rules",
			candidate: policy.Candidate{PURLType: purl.TypeConda, Name: "numpy", Version: "1.24.3"},
			want:      true,
		},
		{
			name:      "empty_name_rejected",
			candidate: policy.Candidate{PURLType: purl.TypePyPi, Name: "  ", Version: "1.0"},
			want:      false,
		},
		{
			name:      "empty_version_rejected",
			candidate: policy.Candidate{PURLType: purl.TypePyPi, Name: "requests", Version: ""},
			want:      false,
		},
		{
			name:      "npm_runtime_dependency",
			candidate: policy.Candidate{PURLType: purl.TypeNPM, Name: "lodash", Version: "4.17.20"},
			want:      true,
		},
		{
			name:      "npm_test_framework_excluded",
			candidate: policy.Candidate{PURLType: purl.TypeNPM, Name: "jest", Version: "27.0.0"},
			want:      false,
		},
		{
			name:      "npm_types_package_excluded",
			candidate: policy.Candidate{PURLType: purl.TypeNPM, Name: "@types/node", Version: "20.4.0"},
			want:      false,
		},
		{
			name:      "npm_bundler_plugin_excluded",
			candidate: policy.Candidate{PURLType: purl.TypeNPM, Name: "copy-webpack-plugin", Version: "11.0.0"},
			want:      false,
		},
		{
			name:      "npm_scoped_transpiler_excluded",
			candidate: policy.Candidate{PURLType: purl.TypeNPM, Name: "@babel/core", Version: "7.22.0"},
			want:      false,
		},
		{
			name:      "npm_dev_group_excluded",
			candidate: policy.Candidate{PURLType: purl.TypeNPM, Name: "express", Version: "4.18.2", DevGroup: true},
			want:      false,
		},
		{
			name:      "npm_same_name_outside_dev_group",
			candidate: policy.Candidate{PURLType: purl.TypeNPM, Name: "express", Version: "4.18.2"},
			want:      true,
		},
		{
			name:      "debian_server_package",
			candidate: policy.Candidate{PURLType: purl.TypeDebian, Name: "nginx", Version: "1.18.0-0ubuntu1.2"},
			want:      true,
		},
		{
			name:      "debian_utility_excluded",
			candidate: policy.Candidate{PURLType: purl.TypeDebian, Name: "curl", Version: "latest"},
			want:      false,
		},
		{
			name:      "debian_dev_headers_excluded",
			candidate: policy.Candidate{PURLType: purl.TypeDebian, Name: "libssl-dev", Version: "latest"},
			want:      false,
		},
		{
			name:      "apk_compiler_excluded",
			candidate: policy.Candidate{PURLType: purl.TypeApk, Name: "g++", Version: "latest"},
			want:      false,
		},
		{
			name:      "container_image_included",
			candidate: policy.Candidate{PURLType: purl.TypeDocker, Name: "nginx", Version: "1.25"},
			want:      true,
		},
		{
			name:      "container_image_with_test_in_name_excluded",
			candidate: policy.Candidate{PURLType: purl.TypeDocker, Name: "test-runner", Version: "1.0"},
			want:      false,
		},
	}

	p := policy.NewDefault()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Include(tt.candidate); got != tt.want {
				t.Errorf("Include(%+v): got %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestIncludeUserOverrides(t *testing.T) {
	tests := []struct {
		name      string
		cfg       policy.Config
		candidate policy.Candidate
		want      bool
	}{
		{
			name:      "extra_exclusion_drops_runtime_dependency",
			cfg:       policy.Config{ExtraExcluded: []string{"lodash"}},
			candidate: policy.Candidate{PURLType: purl.TypeNPM, Name: "lodash", Version: "4.17.20"},
			want:      false,
		},
		{
			name:      "extra_allow_overrides_builtin_rule",
			cfg:       policy.Config{ExtraAllowed: []string{"pytest"}},
			candidate: policy.Candidate{PURLType: purl.TypePyPi, Name: "pytest", Version: "==6.2.4"},
			want:      true,
		},
		{
			name:      "extra_allow_wins_over_extra_exclusion",
			cfg:       policy.Config{ExtraExcluded: []string{"requests"}, ExtraAllowed: []string{"requests"}},
			candidate: policy.Candidate{PURLType: purl.TypePyPi, Name: "requests", Version: "==2.25.1"},
			want:      true,
		},
		{
			name:      "override_names_are_case_insensitive",
			cfg:       policy.Config{ExtraExcluded: []string{"Express"}},
			candidate: policy.Candidate{PURLType: purl.TypeNPM, Name: "express", Version: "4.18.2"},
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := policy.New(tt.cfg)
			if got := p.Include(tt.candidate); got != tt.want {
				t.Errorf("Include(%+v): got %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{version: ">=1.0.0", want: "1.0.0"},
		{version: "==2.25.1", want: "2.25.1"},
		{version: "~=3.2", want: "3.2"},
		{version: "^4.17.20", want: "4.17.20"},
		{version: "~1.2", want: "1.2"},
		{version: `"1.2.3"`, want: "1.2.3"},
		{version: `'0.9'`, want: "0.9"},
		{version: `1.0.0; python_version >= "3.8"`, want: "1.0.0"},
		{version: "  2.0  ", want: "2.0"},
		{version: "latest", want: "latest"},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			if got := policy.NormalizeVersion(tt.version); got != tt.want {
				t.Errorf("NormalizeVersion(%q): got %q, want %q", tt.version, got, tt.want)
			}
		})
	}
}
