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

package npmver_test

import (
	"testing"

	"github.com/depscout/depscout/extractor/filesystem/language/javascript/internal/npmver"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		spec string
		want string
	}{
		{"^4.17.20", "4.17.20"},
		{"~1.2.3", "1.2.3"},
		{">=2.0.0", "2.0.0"},
		{"<=2.0.0", "2.0.0"},
		{">1.0.0", "1.0.0"},
		{"<2.0.0", "2.0.0"},
		{"=1.0.0", "1.0.0"},
		{"1.2.3", "1.2.3"},
		{"", "latest"},
		{"*", "latest"},
		{"x", "latest"},
		{"latest", "latest"},
		{"next", "next"},
		{"beta", "beta"},
		{"alpha", "alpha"},
		{"canary", "canary"},
		{"^1.0.0 || ^2.0.0", "1.0.0"},
		{"1.2.0 - 1.5.0", "1.2.0"},
		{"git+https://github.com/user/repo.git", "git"},
		{"github:user/repo", "git"},
		{"https://example.com/pkg.tgz", "git"},
		{"file:../local-pkg", "local"},
		{"  ^3.0.0  ", "3.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			if got := npmver.Normalize(tt.spec); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.spec, got, tt.want)
			}
		})
	}
}
