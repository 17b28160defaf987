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

package purl_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/package-url/packageurl-go"

	"github.com/depscout/depscout/purl"
)

func TestFromString(t *testing.T) {
	tests := []struct {
		name string
		purl string
		want purl.PackageURL
	}{
		// Tests should be ordered by type as they appear in
		// https://github.com/package-url/purl-spec/blob/master/PURL-TYPES.rst
		{
			name: "apk",
			purl: "pkg:apk/alpine/curl@7.83.0-r0?arch=x86",
			want: purl.PackageURL{
				Type:       "apk",
				Namespace:  "alpine",
				Name:       "curl",
				Version:    "7.83.0-r0",
				Qualifiers: purl.QualifiersFromMap(map[string]string{"arch": "x86"}),
			},
		}, {
			name: "conda",
			purl: "pkg:conda/numpy@1.24.3",
			want: purl.PackageURL{
				Type:    "conda",
				Name:    "numpy",
				Version: "1.24.3",
			},
		}, {
			name: "deb",
			purl: "pkg:deb/debian/curl@7.50.3-1?arch=i386&distro=jessie",
			want: purl.PackageURL{
				Type:       "deb",
				Namespace:  "debian",
				Name:       "curl",
				Version:    "7.50.3-1",
				Qualifiers: purl.QualifiersFromMap(map[string]string{"arch": "i386", "distro": "jessie"}),
			},
		}, {
			name: "docker",
			purl: "pkg:docker/nginx@1.21.6",
			want: purl.PackageURL{
				Type:    "docker",
				Name:    "nginx",
				Version: "1.21.6",
			},
		}, {
			name: "npm",
			purl: "pkg:npm/foobar@12.3.1",
			want: purl.PackageURL{
				Type:    "npm",
				Name:    "foobar",
				Version: "12.3.1",
			},
		}, {
			name: "npm scoped",
			purl: "pkg:npm/%40angular/core@12.3.1",
			want: purl.PackageURL{
				Type:      "npm",
				Namespace: "@angular",
				Name:      "core",
				Version:   "12.3.1",
			},
		}, {
			name: "pypi",
			purl: "pkg:pypi/django-allauth@12.23",
			want: purl.PackageURL{
				Type:    "pypi",
				Name:    "django-allauth",
				Version: "12.23",
			},
		}, {
			name: "rpm",
			purl: "pkg:rpm/fedora/curl@7.50.3-1.fc25?arch=i386&distro=fedora-25",
			want: purl.PackageURL{
				Type:       "rpm",
				Namespace:  "fedora",
				Name:       "curl",
				Version:    "7.50.3-1.fc25",
				Qualifiers: purl.QualifiersFromMap(map[string]string{"arch": "i386", "distro": "fedora-25"}),
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := purl.FromString(test.purl)
			if err != nil {
				t.Fatalf("FromString(%+v) error: %v", test.purl, err)
			}
			if diff := cmp.Diff(test.want.String(), got.String()); diff != "" {
				t.Fatalf("FromString(%+v) returned unexpected result; diff (-want +got):\n%s", test.purl, diff)
			}
		})
	}
}

func TestFromStringInvalidPURL(t *testing.T) {
	tests := []struct {
		name string
		purl string
	}{
		{
			name: "missing type",
			purl: "pkg:/package-name@1.2.3",
		}, {
			name: "invalid type",
			purl: "pkg:unknown/package-name@1.2.3",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := purl.FromString(test.purl); err == nil {
				t.Fatalf("FromString(%+v) got no error, expected one", test.purl)
			}
		})
	}
}

func TestQualifiersFromMap(t *testing.T) {
	tests := []struct {
		name           string
		qualifierMap   map[string]string
		wantQualifiers purl.Qualifiers
	}{
		{
			name: "normal transcription",
			qualifierMap: map[string]string{
				"qual":  "ifier",
				"other": "qualifier",
			},
			wantQualifiers: []packageurl.Qualifier{
				{Key: "other", Value: "qualifier"},
				{Key: "qual", Value: "ifier"},
			},
		}, {
			name: "filters only empty value",
			qualifierMap: map[string]string{
				"empty": "",
				"other": "qualifier",
			},
			wantQualifiers: []packageurl.Qualifier{
				{Key: "other", Value: "qualifier"},
			},
		}, {
			name: "empty qualifiers if all empty",
			qualifierMap: map[string]string{
				"empty": "",
			},
			wantQualifiers: []packageurl.Qualifier{},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := purl.QualifiersFromMap(test.qualifierMap)

			if diff := cmp.Diff(test.wantQualifiers, got); diff != "" {
				t.Fatalf("QualifiersFromMap(%+v) returned unexpected result; diff (-want +got):\n%s", test.qualifierMap, diff)
			}
		})
	}
}
