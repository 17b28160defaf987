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

// Package converter provides utility functions for converting depscout's scan
// results to standardized inventory formats.
package converter

import (
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/CycloneDX/cyclonedx-go"
	"github.com/depscout/depscout"
	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/log"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/purl"
	"github.com/depscout/depscout/result"
	"github.com/google/uuid"
	"github.com/spdx/tools-golang/spdx/v2/common"
	"github.com/spdx/tools-golang/spdx/v2/v2_3"
)

const (
	// NoAssertion indicates that we don't claim anything about the value of a given field.
	NoAssertion = "NOASSERTION"
	// SPDXRefPrefix is the prefix used in reference IDs in the SPDX document.
	SPDXRefPrefix = "SPDXRef-"
	// SPDXDocumentID is the string identifier used to refer to the SPDX document.
	SPDXDocumentID = "SPDXRef-Document"
)

// spdx_id must only contain letters, numbers, "." and "-"
var spdxIDInvalidCharRe = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// ToPURL converts a depscout package structure into a package URL.
func ToPURL(p *extractor.Package) *purl.PackageURL {
	return p.PURL()
}

// JSONReport is the top-level structure of the JSON inventory output.
type JSONReport struct {
	Version   string    `json:"version"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
	// FailedPlugins lists the extractors that reported errors, with their
	// per-file failures.
	FailedPlugins []*JSONPluginFailure `json:"failed_plugins,omitempty"`
	Packages      []*JSONPackage       `json:"packages"`
}

// JSONPluginFailure reports one extractor's failures.
type JSONPluginFailure struct {
	Plugin string           `json:"plugin"`
	Reason string           `json:"reason"`
	Files  []*JSONFileError `json:"files,omitempty"`
}

// JSONFileError reports one file an extractor failed on.
type JSONFileError struct {
	FilePath string `json:"file_path"`
	Error    string `json:"error"`
}

// JSONPackage is one merged package in the JSON inventory output. Every
// source location the scan discovered for the package is listed.
type JSONPackage struct {
	Name              string                `json:"name"`
	Version           string                `json:"version"`
	Ecosystem         string                `json:"ecosystem"`
	Extras            []string              `json:"extras,omitempty"`
	EnvironmentMarker string                `json:"environment_marker,omitempty"`
	Editable          bool                  `json:"editable,omitempty"`
	URL               string                `json:"url,omitempty"`
	SourceLocations   []*JSONSourceLocation `json:"source_locations"`
}

// JSONSourceLocation is one file:line declaration of a package.
type JSONSourceLocation struct {
	FilePath    string `json:"file_path"`
	LineNumber  int    `json:"line_number"`
	Declaration string `json:"declaration,omitempty"`
	FileType    string `json:"file_type,omitempty"`
}

// ToJSONReport converts the scan results into the JSON inventory report
// structure. Every source location of every package is carried over.
func ToJSONReport(r *result.ScanResult) *JSONReport {
	report := &JSONReport{
		Version:   r.Version,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Status:    r.Status.String(),
		Packages:  make([]*JSONPackage, 0, len(r.Inventory.Packages)),
	}

	for _, st := range r.PluginStatus {
		if st.Status.Status == plugin.ScanStatusSucceeded {
			continue
		}
		failure := &JSONPluginFailure{
			Plugin: st.Name,
			Reason: st.Status.FailureReason,
		}
		for _, fe := range st.Status.FileErrors {
			failure.Files = append(failure.Files, &JSONFileError{
				FilePath: fe.FilePath,
				Error:    fe.ErrorMessage,
			})
		}
		report.FailedPlugins = append(report.FailedPlugins, failure)
	}

	for _, pkg := range r.Inventory.Packages {
		jp := &JSONPackage{
			Name:              pkg.Name,
			Version:           pkg.Version,
			Ecosystem:         pkg.PURLType,
			Extras:            pkg.Extras,
			EnvironmentMarker: pkg.EnvironmentMarker,
			Editable:          pkg.Editable,
			URL:               pkg.URL,
			SourceLocations:   make([]*JSONSourceLocation, 0, len(pkg.Locations)),
		}
		for _, loc := range pkg.Locations {
			jp.SourceLocations = append(jp.SourceLocations, &JSONSourceLocation{
				FilePath:    loc.FilePath,
				LineNumber:  loc.Line,
				Declaration: loc.Declaration,
				FileType:    string(loc.FileType),
			})
		}
		report.Packages = append(report.Packages, jp)
	}

	return report
}

// SPDXConfig describes custom settings that should be applied to the generated SPDX file.
type SPDXConfig struct {
	DocumentName      string
	DocumentNamespace string
	Creators          []common.Creator
}

// ToSPDX23 converts the scan results into an SPDX v2.3 document. Packages are
// sorted so the document is deterministic regardless of discovery order.
func ToSPDX23(r *result.ScanResult, c SPDXConfig) *v2_3.Document {
	pkgs := slices.Clone(r.Inventory.Packages)
	slices.SortFunc(pkgs, depscout.CmpPackages)
	packages := make([]*v2_3.Package, 0, len(pkgs)+1)

	// Add a main package that contains all other top-level packages.
	mainPackageID := SPDXRefPrefix + "Package-main-" + uuid.New().String()
	packages = append(packages, &v2_3.Package{
		PackageName:           "main",
		PackageSPDXIdentifier: common.ElementID(mainPackageID),
		PackageVersion:        "0",
		PackageSupplier: &common.Supplier{
			Supplier:     NoAssertion,
			SupplierType: NoAssertion,
		},
		PackageDownloadLocation:   NoAssertion,
		IsFilesAnalyzedTagPresent: false,
	})

	relationships := make([]*v2_3.Relationship, 0, 1+2*len(pkgs))
	relationships = append(relationships, &v2_3.Relationship{
		RefA:         toDocElementID(SPDXDocumentID),
		RefB:         toDocElementID(mainPackageID),
		Relationship: "DESCRIBES",
	})

	for _, pkg := range pkgs {
		p := ToPURL(pkg)
		if p == nil {
			log.Warnf("Package %v has no PURL, skipping", pkg)
			continue
		}
		pName := p.Name
		pVersion := p.Version
		if pName == "" || pVersion == "" {
			log.Warnf("Package %v PURL name or version empty, skipping", pkg)
			continue
		}
		pID := SPDXRefPrefix + "Package-" + replaceSPDXIDInvalidChars(pName) + "-" + uuid.New().String()
		pSourceInfo := sourceInfo(pkg)

		packages = append(packages, &v2_3.Package{
			PackageName:           pName,
			PackageSPDXIdentifier: common.ElementID(pID),
			PackageVersion:        pVersion,
			PackageSupplier: &common.Supplier{
				Supplier:     NoAssertion,
				SupplierType: NoAssertion,
			},
			PackageDownloadLocation:   NoAssertion,
			IsFilesAnalyzedTagPresent: false,
			PackageSourceInfo:         pSourceInfo,
			PackageExternalReferences: []*v2_3.PackageExternalReference{
				{
					Category: "PACKAGE-MANAGER",
					RefType:  "purl",
					Locator:  p.String(),
				},
			},
		})
		relationships = append(relationships, &v2_3.Relationship{
			RefA:         toDocElementID(mainPackageID),
			RefB:         toDocElementID(pID),
			Relationship: "CONTAINS",
		})
		relationships = append(relationships, &v2_3.Relationship{
			RefA:         toDocElementID(pID),
			RefB:         toDocElementID(NoAssertion),
			Relationship: "CONTAINS",
		})
	}
	name := c.DocumentName
	if name == "" {
		name = "depscout-generated SPDX"
	}
	namespace := c.DocumentNamespace
	if namespace == "" {
		namespace = "https://depscout.dev/spdxdocs/" + uuid.New().String()
	}
	creators := []common.Creator{
		{
			CreatorType: "Tool",
			Creator:     "depscout",
		},
	}
	creators = append(creators, c.Creators...)

	return &v2_3.Document{
		SPDXVersion:       "SPDX-2.3",
		DataLicense:       "CC0-1.0",
		SPDXIdentifier:    "DOCUMENT",
		DocumentName:      name,
		DocumentNamespace: namespace,
		CreationInfo: &v2_3.CreationInfo{
			Creators: creators,
			Created:  time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		},
		Packages:      packages,
		Relationships: relationships,
	}
}

func sourceInfo(pkg *extractor.Package) string {
	pluginName := "unknown"
	if len(pkg.Plugins) > 0 {
		pluginName = pkg.Plugins[0]
	}
	info := fmt.Sprintf("Identified by the %s extractor", pluginName)
	if l := len(pkg.Locations); l == 1 {
		info += fmt.Sprintf(" from %s", pkg.Locations[0].FilePath)
	} else if l > 1 {
		info += fmt.Sprintf(" from %d locations, including %s and %s",
			l, pkg.Locations[0].FilePath, pkg.Locations[1].FilePath)
	}
	return info
}

func replaceSPDXIDInvalidChars(id string) string {
	return spdxIDInvalidCharRe.ReplaceAllString(id, "-")
}

func toDocElementID(id string) common.DocElementID {
	if id == NoAssertion {
		return common.DocElementID{
			SpecialID: NoAssertion,
		}
	}

	return common.DocElementID{
		ElementRefID: common.ElementID(id),
	}
}

// CDXConfig describes custom settings that should be applied to the generated CDX file.
type CDXConfig struct {
	ComponentName    string
	ComponentVersion string
	Authors          []string
}

// ToCDX converts the scan results into a CycloneDX document. Packages are
// sorted so the document is deterministic regardless of discovery order.
func ToCDX(r *result.ScanResult, c CDXConfig) *cyclonedx.BOM {
	bom := cyclonedx.NewBOM()
	bom.Metadata = &cyclonedx.Metadata{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		Component: &cyclonedx.Component{
			Name:    c.ComponentName,
			Version: c.ComponentVersion,
			BOMRef:  uuid.New().String(),
		},
		Tools: &cyclonedx.ToolsChoice{
			Components: &[]cyclonedx.Component{
				{
					Type: cyclonedx.ComponentTypeApplication,
					Name: "depscout",
					ExternalReferences: &[]cyclonedx.ExternalReference{
						{
							URL:  "https://github.com/depscout/depscout",
							Type: cyclonedx.ERTypeWebsite,
						},
					},
				},
			},
		},
	}
	if len(c.Authors) > 0 {
		authors := make([]cyclonedx.OrganizationalContact, 0, len(c.Authors))
		for _, author := range c.Authors {
			authors = append(authors, cyclonedx.OrganizationalContact{
				Name: author,
			})
		}
		bom.Metadata.Authors = &authors
	}

	pkgs := slices.Clone(r.Inventory.Packages)
	slices.SortFunc(pkgs, depscout.CmpPackages)
	comps := make([]cyclonedx.Component, 0, len(pkgs))
	for _, pkg := range pkgs {
		comp := cyclonedx.Component{
			BOMRef:  uuid.New().String(),
			Type:    cyclonedx.ComponentTypeLibrary,
			Name:    pkg.Name,
			Version: pkg.Version,
		}
		if p := ToPURL(pkg); p != nil {
			comp.PackageURL = p.String()
		}
		if len(pkg.Locations) > 0 {
			occ := make([]cyclonedx.EvidenceOccurrence, 0, len(pkg.Locations))
			for _, loc := range pkg.Locations {
				occ = append(occ, cyclonedx.EvidenceOccurrence{
					Location: loc.FilePath,
					Line:     &loc.Line,
				})
			}
			comp.Evidence = &cyclonedx.Evidence{
				Occurrences: &occ,
			}
		}
		comps = append(comps, comp)
	}
	bom.Components = &comps

	return bom
}
