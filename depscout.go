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

// Package depscout provides an interface for extracting declared software
// dependencies from manifest and lock files on a filesystem.
package depscout

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/gobwas/glob"
	"go.uber.org/multierr"

	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem"
	"github.com/depscout/depscout/extractor/filesystem/router"
	depscoutfs "github.com/depscout/depscout/fs"
	"github.com/depscout/depscout/inventory"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/result"
	"github.com/depscout/depscout/stats"
	"github.com/depscout/depscout/version"
)

var (
	errNoScanRoot            = errors.New("no scan root specified")
	errNoExtractors          = errors.New("no extractors specified")
	errFilesWithSeveralRoots = errors.New("can't extract specific files with several scan roots")
)

// Scanner is the main entry point of the scanner.
type Scanner struct{}

// New creates a new scanner instance.
func New() *Scanner { return &Scanner{} }

// ScanConfig stores the config settings of a scan run such as the extractors
// to use and the dir to consider the root of the scanned system.
type ScanConfig struct {
	Extractors []filesystem.Extractor
	// Capabilities that the scanning environment satisfies, e.g. whether
	// there's network access. Some extractors can only run if certain
	// requirements are met.
	Capabilities *plugin.Capabilities
	// ScanRoots contain the list of root dirs used by file walking during
	// extraction. All extractors will assume files are relative to these dirs.
	// Example use case: Scanning a container image or source code repo that is
	// mounted to a local dir.
	ScanRoots []*depscoutfs.ScanRoot
	// Optional: Individual file paths to extract inventory from, relative to
	// the scan root. If specified, the extractors skip the filesystem walk and
	// only look at these files. Only supported with a single scan root.
	PathsToExtract []string
	// Optional: Directories that the file system walk should ignore.
	// Note that on real filesystems these are not relative to the ScanRoots
	// and thus need to be sub-directories of one of the ScanRoots.
	DirsToSkip []string
	// Optional: If the regex matches a directory, it will be skipped.
	SkipDirRegex *regexp.Regexp
	// Optional: If the glob matches a directory, it will be skipped.
	SkipDirGlob glob.Glob
	// Optional: Files larger than this size in bytes are skipped. If 0, no limit is applied.
	MaxFileSize int
	// Optional: stats allows to enter a metric hook. If left nil, no metrics will be recorded.
	Stats stats.Collector
	// Optional: Whether to read symlinks.
	ReadSymlinks bool
	// Optional: Limit for visited inodes. If 0, no limit is applied.
	MaxInodes int
	// Optional: By default, source locations store a path relative to the scan
	// root. If StoreAbsolutePath is set, the absolute path is stored instead.
	StoreAbsolutePath bool
	// Optional: If true, fail the scan if any filesystem errors are encountered.
	ErrorOnFSErrors bool
}

// ValidateExtractorRequirements checks that the scanning environment's
// capabilities satisfy the requirements of all enabled extractors.
func (cfg *ScanConfig) ValidateExtractorRequirements() error {
	errs := []error{}
	for _, ex := range cfg.Extractors {
		if err := plugin.ValidateRequirements(ex, cfg.Capabilities); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ScanResult stores the results of a scan incl. scan status and inventory found.
type ScanResult = result.ScanResult

// Scan runs the configured extractors over the scan roots, merges duplicate
// package declarations and returns the result.
func (Scanner) Scan(ctx context.Context, config *ScanConfig) (sr *ScanResult) {
	if config.Stats == nil {
		config.Stats = stats.NoopCollector{}
	}
	defer func() {
		config.Stats.AfterScan(time.Since(sr.StartTime), sr.Status)
	}()
	sro := &newScanResultOptions{
		StartTime: time.Now(),
	}
	if len(config.Extractors) == 0 {
		sro.Err = errNoExtractors
	} else if err := config.ValidateExtractorRequirements(); err != nil {
		sro.Err = err
	} else if len(config.ScanRoots) == 0 {
		sro.Err = errNoScanRoot
	} else if len(config.PathsToExtract) > 0 && len(config.ScanRoots) > 1 {
		sro.Err = errFilesWithSeveralRoots
	}
	if sro.Err != nil {
		sro.EndTime = time.Now()
		return newScanResult(sro)
	}

	var inv inventory.Inventory
	var extractorStatus []*plugin.Status
	var err error
	if len(config.PathsToExtract) > 0 {
		inv, extractorStatus, err = router.ExtractFiles(ctx, &router.Config{
			Extractors:        config.Extractors,
			ScanRoot:          config.ScanRoots[0],
			Paths:             config.PathsToExtract,
			Stats:             config.Stats,
			StoreAbsolutePath: config.StoreAbsolutePath,
		})
	} else {
		inv, extractorStatus, err = filesystem.Run(ctx, &filesystem.Config{
			Stats:             config.Stats,
			ReadSymlinks:      config.ReadSymlinks,
			Extractors:        config.Extractors,
			DirsToSkip:        config.DirsToSkip,
			SkipDirRegex:      config.SkipDirRegex,
			SkipDirGlob:       config.SkipDirGlob,
			MaxFileSize:       config.MaxFileSize,
			ScanRoots:         config.ScanRoots,
			MaxInodes:         config.MaxInodes,
			StoreAbsolutePath: config.StoreAbsolutePath,
			ErrorOnFSErrors:   config.ErrorOnFSErrors,
		})
	}
	if err != nil {
		sro.Err = multierr.Append(sro.Err, err)
		sro.EndTime = time.Now()
		return newScanResult(sro)
	}

	sro.Inventory = inv.Merge()
	sro.PluginStatus = append(sro.PluginStatus, extractorStatus...)
	sro.EndTime = time.Now()
	return newScanResult(sro)
}

type newScanResultOptions struct {
	StartTime    time.Time
	EndTime      time.Time
	PluginStatus []*plugin.Status
	Inventory    inventory.Inventory
	Err          error
}

func newScanResult(o *newScanResultOptions) *ScanResult {
	status := &plugin.ScanStatus{}
	if o.Err != nil {
		status.Status = plugin.ScanStatusFailed
		status.FailureReason = o.Err.Error()
	} else {
		status.Status = plugin.ScanStatusSucceeded
		// If any plugin failed, set the overall scan status to partially succeeded.
		for _, pluginStatus := range o.PluginStatus {
			if pluginStatus.Status.Status == plugin.ScanStatusFailed {
				status.Status = plugin.ScanStatusPartiallySucceeded
				status.FailureReason = "not all plugins succeeded, see the plugin statuses"
				break
			}
		}
	}
	r := &ScanResult{
		StartTime:    o.StartTime,
		EndTime:      o.EndTime,
		Version:      version.ScannerVersion,
		Status:       status,
		PluginStatus: o.PluginStatus,
		Inventory:    o.Inventory,
	}

	// Sort plugin statuses for better diffing. Packages keep the order in
	// which the walk first observed them.
	sortResults(r)
	return r
}

func sortResults(results *ScanResult) {
	slices.SortFunc(results.PluginStatus, cmpStatus)
}

// CmpPackages is a comparison helper fun to be used for sorting Package
// structs, e.g. by the SBOM converters before serializing.
func CmpPackages(a, b *extractor.Package) int {
	res := cmp.Or(
		cmp.Compare(a.Name, b.Name),
		cmp.Compare(a.Version, b.Version),
		cmp.Compare(len(a.Plugins), len(b.Plugins)),
	)
	if res != 0 {
		return res
	}

	res = 0
	for i := range a.Plugins {
		res = cmp.Or(res, cmp.Compare(a.Plugins[i], b.Plugins[i]))
	}
	if res != 0 {
		return res
	}

	aloc := fmt.Sprintf("%v", a.Locations)
	bloc := fmt.Sprintf("%v", b.Locations)
	return cmp.Compare(aloc, bloc)
}

func cmpStatus(a, b *plugin.Status) int {
	return cmp.Compare(a.Name, b.Name)
}
