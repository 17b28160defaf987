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

// Package router routes explicitly named files to the extractors that
// recognize them, skipping the filesystem walk.
package router

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/depscout/depscout/extractor/filesystem"
	depscoutfs "github.com/depscout/depscout/fs"
	"github.com/depscout/depscout/inventory"
	"github.com/depscout/depscout/log"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/stats"
)

// Config stores the config settings for an explicit-path extraction run.
type Config struct {
	Extractors []filesystem.Extractor
	// ScanRoot the paths are relative to.
	ScanRoot *depscoutfs.ScanRoot
	// Paths to extract, relative to the scan root.
	Paths []string
	// Optional: maximum number of files extracted in parallel. Defaults to
	// the number of CPUs.
	Concurrency int
	// Optional: stats allows to enter a metric hook. If left nil, no metrics
	// will be recorded.
	Stats stats.Collector
	// Optional: By default, source locations store a path relative to the scan
	// root. If StoreAbsolutePath is set, the absolute path is stored instead.
	StoreAbsolutePath bool
}

// ExtractFiles routes each configured path to the extractors whose
// FileRequired accepts it and runs them with bounded concurrency. Results
// are folded under a single lock so the caller sees one inventory in path
// order.
func ExtractFiles(ctx context.Context, config *Config) (inventory.Inventory, []*plugin.Status, error) {
	if len(config.Extractors) == 0 || len(config.Paths) == 0 {
		return inventory.Inventory{}, []*plugin.Status{}, nil
	}
	root, err := config.ScanRoot.WithAbsolutePath()
	if err != nil {
		return inventory.Inventory{}, nil, err
	}
	if config.Stats == nil {
		config.Stats = stats.NoopCollector{}
	}

	concurrency := config.Concurrency
	if concurrency < 1 {
		concurrency = runtime.NumCPU()
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	fold := &resultFold{
		perPath:    make([]inventory.Inventory, len(config.Paths)),
		fileErrors: make(map[string][]*plugin.FileError),
		foundInv:   make(map[string]bool),
	}

	var wg sync.WaitGroup
	for i, p := range config.Paths {
		if err := sem.Acquire(ctx, 1); err != nil {
			return inventory.Inventory{}, nil, err
		}
		wg.Add(1)
		go func(idx int, fpath string) {
			defer sem.Release(1)
			defer wg.Done()
			extractFile(ctx, config, root, fpath, idx, fold)
		}(i, filepath.ToSlash(p))
	}
	wg.Wait()

	inv := inventory.Inventory{}
	for _, pathInv := range fold.perPath {
		inv.Append(pathInv)
	}
	return inv, fold.status(config.Extractors), nil
}

// resultFold is the single owner of all per-file results. Worker goroutines
// only touch it through the mutex.
type resultFold struct {
	mu         sync.Mutex
	perPath    []inventory.Inventory
	fileErrors map[string][]*plugin.FileError
	foundInv   map[string]bool
}

func (f *resultFold) addInv(idx int, inv inventory.Inventory, exName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perPath[idx].Append(inv)
	f.foundInv[exName] = true
}

func (f *resultFold) addErr(exName, fpath string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fileErrors[exName] = append(f.fileErrors[exName], &plugin.FileError{
		FilePath:     fpath,
		ErrorMessage: err.Error(),
	})
}

func (f *resultFold) status(extractors []filesystem.Extractor) []*plugin.Status {
	result := make([]*plugin.Status, 0, len(extractors))
	for _, ex := range extractors {
		fileErrors := f.fileErrors[ex.Name()]
		overallErr := plugin.OverallErrFromFileErrs(fileErrors)
		result = append(result, plugin.StatusFromErr(ex, f.foundInv[ex.Name()], overallErr, fileErrors))
	}
	return result
}

func extractFile(ctx context.Context, config *Config, root *depscoutfs.ScanRoot, fpath string, idx int, fold *resultFold) {
	api := &statOnceFileAPI{fs: root.FS, path: fpath}
	matched := false
	for _, ex := range config.Extractors {
		if !ex.FileRequired(api) {
			continue
		}
		matched = true
		runExtractor(ctx, config, root, ex, fpath, idx, fold)
	}
	if !matched {
		log.Debugf("No extractor recognized %q", fpath)
	}
}

func runExtractor(ctx context.Context, config *Config, root *depscoutfs.ScanRoot, ex filesystem.Extractor, fpath string, idx int, fold *resultFold) {
	rc, err := root.FS.Open(fpath)
	if err != nil {
		fold.addErr(ex.Name(), fpath, fmt.Errorf("Open(%s): %w", fpath, err))
		return
	}
	defer rc.Close()

	info, err := rc.Stat()
	if err != nil {
		fold.addErr(ex.Name(), fpath, fmt.Errorf("stat(%s): %w", fpath, err))
		return
	}

	start := time.Now()
	results, err := ex.Extract(ctx, &filesystem.ScanInput{
		FS:     root.FS,
		Path:   fpath,
		Root:   root.Path,
		Info:   info,
		Reader: rc,
	})
	config.Stats.AfterExtractorRun(ex.Name(), &stats.AfterExtractorStats{
		Path:      fpath,
		Root:      root.Path,
		Runtime:   time.Since(start),
		Inventory: &results,
		Error:     err,
	})
	if err != nil {
		fold.addErr(ex.Name(), fpath, err)
	}

	if results.IsEmpty() {
		return
	}
	for _, pkg := range results.Packages {
		pkg.Plugins = append(pkg.Plugins, ex.Name())
		if config.StoreAbsolutePath && root.Path != "" {
			for _, l := range pkg.Locations {
				if !filepath.IsAbs(l.FilePath) {
					l.FilePath = filepath.Join(root.Path, l.FilePath)
				}
			}
		}
	}
	fold.addInv(idx, results, ex.Name())
}

type statOnceFileAPI struct {
	fs         depscoutfs.FS
	path       string
	info       fs.FileInfo
	statErr    error
	statCalled bool
}

func (api *statOnceFileAPI) Path() string { return api.path }

func (api *statOnceFileAPI) Stat() (fs.FileInfo, error) {
	if !api.statCalled {
		api.statCalled = true
		api.info, api.statErr = fs.Stat(api.fs, api.path)
	}
	return api.info, api.statErr
}
