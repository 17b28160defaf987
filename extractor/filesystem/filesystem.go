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

// Package filesystem provides the interface for dependency extraction plugins.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem/internal"
	depscoutfs "github.com/depscout/depscout/fs"
	"github.com/depscout/depscout/inventory"
	"github.com/depscout/depscout/log"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/stats"
)

// ErrNotRelativeToScanRoots is returned when one of the directories to be
// skipped is not relative to any of the scan roots.
var ErrNotRelativeToScanRoots = errors.New("path not relative to any of the scan roots")

// Extractor is the filesystem-based dependency extraction plugin, used to
// extract package declarations from manifest and lock files.
type Extractor interface {
	extractor.Extractor
	// FileRequired should return true if the file described by path and file info is
	// relevant for the extractor.
	// Note that the plugin doesn't traverse the filesystem itself but relies on the core
	// library for that.
	FileRequired(api FileAPI) bool
	// Extract extracts packages relevant for the extractor from a given file.
	Extract(ctx context.Context, input *ScanInput) (inventory.Inventory, error)
}

// FileAPI is the interface for accessing file information and path.
type FileAPI interface {
	// Stat returns the file info for the file.
	Stat() (fs.FileInfo, error)
	Path() string
}

// ScanInput describes one file to extract from.
type ScanInput struct {
	// FS for file access. This is rooted at Root.
	FS depscoutfs.FS
	// The path of the file to extract, relative to Root.
	Path string
	// The root directory where the extraction file walking started from.
	Root string
	Info fs.FileInfo
	// A reader for accessing contents of the file.
	// Note that the file is closed by the core library, not the plugin.
	Reader io.Reader
}

// defaultSkipDirNames are directories that never contain manifests worth
// extracting: version control internals, dependency caches, virtualenvs,
// build output and IDE metadata. They are skipped at any depth.
var defaultSkipDirNames = map[string]bool{
	".git":          true,
	".hg":           true,
	".svn":          true,
	"__pycache__":   true,
	".mypy_cache":   true,
	".pytest_cache": true,
	".ruff_cache":   true,
	".tox":          true,
	".eggs":         true,
	".venv":         true,
	"venv":          true,
	".env":          true,
	"env":           true,
	"node_modules":  true,
	"dist":          true,
	"build":         true,
	"target":        true,
	".idea":         true,
	".vscode":       true,
}

// System pseudo-filesystems, skipped when the walk starts at the host root.
var rootLevelSkipDirs = map[string]bool{
	"proc": true,
	"sys":  true,
	"dev":  true,
}

// Config stores the config settings for an extraction run.
type Config struct {
	Extractors []Extractor
	ScanRoots  []*depscoutfs.ScanRoot
	// Optional: Directories that the file system walk should ignore, in
	// addition to the default skip set. Note that these are not relative to
	// the ScanRoots and thus need to be sub-directories of one of the ScanRoots.
	DirsToSkip []string
	// Optional: If the regex matches a directory, it will be skipped.
	SkipDirRegex *regexp.Regexp
	// Optional: If a directory matches the glob, it will be skipped.
	SkipDirGlob glob.Glob
	// Optional: stats allows to enter a metric hook. If left nil, no metrics will be recorded.
	Stats stats.Collector
	// Optional: Whether to read symlinks.
	ReadSymlinks bool
	// Optional: Limit for visited inodes. If 0, no limit is applied.
	MaxInodes int
	// Optional: Files larger than this size in bytes are skipped. If 0, no limit is applied.
	MaxFileSize int
	// Optional: By default, source locations store a path relative to the scan
	// root. If StoreAbsolutePath is set, the absolute path is stored instead.
	StoreAbsolutePath bool
	// Optional: If true, fail the scan if any filesystem errors are encountered.
	ErrorOnFSErrors bool
}

// Run runs the specified extractors and returns their extraction results,
// as well as info about whether the plugin runs completed successfully.
func Run(ctx context.Context, config *Config) (inventory.Inventory, []*plugin.Status, error) {
	if len(config.Extractors) == 0 {
		return inventory.Inventory{}, []*plugin.Status{}, nil
	}

	scanRoots, err := expandAllAbsolutePaths(config.ScanRoots)
	if err != nil {
		return inventory.Inventory{}, nil, err
	}

	wc, err := InitWalkContext(ctx, config, scanRoots)
	if err != nil {
		return inventory.Inventory{}, nil, err
	}

	var status []*plugin.Status
	inv := inventory.Inventory{}
	for _, root := range scanRoots {
		newInv, st, err := runOnScanRoot(ctx, config, root, wc)
		if err != nil {
			return inv, nil, err
		}

		inv.Append(newInv)
		status = append(status, st...)
	}

	return inv, status, nil
}

func runOnScanRoot(ctx context.Context, config *Config, scanRoot *depscoutfs.ScanRoot, wc *walkContext) (inventory.Inventory, []*plugin.Status, error) {
	abs := ""
	var err error
	if !scanRoot.IsVirtual() {
		abs, err = filepath.Abs(scanRoot.Path)
		if err != nil {
			return inventory.Inventory{}, nil, err
		}
	}
	if err = wc.UpdateScanRoot(abs, scanRoot.FS); err != nil {
		return inventory.Inventory{}, nil, err
	}

	return RunFS(ctx, config, wc)
}

// InitWalkContext initializes the walk context for a filesystem walk. It strips all the paths that
// are expected to be relative to the scan root.
// This function is exported for TESTS ONLY.
func InitWalkContext(ctx context.Context, config *Config, absScanRoots []*depscoutfs.ScanRoot) (*walkContext, error) {
	dirsToSkip, err := stripAllPathPrefixes(config.DirsToSkip, absScanRoots)
	if err != nil {
		return nil, err
	}
	dirsToSkip = toSlashPaths(dirsToSkip)

	return &walkContext{
		ctx:               ctx,
		stats:             config.Stats,
		extractors:        config.Extractors,
		dirsToSkip:        pathStringListToMap(dirsToSkip),
		skipDirRegex:      config.SkipDirRegex,
		skipDirGlob:       config.SkipDirGlob,
		readSymlinks:      config.ReadSymlinks,
		maxInodes:         config.MaxInodes,
		maxFileSize:       config.MaxFileSize,
		inodesVisited:     0,
		storeAbsolutePath: config.StoreAbsolutePath,
		errorOnFSErrors:   config.ErrorOnFSErrors,

		lastStatus: time.Now(),

		inventory:  inventory.Inventory{},
		fileErrors: make(map[string][]*plugin.FileError),
		foundInv:   make(map[string]bool),

		fileAPI: &lazyFileAPI{},
	}, nil
}

// RunFS runs the specified extractors on the walk context's filesystem and
// returns their extraction results, as well as info about whether the plugin
// runs completed successfully.
// This method is exported for testing, use Run() in production code.
func RunFS(ctx context.Context, config *Config, wc *walkContext) (inventory.Inventory, []*plugin.Status, error) {
	start := time.Now()
	if wc == nil || wc.fs == nil {
		return inventory.Inventory{}, nil, errors.New("walk context is nil")
	}

	log.Infof("Starting filesystem walk for root: %v", wc.scanRoot)
	ticker := time.NewTicker(2 * time.Second)
	quit := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				wc.printStatus()
			case <-quit:
				ticker.Stop()
				return
			}
		}
	}()

	err := internal.WalkDirUnsorted(wc.fs, ".", wc.handleFile)

	close(quit)

	log.Infof("End status: %d dirs visited, %d inodes visited, %d Extract calls, %s elapsed",
		wc.dirsVisited, wc.inodesVisited, wc.extractCalls, time.Since(start))

	return wc.inventory, wc.extractorStatus(config.Extractors), err
}

type walkContext struct {
	//nolint:containedctx
	ctx               context.Context
	stats             stats.Collector
	extractors        []Extractor
	fs                depscoutfs.FS
	scanRoot          string
	dirsToSkip        map[string]bool // Anything under these paths should be skipped.
	skipDirRegex      *regexp.Regexp
	skipDirGlob       glob.Glob
	maxInodes         int
	inodesVisited     int
	maxFileSize       int // In bytes.
	dirsVisited       int
	storeAbsolutePath bool
	errorOnFSErrors   bool

	// Packages found.
	inventory inventory.Inventory
	// Extractor name to per-file errors, for reporting which files failed.
	fileErrors map[string][]*plugin.FileError
	// Whether an extractor found any packages.
	foundInv map[string]bool
	// Whether to read symlinks.
	readSymlinks bool

	// Data for status printing.
	lastStatus   time.Time
	lastInodes   int
	extractCalls int
	lastExtracts int

	currentPath string
	fileAPI     *lazyFileAPI
}

func (wc *walkContext) handleFile(fpath string, d fs.DirEntry, fserr error) error {
	wc.currentPath = fpath

	wc.inodesVisited++
	if wc.maxInodes > 0 && wc.inodesVisited > wc.maxInodes {
		return fmt.Errorf("maxInodes (%d) exceeded", wc.maxInodes)
	}

	wc.stats.AfterInodeVisited(fpath)
	if wc.ctx.Err() != nil {
		return wc.ctx.Err()
	}
	if fserr != nil {
		if wc.errorOnFSErrors {
			return fmt.Errorf("handleFile(%q) fserr: %w", fpath, fserr)
		}
		if os.IsPermission(fserr) {
			// Permission errors are expected when traversing the entire filesystem.
			log.Debugf("fserr (permission error): %v", fserr)
		} else {
			log.Errorf("fserr (non-permission error): %v", fserr)
		}
		return nil
	}

	wc.fileAPI.currentPath = fpath
	wc.fileAPI.currentStatCalled = false

	if d.Type().IsDir() {
		wc.dirsVisited++
		if wc.shouldSkipDir(fpath) { // Skip everything inside this dir.
			return fs.SkipDir
		}
		return nil
	}

	// Ignore non regular files except symlinks.
	if !d.Type().IsRegular() {
		// Ignore the file because symlink reading is disabled.
		if !wc.readSymlinks {
			return nil
		}
		// Ignore non-symlinks.
		if (d.Type() & fs.ModeType) != fs.ModeSymlink {
			return nil
		}
	}

	fSize := int64(-1) // -1 means we haven't checked the file size yet.
	for _, ex := range wc.extractors {
		if !ex.FileRequired(wc.fileAPI) {
			continue
		}
		if wc.maxFileSize > 0 && fSize == -1 {
			var err error
			fSize, err = fileSize(wc.fileAPI)
			if err != nil {
				return fmt.Errorf("failed to get file size for %q: %w", fpath, err)
			}
			if fSize > int64(wc.maxFileSize) {
				log.Debugf("Skipping file %q because it has size %d bytes and the maximum is %d bytes", fpath, fSize, wc.maxFileSize)
				return nil
			}
		}

		wc.runExtractor(ex, fpath)
	}
	return nil
}

type lazyFileAPI struct {
	fs                depscoutfs.FS
	currentPath       string
	currentFileInfo   fs.FileInfo
	currentStatErr    error
	currentStatCalled bool
}

func (api *lazyFileAPI) Path() string {
	return api.currentPath
}
func (api *lazyFileAPI) Stat() (fs.FileInfo, error) {
	if !api.currentStatCalled {
		api.currentStatCalled = true
		api.currentFileInfo, api.currentStatErr = fs.Stat(api.fs, api.currentPath)
	}
	return api.currentFileInfo, api.currentStatErr
}

func (wc *walkContext) shouldSkipDir(p string) bool {
	base := path.Base(p)
	if defaultSkipDirNames[base] {
		return true
	}
	if rootLevelSkipDirs[p] && wc.scanRoot == "/" {
		return true
	}
	if _, ok := wc.dirsToSkip[p]; ok {
		return true
	}
	if wc.skipDirRegex != nil && wc.skipDirRegex.MatchString(p) {
		return true
	}
	if wc.skipDirGlob != nil && wc.skipDirGlob.Match(p) {
		return true
	}
	return false
}

func (wc *walkContext) runExtractor(ex Extractor, fpath string) {
	rc, err := wc.fs.Open(fpath)
	if err != nil {
		wc.addErr(ex.Name(), fpath, fmt.Errorf("Open(%s): %w", fpath, err))
		return
	}
	defer rc.Close()

	info, err := rc.Stat()
	if err != nil {
		wc.addErr(ex.Name(), fpath, fmt.Errorf("stat(%s): %w", fpath, err))
		return
	}

	wc.extractCalls++

	start := time.Now()
	results, err := ex.Extract(wc.ctx, &ScanInput{
		FS:     wc.fs,
		Path:   fpath,
		Root:   wc.scanRoot,
		Info:   info,
		Reader: rc,
	})
	wc.stats.AfterExtractorRun(ex.Name(), &stats.AfterExtractorStats{
		Path:      fpath,
		Root:      wc.scanRoot,
		Runtime:   time.Since(start),
		Inventory: &results,
		Error:     err,
	})

	if err != nil {
		wc.addErr(ex.Name(), fpath, err)
	}

	if !results.IsEmpty() {
		wc.foundInv[ex.Name()] = true
		for _, pkg := range results.Packages {
			pkg.Plugins = append(pkg.Plugins, ex.Name())
			if wc.storeAbsolutePath {
				expandAbsolutePath(wc.scanRoot, pkg.Locations)
			}
		}
		wc.inventory.Append(results)
	}
}

// UpdateScanRoot updates the scan root and the filesystem to use for the filesystem walk.
// currentRoot is expected to be an absolute path.
func (wc *walkContext) UpdateScanRoot(absRoot string, fs depscoutfs.FS) error {
	wc.scanRoot = absRoot
	wc.fs = fs
	wc.fileAPI.fs = fs
	return nil
}

func (wc *walkContext) addErr(name, fpath string, err error) {
	wc.fileErrors[name] = append(wc.fileErrors[name], &plugin.FileError{
		FilePath:     fpath,
		ErrorMessage: err.Error(),
	})
}

func (wc *walkContext) extractorStatus(extractors []Extractor) []*plugin.Status {
	result := make([]*plugin.Status, 0, len(extractors))
	for _, ex := range extractors {
		fileErrors := wc.fileErrors[ex.Name()]
		overallErr := plugin.OverallErrFromFileErrs(fileErrors)
		result = append(result, plugin.StatusFromErr(ex, wc.foundInv[ex.Name()], overallErr, fileErrors))
	}
	return result
}

func expandAbsolutePath(scanRoot string, locations []*extractor.SourceLocation) {
	if scanRoot == "" {
		// Virtual filesystem with no real location on disk.
		return
	}
	for _, l := range locations {
		if !filepath.IsAbs(l.FilePath) {
			l.FilePath = filepath.Join(scanRoot, l.FilePath)
		}
	}
}

func expandAllAbsolutePaths(scanRoots []*depscoutfs.ScanRoot) ([]*depscoutfs.ScanRoot, error) {
	var result []*depscoutfs.ScanRoot
	for _, r := range scanRoots {
		abs, err := r.WithAbsolutePath()
		if err != nil {
			return nil, err
		}
		result = append(result, abs)
	}

	return result, nil
}

func stripAllPathPrefixes(paths []string, scanRoots []*depscoutfs.ScanRoot) ([]string, error) {
	if len(scanRoots) > 0 && scanRoots[0].IsVirtual() {
		// We're using a virtual filesystem with no real absolute paths.
		return paths, nil
	}
	result := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}

		rp, err := stripFromAtLeastOnePrefix(abs, scanRoots)
		if err != nil {
			return nil, err
		}
		result = append(result, rp)
	}

	return result, nil
}

// toSlashPaths returns a new []string that converts all paths to use /
func toSlashPaths(paths []string) []string {
	returnPaths := make([]string, len(paths))
	for i, s := range paths {
		returnPaths[i] = filepath.ToSlash(s)
	}

	return returnPaths
}

// stripFromAtLeastOnePrefix returns the path relative to the first prefix it is relative to.
// If the path is not relative to any of the prefixes, an error is returned.
// The path is expected to be absolute.
func stripFromAtLeastOnePrefix(path string, scanRoots []*depscoutfs.ScanRoot) (string, error) {
	for _, r := range scanRoots {
		if !strings.HasPrefix(path, r.Path) {
			continue
		}
		rel, err := filepath.Rel(r.Path, path)
		if err != nil {
			return "", err
		}

		return rel, nil
	}

	return "", ErrNotRelativeToScanRoots
}

func pathStringListToMap(paths []string) map[string]bool {
	result := make(map[string]bool)
	for _, p := range paths {
		result[p] = true
	}
	return result
}

func (wc *walkContext) printStatus() {
	log.Infof("Status: new inodes: %d, %.1f inodes/s, new extract calls: %d, path: %q\n",
		wc.inodesVisited-wc.lastInodes,
		float64(wc.inodesVisited-wc.lastInodes)/time.Since(wc.lastStatus).Seconds(),
		wc.extractCalls-wc.lastExtracts, wc.currentPath)

	wc.lastStatus = time.Now()
	wc.lastInodes = wc.inodesVisited
	wc.lastExtracts = wc.extractCalls
}

func fileSize(file FileAPI) (int64, error) {
	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
