// Package extracttest provides structures to help create tabular tests for extractors.
package extracttest

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/depscout/depscout/extractor"
	"github.com/depscout/depscout/extractor/filesystem"
	depscoutfs "github.com/depscout/depscout/fs"
	"github.com/depscout/depscout/testing/fakefs"
)

// ScanInputMockConfig describes the file a test should feed to an extractor.
type ScanInputMockConfig struct {
	Path string
	// FakeScanRoot allows you to set a custom scanRoot, can be relative or absolute,
	// and will be translated to an absolute path
	FakeScanRoot string
	FakeFileInfo *fakefs.FakeFileInfo
}

// TestTableEntry is a single Extract test case.
type TestTableEntry struct {
	Name         string
	InputConfig  ScanInputMockConfig
	WantPackages []*extractor.Package
	WantErr      error
}

// GenerateScanInputMock opens the fixture named in the config and wraps it in
// a ScanInput. Close the input with CloseTestScanInput.
func GenerateScanInputMock(t *testing.T, config ScanInputMockConfig) filesystem.ScanInput {
	t.Helper()

	var scanRoot string
	if filepath.IsAbs(config.FakeScanRoot) {
		scanRoot = config.FakeScanRoot
	} else {
		workingDir, err := os.Getwd()
		if err != nil {
			t.Fatalf("Can't get working directory because '%s'", workingDir)
		}
		scanRoot = filepath.Join(workingDir, config.FakeScanRoot)
	}

	f, err := os.Open(filepath.Join(scanRoot, config.Path))
	if err != nil {
		t.Fatalf("Can't open test fixture '%s' because '%s'", config.Path, err)
	}
	var info os.FileInfo
	if config.FakeFileInfo != nil {
		info = *config.FakeFileInfo
	} else {
		info, err = f.Stat()
		if err != nil {
			t.Fatalf("Can't stat test fixture '%s' because '%s'", config.Path, err)
		}
	}

	return filesystem.ScanInput{
		FS:     depscoutfs.DirFS(scanRoot),
		Path:   config.Path,
		Root:   scanRoot,
		Reader: f,
		Info:   info,
	}
}

// CloseTestScanInput closes the file handle that GenerateScanInputMock left
// open behind the input's Reader.
func CloseTestScanInput(t *testing.T, si filesystem.ScanInput) {
	t.Helper()

	if closer, ok := si.Reader.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			t.Errorf("closing scan input for %q: %v", si.Path, err)
		}
	}
}
