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
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/CycloneDX/cyclonedx-go"
	"github.com/gobwas/glob"
	spdxjson "github.com/spdx/tools-golang/json"
	"github.com/spf13/cobra"

	"github.com/depscout/depscout"
	"github.com/depscout/depscout/converter"
	"github.com/depscout/depscout/extractor/filesystem"
	"github.com/depscout/depscout/extractor/filesystem/list"
	depscoutfs "github.com/depscout/depscout/fs"
	"github.com/depscout/depscout/log"
	"github.com/depscout/depscout/plugin"
	"github.com/depscout/depscout/policy"
	"github.com/depscout/depscout/result"
)

type scanOptions struct {
	output            string
	format            string
	extractors        []string
	paths             []string
	skipDirs          []string
	skipDirRegex      string
	skipDirGlob       string
	excludePkgs       []string
	includePkgs       []string
	maxFileSize       int
	maxInodes         int
	storeAbsolutePath bool
}

func newScanCmd(quiet *bool) *cobra.Command {
	o := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan <root>",
		Short: "Scan a directory tree and report the dependencies it declares",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.scanConfig(args[0])
			if err != nil {
				return err
			}
			res := depscout.New().Scan(cmd.Context(), cfg)
			if !*quiet {
				reportPluginFailures(res)
			}
			if err := o.writeResult(res, cmd.OutOrStdout()); err != nil {
				return err
			}
			if res.Status.Status == plugin.ScanStatusFailed {
				return fmt.Errorf("scan failed: %s", res.Status.FailureReason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&o.output, "output", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().StringVar(&o.format, "format", "json", "output format (json, spdx-json, cdx-json)")
	cmd.Flags().StringSliceVar(&o.extractors, "extractors", []string{"default"}, "extractors or extractor groups to enable")
	cmd.Flags().StringSliceVar(&o.paths, "paths", nil, "only extract from these files, relative to the scan root")
	cmd.Flags().StringSliceVar(&o.skipDirs, "skip-dirs", nil, "directories the filesystem walk should ignore")
	cmd.Flags().StringVar(&o.skipDirRegex, "skip-dir-regex", "", "skip directories matching this regex")
	cmd.Flags().StringVar(&o.skipDirGlob, "skip-dir-glob", "", "skip directories matching this glob")
	cmd.Flags().StringSliceVar(&o.excludePkgs, "exclude-pkg", nil, "package names to drop from the report")
	cmd.Flags().StringSliceVar(&o.includePkgs, "include-pkg", nil, "package names to report even when a built-in rule excludes them")
	cmd.Flags().IntVar(&o.maxFileSize, "max-file-size", 0, "skip files larger than this many bytes (0 for no limit)")
	cmd.Flags().IntVar(&o.maxInodes, "max-inodes", 0, "stop the walk after visiting this many inodes (0 for no limit)")
	cmd.Flags().BoolVar(&o.storeAbsolutePath, "store-absolute-path", false, "report absolute file paths instead of paths relative to the scan root")

	return cmd
}

func (o *scanOptions) scanConfig(root string) (*depscout.ScanConfig, error) {
	if _, ok := formatWriters[o.format]; !ok {
		return nil, fmt.Errorf("--format: %q not recognized, supported formats are json, spdx-json, cdx-json", o.format)
	}
	extractors, err := list.ExtractorsFromNames(o.extractors)
	if err != nil {
		return nil, fmt.Errorf("--extractors: %w", err)
	}
	if len(o.excludePkgs) > 0 || len(o.includePkgs) > 0 {
		pol := policy.New(policy.Config{
			ExtraExcluded: o.excludePkgs,
			ExtraAllowed:  o.includePkgs,
		})
		extractors = withPolicy(extractors, pol)
	}
	var skipDirRegex *regexp.Regexp
	if o.skipDirRegex != "" {
		skipDirRegex, err = regexp.Compile(o.skipDirRegex)
		if err != nil {
			return nil, fmt.Errorf("--skip-dir-regex: %w", err)
		}
	}
	var skipDirGlob glob.Glob
	if o.skipDirGlob != "" {
		skipDirGlob, err = glob.Compile(o.skipDirGlob)
		if err != nil {
			return nil, fmt.Errorf("--skip-dir-glob: %w", err)
		}
	}
	return &depscout.ScanConfig{
		Extractors:        extractors,
		Capabilities:      &plugin.Capabilities{DirectFS: true},
		ScanRoots:         depscoutfs.RealFSScanRoots(root),
		PathsToExtract:    o.paths,
		DirsToSkip:        o.skipDirs,
		SkipDirRegex:      skipDirRegex,
		SkipDirGlob:       skipDirGlob,
		MaxFileSize:       o.maxFileSize,
		MaxInodes:         o.maxInodes,
		StoreAbsolutePath: o.storeAbsolutePath,
	}, nil
}

// withPolicy replaces each extractor that supports inclusion policies with a
// copy that consults pol.
func withPolicy(extractors []filesystem.Extractor, pol *policy.Policy) []filesystem.Extractor {
	type policySetter interface {
		WithPolicy(*policy.Policy) filesystem.Extractor
	}
	for i, ex := range extractors {
		if ps, ok := ex.(policySetter); ok {
			extractors[i] = ps.WithPolicy(pol)
		}
	}
	return extractors
}

// reportPluginFailures logs the extractors that reported errors, along with
// the files they failed on.
func reportPluginFailures(res *result.ScanResult) {
	for _, st := range res.PluginStatus {
		if st.Status.Status == plugin.ScanStatusSucceeded {
			continue
		}
		log.Warnf("%s: %s", st.Name, st.Status.FailureReason)
		for _, fe := range st.Status.FileErrors {
			log.Warnf("%s: failed on %s: %s", st.Name, fe.FilePath, fe.ErrorMessage)
		}
	}
}

var formatWriters = map[string]func(res *result.ScanResult, w io.Writer) error{
	"json":      writeJSON,
	"spdx-json": writeSPDXJSON,
	"cdx-json":  writeCDXJSON,
}

func (o *scanOptions) writeResult(res *result.ScanResult, stdout io.Writer) error {
	w := stdout
	if o.output != "" {
		f, err := os.Create(o.output)
		if err != nil {
			return fmt.Errorf("--output: %w", err)
		}
		defer f.Close()
		w = f
	}
	return formatWriters[o.format](res, w)
}

func writeJSON(res *result.ScanResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(converter.ToJSONReport(res))
}

func writeSPDXJSON(res *result.ScanResult, w io.Writer) error {
	doc := converter.ToSPDX23(res, converter.SPDXConfig{})
	return spdxjson.Write(doc, w, spdxjson.Indent("  "))
}

func writeCDXJSON(res *result.ScanResult, w io.Writer) error {
	bom := converter.ToCDX(res, converter.CDXConfig{})
	return cyclonedx.NewBOMEncoder(w, cyclonedx.BOMFileFormatJSON).SetPretty(true).Encode(bom)
}
