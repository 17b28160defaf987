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

// Package cli implements the depscout command-line interface.
package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/depscout/depscout/log"
	"github.com/depscout/depscout/version"
)

// Execute runs the depscout CLI. It returns an error if any command fails.
func Execute(ctx context.Context) error {
	var verbose bool
	var quiet bool

	root := &cobra.Command{
		Use:          "depscout",
		Short:        "depscout extracts declared dependencies from manifest and lock files",
		Long:         "depscout scans a directory tree for Python, JavaScript and container manifest files and reports the dependencies they declare, with the file and line each one came from.",
		Version:      version.ScannerVersion,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			if quiet {
				level = charmlog.ErrorLevel
			}
			log.SetLogger(newLogger(os.Stderr, level))
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors")
	root.MarkFlagsMutuallyExclusive("verbose", "quiet")

	root.AddCommand(newScanCmd(&quiet))
	root.AddCommand(newExtractorsCmd())

	return root.ExecuteContext(ctx)
}
