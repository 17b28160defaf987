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
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/depscout/depscout/extractor/filesystem/list"
)

func newExtractorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extractors",
		Short: "List the registered extractors by group",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			groups := []struct {
				name string
				m    list.InitMap
			}{
				{"python", list.PythonSource},
				{"javascript", list.JavascriptSource},
				{"containers", list.Containers},
			}
			for _, g := range groups {
				fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", g.name)
				names := make([]string, 0, len(g.m))
				for name := range g.m {
					names = append(names, name)
				}
				slices.Sort(names)
				for _, name := range names {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
				}
			}
		},
	}
}
