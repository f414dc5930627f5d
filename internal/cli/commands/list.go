// Copyright 2024 LatentFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"dtest/internal/scenarios"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available scenarios",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		for _, name := range scenarios.Names() {
			sc, _ := scenarios.Lookup(name)
			fmt.Fprintf(w, "%-14s %s\n", sc.Name, sc.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
