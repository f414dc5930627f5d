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
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dtest/internal/harness"
	"dtest/internal/scenarios"
)

var failFast bool

var runCmd = &cobra.Command{
	Use:   "run [scenario...]",
	Short: "Run scenarios",
	Long: `Run the named scenarios, or all of them, one after another.

The exit status is 0 when everything passed, 1 when any scenario failed and
77 when every scenario was skipped.

Examples:
  dtest run
  dtest run cookie dump
  dtest run --testroot /tmp/dt --log-level debug search`,
	RunE: runScenarios,
}

func init() {
	runCmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop after the first failing scenario")
	rootCmd.AddCommand(runCmd)
}

func runScenarios(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	selected, err := scenarios.Select(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver := harness.NewDriver(s)
	results := make([]harness.Result, 0, len(selected))
	for _, sc := range selected {
		if ctx.Err() != nil {
			break
		}
		res := driver.Run(ctx, sc)
		results = append(results, res)
		if failFast && res.ExitCode() == harness.ExitFailed {
			break
		}
	}

	printSummary(cmd.OutOrStdout(), results)
	if code := harness.ExitCode(results); code != harness.ExitPassed {
		return &ExitError{Code: code}
	}
	return nil
}

func printSummary(w io.Writer, results []harness.Result) {
	for _, res := range results {
		status := "OK"
		switch res.ExitCode() {
		case harness.ExitFailed:
			status = "FAILED"
		case harness.ExitSkipped:
			status = "SKIPPED"
		}
		line := fmt.Sprintf("%-14s %-8s %6s", res.Scenario, status, res.Duration.Round(100*time.Millisecond))
		switch {
		case res.Err != nil:
			line += "  " + res.Err.Error()
		case res.Failures > 0:
			line += fmt.Sprintf("  %d failure(s)", res.Failures)
		case res.Skipped:
			line += "  " + res.Reason
		}
		fmt.Fprintln(w, line)
	}
}
