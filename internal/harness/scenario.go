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

// Package harness runs scenarios against a freshly configured daemon: it owns
// the test root, the port pair, the fixture collection and the daemon process
// for the lifetime of one run.
package harness

import (
	"fmt"
	"time"

	"dtest/internal/common"
	"dtest/internal/fixture"
)

// Scenario is one self-contained test case.
type Scenario struct {
	Name        string
	Description string

	// Setup populates the collection. Nil creates fixture.StandardTracks.
	Setup func(b *fixture.Builder) error

	// Manual scenarios start the daemon themselves, typically after
	// rewriting the configuration.
	Manual bool

	Run func(r *Run)
}

func (sc Scenario) validate() error {
	if sc.Name == "" {
		return fmt.Errorf("scenario has no name: %w", common.ErrUsage)
	}
	if sc.Run == nil {
		return fmt.Errorf("scenario %s has no body: %w", sc.Name, common.ErrUsage)
	}
	return nil
}

func (sc Scenario) setup(b *fixture.Builder) error {
	if sc.Setup == nil {
		return b.CreateAll(fixture.StandardTracks())
	}
	return sc.Setup(b)
}

// Process exit statuses.
const (
	ExitPassed  = 0
	ExitFailed  = 1
	ExitSkipped = 77
)

// Result is the outcome of one scenario run.
type Result struct {
	Scenario string
	RunID    string
	Failures int
	Skipped  bool
	Reason   string // why the scenario skipped
	Err      error  // the run could not be set up or torn down
	Duration time.Duration
}

// Passed reports whether the scenario ran to completion without failures.
func (r Result) Passed() bool { return r.Err == nil && r.Failures == 0 && !r.Skipped }

// ExitCode maps the result to a process exit status. Failures win over a
// skip.
func (r Result) ExitCode() int {
	switch {
	case r.Err != nil || r.Failures > 0:
		return ExitFailed
	case r.Skipped:
		return ExitSkipped
	default:
		return ExitPassed
	}
}

// ExitCode combines several results: any failure fails the batch, and the
// batch only counts as skipped when every scenario skipped.
func ExitCode(results []Result) int {
	if len(results) == 0 {
		return ExitPassed
	}
	skipped := 0
	for _, r := range results {
		switch r.ExitCode() {
		case ExitFailed:
			return ExitFailed
		case ExitSkipped:
			skipped++
		}
	}
	if skipped == len(results) {
		return ExitSkipped
	}
	return ExitPassed
}
