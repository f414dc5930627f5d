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

package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"dtest/internal/client"
	"dtest/internal/common"
	"dtest/internal/harness"
	"dtest/internal/scenarios"
	"dtest/internal/util"
)

// TestScenarios runs every registered scenario against a real daemon.
func TestScenarios(t *testing.T) {
	requireDaemon(t)

	for _, sc := range scenarios.All() {
		t.Run(sc.Name, func(t *testing.T) {
			g := NewWithT(t)
			env := NewTestEnv(t)

			res := env.Run(sc)
			if res.Skipped {
				t.Skip(res.Reason)
			}
			g.Expect(res.Err).NotTo(HaveOccurred())
			g.Expect(res.Failures).To(BeZero())
			g.Expect(res.ExitCode()).To(Equal(harness.ExitPassed))
		})
	}
}

// TestDaemonLifecycle checks the supervisor against the real daemon:
// ready means the socket exists, and stopping twice is harmless.
func TestDaemonLifecycle(t *testing.T) {
	g := NewWithT(t)
	env := NewTestEnv(t)

	res := env.Run(harness.Scenario{
		Name: "lifecycle",
		Run: func(r *harness.Run) {
			_, err := os.Stat(r.Params().SocketPath())
			r.Check(err == nil, "socket missing after start: %v", err)
			sup := r.Supervisor()
			pid := sup.PID()

			r.StopDaemon()
			r.Check(!sup.Tracked(), "still tracked after stop")
			r.Check(!util.IsProcessRunning(pid), "process %d survived stop", pid)
			r.StopDaemon()
			r.Check(!sup.Tracked(), "second stop changed state")

			r.StartDaemon()
			err = sup.Start(r.Context(), "again")
			r.Check(err != nil && strings.Contains(err.Error(), "already"), "double start: %v", err)
		},
	})
	g.Expect(res.Passed()).To(BeTrue(), "%+v", res)
}

// TestRejectedVersusConnectionFailure checks outcome classification on a
// live daemon.
func TestRejectedVersusConnectionFailure(t *testing.T) {
	g := NewWithT(t)
	env := NewTestEnv(t)

	res := env.Run(harness.Scenario{
		Name: "outcomes",
		Run: func(r *harness.Run) {
			r.CreateDefaultUser()

			_, err := r.ConnectAs(r.Params().Username, "wrong password")
			r.Check(client.KindOf(err) == client.KindRejected, "bad password gave %v", client.OutcomeOf(err))

			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			_, err = client.Dial(ctx, filepath.Join(r.Params().Home(), "no-socket"), client.Credentials{})
			r.Check(client.KindOf(err) == client.KindConnFailed, "missing socket gave %v", client.OutcomeOf(err))
		},
	})
	g.Expect(res.Passed()).To(BeTrue(), "%+v", res)
}

// TestEventSubscription reads the event log. The daemon reports its
// current state when the log opens, so a disabled daemon says so first.
func TestEventSubscription(t *testing.T) {
	g := NewWithT(t)
	env := NewTestEnv(t)

	res := env.Run(harness.Scenario{
		Name: "events",
		Run: func(r *harness.Run) {
			r.CreateDefaultUser()
			r.Must(r.Connect().Disable(), "disable")

			ev, ok := r.Subscribe(5*time.Second, func(ev client.Event) client.Verdict {
				if ev.Type == "state" && ev.Arg(0) == "disable_play" {
					return client.Stop
				}
				return client.KeepWaiting
			})
			if r.Check(ok, "no disable_play state in the event log") {
				r.Check(!ev.Time.IsZero(), "event without a timestamp")
			}

			_, ok = r.Subscribe(500*time.Millisecond, func(client.Event) client.Verdict { return client.KeepWaiting })
			r.Check(!ok, "subscription with a predicate that never stops did not time out")
		},
	})
	g.Expect(res.Passed()).To(BeTrue(), "%+v", res)
}

// TestCLI drives bin/dtest end to end.
func TestCLI(t *testing.T) {
	g := NewWithT(t)
	env := NewTestEnv(t)

	out, code := env.RunCLI("list")
	g.Expect(code).To(Equal(0), out)
	g.Expect(out).To(ContainSubstring("cookie"))

	out, code = env.RunCLI("run", "version")
	g.Expect(code).To(Equal(harness.ExitPassed), out)
	g.Expect(out).To(MatchRegexp(`version\s+OK`))
	g.Expect(filepath.Join(env.Settings.TestRoot, "version.log")).To(BeAnExistingFile())

	out, code = env.RunCLI("run", "no-such-scenario")
	g.Expect(code).To(Equal(harness.ExitFailed), out)
	g.Expect(out).To(ContainSubstring(common.ErrUsage.Error()))
}
