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

package harness

import (
	"context"
	"errors"
	"path/filepath"
	"runtime/debug"
	"time"

	billy "github.com/go-git/go-billy/v5"
	logrus "github.com/sirupsen/logrus"

	"dtest/internal/client"
	"dtest/internal/config"
	"dtest/internal/fixture"
	"dtest/internal/maint"
	"dtest/internal/oracle"
	"dtest/internal/ports"
	"dtest/internal/supervisor"
	"dtest/internal/util"
)

const (
	shutdownRequestTimeout = 2 * time.Second
	teardownTimeout        = 30 * time.Second
)

// abort and skip unwind a scenario body back to Run.execute.
type abort struct{}

type skip struct{ reason string }

// Run is the state of one scenario run: paths, ports, fixtures, the daemon
// and the failure count. Scenario bodies receive it and use its helpers.
type Run struct {
	ctx      context.Context
	name     string
	logger   *logrus.Entry
	settings *config.Settings
	params   config.Params
	alloc    *ports.Allocator
	fs       billy.Filesystem
	builder  *fixture.Builder
	sup      *supervisor.Supervisor
	maint    *maint.Commander
	clients  []*client.Client
	procs    []*util.Process

	failures   int
	skipped    bool
	skipReason string
	err        error
}

func (r *Run) execute(sc Scenario) {
	defer func() {
		switch p := recover().(type) {
		case nil, abort:
		case skip:
			r.skipped = true
			r.skipReason = p.reason
		default:
			r.failures++
			r.logger.WithField("panic", p).Errorf("scenario panicked\n%s", debug.Stack())
		}
	}()
	if !sc.Manual {
		r.StartDaemon()
	}
	sc.Run(r)
}

func (r *Run) teardown() {
	for _, c := range r.clients {
		c.Close()
	}
	r.clients = nil

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), teardownTimeout)
	defer cancel()
	for _, p := range r.procs {
		util.StopProcess(ctx, p, util.ProcessConfig{}, nil)
	}
	r.procs = nil
	if err := r.sup.Stop(ctx); err != nil {
		r.logger.WithError(err).Warn("daemon did not stop cleanly, killing it")
		r.sup.Kill()
	}
}

// requestShutdown is the supervisor's graceful hook.
func (r *Run) requestShutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownRequestTimeout)
	defer cancel()
	c, err := client.Dial(ctx, r.params.SocketPath(), r.credentials())
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Shutdown()
}

func (r *Run) credentials() client.Credentials {
	return client.Credentials{Username: r.params.Username, Password: r.params.Password}
}

// Context is the run's context.
func (r *Run) Context() context.Context { return r.ctx }

// Logger carries the run and scenario fields.
func (r *Run) Logger() *logrus.Entry { return r.logger }

// Logf logs a progress message.
func (r *Run) Logf(format string, args ...any) { r.logger.Infof(format, args...) }

// Failures is the number of failures recorded so far.
func (r *Run) Failures() int { return r.failures }

// Fail records a failure and carries on.
func (r *Run) Fail(format string, args ...any) {
	r.failures++
	r.logger.Errorf("assertion failed: "+format, args...)
}

// Check records a failure when cond is false and returns cond.
func (r *Run) Check(cond bool, format string, args ...any) bool {
	if !cond {
		r.Fail(format, args...)
	}
	return cond
}

// Fatal records a failure and ends the scenario. Teardown still runs.
func (r *Run) Fatal(format string, args ...any) {
	r.Fail(format, args...)
	panic(abort{})
}

// Must ends the scenario when err is not nil.
func (r *Run) Must(err error, what string) {
	if err != nil {
		r.Fatal("%s: %v", what, err)
	}
}

// Skip ends the scenario without recording a failure.
func (r *Run) Skip(reason string) {
	panic(skip{reason: reason})
}

// ExpectRejected records a failure unless err is a server rejection. A
// connection failure is not an expected outcome and ends the scenario.
func (r *Run) ExpectRejected(err error, what string) bool {
	o := client.OutcomeOf(err)
	switch o.Kind {
	case client.KindRejected:
		r.logger.WithField("code", o.Code).Debugf("%s rejected as expected: %s", what, o.Reason)
		return true
	case client.KindConnFailed:
		r.Fatal("%s: %v", what, err)
	default:
		r.Fail("%s unexpectedly succeeded", what)
	}
	return false
}

// Params returns the current daemon configuration inputs.
func (r *Run) Params() config.Params { return r.params }

// Settings returns the harness settings.
func (r *Run) Settings() *config.Settings { return r.settings }

// FS is the test root as a filesystem.
func (r *Run) FS() billy.Filesystem { return r.fs }

// Fixtures is the collection builder and its index.
func (r *Run) Fixtures() *fixture.Builder { return r.builder }

// Track returns the absolute name of the fixture track rel.
func (r *Run) Track(rel string) string { return r.builder.TrackPath(rel) }

// DumpPath is where dump scenarios write the database dump.
func (r *Run) DumpPath() string { return filepath.Join(r.params.TestRoot, config.DumpFile) }

// Supervisor returns the daemon supervisor.
func (r *Run) Supervisor() *supervisor.Supervisor { return r.sup }

// StartDaemon revalidates the ports and starts the daemon, ending the
// scenario if it does not become ready.
func (r *Run) StartDaemon() {
	if err := r.revalidatePorts(); err != nil {
		r.fatalErr(err)
	}
	if err := r.sup.Start(r.ctx, r.name); err != nil {
		r.fatalErr(err)
	}
}

// StopDaemon stops the daemon if it is running.
func (r *Run) StopDaemon() {
	for _, c := range r.clients {
		c.Close()
	}
	r.clients = nil
	if err := r.sup.Stop(r.ctx); err != nil {
		r.Fail("stop daemon: %v", err)
		r.sup.Kill()
	}
}

// RestartDaemon stops and starts the daemon.
func (r *Run) RestartDaemon() {
	r.StopDaemon()
	r.StartDaemon()
}

// DaemonRunning reports whether the daemon is up.
func (r *Run) DaemonRunning() bool { return r.sup.Running() }

func (r *Run) fatalErr(err error) {
	if r.err == nil {
		r.err = err
	}
	r.Fatal("%v", err)
}

// revalidatePorts rechecks the reservation before a start, rewriting the
// configuration if a port has been taken since it was chosen.
func (r *Run) revalidatePorts() error {
	next, err := r.alloc.Revalidate(r.ctx, r.params.Ports)
	if err != nil {
		return err
	}
	if next == r.params.Ports {
		return nil
	}
	r.logger.WithFields(logrus.Fields{"old": r.params.Ports, "new": next}).Warn("port pair taken, moved")
	r.params.Ports = next
	return config.Write(r.params)
}

// RewriteConfig applies edit to the configuration inputs and writes the
// result. It takes effect at the next daemon start.
func (r *Run) RewriteConfig(edit func(p *config.Params)) {
	edit(&r.params)
	if err := config.Write(r.params); err != nil {
		r.fatalErr(err)
	}
}

// ConnectAs opens a client connection with a password.
func (r *Run) ConnectAs(user, password string) (*client.Client, error) {
	return r.dial(client.Credentials{Username: user, Password: password})
}

// ConnectWithCookie opens a client connection with a login cookie.
func (r *Run) ConnectWithCookie(cookie string) (*client.Client, error) {
	return r.dial(client.Credentials{Cookie: cookie})
}

// Connect opens a connection as the configured user, ending the scenario
// on failure.
func (r *Run) Connect() *client.Client {
	c, err := r.dial(r.credentials())
	if err != nil {
		r.Fatal("connect as %s: %v", r.params.Username, err)
	}
	return c
}

func (r *Run) dial(creds client.Credentials) (*client.Client, error) {
	c, err := client.Dial(r.ctx, r.params.SocketPath(), creds)
	if err != nil {
		return nil, err
	}
	r.clients = append(r.clients, c)
	return c, nil
}

// Maint returns the maintenance command runner.
func (r *Run) Maint() *maint.Commander { return r.maint }

// Command runs the client CLI as user (empty for the configured one),
// ending the scenario if it fails.
func (r *Run) Command(user string, args ...string) maint.Result {
	res, err := r.maint.Disorder(r.ctx, user, args...)
	if err != nil {
		r.Fatal("disorder %v: %v", args, err)
	}
	return res
}

// UDPLog starts the broadcast logger on the data port, writing to name
// under the test root, and returns the output path. The logger is stopped
// at teardown.
func (r *Run) UDPLog(name string) string {
	out := filepath.Join(r.params.TestRoot, name)
	p, err := r.maint.UDPLog(r.params.BroadcastAddress(), r.params.Ports.Data, out)
	if err != nil {
		r.Fatal("udp logger: %v", err)
	}
	r.procs = append(r.procs, p)
	return out
}

// CreateUser adds a user with all rights through the privileged CLI.
func (r *Run) CreateUser(name, password string) {
	r.Command("root", "adduser", name, password)
	r.Command("root", "edituser", name, "rights", "all")
}

// CreateDefaultUser creates the configured user.
func (r *Run) CreateDefaultUser() {
	r.CreateUser(r.params.Username, r.params.Password)
}

// Rescan asks the daemon to rescan the collection and waits for it.
func (r *Run) Rescan() {
	r.Must(r.Connect().Rescan(true), "rescan")
}

// CheckFiles compares the server's view of the collection with the
// fixtures, recording one failure if anything differs. It returns the
// number of mismatches.
func (r *Run) CheckFiles() int {
	n, err := oracle.Check(r.ctx, r.Connect(), r.builder.Index())
	if err != nil {
		r.Fatal("collect listings: %v", err)
	}
	r.Check(n == 0, "%d directory listings differ from the fixtures", n)
	return n
}

// WaitUntil polls cond until it holds. A timeout or an error from cond
// records a failure and returns false.
func (r *Run) WaitUntil(cfg util.PollConfig, what string, cond func() (bool, error)) bool {
	_, err := util.PollFor(r.ctx, cfg, func() (struct{}, bool, error) {
		ok, err := cond()
		return struct{}{}, ok, err
	})
	switch {
	case err == nil:
		return true
	case errors.Is(err, context.DeadlineExceeded):
		r.Fail("timed out waiting for %s", what)
	default:
		r.Fail("waiting for %s: %v", what, err)
	}
	return false
}

// Subscribe reads the event log on a new connection until predicate stops
// or timeout passes. ok is false on timeout.
func (r *Run) Subscribe(timeout time.Duration, predicate func(client.Event) client.Verdict) (ev client.Event, ok bool) {
	ev, err := r.Connect().Subscribe(r.ctx, time.Now().Add(timeout), predicate)
	switch {
	case err == nil:
		return ev, true
	case errors.Is(err, context.DeadlineExceeded) && r.ctx.Err() == nil:
		return client.Event{}, false
	default:
		r.Fatal("event log: %v", err)
	}
	return client.Event{}, false
}
