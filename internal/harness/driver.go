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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	logrus "github.com/sirupsen/logrus"

	"dtest/internal/common"
	"dtest/internal/config"
	"dtest/internal/fixture"
	"dtest/internal/maint"
	"dtest/internal/ports"
	"dtest/internal/supervisor"
)

// SampleSound is copied for every track fixture.
const SampleSound = "slap.ogg"

// Driver runs scenarios one at a time against a single test root.
type Driver struct {
	Settings *config.Settings
	Logger   *logrus.Logger // nil uses the standard logger
}

// NewDriver returns a driver using s.
func NewDriver(s *config.Settings) *Driver {
	return &Driver{Settings: s}
}

func (d *Driver) logger() *logrus.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return logrus.StandardLogger()
}

// Run executes sc against a fresh test root. The daemon is stopped and the
// root unlocked before Run returns, whatever the scenario did.
func (d *Driver) Run(ctx context.Context, sc Scenario) (res Result) {
	start := time.Now()
	res = Result{Scenario: sc.Name, RunID: uuid.New().String()}
	logger := d.logger().WithFields(logrus.Fields{"run": res.RunID, "scenario": sc.Name})
	defer func() {
		res.Duration = time.Since(start)
		entry := logger.WithFields(logrus.Fields{
			"failures": res.Failures,
			"duration": res.Duration.Round(time.Millisecond),
		})
		switch {
		case res.Err != nil:
			entry.WithError(res.Err).Error("FAILED")
		case res.Failures > 0:
			entry.Error("FAILED")
		case res.Skipped:
			entry.WithField("reason", res.Reason).Warn("SKIPPED")
		default:
			entry.Info("OK")
		}
	}()

	if err := sc.validate(); err != nil {
		res.Err = err
		return res
	}
	if d.Settings == nil {
		res.Err = fmt.Errorf("driver has no settings: %w", common.ErrUsage)
		return res
	}
	root, err := filepath.Abs(d.Settings.TestRoot)
	if err != nil {
		res.Err = fmt.Errorf("test root: %v: %w", err, common.ErrUsage)
		return res
	}

	lock := flock.New(root + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		res.Err = fmt.Errorf("failed to lock %s: %v: %w", root, err, common.ErrFilesystem)
		return res
	}
	if !locked {
		res.Err = fmt.Errorf("test root %s is in use by another run: %w", root, common.ErrUsage)
		return res
	}
	defer lock.Unlock()

	logger.WithField("testroot", root).Info("starting scenario")
	r, err := d.prepare(ctx, sc, root, logger)
	if err != nil {
		res.Err = err
		return res
	}

	r.execute(sc)
	r.teardown()

	res.Failures = r.failures
	res.Skipped = r.skipped
	res.Reason = r.skipReason
	res.Err = r.err
	return res
}

// RunAll runs each scenario in turn. Cancelling ctx stops before the next
// scenario.
func (d *Driver) RunAll(ctx context.Context, scenarios []Scenario) []Result {
	results := make([]Result, 0, len(scenarios))
	for _, sc := range scenarios {
		if ctx.Err() != nil {
			break
		}
		results = append(results, d.Run(ctx, sc))
	}
	return results
}

// prepare recreates the test root, writes the configuration, materializes
// the fixtures and builds the supervisor. Nothing is running when it
// returns.
func (d *Driver) prepare(ctx context.Context, sc Scenario, root string, logger *logrus.Entry) (*Run, error) {
	s := d.Settings

	if n := supervisor.KillStale(s.Daemon, filepath.Join(root, config.ConfigFile)); n > 0 {
		logger.WithField("killed", n).Warn("daemons from an earlier run were still running")
	}
	if err := os.RemoveAll(root); err != nil {
		return nil, fmt.Errorf("remove %s: %v: %w", root, err, common.ErrFilesystem)
	}
	if err := os.MkdirAll(filepath.Join(root, config.HomeDir), 0755); err != nil {
		return nil, fmt.Errorf("create %s: %v: %w", root, err, common.ErrFilesystem)
	}

	alloc := ports.New()
	alloc.Attempts = s.PortAttempts
	reservation, err := alloc.ChoosePair(ctx)
	if err != nil {
		return nil, err
	}
	logger.WithField("ports", reservation).Debug("ports chosen")

	params := s.Params(root, reservation)
	if err := config.Write(params); err != nil {
		return nil, err
	}

	scratch, err := os.ReadFile(s.Sound(config.ScratchFile))
	if err != nil {
		return nil, fmt.Errorf("read scratch sound: %v: %w", err, common.ErrFilesystem)
	}
	if err := os.WriteFile(params.Scratch(), scratch, 0644); err != nil {
		return nil, fmt.Errorf("write scratch sound: %v: %w", err, common.ErrFilesystem)
	}
	sample, err := os.ReadFile(s.Sound(SampleSound))
	if err != nil {
		return nil, fmt.Errorf("read sample sound: %v: %w", err, common.ErrFilesystem)
	}

	fs := osfs.New(root)
	if err := fs.MkdirAll(fixture.TracksDir, 0755); err != nil {
		return nil, fmt.Errorf("create collection: %v: %w", err, common.ErrFilesystem)
	}
	builder := fixture.NewBuilder(fs, params.Tracks(), sample)
	if err := sc.setup(builder); err != nil {
		return nil, fmt.Errorf("fixtures for %s: %w", sc.Name, err)
	}
	logger.WithField("tracks", len(builder.Index().Tracks())).Debug("fixtures created")

	r := &Run{
		ctx:      ctx,
		name:     sc.Name,
		logger:   logger,
		settings: s,
		params:   params,
		alloc:    alloc,
		fs:       fs,
		builder:  builder,
		maint: &maint.Commander{
			ClientCLI:  s.ClientCLI,
			DumpCLI:    s.DumpCLI,
			UDPLogCLI:  s.UDPLogCLI,
			ConfigPath: params.ConfigPath(),
		},
	}
	r.sup = supervisor.New(supervisor.Options{
		Executable: s.Daemon,
		ConfigPath: params.ConfigPath(),
		SocketPath: params.SocketPath(),
		LogDir:     root,
		Poll:       s.StartupPoll(),
		Process:    s.ProcessConfig(),
		Graceful:   r.requestShutdown,
		Logger:     logger,
	})
	return r, nil
}
