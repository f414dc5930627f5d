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

// Package supervisor owns the single daemon process of a run.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"dtest/internal/common"
	"dtest/internal/util"
)

// State is the lifecycle position of the tracked daemon.
type State int

const (
	Absent State = iota
	Launching
	Ready
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Launching:
		return "launching"
	case Ready:
		return "ready"
	case ShuttingDown:
		return "shutting-down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options describe how to launch and recognise the daemon.
type Options struct {
	Executable string // daemon binary
	ConfigPath string
	SocketPath string // appears once the daemon is ready
	LogDir     string // <LogDir>/<name>.log receives stderr
	Poll       util.PollConfig
	Process    util.ProcessConfig
	Env        []string // appended to os.Environ()

	// Graceful asks a running daemon to shut down. It only has to send the
	// request; Stop waits for the exit itself.
	Graceful func(ctx context.Context) error

	Logger *log.Entry // nil uses the standard logger
}

// Supervisor tracks at most one daemon. It is not safe for concurrent use.
type Supervisor struct {
	opts    Options
	state   State
	proc    *util.Process
	logFile *os.File
	logger  *log.Entry
}

// New returns a supervisor with nothing tracked.
func New(opts Options) *Supervisor {
	if opts.Poll == (util.PollConfig{}) {
		opts.Poll = util.StartupPollConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Supervisor{
		opts:   opts,
		logger: logger.WithField("component", "supervisor"),
	}
}

// LogPath returns the stderr log for name.
func (s *Supervisor) LogPath(name string) string {
	return filepath.Join(s.opts.LogDir, name+".log")
}

// Start launches the daemon and blocks until its socket exists.
// logName selects the stderr log file; empty sends stderr to ours.
func (s *Supervisor) Start(ctx context.Context, logName string) error {
	if s.proc != nil {
		return fmt.Errorf("daemon already %s (PID %d): %w", s.state, s.proc.PID(), common.ErrUsage)
	}
	if s.opts.Executable == "" || s.opts.ConfigPath == "" || s.opts.SocketPath == "" {
		return fmt.Errorf("supervisor needs executable, config and socket paths: %w", common.ErrUsage)
	}

	// a socket left by a killed daemon would look like readiness
	if err := os.Remove(s.opts.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %v: %w", err, common.ErrFilesystem)
	}

	var stderr io.Writer = os.Stderr
	if logName != "" {
		// restarts within a run append to the same log
		f, err := os.OpenFile(s.LogPath(logName), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open daemon log: %v: %w", err, common.ErrFilesystem)
		}
		s.logFile = f
		stderr = f
	}

	args := []string{"--foreground", "--config", s.opts.ConfigPath}
	proc, err := util.StartProcess(s.opts.Executable, args, append(os.Environ(), s.opts.Env...), stderr)
	if err != nil {
		s.closeLog()
		return fmt.Errorf("%v: %w", err, common.ErrStartupFailure)
	}
	s.proc = proc
	s.state = Launching
	logger := s.logger.WithField("pid", proc.PID())
	logger.Info("starting daemon")

	_, err = util.PollFor(ctx, s.opts.Poll, func() (struct{}, bool, error) {
		if proc.Exited() {
			return struct{}{}, false, fmt.Errorf("daemon exited before ready: %v: %w", exitStatus(proc), common.ErrStartupFailure)
		}
		_, statErr := os.Stat(s.opts.SocketPath)
		return struct{}{}, statErr == nil, nil
	})
	switch {
	case err == nil:
		s.state = Ready
		logger.Debug("daemon ready")
		return nil
	case errors.Is(err, common.ErrStartupFailure):
		s.clear()
		return err
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		logger.Warn("daemon did not become ready, killing it")
		s.Kill()
		return fmt.Errorf("no socket at %s after %d attempts: %w", s.opts.SocketPath, s.opts.Poll.Attempts, common.ErrStartupTimeout)
	default:
		s.Kill()
		return err
	}
}

// Stop shuts the daemon down: graceful request, SIGTERM, SIGKILL. Calling it
// with nothing tracked is a no-op; tracked state is cleared on every return.
func (s *Supervisor) Stop(ctx context.Context) error {
	if s.proc == nil {
		return nil
	}
	defer s.clear()

	proc := s.proc
	logger := s.logger.WithField("pid", proc.PID())
	if proc.Exited() {
		logger.WithField("status", exitStatus(proc)).Info("daemon had already stopped")
		return nil
	}

	s.state = ShuttingDown
	logger.Info("stopping daemon")
	var graceful func() error
	if s.opts.Graceful != nil {
		graceful = func() error {
			if err := s.opts.Graceful(ctx); err != nil {
				logger.WithError(err).Debug("graceful shutdown request failed")
				return err
			}
			return nil
		}
	}
	if err := util.StopProcess(ctx, proc, s.opts.Process, graceful); err != nil {
		return err
	}
	logger.WithField("status", exitStatus(proc)).Debug("daemon has stopped")
	return nil
}

// Kill sends SIGKILL, waits for the exit and clears tracked state.
func (s *Supervisor) Kill() error {
	if s.proc == nil {
		return nil
	}
	defer s.clear()
	return util.KillProcess(s.proc)
}

// State returns the current lifecycle state. A tracked daemon that exited on
// its own is reported as Absent.
func (s *Supervisor) State() State {
	if s.proc != nil && s.proc.Exited() {
		return Absent
	}
	return s.state
}

// PID returns the tracked process id, or 0.
func (s *Supervisor) PID() int {
	if s.proc == nil {
		return 0
	}
	return s.proc.PID()
}

// Running reports whether a tracked daemon is alive.
func (s *Supervisor) Running() bool {
	return s.proc != nil && !s.proc.Exited()
}

// Tracked reports whether a process handle is held, alive or not.
func (s *Supervisor) Tracked() bool { return s.proc != nil }

func (s *Supervisor) clear() {
	s.proc = nil
	s.state = Absent
	s.closeLog()
}

func (s *Supervisor) closeLog() {
	if s.logFile != nil {
		s.logFile.Close()
		s.logFile = nil
	}
}

func exitStatus(p *util.Process) string {
	if p.ExitErr == nil {
		return "exit status 0"
	}
	return p.ExitErr.Error()
}
