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

// Package maint runs the daemon's companion command-line tools.
package maint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"dtest/internal/common"
	"dtest/internal/util"
)

// DefaultTimeout bounds a single maintenance command.
const DefaultTimeout = 60 * time.Second

// Result is the captured outcome of one command.
type Result struct {
	Args     []string
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
}

// Contains reports whether the combined output contains s.
func (r Result) Contains(s string) bool { return strings.Contains(r.Combined, s) }

// Lines splits stdout into lines, dropping a trailing empty line.
func (r Result) Lines() []string {
	out := strings.TrimSuffix(r.Stdout, "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// Commander runs tools against one daemon configuration.
type Commander struct {
	ClientCLI  string // disorder
	DumpCLI    string // disorder-dump
	UDPLogCLI  string // disorder-udplog
	ConfigPath string
	Timeout    time.Duration
	Env        []string // appended to os.Environ()
}

// Run executes name with args and captures its output. A non-zero exit is
// returned as an error wrapping common.ErrCommandFailed alongside the
// result.
func (c *Commander) Run(ctx context.Context, name string, args ...string) (Result, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = 2 * time.Second
	cmd.Env = append(os.Environ(), c.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := log.WithField("cmd", name)
	logger.WithField("args", args).Debug("running")
	err := cmd.Run()

	res := Result{
		Args:     append([]string{name}, args...),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Combined: stdout.String() + stderr.String(),
	}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		res.ExitCode = 124
		return res, fmt.Errorf("%s timed out after %v: %w", name, timeout, common.ErrCommandFailed)
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = 1
		return res, fmt.Errorf("%s: %v: %w", name, err, common.ErrCommandFailed)
	}
	logger.WithField("exit", res.ExitCode).Debug(strings.TrimSpace(res.Stderr))
	return res, fmt.Errorf("%s exited %d: %s: %w", name, res.ExitCode, strings.TrimSpace(res.Combined), common.ErrCommandFailed)
}

// Disorder runs the client tool with the harness configuration and no
// per-user config. user selects --user when non-empty.
func (c *Commander) Disorder(ctx context.Context, user string, args ...string) (Result, error) {
	full := []string{"--config", c.ConfigPath, "--no-per-user-config"}
	if user != "" {
		full = append(full, "--user", user)
	}
	return c.Run(ctx, c.ClientCLI, append(full, args...)...)
}

// Dump writes the database to file.
func (c *Commander) Dump(ctx context.Context, file string) (Result, error) {
	return c.Run(ctx, c.DumpCLI, "--config", c.ConfigPath, "--dump", file)
}

// Undump replaces the database with the contents of file. The daemon must
// be stopped.
func (c *Commander) Undump(ctx context.Context, file string) (Result, error) {
	return c.Run(ctx, c.DumpCLI, "--config", c.ConfigPath, "--undump", file)
}

// UDPLog starts the broadcast logger in the background, writing what it
// receives on address:port to output. Stop it with util.StopProcess.
func (c *Commander) UDPLog(address string, port int, output string) (*util.Process, error) {
	args := []string{"--output", output, address, strconv.Itoa(port)}
	p, err := util.StartProcess(c.UDPLogCLI, args, append(os.Environ(), c.Env...), nil)
	if err != nil {
		return nil, fmt.Errorf("start %s: %v: %w", c.UDPLogCLI, err, common.ErrCommandFailed)
	}
	log.WithFields(log.Fields{"pid": p.PID(), "port": port}).Debug("udp logger started")
	return p, nil
}
