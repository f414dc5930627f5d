package util

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// ProcessConfig configures process management behavior.
type ProcessConfig struct {
	GracefulTimeout time.Duration // Time to wait after the graceful request (default: 10s)
	TermTimeout     time.Duration // Time to wait after SIGTERM before SIGKILL (default: 5s)
}

// Process is a child started by StartProcess. Done is closed once the child
// has been reaped; ExitErr is valid after that.
type Process struct {
	Cmd     *exec.Cmd
	Done    chan struct{}
	ExitErr error
}

// PID returns the child's process id.
func (p *Process) PID() int {
	if p == nil || p.Cmd.Process == nil {
		return 0
	}
	return p.Cmd.Process.Pid
}

// Exited reports whether the child has been reaped, without blocking.
func (p *Process) Exited() bool {
	select {
	case <-p.Done:
		return true
	default:
		return false
	}
}

// Wait blocks until the child exits or ctx is done.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.Done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Signal delivers sig unless the child has already been reaped.
func (p *Process) Signal(sig os.Signal) error {
	if p.Exited() {
		return nil
	}
	return p.Cmd.Process.Signal(sig)
}

// StartProcess starts executable with its stderr sent to stderr (nil
// discards). A reaper goroutine closes Done when it exits.
func StartProcess(executable string, args []string, env []string, stderr io.Writer) (*Process, error) {
	cmd := exec.Command(executable, args...)
	cmd.Stdout = nil
	cmd.Stderr = stderr
	if env != nil {
		cmd.Env = env
	} else {
		cmd.Env = os.Environ()
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}

	p := &Process{Cmd: cmd, Done: make(chan struct{})}
	go func() {
		p.ExitErr = cmd.Wait()
		close(p.Done)
	}()
	return p, nil
}

// StopProcess asks the process to stop via gracefulStop, waits, then escalates
// to SIGTERM and finally SIGKILL. It returns once the process has been reaped.
func StopProcess(ctx context.Context, p *Process, cfg ProcessConfig, gracefulStop func() error) error {
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}
	if cfg.TermTimeout == 0 {
		cfg.TermTimeout = 5 * time.Second
	}

	if gracefulStop != nil && !p.Exited() {
		// a refused request goes straight to signals
		if err := gracefulStop(); err == nil {
			if waitFor(ctx, p, cfg.GracefulTimeout) {
				return nil
			}
		}
	}

	if err := p.Signal(syscall.SIGTERM); err != nil && !p.Exited() {
		return fmt.Errorf("failed to signal process (PID %d): %w", p.PID(), err)
	}
	if waitFor(ctx, p, cfg.TermTimeout) {
		return nil
	}

	return KillProcess(p)
}

// KillProcess sends SIGKILL and waits for the child to be reaped.
func KillProcess(p *Process) error {
	if err := p.Signal(syscall.SIGKILL); err != nil && !p.Exited() {
		return fmt.Errorf("failed to kill process (PID %d): %w", p.PID(), err)
	}
	<-p.Done
	return nil
}

func waitFor(ctx context.Context, p *Process, d time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return p.Wait(ctx) == nil
}

// IsProcessRunning checks if a process with the given PID is running.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, sending signal 0 checks if process exists
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}
