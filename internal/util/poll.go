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

package util

import (
	"context"
	"time"
)

// PollConfig configures polling/wait behavior.
type PollConfig struct {
	Timeout  time.Duration // Total timeout (default: 5s)
	Interval time.Duration // Polling interval (default: 50ms)
	Attempts int           // If > 0, give up after this many checks even before Timeout
}

// DefaultPollConfig returns sensible defaults for polling operations.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Timeout:  5 * time.Second,
		Interval: 50 * time.Millisecond,
	}
}

// StartupPollConfig returns the config used while waiting for the daemon's
// control socket: 100ms steps, 200 attempts.
func StartupPollConfig() PollConfig {
	return PollConfig{
		Timeout:  30 * time.Second,
		Interval: 100 * time.Millisecond,
		Attempts: 200,
	}
}

// PlaybackPollConfig returns the config for waiting on playback state. Tracks
// and scratches take seconds, so the interval is coarse.
func PlaybackPollConfig() PollConfig {
	return PollConfig{
		Timeout:  20 * time.Second,
		Interval: time.Second,
	}
}

func (cfg PollConfig) withDefaults() PollConfig {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Interval == 0 {
		cfg.Interval = 50 * time.Millisecond
	}
	return cfg
}

// PollFor calls check at a fixed interval until it reports done, returns an
// error, or the attempt/time bound runs out. On timeout the last value seen is
// returned along with context.DeadlineExceeded. An error from check aborts
// the wait immediately and is returned as is.
func PollFor[T any](ctx context.Context, cfg PollConfig, check func() (T, bool, error)) (T, error) {
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	attempts := 0
	for {
		v, done, err := check()
		attempts++
		if err != nil {
			return v, err
		}
		if done {
			return v, nil
		}
		if cfg.Attempts > 0 && attempts >= cfg.Attempts {
			return v, context.DeadlineExceeded
		}

		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollUntil polls until condition returns true or timeout.
// Returns nil on success, context.DeadlineExceeded on timeout.
func PollUntil(ctx context.Context, cfg PollConfig, condition func() bool) error {
	_, err := PollFor(ctx, cfg, func() (struct{}, bool, error) {
		return struct{}{}, condition(), nil
	})
	return err
}

// WaitFixed waits with fixed number of iterations and interval.
// Returns true if condition was met, false after all iterations.
func WaitFixed(iterations int, interval time.Duration, condition func() bool) bool {
	for i := 0; i < iterations; i++ {
		if condition() {
			return true
		}
		if i < iterations-1 {
			time.Sleep(interval)
		}
	}
	return false
}
