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

package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Event is one record from the server's log stream.
type Event struct {
	Time time.Time
	Type string   // e.g. "playing", "completed", "state"
	Args []string // remaining words, unquoted
}

// ParseEvent decodes "<hex-time> <type> <args...>".
func ParseEvent(line string) (Event, error) {
	words, err := Split(line)
	if err != nil {
		return Event{}, err
	}
	if len(words) < 2 {
		return Event{}, fmt.Errorf("short log record %q", line)
	}
	secs, err := strconv.ParseInt(words[0], 16, 64)
	if err != nil {
		return Event{}, fmt.Errorf("bad log timestamp %q", words[0])
	}
	return Event{Time: time.Unix(secs, 0), Type: words[1], Args: words[2:]}, nil
}

// Arg returns the i'th argument or "".
func (e Event) Arg(i int) string {
	if i < len(e.Args) {
		return e.Args[i]
	}
	return ""
}

// Verdict is a subscription predicate's answer for one event.
type Verdict int

const (
	KeepWaiting Verdict = iota
	Stop
)

// Subscribe switches the connection into log mode and blocks, passing each
// event to predicate until it returns Stop, the deadline passes or ctx is
// done. The matching event is returned. The connection cannot be used for
// commands afterwards and is closed on return.
func (c *Client) Subscribe(ctx context.Context, deadline time.Time, predicate func(Event) Verdict) (Event, error) {
	defer c.Close()

	r, err := c.transact("log")
	if err != nil {
		return Event{}, err
	}
	if !r.log() {
		return Event{}, c.fail("log", fmt.Errorf("expected log stream, got %03d %s", r.Code, r.Text))
	}

	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return Event{}, c.fail("log", err)
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Event{}, ctxErr
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return Event{}, context.DeadlineExceeded
			}
			return Event{}, c.fail("log", err)
		}
		line = line[:len(line)-1]
		if line == "." {
			return Event{}, c.fail("log", errors.New("log stream ended"))
		}
		ev, err := ParseEvent(unstuff(line))
		if err != nil {
			c.logger.WithError(err).Debug("skipping log record")
			continue
		}
		c.logger.WithField("event", ev.Type).Trace("log")
		if predicate(ev) == Stop {
			return ev, nil
		}
	}
}
