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

// Package ports picks loopback port pairs for the daemon's broadcast
// addresses.
package ports

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"time"

	logrus "github.com/sirupsen/logrus"

	"dtest/internal/common"
	"dtest/internal/util"
)

const (
	// MinPort and MaxPort bound the dynamic range. MaxPort leaves room for the
	// successor port.
	MinPort = 49152
	MaxPort = 65534

	// DefaultAttempts caps random probing before giving up with
	// common.ErrPortsExhausted.
	DefaultAttempts = 256

	loopback = "127.0.0.1"
)

// Reservation is a pair of adjacent ports: Data receives broadcasts and
// Control is the source port they are sent from.
type Reservation struct {
	Data    int
	Control int
}

func (r Reservation) String() string {
	return fmt.Sprintf("%d/%d", r.Data, r.Control)
}

// Allocator chooses port pairs. The zero value is not usable; use New.
type Allocator struct {
	Network  string // "udp" (default) or "tcp"
	Min, Max int
	Attempts uint

	rnd   *rand.Rand
	probe func(network string, port int) error
}

// New returns an allocator probing UDP ports in the dynamic range.
func New() *Allocator {
	return &Allocator{
		Network:  "udp",
		Min:      MinPort,
		Max:      MaxPort,
		Attempts: DefaultAttempts,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		probe:    bindProbe,
	}
}

func bindProbe(network string, port int) error {
	addr := net.JoinHostPort(loopback, strconv.Itoa(port))
	switch network {
	case "tcp", "tcp4":
		l, err := net.Listen(network, addr)
		if err != nil {
			return err
		}
		return l.Close()
	default:
		c, err := net.ListenPacket(network, addr)
		if err != nil {
			return err
		}
		return c.Close()
	}
}

// Bindable reports whether port can be bound on loopback right now. The
// socket is released before returning.
func (a *Allocator) Bindable(port int) bool {
	return a.probe(a.Network, port) == nil
}

// Bindable probes a UDP loopback port with the default allocator settings.
func Bindable(port int) bool {
	return bindProbe("udp", port) == nil
}

// ChoosePair samples random ports until one is found where both it and its
// successor are bindable.
func (a *Allocator) ChoosePair(ctx context.Context) (Reservation, error) {
	span := a.Max - a.Min + 1
	res, err := util.RetryWithResult(ctx, func() (Reservation, error) {
		p := a.Min + a.rnd.Intn(span)
		if err := a.probe(a.Network, p); err != nil {
			return Reservation{}, fmt.Errorf("port %d: %w", p, err)
		}
		if err := a.probe(a.Network, p+1); err != nil {
			return Reservation{}, fmt.Errorf("port %d: %w", p+1, err)
		}
		return Reservation{Data: p, Control: p + 1}, nil
	}, util.PortRetryOptions(ctx, a.Attempts)...)
	if err != nil {
		if ctx.Err() != nil {
			return Reservation{}, ctx.Err()
		}
		return Reservation{}, fmt.Errorf("%d attempts, last: %v: %w", a.Attempts, err, common.ErrPortsExhausted)
	}

	logrus.WithField("ports", res.String()).Debug("chose port pair")
	return res, nil
}

// Revalidate re-probes a reservation just before it is handed to the daemon,
// backing off briefly on collisions. If the pair stays taken a fresh pair is
// chosen.
func (a *Allocator) Revalidate(ctx context.Context, r Reservation) (Reservation, error) {
	err := util.Retry(ctx, func() error {
		for _, p := range []int{r.Data, r.Control} {
			if err := a.probe(a.Network, p); err != nil {
				return err
			}
		}
		return nil
	}, util.RevalidateRetryOptions(ctx)...)
	if err == nil {
		return r, nil
	}

	logrus.WithField("ports", r.String()).WithError(err).Warn("reserved ports were taken, choosing again")
	return a.ChoosePair(ctx)
}
