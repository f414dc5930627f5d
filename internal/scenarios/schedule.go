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

package scenarios

import (
	"strings"
	"time"

	"dtest/internal/client"
	"dtest/internal/harness"
	"dtest/internal/util"
)

const (
	scheduleLead   = 3 * time.Second
	cliTimeFormat  = "2006-01-02 15:04:05"
	nextPlayingFor = 10 * time.Second
	idleFor        = 20 * time.Second
)

var Schedule = harness.Scenario{
	Name:        "schedule",
	Description: "Exercise schedule support",
	Run:         schedule,
}

// scheduler bundles the waits the schedule scenario repeats. c is replaced
// whenever the daemon restarts.
type scheduler struct {
	r     *harness.Run
	c     *client.Client
	track string
}

func soon() time.Time { return time.Now().Add(scheduleLead).Truncate(time.Second) }

func (s *scheduler) nextPlaying() *client.QueueEntry {
	var p *client.QueueEntry
	s.r.WaitUntil(util.PollConfig{Timeout: nextPlayingFor, Interval: time.Second}, "a track to play", func() (bool, error) {
		var err error
		p, err = s.c.Playing()
		return p != nil, err
	})
	return p
}

func (s *scheduler) waitIdle() {
	s.r.WaitUntil(util.PollConfig{Timeout: idleFor, Interval: time.Second}, "nothing to be playing", func() (bool, error) {
		p, err := s.c.Playing()
		return p == nil, err
	})
}

// checkScheduledPlay waits for the scheduled track and checks it started no
// earlier than when and left the schedule empty.
func (s *scheduler) checkScheduledPlay(when time.Time) {
	if p := s.nextPlaying(); p != nil {
		s.r.Check(p.Track == s.track, "scheduled play started %q", p.Track)
		s.r.Check(!p.When.Before(when), "track started at %s, before %s", p.When, when)
	}
	s.checkEmpty()
}

func (s *scheduler) checkEmpty() {
	ids, err := s.c.ScheduleList()
	s.r.Must(err, "schedule-list")
	s.r.Check(len(ids) == 0, "schedule still holds %q", ids)
}

func (s *scheduler) showList() {
	out := s.r.Command("", "schedule-list")
	s.r.Logger().Debugf("schedule-list:\n%s", strings.TrimSpace(out.Stdout))
}

func (s *scheduler) reconnect() { s.c = s.r.Connect() }

func schedule(r *harness.Run) {
	r.CreateDefaultUser()
	s := &scheduler{r: r, c: r.Connect(), track: r.Track("Joe Bloggs/First Album/05:Fifth track.ogg")}
	r.Must(s.c.RandomDisable(), "random-disable")
	r.Rescan()
	s.waitIdle()

	r.Logf("scheduling a track for the future")
	when := soon()
	r.Must(s.c.ScheduleAdd(when, "normal", "play", s.track), "schedule-add play")
	s.showList()
	s.checkScheduledPlay(when)
	s.waitIdle()

	r.Logf("scheduling an enable-random for the future")
	r.Must(s.c.ScheduleAdd(soon(), "junk", "set-global", "random-play", "yes"), "schedule-add set-global")
	s.showList()
	s.nextPlaying()
	r.Must(s.c.RandomDisable(), "random-disable")
	s.waitIdle()

	r.Logf("scheduling a track via the command line")
	when = soon()
	r.Command("", "schedule-play", when.Local().Format(cliTimeFormat), "normal", s.track)
	s.showList()
	s.checkScheduledPlay(when)
	s.waitIdle()

	r.Logf("scheduling an enable-random via the command line")
	r.Command("", "schedule-set-global", soon().Local().Format(cliTimeFormat), "normal", "random-play", "yes")
	s.showList()
	s.nextPlaying()
	r.Must(s.c.RandomDisable(), "random-disable")
	s.waitIdle()

	r.Logf("deleting a scheduled event")
	r.Must(s.c.ScheduleAdd(soon(), "normal", "play", s.track), "schedule-add play")
	ids, err := s.c.ScheduleList()
	r.Must(err, "schedule-list")
	for _, id := range ids {
		ev, err := s.c.ScheduleGet(id)
		r.Must(err, "schedule-get")
		r.Logger().WithField("event", id).Debugf("%v", ev)
	}
	if r.Check(len(ids) > 0, "schedule is empty after schedule-add") {
		r.Must(s.c.ScheduleDel(ids[0]), "schedule-del")
	}
	s.checkEmpty()
	played := util.WaitFixed(5, time.Second, func() bool {
		p, err := s.c.Playing()
		return err == nil && p != nil
	})
	r.Check(!played, "deleted scheduled event still ran")

	err = s.c.ScheduleAdd(time.Now().Add(-4*time.Second), "normal", "play", s.track)
	r.ExpectRejected(err, "scheduling an event in the past")

	r.Logf("checking scheduled events survive restarts")
	when = soon()
	r.Must(s.c.ScheduleAdd(when, "normal", "play", s.track), "schedule-add play")
	r.StopDaemon()
	res, err := r.Maint().Dump(r.Context(), r.DumpPath())
	r.Must(err, "dump: "+res.Combined)
	res, err = r.Maint().Undump(r.Context(), r.DumpPath())
	r.Must(err, "undump: "+res.Combined)
	r.StartDaemon()
	s.reconnect()
	s.checkScheduledPlay(when)

	r.Logf("checking junk events do not survive restarts")
	r.Must(s.c.ScheduleAdd(time.Now().Add(2*time.Second), "junk", "play", s.track), "schedule-add junk")
	r.StopDaemon()
	time.Sleep(scheduleLead)
	r.StartDaemon()
	s.reconnect()
	s.checkEmpty()
}
