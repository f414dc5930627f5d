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
	"os"
	"os/exec"
	"time"

	"dtest/internal/client"
	"dtest/internal/harness"
	"dtest/internal/util"
)

var Play = harness.Scenario{
	Name:        "play",
	Description: "Play, scratch and toggle playing",
	Run:         play,
}

func play(r *harness.Run) {
	r.CreateDefaultUser()
	me := r.Params().Username
	c := r.Connect()
	wait := util.PlaybackPollConfig()

	var broadcast string
	if _, err := exec.LookPath(r.Settings().UDPLogCLI); err == nil {
		broadcast = r.UDPLog("udplog.out")
	}

	track := r.Track("Joe Bloggs/First Album/02:Second track.ogg")
	_, err := c.Play(track)
	r.Must(err, "play")

	q, err := c.Queue()
	r.Must(err, "queue")
	mine := client.FindTrack(q, track, true)
	if !r.Check(len(mine) == 1, "track is queued %d times", len(mine)) {
		return
	}
	r.Check(mine[0].Submitter == me, "queue submitter is %q", mine[0].Submitter)
	id := mine[0].ID

	r.WaitUntil(wait, "track to play", func() (bool, error) {
		p, err := c.Playing()
		if err != nil || (p != nil && p.ID == id) {
			return err == nil, err
		}
		recent, err := c.Recent()
		return len(client.FindTrack(recent, track, true)) > 0, err
	})
	waitNotPlaying(r, c, id)

	recent, err := c.Recent()
	r.Must(err, "recent")
	done := client.FindTrack(recent, track, true)
	if r.Check(len(done) == 1, "track is in recent %d times", len(done)) {
		r.Check(done[0].Submitter == me, "recent submitter is %q", done[0].Submitter)
	}

	r.Must(c.Disable(), "disable")
	var p *client.QueueEntry
	r.WaitUntil(wait, "a random track to play", func() (bool, error) {
		p, err = c.Playing()
		return p != nil, err
	})
	if p == nil {
		return
	}
	scratched := p.ID
	r.Must(c.Scratch(scratched), "scratch")
	waitNotPlaying(r, c, scratched)

	recent, err = c.Recent()
	r.Must(err, "recent")
	if e, ok := client.FindID(recent, scratched); r.Check(ok, "scratched track %s not in recent", scratched) {
		r.Check(e.State == "scratched", "scratched track state is %q", e.State)
	}

	// the scratch sound itself plays in state isscratch
	r.WaitUntil(wait, "scratch to finish", func() (bool, error) {
		p, err := c.Playing()
		return p == nil, err
	})

	r.Must(c.RandomDisable(), "random-disable")
	checkFlag(r, "random play", c.RandomEnabled, false)
	checkFlag(r, "play", c.Enabled, false)
	r.Must(c.Enable(), "enable")
	checkFlag(r, "play", c.Enabled, true)
	time.Sleep(time.Second)
	p, err = c.Playing()
	r.Must(err, "playing")
	r.Check(p == nil, "%s is playing with random play disabled", describe(p))
	r.Must(c.RandomEnable(), "random-enable")
	checkFlag(r, "random play", c.RandomEnabled, true)

	if broadcast != "" {
		r.WaitUntil(util.DefaultPollConfig(), "broadcast audio", func() (bool, error) {
			fi, err := os.Stat(broadcast)
			return err == nil && fi.Size() > 0, nil
		})
	}
}

func waitNotPlaying(r *harness.Run, c *client.Client, id string) {
	r.WaitUntil(util.PlaybackPollConfig(), "track "+id+" to finish", func() (bool, error) {
		p, err := c.Playing()
		return p == nil || p.ID != id, err
	})
}

func checkFlag(r *harness.Run, what string, get func() (bool, error), want bool) {
	got, err := get()
	r.Must(err, what+" status")
	r.Check(got == want, "%s enabled=%v, expected %v", what, got, want)
}

func describe(e *client.QueueEntry) string {
	if e == nil {
		return "nothing"
	}
	return e.Track
}
