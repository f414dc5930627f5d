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
	"fmt"
	"strings"

	"dtest/internal/config"
	"dtest/internal/harness"
	"dtest/internal/util"
)

// defaultQueuePad is the daemon's queue_pad when the config omits it.
const defaultQueuePad = 10

var Version = harness.Scenario{
	Name:        "version",
	Description: "Ask the server its version number",
	Run: func(r *harness.Run) {
		r.CreateDefaultUser()
		v, err := r.Connect().Version()
		r.Must(err, "version")
		r.Check(v != "", "empty version string")
		r.Logf("server version: %s", v)
	},
}

var Files = harness.Scenario{
	Name:        "files",
	Description: "Check that the file listing comes out right",
	Run: func(r *harness.Run) {
		r.CreateDefaultUser()
		r.CheckFiles()

		c := r.Connect()
		album := r.Track("Joe Bloggs/First Album")
		got, err := c.Files(album, "second")
		r.Must(err, "files matching second")
		if r.Check(len(got) == 1, "expected one match for %q, got %q", "second", got) {
			want := r.Track("Joe Bloggs/First Album/02:Second track.ogg")
			r.Check(got[0] == want, "expected %q, got %q", want, got[0])
		}

		// regexps see composed names, so neither the accented track nor a
		// combining-mark pattern matches
		for _, re := range []string{"first", `fi\p{Mn}*rst`} {
			got, err = c.Files(album, re)
			r.Must(err, "files matching "+re)
			r.Check(len(got) == 0, "expected no match for %q, got %q", re, got)
		}
	},
}

var Queue = harness.Scenario{
	Name:        "queue",
	Description: "Check the queue is padded to the configured length",
	Run: func(r *harness.Run) {
		r.CreateDefaultUser()
		want := r.Params().QueuePad
		if want == 0 {
			want = defaultQueuePad
		}

		c := r.Connect()
		r.WaitUntil(util.PlaybackPollConfig(), fmt.Sprintf("queue to reach %d entries", want), func() (bool, error) {
			q, err := c.Queue()
			return len(q) == want, err
		})

		n := 0
		for _, line := range r.Command("", "queue").Lines() {
			if strings.HasPrefix(line, "track") {
				n++
			}
		}
		r.Check(n == want, "disorder queue listed %d tracks, expected %d", n, want)
	},
}

var DBVersion = harness.Scenario{
	Name:        "dbversion",
	Description: "Check the daemon upgrades an old database",
	Manual:      true,
	Run: func(r *harness.Run) {
		saved := append([]string(nil), r.Params().Extra...)
		r.RewriteConfig(func(p *config.Params) {
			p.Extra = append(append([]string(nil), saved...), "dbversion 1")
		})
		r.StartDaemon()
		r.StopDaemon()

		r.Logf("checking the daemon manages to upgrade")
		r.RewriteConfig(func(p *config.Params) { p.Extra = saved })
		r.StartDaemon()
		r.CreateDefaultUser()
		r.CheckFiles()
	},
}
