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
	"dtest/internal/harness"
	"dtest/internal/oracle"
)

var Aliases = harness.Scenario{
	Name:        "aliases",
	Description: "Exercise alias logic",
	Run: func(r *harness.Run) {
		r.CreateDefaultUser()
		r.Rescan()
		c := r.Connect()

		track := r.Track("misc/blahblahblah.ogg")
		r.Must(c.Set(track, "trackname_display_artist", "Fred Smith"), "set display artist")
		r.Must(c.Set(track, "trackname_display_album", "wibble"), "set display album")

		alias := r.Track("Fred Smith/wibble/blahblahblah.ogg")
		files, err := c.Files(r.Track("Fred Smith/wibble"), "")
		r.Must(err, "files")
		r.Check(len(files) == 1 && files[0] == alias, "alias directory holds %q, expected %q", files, alias)

		parts := []struct{ part, want string }{
			{"artist", "Fred Smith"},
			{"album", "wibble"},
			{"title", "blahblahblah"},
		}
		for _, name := range []string{track, alias} {
			for _, p := range parts {
				got, err := c.Part(name, "display", p.part)
				r.Must(err, "part")
				r.Check(got == p.want, "display %s of %s is %q, expected %q", p.part, name, got, p.want)
			}
		}

		// preferences belong to the resolved track whichever name sets them
		r.Must(c.Set(alias, "wibble", "spong"), "set via alias")
		got, _, err := c.Get(track, "wibble")
		r.Must(err, "get via track")
		r.Check(got == "spong", "pref set via alias reads %q via track", got)

		r.Must(c.Set(track, "foo", "bar"), "set via track")
		got, _, err = c.Get(alias, "foo")
		r.Must(err, "get via alias")
		r.Check(got == "bar", "pref set via track reads %q via alias", got)
	},
}

var Dump = harness.Scenario{
	Name:        "dump",
	Description: "Exercise the database dumper",
	Run: func(r *harness.Run) {
		r.CreateDefaultUser()
		c := r.Connect()
		track := r.Track("Joe Bloggs/First Album/02:Second track.ogg")

		checkTrack := func(key, want string) {
			got, _, err := c.Get(track, key)
			r.Must(err, "get "+key)
			r.Check(got == want, "track %s=%q, expected %q", key, got, want)
		}
		checkGlobal := func(key, want string) {
			got, _, err := c.GetGlobal(key)
			r.Must(err, "get-global "+key)
			r.Check(got == want, "global %s=%q, expected %q", key, got, want)
		}
		checkTags := func(want ...string) {
			tags, err := c.Tags()
			r.Must(err, "tags")
			r.Check(oracle.SameContents(tags, want), "tags are %q, expected %q", tags, want)
		}
		checkTagSearch := func() {
			found, err := c.Search("tag:wibble")
			r.Must(err, "search")
			r.Check(len(found) == 1 && found[0] == track, "tag search found %q", found)
		}

		r.Must(c.Set(track, "foo", "before"), "set track pref")
		checkTrack("foo", "before")
		r.Must(c.SetGlobal("foo", "before"), "set global pref")
		checkGlobal("foo", "before")

		r.Must(c.Set(track, "tags", "  first   tag, Another Tag"), "set tags")
		checkTags("another tag", "first tag")
		r.Must(c.Set(track, "tags", "wibble,   another tag   "), "reset tags")
		checkTags("another tag", "wibble")
		checkTagSearch()

		res, err := r.Maint().Dump(r.Context(), r.DumpPath())
		r.Must(err, "dump: "+res.Combined)

		r.Must(c.Set(track, "foo", "after"), "change track pref")
		checkTrack("foo", "after")
		r.Must(c.SetGlobal("foo", "after"), "change global pref")
		checkGlobal("foo", "after")
		r.Must(c.Set(track, "bar", "after"), "fresh track pref")
		r.Must(c.SetGlobal("bar", "after"), "fresh global pref")

		r.StopDaemon()
		res, err = r.Maint().Undump(r.Context(), r.DumpPath())
		r.Must(err, "undump: "+res.Combined)
		r.StartDaemon()
		c = r.Connect()

		checkTrack("foo", "before")
		checkGlobal("foo", "before")
		_, ok, err := c.Get(track, "bar")
		r.Must(err, "get bar")
		r.Check(!ok, "track pref set after the dump survived undump")
		_, ok, err = c.GetGlobal("bar")
		r.Must(err, "get-global bar")
		r.Check(!ok, "global pref set after the dump survived undump")
		checkTagSearch()
		checkTags("another tag", "wibble")
	},
}
