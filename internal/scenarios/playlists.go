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
	"slices"

	"dtest/internal/harness"
)

var Playlists = harness.Scenario{
	Name:        "playlists",
	Description: "Create and modify a shared playlist",
	Run: func(r *harness.Run) {
		r.CreateDefaultUser()
		c := r.Connect()
		r.Must(c.RandomDisable(), "random-disable")

		lists, err := c.Playlists()
		r.Must(err, "playlists")
		r.Check(len(lists) == 0, "initial playlists: %q", lists)

		store := func(tracks ...string) {
			r.Must(c.PlaylistLock("wibble"), "playlist-lock")
			r.Must(c.PlaylistSet("wibble", tracks), "playlist-set")
			r.Must(c.PlaylistUnlock(), "playlist-unlock")
			got, err := c.PlaylistGet("wibble")
			r.Must(err, "playlist-get")
			r.Check(slices.Equal(got, tracks), "playlist holds %q, expected %q", got, tracks)
		}

		store("one", "two", "three")
		lists, err = c.Playlists()
		r.Must(err, "playlists")
		r.Check(slices.Equal(lists, []string{"wibble"}), "playlists after create: %q", lists)

		share, err := c.PlaylistGetShare("wibble")
		r.Must(err, "playlist-get-share")
		r.Check(share == "shared", "new playlist sharing is %q", share)

		// only the owner of a non-shared playlist may change its sharing
		r.ExpectRejected(c.PlaylistSetShare("wibble", "private"), "unsharing an unowned playlist")

		store("three", "two", "one")
	},
}
