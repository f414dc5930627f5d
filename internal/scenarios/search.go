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

	"dtest/internal/common"
	"dtest/internal/harness"
)

var (
	searchFirst = []string{
		"Joe Bloggs/First Album/01:F\u00ccrst track.ogg",
		"Joe Bloggs/First Album/02:Second track.ogg",
		"Joe Bloggs/First Album/03:ThI\u0301rd track.ogg",
		"Joe Bloggs/First Album/04:Fourth track.ogg",
		"Joe Bloggs/First Album/05:Fifth track.ogg",
		"Joe Bloggs/Second Album/01:First track.ogg",
		"Joe Bloggs/Third Album/01:First_track.ogg",
	}
	searchSecond = []string{
		"Joe Bloggs/First Album/02:Second track.ogg",
		"Joe Bloggs/Second Album/01:First track.ogg",
		"Joe Bloggs/Second Album/02:Second track.ogg",
		"Joe Bloggs/Second Album/03:Third track.ogg",
		"Joe Bloggs/Second Album/04:Fourth track.ogg",
		"Joe Bloggs/Second Album/05:Fifth track.ogg",
		"Joe Bloggs/Third Album/02:Second_track.ogg",
	}
	searchThird = []string{
		"Joe Bloggs/First Album/03:ThI\u0301rd track.ogg",
		"Joe Bloggs/Second Album/03:Third track.ogg",
		"Joe Bloggs/Third Album/01:First_track.ogg",
		"Joe Bloggs/Third Album/02:Second_track.ogg",
		"Joe Bloggs/Third Album/03:Third_track.ogg",
		"Joe Bloggs/Third Album/04:Fourth_track.ogg",
		"Joe Bloggs/Third Album/05:Fifth_track.ogg",
	}
)

// searchCase is a query and the tracks (relative to the collection) it must
// find.
type searchCase struct {
	terms []string
	want  []string
}

func searchCases() []searchCase {
	return []searchCase{
		// ASCII, any case
		{[]string{"first"}, searchFirst},
		{[]string{"Second"}, searchSecond},
		{[]string{"THIRD"}, searchThird},
		{[]string{"FIRST", "SECOND"}, intersect(searchFirst, searchSecond)},
		// composed I with grave and acute
		{[]string{"F\u00ccRST"}, searchFirst},
		{[]string{"f\u00ecrst"}, searchFirst},
		{[]string{"TH\u00cdRD"}, searchThird},
		{[]string{"th\u00edrd"}, searchThird},
		// the same, decomposed
		{[]string{"FI\u0300RST"}, searchFirst},
		{[]string{"fi\u0300rst"}, searchFirst},
		{[]string{"THI\u0301RD"}, searchThird},
		{[]string{"thI\u0301rd"}, searchThird},
		// stopwords
		{[]string{"01"}, nil},
	}
}

func intersect(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, s := range b {
		in[s] = true
	}
	var out []string
	for _, s := range a {
		if in[s] {
			out = append(out, s)
		}
	}
	return out
}

// canonicalTracks maps names to NFC and sorts them.
func canonicalTracks(names []string) []string {
	out := common.NFCAll(names)
	slices.Sort(out)
	return out
}

var Search = harness.Scenario{
	Name:        "search",
	Description: "Check that search produces the right results",
	Run: func(r *harness.Run) {
		r.CreateDefaultUser()
		r.Rescan()
		c := r.Connect()

		for _, tc := range searchCases() {
			got, err := c.Search(tc.terms...)
			r.Must(err, "search")
			want := make([]string, 0, len(tc.want))
			for _, rel := range tc.want {
				want = append(want, r.Track(rel))
			}
			got, want = canonicalTracks(got), canonicalTracks(want)
			r.Check(slices.Equal(got, want), "search %q: expected %q, got %q", tc.terms, want, got)
		}
	},
}
