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
	"runtime"

	"dtest/internal/config"
	"dtest/internal/fixture"
	"dtest/internal/harness"
)

var Recode = harness.Scenario{
	Name:        "recode",
	Description: "Index a collection stored in a non-UTF-8 encoding",
	Manual:      true,
	Run: func(r *harness.Run) {
		if runtime.GOOS == "darwin" {
			r.Skip("local filesystem names are always UTF-8")
		}
		r.StartDaemon()
		r.CreateDefaultUser()
		r.Rescan()
		r.CheckFiles()
		r.StopDaemon()

		recodeAs(r, "UTF-8", "ISO-8859-1")
		r.StopDaemon()
		recodeAs(r, "ISO-8859-1", "UTF-8")
	},
}

// recodeAs renames the collection from one encoding to another, points the
// daemon at the new encoding and checks it still sees the same tracks.
func recodeAs(r *harness.Run, from, to string) {
	src, err := fixture.LookupCharset(from)
	r.Must(err, "charset "+from)
	dst, err := fixture.LookupCharset(to)
	r.Must(err, "charset "+to)

	n, err := fixture.Recode(r.FS(), fixture.TracksDir, src, dst)
	r.Must(err, "recode as "+to)
	r.Logf("recoded %d file names as %s", n, to)

	r.RewriteConfig(func(p *config.Params) { p.Encoding = to })
	r.StartDaemon()
	r.Rescan()
	r.CheckFiles()
}
