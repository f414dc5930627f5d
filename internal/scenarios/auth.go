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
	"dtest/internal/client"
	"dtest/internal/config"
	"dtest/internal/harness"
	"dtest/internal/oracle"
)

// authAlgorithms are tried in turn by Hashes; the daemon accepts either
// case.
var authAlgorithms = []string{"sha1", "SHA1", "sha256", "SHA256", "sha384", "SHA384", "sha512", "SHA512"}

var Cookie = harness.Scenario{
	Name:        "cookie",
	Description: "Exercise the cookie protocol",
	Run: func(r *harness.Run) {
		r.CreateDefaultUser()
		c := r.Connect()
		_, err := c.Version()
		r.Must(err, "version")
		cookie, err := c.MakeCookie()
		r.Must(err, "make-cookie")
		r.Logger().WithField("cookie", cookie).Debug("got cookie")

		var kc *client.Client
		for i := 0; i < 2; i++ {
			kc, err = r.ConnectWithCookie(cookie)
			r.Must(err, "connect with cookie")
			r.Check(kc.User() == r.Params().Username, "cookie logged in as %q", kc.User())
			_, err = kc.Version()
			r.Must(err, "version over cookie connection")
		}

		r.Must(kc.Revoke(), "revoke")
		_, err = kc.Version()
		r.Check(err == nil, "connection stopped working after revoke: %v", err)

		_, err = r.ConnectWithCookie(cookie)
		r.ExpectRejected(err, "login with revoked cookie")
	},
}

var User = harness.Scenario{
	Name:        "user",
	Description: "Exercise the user database",
	Run: func(r *harness.Run) {
		r.CreateDefaultUser()
		me := r.Params().Username
		c := r.Connect()

		r.Must(c.AddUser("bob", "bobpass", ""), "adduser bob")
		users, err := c.Users()
		r.Must(err, "users")
		r.Check(oracle.SameContents(users, []string{me, "bob", "root"}), "users after adduser: %q", users)

		bob, err := r.ConnectAs("bob", "bobpass")
		r.Must(err, "log in as bob")
		_, err = bob.Version()
		r.Must(err, "version as bob")

		r.Must(bob.EditUser("bob", "email", "foo@bar"), "bob sets email")
		email, _, err := bob.UserInfo("bob", "email")
		r.Must(err, "userinfo")
		r.Check(email == "foo@bar", "bob's email is %q", email)

		r.Must(c.DelUser("bob"), "deluser bob")
		_, err = r.ConnectAs("bob", "bobpass")
		r.ExpectRejected(err, "login as deleted user")

		users, err = c.Users()
		r.Must(err, "users")
		r.Check(oracle.SameContents(users, []string{me, "root"}), "users after deluser: %q", users)
	},
}

var UserUpgrade = harness.Scenario{
	Name:        "user-upgrade",
	Description: "Check logins survive the move away from allow lines",
	Manual:      true,
	Run: func(r *harness.Run) {
		saved := append([]string(nil), r.Params().Extra...)
		r.RewriteConfig(func(p *config.Params) {
			p.Extra = append(append([]string(nil), saved...), "allow "+p.Username+" "+p.Password, "trust "+p.Username)
		})
		r.StartDaemon()
		_, err := r.Connect().Version()
		r.Check(err == nil, "version after upgrade: %v", err)
		r.StopDaemon()

		r.RewriteConfig(func(p *config.Params) { p.Extra = saved })
		r.StartDaemon()
		_, err = r.Connect().Version()
		r.Check(err == nil, "version after removing allow: %v", err)
	},
}

var Hashes = harness.Scenario{
	Name:        "hashes",
	Description: "Log in with every authorization hash",
	Manual:      true,
	Run: func(r *harness.Run) {
		created := false
		for _, algo := range authAlgorithms {
			r.Logf("authorization hash %s", algo)
			r.RewriteConfig(func(p *config.Params) { p.AuthAlgorithm = algo })
			r.StartDaemon()
			if !created {
				r.CreateDefaultUser()
				created = true
			}
			r.Command("root", "version")
			_, err := r.Connect().Version()
			r.Check(err == nil, "version with %s: %v", algo, err)
			r.StopDaemon()
		}
	},
}
