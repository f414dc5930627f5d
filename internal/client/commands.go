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
	"fmt"
	"strconv"
	"strings"
	"time"
)

// value unquotes the single word a value reply carries.
func (c *Client) value(cmd string, args ...string) (string, bool, error) {
	text, ok, err := c.Simple(cmd, args...)
	if err != nil || !ok {
		return "", ok, err
	}
	return firstWord(text), true, nil
}

func (c *Client) boolean(cmd string) (bool, error) {
	v, _, err := c.value(cmd)
	if err != nil {
		return false, err
	}
	switch v {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	return false, c.fail(cmd, fmt.Errorf("expected yes/no, got %q", v))
}

func (c *Client) void(cmd string, args ...string) error {
	_, _, err := c.Simple(cmd, args...)
	return err
}

func (c *Client) queueList(cmd string) ([]QueueEntry, error) {
	lines, err := c.List(cmd)
	if err != nil {
		return nil, err
	}
	entries := make([]QueueEntry, 0, len(lines))
	for _, line := range lines {
		q, err := ParseQueueEntry(line)
		if err != nil {
			return nil, c.fail(cmd, err)
		}
		entries = append(entries, q)
	}
	return entries, nil
}

// Server information

func (c *Client) Version() (string, error) {
	v, _, err := c.value("version")
	return v, err
}

func (c *Client) Nop() error { return c.void("nop") }

func (c *Client) Stats() ([]string, error) { return c.List("stats") }

// Shutdown asks the daemon to exit. It does not wait for the process.
func (c *Client) Shutdown() error { return c.void("shutdown") }

// Queue and playback

func (c *Client) Queue() ([]QueueEntry, error)  { return c.queueList("queue") }
func (c *Client) Recent() ([]QueueEntry, error) { return c.queueList("recent") }

// Playing returns the current track, or nil if nothing is playing.
func (c *Client) Playing() (*QueueEntry, error) {
	text, ok, err := c.Simple("playing")
	if err != nil || !ok {
		return nil, err
	}
	q, err := ParseQueueEntry(text)
	if err != nil {
		return nil, c.fail("playing", err)
	}
	return &q, nil
}

// Play queues track and returns the new queue id.
func (c *Client) Play(track string) (string, error) {
	v, _, err := c.value("play", track)
	return v, err
}

// PlayAfter queues tracks after the entry target ("" for the head).
func (c *Client) PlayAfter(target string, tracks ...string) error {
	return c.void("playafter", append([]string{target}, tracks...)...)
}

// Scratch stops the playing track; id may be empty.
func (c *Client) Scratch(id string) error {
	if id == "" {
		return c.void("scratch")
	}
	return c.void("scratch", id)
}

func (c *Client) Remove(id string) error { return c.void("remove", id) }

// MoveAfter moves ids to follow target ("" for the head).
func (c *Client) MoveAfter(target string, ids ...string) error {
	return c.void("moveafter", append([]string{target}, ids...)...)
}

func (c *Client) Enable() error                { return c.void("enable") }
func (c *Client) Disable() error               { return c.void("disable") }
func (c *Client) Enabled() (bool, error)       { return c.boolean("enabled") }
func (c *Client) RandomEnable() error          { return c.void("random-enable") }
func (c *Client) RandomDisable() error         { return c.void("random-disable") }
func (c *Client) RandomEnabled() (bool, error) { return c.boolean("random-enabled") }

// Preferences. The bool result is false when the preference is unset.

func (c *Client) Get(track, key string) (string, bool, error) { return c.value("get", track, key) }
func (c *Client) Set(track, key, value string) error          { return c.void("set", track, key, value) }
func (c *Client) Unset(track, key string) error               { return c.void("unset", track, key) }

func (c *Client) GetGlobal(key string) (string, bool, error) { return c.value("get-global", key) }
func (c *Client) SetGlobal(key, value string) error          { return c.void("set-global", key, value) }
func (c *Client) UnsetGlobal(key string) error               { return c.void("unset-global", key) }

// Track names

// Part returns one name part of track, e.g. Part(t, "display", "artist").
func (c *Client) Part(track, context, part string) (string, error) {
	v, _, err := c.value("part", track, context, part)
	return v, err
}

// Resolve maps an alias to its canonical track.
func (c *Client) Resolve(track string) (string, error) {
	v, _, err := c.value("resolve", track)
	return v, err
}

func (c *Client) Tags() ([]string, error) { return c.List("tags") }

// Search returns tracks matching every term.
func (c *Client) Search(terms ...string) ([]string, error) {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = Quote(t)
	}
	return c.List("search", strings.Join(quoted, " "))
}

// Files lists tracks directly in dir, filtered by re if non-empty.
func (c *Client) Files(dir, re string) ([]string, error) {
	return c.List("files", listArgs(dir, re)...)
}

// Dirs lists subdirectories of dir, filtered by re if non-empty.
func (c *Client) Dirs(dir, re string) ([]string, error) {
	return c.List("dirs", listArgs(dir, re)...)
}

func listArgs(dir, re string) []string {
	if re == "" {
		return []string{dir}
	}
	return []string{dir, re}
}

// Rescan starts a rescan; with wait it returns once the rescan finished.
func (c *Client) Rescan(wait bool) error {
	if wait {
		return c.void("rescan", "wait")
	}
	return c.void("rescan")
}

// Users

// AddUser creates a user; rights may be empty for the server default.
func (c *Client) AddUser(user, password, rights string) error {
	if rights == "" {
		return c.void("adduser", user, password)
	}
	return c.void("adduser", user, password, rights)
}

func (c *Client) DelUser(user string) error { return c.void("deluser", user) }

func (c *Client) EditUser(user, key, value string) error {
	return c.void("edituser", user, key, value)
}

func (c *Client) UserInfo(user, key string) (string, bool, error) {
	return c.value("userinfo", user, key)
}

func (c *Client) Users() ([]string, error) { return c.List("users") }

// Register creates an unconfirmed user and returns the confirmation string.
func (c *Client) Register(user, password, email string) (string, error) {
	v, _, err := c.value("register", user, password, email)
	return v, err
}

func (c *Client) Confirm(confirmation string) error { return c.void("confirm", confirmation) }

// Cookies

func (c *Client) MakeCookie() (string, error) {
	v, _, err := c.value("make-cookie")
	return v, err
}

// Revoke invalidates the cookie this connection logged in with, or all of
// the user's cookies for a password login.
func (c *Client) Revoke() error { return c.void("revoke") }

// Playlists

func (c *Client) PlaylistLock(name string) error { return c.void("playlist-lock", name) }
func (c *Client) PlaylistUnlock() error          { return c.void("playlist-unlock") }

func (c *Client) PlaylistSet(name string, tracks []string) error {
	return c.Upload("playlist-set", tracks, name)
}

func (c *Client) PlaylistGet(name string) ([]string, error) { return c.List("playlist-get", name) }

func (c *Client) PlaylistGetShare(name string) (string, error) {
	v, _, err := c.value("playlist-get-share", name)
	return v, err
}

func (c *Client) PlaylistSetShare(name, share string) error {
	return c.void("playlist-set-share", name, share)
}

func (c *Client) PlaylistDelete(name string) error { return c.void("playlist-delete", name) }
func (c *Client) Playlists() ([]string, error)     { return c.List("playlists") }

// Schedule

// ScheduleAdd creates an event; action is "play" or "set-global".
func (c *Client) ScheduleAdd(when time.Time, priority, action string, args ...string) error {
	full := append([]string{strconv.FormatInt(when.Unix(), 10), priority, action}, args...)
	return c.void("schedule-add", full...)
}

func (c *Client) ScheduleList() ([]string, error) { return c.List("schedule-list") }

// ScheduleGet returns the event's properties.
func (c *Client) ScheduleGet(id string) (map[string]string, error) {
	lines, err := c.List("schedule-get", id)
	if err != nil {
		return nil, err
	}
	props := make(map[string]string, len(lines))
	for _, line := range lines {
		words, err := Split(line)
		if err != nil || len(words) != 2 {
			return nil, c.fail("schedule-get", fmt.Errorf("bad property line %q", line))
		}
		props[words[0]] = words[1]
	}
	return props, nil
}

func (c *Client) ScheduleDel(id string) error { return c.void("schedule-del", id) }
