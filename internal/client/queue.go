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
	"time"
)

// QueueEntry is one queue, recent or playing entry as reported by the
// server. Raw keeps every field, including ones without a typed member.
type QueueEntry struct {
	ID        string
	Track     string
	Submitter string
	State     string
	Origin    string
	Scratched string
	When      time.Time // zero if absent
	Played    time.Time
	Expected  time.Time
	Raw       map[string]string
}

// Has reports whether the server sent field key.
func (q QueueEntry) Has(key string) bool {
	_, ok := q.Raw[key]
	return ok
}

// ParseQueueEntry decodes one marshalled "key value key value ..." line.
func ParseQueueEntry(line string) (QueueEntry, error) {
	words, err := Split(line)
	if err != nil {
		return QueueEntry{}, err
	}
	if len(words)%2 != 0 {
		return QueueEntry{}, fmt.Errorf("odd number of fields in queue entry %q", line)
	}
	q := QueueEntry{Raw: make(map[string]string, len(words)/2)}
	for i := 0; i < len(words); i += 2 {
		key, value := words[i], words[i+1]
		q.Raw[key] = value
		switch key {
		case "id":
			q.ID = value
		case "track":
			q.Track = value
		case "submitter":
			q.Submitter = value
		case "state":
			q.State = value
		case "origin":
			q.Origin = value
		case "scratched":
			q.Scratched = value
		case "when", "played", "expected":
			t, err := parseUnix(value)
			if err != nil {
				return QueueEntry{}, fmt.Errorf("queue entry %s: %w", key, err)
			}
			switch key {
			case "when":
				q.When = t
			case "played":
				q.Played = t
			default:
				q.Expected = t
			}
		}
	}
	return q, nil
}

func parseUnix(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(n, 0), nil
}

// FindTrack returns the entries for track, optionally only those with a
// submitter (i.e. not random picks).
func FindTrack(entries []QueueEntry, track string, submittedOnly bool) []QueueEntry {
	var out []QueueEntry
	for _, e := range entries {
		if e.Track != track {
			continue
		}
		if submittedOnly && e.Submitter == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FindID returns the entry with the given id.
func FindID(entries []QueueEntry, id string) (QueueEntry, bool) {
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return QueueEntry{}, false
}
