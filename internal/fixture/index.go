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

package fixture

import (
	"sort"

	"dtest/internal/common"
)

// Index records, for every directory the fixtures created, the child
// directories and files the server is expected to report. All keys and
// entries are full NFC paths.
type Index struct {
	dirs  map[string]*entrySet
	files map[string]*entrySet
}

type entrySet struct {
	order []string
	seen  map[string]bool
}

func (s *entrySet) add(name string) {
	if s.seen[name] {
		return
	}
	s.seen[name] = true
	s.order = append(s.order, name)
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		dirs:  make(map[string]*entrySet),
		files: make(map[string]*entrySet),
	}
}

func addTo(m map[string]*entrySet, key, name string) {
	key, name = common.NFC(key), common.NFC(name)
	s, ok := m[key]
	if !ok {
		s = &entrySet{seen: make(map[string]bool)}
		m[key] = s
	}
	s.add(name)
}

// AddDir records child as a subdirectory of parent.
func (ix *Index) AddDir(parent, child string) { addTo(ix.dirs, parent, child) }

// AddFile records file as a track inside dir.
func (ix *Index) AddFile(dir, file string) { addTo(ix.files, dir, file) }

func snapshot(m map[string]*entrySet) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, s := range m {
		out[k] = append([]string(nil), s.order...)
	}
	return out
}

// Dirs returns a copy of the directory -> subdirectories mapping.
func (ix *Index) Dirs() map[string][]string { return snapshot(ix.dirs) }

// Files returns a copy of the directory -> files mapping.
func (ix *Index) Files() map[string][]string { return snapshot(ix.files) }

// Directories returns every directory that has at least one expected child,
// sorted.
func (ix *Index) Directories() []string {
	keys := make(map[string]bool)
	for k := range ix.dirs {
		keys[k] = true
	}
	for k := range ix.files {
		keys[k] = true
	}
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Tracks returns every recorded track, sorted.
func (ix *Index) Tracks() []string {
	var out []string
	for _, s := range ix.files {
		out = append(out, s.order...)
	}
	sort.Strings(out)
	return out
}
