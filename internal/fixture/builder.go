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

// Package fixture synthesises the track collection a daemon indexes and keeps
// a record of what the server should report for it.
package fixture

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	logrus "github.com/sirupsen/logrus"

	"dtest/internal/common"
)

// TracksDir is the collection directory inside a test root.
const TracksDir = "tracks"

// Builder copies a sample track into the collection and records the result in
// an Index.
type Builder struct {
	fs     billy.Filesystem // rooted at the test root
	root   string           // absolute collection path as the server reports it
	sample []byte
	index  *Index
}

// NewBuilder returns a builder writing under TracksDir of fs. root is the
// absolute path of that directory, used to key the index the same way the
// server names directories.
func NewBuilder(fs billy.Filesystem, root string, sample []byte) *Builder {
	return &Builder{
		fs:     fs,
		root:   strings.TrimSuffix(root, "/"),
		sample: sample,
		index:  NewIndex(),
	}
}

// Index returns the expectations recorded so far.
func (b *Builder) Index() *Index { return b.index }

// Root returns the absolute collection path.
func (b *Builder) Root() string { return b.root }

// TrackPath returns the absolute path of the track rel, exactly as given
// (no normalization).
func (b *Builder) TrackPath(rel string) string {
	return b.root + "/" + common.NormalizePath(rel)
}

// Create makes the track rel exist and records it and all of its ancestor
// directories. Creating the same track twice is harmless.
func (b *Builder) Create(rel string) error {
	rel = common.NormalizePath(rel)
	if err := checkTrackPath(rel); err != nil {
		return err
	}

	name := path.Join(TracksDir, rel)
	if err := b.fs.MkdirAll(path.Dir(name), 0755); err != nil {
		return fmt.Errorf("create directory for %q: %v: %w", rel, err, common.ErrFilesystem)
	}
	if err := util.WriteFile(b.fs, name, b.sample, 0644); err != nil {
		return fmt.Errorf("create track %q: %v: %w", rel, err, common.ErrFilesystem)
	}

	parts := common.SplitPath(rel)
	dir := b.root
	for _, part := range parts[:len(parts)-1] {
		sub := dir + "/" + part
		b.index.AddDir(dir, sub)
		dir = sub
	}
	b.index.AddFile(dir, dir+"/"+parts[len(parts)-1])

	logrus.WithField("track", rel).Trace("fixture created")
	return nil
}

// CreateAll creates every track in rels, stopping at the first failure.
func (b *Builder) CreateAll(rels []string) error {
	for _, rel := range rels {
		if err := b.Create(rel); err != nil {
			return err
		}
	}
	return nil
}

func checkTrackPath(rel string) error {
	if rel == "" {
		return fmt.Errorf("empty track path: %w", common.ErrFilesystem)
	}
	if !utf8.ValidString(rel) {
		return fmt.Errorf("track path %q is not valid UTF-8: %w", rel, common.ErrFilesystem)
	}
	for _, part := range common.SplitPath(rel) {
		if part == ".." {
			return fmt.Errorf("track path %q escapes the collection: %w", rel, common.ErrFilesystem)
		}
	}
	return nil
}

// Exists reports whether rel is present on disk.
func (b *Builder) Exists(rel string) bool {
	_, err := b.fs.Stat(path.Join(TracksDir, common.NormalizePath(rel)))
	return err == nil
}
