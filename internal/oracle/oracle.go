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

// Package oracle compares what the server reports against what the fixtures
// promise.
package oracle

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"dtest/internal/common"
	"dtest/internal/fixture"
)

// Listing maps a directory to the full paths found in it.
type Listing map[string][]string

// Lister is the part of the client the oracle needs. An empty regexp lists
// everything.
type Lister interface {
	Dirs(dir, re string) ([]string, error)
	Files(dir, re string) ([]string, error)
}

// canonical returns NFC-normalized, sorted copies of names.
func canonical(names []string) []string {
	out := common.NFCAll(names)
	sort.Strings(out)
	return out
}

func canonicalKeys(l Listing) Listing {
	out := make(Listing, len(l))
	for k, v := range l {
		k = common.NFC(k)
		out[k] = append(out[k], v...)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func compare(kind string, actual, expected Listing) int {
	actual, expected = canonicalKeys(actual), canonicalKeys(expected)
	keys := make(map[string]bool)
	for k := range actual {
		keys[k] = true
	}
	for k := range expected {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	mismatches := 0
	for _, dir := range sorted {
		got, want := canonical(actual[dir]), canonical(expected[dir])
		if equal(got, want) {
			continue
		}
		mismatches++
		log.WithFields(log.Fields{
			"kind":      kind,
			"directory": dir,
			"expected":  want,
			"actual":    got,
		}).Error("listing mismatch")
	}
	return mismatches
}

// CheckListing compares directory and file listings without regard to order
// or Unicode normalization. Each differing directory is logged and counted;
// zero means the listings agree.
func CheckListing(actualDirs, actualFiles, expectedDirs, expectedFiles Listing) int {
	return compare("dirs", actualDirs, expectedDirs) + compare("files", actualFiles, expectedFiles)
}

// Collect asks the server for the subdirectories and files of every
// directory the index knows about.
func Collect(ctx context.Context, l Lister, ix *fixture.Index) (dirs, files Listing, err error) {
	dirs, files = make(Listing), make(Listing)
	for _, d := range ix.Directories() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		sub, err := l.Dirs(d, "")
		if err != nil {
			return nil, nil, fmt.Errorf("dirs %s: %w", d, err)
		}
		tracks, err := l.Files(d, "")
		if err != nil {
			return nil, nil, fmt.Errorf("files %s: %w", d, err)
		}
		dirs[d], files[d] = sub, tracks
	}
	return dirs, files, nil
}

// Check collects the server's view and compares it with the index.
func Check(ctx context.Context, l Lister, ix *fixture.Index) (int, error) {
	dirs, files, err := Collect(ctx, l, ix)
	if err != nil {
		return 0, err
	}
	return CheckListing(dirs, files, ix.Dirs(), ix.Files()), nil
}

// SameContents reports whether a and b hold the same strings with the same
// multiplicities, in any order.
func SameContents(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, s := range a {
		counts[s]++
	}
	for _, s := range b {
		counts[s]--
		if counts[s] < 0 {
			return false
		}
	}
	return true
}
