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

package common

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NFC returns s in Unicode Normalization Form C, the form the server uses
// when it reports track and directory names.
func NFC(s string) string {
	return norm.NFC.String(s)
}

// NFCAll maps NFC over a slice, returning a new slice.
func NFCAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = NFC(n)
	}
	return out
}

// SameName reports whether two names are equal once both are NFC.
func SameName(a, b string) bool {
	return NFC(a) == NFC(b)
}

// NormalizePath cleans a '/'-separated relative path, removing leading/trailing
// slashes. Normalization form is left untouched so decomposed names survive.
func NormalizePath(p string) string {
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimSuffix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// SplitPath splits a path into its components
func SplitPath(p string) []string {
	p = NormalizePath(p)
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// JoinPath joins path components
func JoinPath(parts ...string) string {
	return NormalizePath(path.Join(parts...))
}

// ParentPath returns the parent directory of a path
func ParentPath(p string) string {
	p = NormalizePath(p)
	if p == "" {
		return ""
	}
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

// BaseName returns the base name of a path
func BaseName(p string) string {
	p = NormalizePath(p)
	if p == "" {
		return ""
	}
	return path.Base(p)
}
