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

// Package scenarios holds the daemon test cases run by the harness.
package scenarios

import (
	"fmt"
	"sort"

	"dtest/internal/common"
	"dtest/internal/harness"
)

// All returns every scenario in run order.
func All() []harness.Scenario {
	return []harness.Scenario{
		Version,
		Files,
		Queue,
		Cookie,
		User,
		UserUpgrade,
		Hashes,
		Aliases,
		Dump,
		Search,
		Playlists,
		Play,
		Schedule,
		Recode,
		DBVersion,
	}
}

// Names returns the scenario names sorted alphabetically.
func Names() []string {
	all := All()
	names := make([]string, 0, len(all))
	for _, sc := range all {
		names = append(names, sc.Name)
	}
	sort.Strings(names)
	return names
}

// Lookup finds a scenario by name.
func Lookup(name string) (harness.Scenario, bool) {
	for _, sc := range All() {
		if sc.Name == name {
			return sc, true
		}
	}
	return harness.Scenario{}, false
}

// Select resolves names to scenarios, keeping their order. No names selects
// everything.
func Select(names []string) ([]harness.Scenario, error) {
	if len(names) == 0 {
		return All(), nil
	}
	selected := make([]harness.Scenario, 0, len(names))
	for _, name := range names {
		sc, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q: %w", name, common.ErrUsage)
		}
		selected = append(selected, sc)
	}
	return selected, nil
}
