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

package supervisor

import (
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// KillStale kills daemons left running with configPath by an earlier run
// that died without tearing down. The caller must hold the test root lock,
// so any such daemon is an orphan. It returns the number killed.
func KillStale(executable, configPath string) int {
	name := executable
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	out, err := exec.Command("pgrep", "-f", name).Output()
	if err != nil {
		return 0
	}

	killed := 0
	self := os.Getpid()
	for _, field := range strings.Fields(string(out)) {
		pid, err := strconv.Atoi(field)
		if err != nil || pid == self {
			continue
		}
		psOut, err := exec.Command("ps", "-p", field, "-o", "command=").Output()
		if err != nil {
			continue
		}
		if !usesConfig(string(psOut), configPath) {
			continue
		}
		proc, err := os.FindProcess(pid)
		if err != nil {
			continue
		}
		if proc.Signal(syscall.SIGKILL) == nil {
			log.WithFields(log.Fields{"pid": pid, "config": configPath}).Warn("killed stale daemon")
			killed++
		}
	}
	return killed
}

// usesConfig reports whether cmdline passes --config configPath.
func usesConfig(cmdline, configPath string) bool {
	words := strings.Fields(cmdline)
	for i, w := range words {
		if w == "--config" && i+1 < len(words) && words[i+1] == configPath {
			return true
		}
		if w == "--config="+configPath {
			return true
		}
	}
	return false
}
