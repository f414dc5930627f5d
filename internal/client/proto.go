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
	"errors"
	"strconv"
	"strings"
)

var errUnterminated = errors.New("unterminated quoted string")

// Quote returns s as a single protocol word, quoting only when needed.
func Quote(s string) string {
	need := s == ""
	for _, r := range s {
		if r <= ' ' || r == '"' || r == '\\' || r == '\'' || r == '#' {
			need = true
			break
		}
	}
	if !need {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Command joins a command and its arguments into one request line, without
// the trailing newline.
func Command(cmd string, args ...string) string {
	var b strings.Builder
	b.WriteString(cmd)
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(Quote(a))
	}
	return b.String()
}

// Split breaks a line into words. Words are separated by whitespace; single
// or double quotes group a word and backslash escapes the next character
// inside quotes (\n is a newline).
func Split(line string) ([]string, error) {
	var words []string
	i := 0
	for i < len(line) {
		c := line[i]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			i++
			continue
		}
		if c == '"' || c == '\'' {
			q := c
			i++
			var b strings.Builder
			closed := false
			for i < len(line) {
				c = line[i]
				if c == q {
					closed = true
					i++
					break
				}
				if c == '\\' && i+1 < len(line) {
					i++
					if line[i] == 'n' {
						b.WriteByte('\n')
					} else {
						b.WriteByte(line[i])
					}
					i++
					continue
				}
				b.WriteByte(c)
				i++
			}
			if !closed {
				return nil, errUnterminated
			}
			words = append(words, b.String())
			continue
		}
		start := i
		for i < len(line) && line[i] != ' ' && line[i] != '\t' && line[i] != '\r' && line[i] != '\n' {
			i++
		}
		words = append(words, line[start:i])
	}
	return words, nil
}

// reply is one parsed status line.
type reply struct {
	Code int
	Text string // everything after "NNN "
}

func (r reply) ok() bool      { return r.Code/100 == 2 }
func (r reply) noValue() bool { return r.Code%10 == 9 }
func (r reply) body() bool    { return r.Code == 253 }
func (r reply) log() bool     { return r.Code == 254 }

func parseReply(line string) (reply, bool) {
	if len(line) < 3 || (len(line) > 3 && line[3] != ' ') {
		return reply{}, false
	}
	code, err := strconv.Atoi(line[:3])
	if err != nil || code < 100 || code > 999 {
		return reply{}, false
	}
	r := reply{Code: code}
	if len(line) > 4 {
		r.Text = line[4:]
	}
	return r, true
}

// unstuff removes the leading dot from a dot-stuffed body line.
func unstuff(line string) string {
	if strings.HasPrefix(line, ".") {
		return line[1:]
	}
	return line
}

func stuff(line string) string {
	if strings.HasPrefix(line, ".") {
		return "." + line
	}
	return line
}
