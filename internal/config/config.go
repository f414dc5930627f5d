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

// Package config renders the daemon configuration file and loads the
// harness's own settings.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"dtest/internal/artifacts"
	"dtest/internal/common"
	"dtest/internal/ports"
)

// DefaultAddress is where broadcasts go unless Params.Address says
// otherwise.
const DefaultAddress = "127.0.0.1"

// Layout names inside a test root.
const (
	ConfigFile  = "config"
	HomeDir     = "home"
	SocketName  = "socket"
	ScratchFile = "scratch.ogg"
	DumpFile    = "dumpfile"
	TracksDir   = "tracks"
)

// DefaultStopWords are split across several directives the way a hand
// written config would be.
var DefaultStopWords = [][]string{
	{"01", "02", "03", "04", "05", "06", "07", "08", "09", "10"},
	{"1", "2", "3", "4", "5", "6", "7", "8", "9"},
	{"11", "12", "13", "14", "15", "16", "17", "18", "19", "20"},
	{"21", "22", "23", "24", "25", "26", "27", "28", "29", "30"},
	{"the", "a", "an", "and", "to", "too", "in", "on", "of", "we", "i", "am", "as", "im", "for", "is"},
}

// Params are the inputs to the daemon configuration template.
type Params struct {
	TestRoot      string
	Encoding      string
	Ports         ports.Reservation
	Address       string // broadcast address, default 127.0.0.1
	Username      string
	Password      string
	QueuePad      int // 0 leaves the daemon default
	StopWords     [][]string
	Plugins       []string
	Extensions    []string
	Decoder       string
	TrackLength   string
	MailSender    string
	AuthAlgorithm string   // omitted when empty
	Extra         []string // appended verbatim
}

// Home returns the daemon home directory.
func (p Params) Home() string { return filepath.Join(p.TestRoot, HomeDir) }

// Tracks returns the collection root.
func (p Params) Tracks() string { return filepath.Join(p.TestRoot, TracksDir) }

// Scratch returns the scratch sound path.
func (p Params) Scratch() string { return filepath.Join(p.TestRoot, ScratchFile) }

// ConfigPath returns where Write puts the file.
func (p Params) ConfigPath() string { return filepath.Join(p.TestRoot, ConfigFile) }

// SocketPath returns the control socket whose appearance means the daemon is
// ready.
func (p Params) SocketPath() string { return filepath.Join(p.Home(), SocketName) }

// BroadcastAddress is Address or DefaultAddress.
func (p Params) BroadcastAddress() string {
	if p.Address == "" {
		return DefaultAddress
	}
	return p.Address
}

// Validate checks that the harness supplied everything the template needs.
// It does not second-guess the daemon's own checks.
func (p Params) Validate() error {
	var missing []string
	if p.TestRoot == "" {
		missing = append(missing, "test root")
	}
	if p.Encoding == "" {
		missing = append(missing, "encoding")
	}
	if p.Ports.Data == 0 || p.Ports.Control == 0 {
		missing = append(missing, "ports")
	}
	if p.Username == "" {
		missing = append(missing, "username")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config params missing %s: %w", strings.Join(missing, ", "), common.ErrUsage)
	}
	return nil
}

var tmpl = template.Must(template.New("config").
	Funcs(sprig.TxtFuncMap()).
	Funcs(template.FuncMap{"word": quoteWord}).
	Parse(artifacts.DaemonConfig))

// Render writes the configuration text to w.
func Render(w io.Writer, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.Address = p.BroadcastAddress()
	if p.StopWords == nil {
		p.StopWords = DefaultStopWords
	}
	return tmpl.Execute(w, p)
}

// Write renders the configuration to p.ConfigPath(). It may be called again
// mid-run, for instance to change the collection encoding.
func Write(p Params) error {
	var buf bytes.Buffer
	if err := Render(&buf, p); err != nil {
		return err
	}
	if err := os.WriteFile(p.ConfigPath(), buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write config: %v: %w", err, common.ErrFilesystem)
	}
	return nil
}

// quoteWord quotes s for a configuration line if it contains anything the
// daemon's word splitter treats specially.
func quoteWord(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"\\'#") {
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
