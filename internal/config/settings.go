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

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"dtest/internal/artifacts"
	"dtest/internal/common"
	"dtest/internal/ports"
	"dtest/internal/util"
)

// SettingsEnv names a settings file used when no --settings flag is given.
const SettingsEnv = "DTEST_SETTINGS"

// StartupSettings controls how long the harness waits for the socket.
type StartupSettings struct {
	Interval time.Duration `yaml:"interval"`
	Attempts int           `yaml:"attempts"`
}

// ShutdownSettings controls the stop escalation.
type ShutdownSettings struct {
	GracefulTimeout time.Duration `yaml:"graceful_timeout"`
	TermTimeout     time.Duration `yaml:"term_timeout"`
}

// Settings is the harness configuration. Defaults come from the embedded
// settings.yaml; a user file only needs the keys it changes.
type Settings struct {
	Daemon      string `yaml:"daemon"`
	ClientCLI   string `yaml:"client_cli"`
	DumpCLI     string `yaml:"dump_cli"`
	UDPLogCLI   string `yaml:"udplog_cli"`
	SoundsDir   string `yaml:"sounds_dir"`
	TestRoot    string `yaml:"testroot"` // default: $TMPDIR/dtest
	Encoding    string `yaml:"encoding"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	QueuePad    int    `yaml:"queue_pad"`
	Decoder     string `yaml:"decoder"`
	TrackLength string `yaml:"tracklength"`

	Extensions   []string         `yaml:"extensions"`
	Plugins      []string         `yaml:"plugins"`
	MailSender   string           `yaml:"mail_sender"`
	LogLevel     string           `yaml:"log_level"` // logrus level name
	Startup      StartupSettings  `yaml:"startup"`
	Shutdown     ShutdownSettings `yaml:"shutdown"`
	PortAttempts uint             `yaml:"port_attempts"`
}

// DefaultSettings decodes the embedded defaults.
func DefaultSettings() (*Settings, error) {
	s := &Settings{}
	if err := decodeSettings(artifacts.GlobalSettings, s); err != nil {
		return nil, fmt.Errorf("embedded settings: %w", err)
	}
	s.applyDefaults()
	return s, nil
}

// LoadSettings overlays the file at path onto the defaults. An empty path
// falls back to $DTEST_SETTINGS, and if that is unset the defaults are
// returned unchanged.
func LoadSettings(path string) (*Settings, error) {
	s, err := DefaultSettings()
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = os.Getenv(SettingsEnv)
	}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %v: %w", path, err, common.ErrUsage)
	}
	if err := decodeSettings(data, s); err != nil {
		return nil, fmt.Errorf("settings %s: %w", path, err)
	}
	s.applyDefaults()
	return s, nil
}

func decodeSettings(data []byte, s *Settings) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil {
		return fmt.Errorf("%v: %w", err, common.ErrUsage)
	}
	return nil
}

func (s *Settings) applyDefaults() {
	if s.TestRoot == "" {
		s.TestRoot = filepath.Join(os.TempDir(), "dtest")
	}
	if s.PortAttempts == 0 {
		s.PortAttempts = ports.DefaultAttempts
	}
	if s.Startup.Attempts == 0 {
		s.Startup.Attempts = util.StartupPollConfig().Attempts
	}
	if s.Startup.Interval == 0 {
		s.Startup.Interval = util.StartupPollConfig().Interval
	}
}

// StartupPoll converts the startup settings into a poll configuration.
func (s *Settings) StartupPoll() util.PollConfig {
	return util.PollConfig{
		Timeout:  s.Startup.Interval * time.Duration(s.Startup.Attempts),
		Interval: s.Startup.Interval,
		Attempts: s.Startup.Attempts,
	}
}

// ProcessConfig converts the shutdown settings into process stop timeouts.
// Zero values fall back to StopProcess defaults.
func (s *Settings) ProcessConfig() util.ProcessConfig {
	return util.ProcessConfig{
		GracefulTimeout: s.Shutdown.GracefulTimeout,
		TermTimeout:     s.Shutdown.TermTimeout,
	}
}

// Sound returns the path of a file in the sounds directory.
func (s *Settings) Sound(name string) string {
	return filepath.Join(s.SoundsDir, name)
}

// Params builds the daemon configuration inputs for a run.
func (s *Settings) Params(testRoot string, r ports.Reservation) Params {
	return Params{
		TestRoot:    testRoot,
		Encoding:    s.Encoding,
		Ports:       r,
		Username:    s.Username,
		Password:    s.Password,
		QueuePad:    s.QueuePad,
		Plugins:     append([]string(nil), s.Plugins...),
		Extensions:  append([]string(nil), s.Extensions...),
		Decoder:     s.Decoder,
		TrackLength: s.TrackLength,
		MailSender:  s.MailSender,
	}
}
