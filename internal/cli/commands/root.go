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

package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	logrus "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dtest/internal/common"
	"dtest/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Persistent flags
var (
	settingsPath string
	testRoot     string
	logLevel     string
	daemonPath   string
)

// SetVersion sets the version info for --version flag
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

// getVersionString returns the version string with build info
func getVersionString() string {
	buildDate := formatBuildDate(date)
	if strings.HasSuffix(version, "-dev") {
		return fmt.Sprintf("%s (%s, epoch: %s, commit: %s)", version, buildDate, date, commit)
	}
	return fmt.Sprintf("%s (%s)", version, buildDate)
}

// formatBuildDate converts epoch timestamp to readable date
func formatBuildDate(epoch string) string {
	ts, err := strconv.ParseInt(epoch, 10, 64)
	if err != nil {
		return epoch
	}
	return time.Unix(ts, 0).Format("2006-01-02")
}

// ExitError carries a process exit status out of Execute without an error
// message of its own.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

var rootCmd = &cobra.Command{
	Use:   "dtest",
	Short: "Integration test harness for the DisOrder daemon",
	Long: `Run scenarios against a freshly configured DisOrder daemon.

Each scenario gets its own test root with a synthetic track collection, a
generated configuration and a private port pair. The daemon is always stopped
afterwards, whatever the scenario did.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("dtest version {{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&settingsPath, "settings", "", "settings file (default $"+config.SettingsEnv+")")
	flags.StringVar(&testRoot, "testroot", "", "test root directory, recreated for every scenario")
	flags.StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&daemonPath, "daemon", "", "daemon executable")
}

// loadSettings reads the settings file, applies flag overrides and
// configures logging.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	s, err := config.LoadSettings(settingsPath)
	if err != nil {
		return nil, err
	}
	if testRoot != "" {
		s.TestRoot = testRoot
	}
	if daemonPath != "" {
		s.Daemon = daemonPath
	}
	if cmd.Flags().Changed("log-level") {
		s.LogLevel = logLevel
	}
	if err := configureLogging(s.LogLevel); err != nil {
		return nil, err
	}
	return s, nil
}

func configureLogging(level string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("%v: %w", err, common.ErrUsage)
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}
