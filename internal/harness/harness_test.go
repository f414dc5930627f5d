package harness

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dtest/internal/common"
	"dtest/internal/config"
	"dtest/internal/fixture"
	"dtest/internal/supervisor"
)

const fakeDaemon = `#!/bin/sh
home=$(awk '$1 == "home" { print $2 }' "$3")
trap 'rm -f "$home/socket"; exit 0' TERM
: > "$home/socket"
while :; do sleep 0.1; done
`

const brokenDaemon = `#!/bin/sh
echo "config error" >&2
exit 1
`

func testSettings(t *testing.T, daemon string) *config.Settings {
	t.Helper()
	if _, err := exec.LookPath("awk"); err != nil {
		t.Skip("awk not available")
	}
	dir := t.TempDir()

	exe := filepath.Join(dir, "disorderd")
	require.NoError(t, os.WriteFile(exe, []byte(daemon), 0755))
	sounds := filepath.Join(dir, "sounds")
	require.NoError(t, os.MkdirAll(sounds, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sounds, SampleSound), []byte("OggS sample"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sounds, config.ScratchFile), []byte("OggS scratch"), 0644))

	s, err := config.DefaultSettings()
	require.NoError(t, err)
	s.Daemon = exe
	s.SoundsDir = sounds
	s.TestRoot = filepath.Join(dir, "testroot")
	s.Startup = config.StartupSettings{Interval: 20 * time.Millisecond, Attempts: 100}
	s.Shutdown = config.ShutdownSettings{GracefulTimeout: 200 * time.Millisecond, TermTimeout: time.Second}
	return s
}

func TestRun_Passes(t *testing.T) {
	t.Parallel()
	s := testSettings(t, fakeDaemon)

	var sup *supervisor.Supervisor
	res := NewDriver(s).Run(context.Background(), Scenario{
		Name: "passes",
		Run: func(r *Run) {
			sup = r.Supervisor()
			r.Check(r.DaemonRunning(), "daemon running")
			r.Check(r.Fixtures().Exists("misc/blahblahblah.ogg"), "fixture on disk")
			r.Check(r.Track("misc/blahblahblah.ogg") == filepath.Join(s.TestRoot, "tracks", "misc", "blahblahblah.ogg"), "track path")
			_, err := r.FS().Stat(config.ScratchFile)
			r.Check(err == nil, "scratch copied: %v", err)
		},
	})

	assert.True(t, res.Passed(), "%+v", res)
	assert.Equal(t, ExitPassed, res.ExitCode())
	assert.NotEmpty(t, res.RunID)
	require.NotNil(t, sup)
	assert.False(t, sup.Tracked(), "daemon stopped at teardown")
	assert.FileExists(t, filepath.Join(s.TestRoot, "passes.log"))
	assert.FileExists(t, filepath.Join(s.TestRoot, config.ConfigFile))
}

func TestRun_RecreatesTestRoot(t *testing.T) {
	t.Parallel()
	s := testSettings(t, fakeDaemon)
	stale := filepath.Join(s.TestRoot, "stale")
	require.NoError(t, os.MkdirAll(s.TestRoot, 0755))
	require.NoError(t, os.WriteFile(stale, nil, 0644))

	res := NewDriver(s).Run(context.Background(), Scenario{
		Name:   "empty",
		Setup:  func(b *fixture.Builder) error { return b.CreateAll(fixture.NoTracks()) },
		Manual: true,
		Run: func(r *Run) {
			r.Check(len(r.Fixtures().Index().Tracks()) == 0, "no tracks")
		},
	})
	assert.True(t, res.Passed(), "%+v", res)
	assert.NoFileExists(t, stale)
	assert.DirExists(t, filepath.Join(s.TestRoot, "tracks"))
}

func TestRun_FailuresStillTearDown(t *testing.T) {
	t.Parallel()
	s := testSettings(t, fakeDaemon)

	var sup *supervisor.Supervisor
	reached := false
	res := NewDriver(s).Run(context.Background(), Scenario{
		Name: "fails",
		Run: func(r *Run) {
			sup = r.Supervisor()
			r.Check(false, "first")
			r.Fatal("second")
			reached = true
		},
	})

	assert.Equal(t, 2, res.Failures)
	assert.Equal(t, ExitFailed, res.ExitCode())
	assert.False(t, reached, "Fatal ends the scenario")
	require.NotNil(t, sup)
	assert.False(t, sup.Tracked())
}

func TestRun_PanicIsFailure(t *testing.T) {
	t.Parallel()
	s := testSettings(t, fakeDaemon)

	res := NewDriver(s).Run(context.Background(), Scenario{
		Name: "panics",
		Run:  func(r *Run) { panic("boom") },
	})
	assert.Equal(t, 1, res.Failures)
	assert.Equal(t, ExitFailed, res.ExitCode())
}

func TestRun_Skip(t *testing.T) {
	t.Parallel()
	s := testSettings(t, fakeDaemon)

	res := NewDriver(s).Run(context.Background(), Scenario{
		Name:   "skips",
		Manual: true,
		Run:    func(r *Run) { r.Skip("not on this platform") },
	})
	assert.True(t, res.Skipped)
	assert.Equal(t, "not on this platform", res.Reason)
	assert.Equal(t, ExitSkipped, res.ExitCode())
}

func TestRun_ManualStartAfterRewrite(t *testing.T) {
	t.Parallel()
	s := testSettings(t, fakeDaemon)

	res := NewDriver(s).Run(context.Background(), Scenario{
		Name:   "manual",
		Manual: true,
		Run: func(r *Run) {
			r.Check(!r.DaemonRunning(), "not started yet")
			r.RewriteConfig(func(p *config.Params) { p.AuthAlgorithm = "sha256" })
			data, err := os.ReadFile(r.Params().ConfigPath())
			r.Must(err, "read config")
			r.Check(strings.Contains(string(data), "authorization_algorithm sha256"), "rewritten")
			r.StartDaemon()
			r.Check(r.DaemonRunning(), "started")
			r.RestartDaemon()
			r.Check(r.DaemonRunning(), "restarted")
			r.StopDaemon()
			r.Check(!r.DaemonRunning(), "stopped")
		},
	})
	assert.True(t, res.Passed(), "%+v", res)
}

func TestRun_StartupFailure(t *testing.T) {
	t.Parallel()
	s := testSettings(t, brokenDaemon)

	reached := false
	res := NewDriver(s).Run(context.Background(), Scenario{
		Name: "broken",
		Run:  func(r *Run) { reached = true },
	})
	assert.False(t, reached)
	assert.ErrorIs(t, res.Err, common.ErrStartupFailure)
	assert.Equal(t, ExitFailed, res.ExitCode())

	log, err := os.ReadFile(filepath.Join(s.TestRoot, "broken.log"))
	require.NoError(t, err)
	assert.Contains(t, string(log), "config error")
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	t.Run("no_body", func(t *testing.T) {
		t.Parallel()
		s := testSettings(t, fakeDaemon)
		res := NewDriver(s).Run(context.Background(), Scenario{Name: "nobody"})
		assert.ErrorIs(t, res.Err, common.ErrUsage)
	})

	t.Run("locked", func(t *testing.T) {
		t.Parallel()
		s := testSettings(t, fakeDaemon)
		lock := flock.New(s.TestRoot + ".lock")
		locked, err := lock.TryLock()
		require.NoError(t, err)
		require.True(t, locked)
		defer lock.Unlock()

		res := NewDriver(s).Run(context.Background(), Scenario{Name: "locked", Run: func(*Run) {}})
		assert.ErrorIs(t, res.Err, common.ErrUsage)
	})

	t.Run("missing_sounds", func(t *testing.T) {
		t.Parallel()
		s := testSettings(t, fakeDaemon)
		s.SoundsDir = filepath.Join(s.SoundsDir, "nowhere")
		res := NewDriver(s).Run(context.Background(), Scenario{Name: "nosounds", Run: func(*Run) {}})
		assert.ErrorIs(t, res.Err, common.ErrFilesystem)
	})

	t.Run("bad_fixture", func(t *testing.T) {
		t.Parallel()
		s := testSettings(t, fakeDaemon)
		res := NewDriver(s).Run(context.Background(), Scenario{
			Name:  "badfixture",
			Setup: func(b *fixture.Builder) error { return b.Create("../escape.ogg") },
			Run:   func(*Run) {},
		})
		assert.ErrorIs(t, res.Err, common.ErrFilesystem)
	})
}

func TestRunAll_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := NewDriver(&config.Settings{}).RunAll(ctx, []Scenario{{Name: "x", Run: func(*Run) {}}})
	assert.Empty(t, results)
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	ok := Result{}
	failed := Result{Failures: 1}
	skipped := Result{Skipped: true}
	broken := Result{Err: common.ErrStartupTimeout}
	skippedAndFailed := Result{Skipped: true, Failures: 1}

	tests := []struct {
		name    string
		results []Result
		want    int
	}{
		{"none", nil, ExitPassed},
		{"all_ok", []Result{ok, ok}, ExitPassed},
		{"one_failed", []Result{ok, failed, skipped}, ExitFailed},
		{"error", []Result{broken}, ExitFailed},
		{"all_skipped", []Result{skipped, skipped}, ExitSkipped},
		{"some_skipped", []Result{ok, skipped}, ExitPassed},
		{"failure_beats_skip", []Result{skippedAndFailed}, ExitFailed},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExitCode(tt.results))
		})
	}
}
