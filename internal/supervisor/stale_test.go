package supervisor

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dtest/internal/util"
)

func TestUsesConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cmdline string
		want    bool
	}{
		{"separate", "disorderd --foreground --config /t/config", true},
		{"equals", "disorderd --config=/t/config", true},
		{"other_root", "disorderd --foreground --config /u/config", false},
		{"prefix_only", "disorderd --config /t/config.save", false},
		{"missing_value", "disorderd --config", false},
		{"none", "disorderd --foreground", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, usesConfig(tt.cmdline, "/t/config"))
		})
	}
}

func TestKillStale(t *testing.T) {
	t.Parallel()
	for _, tool := range []string{"sh", "pgrep", "ps"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skip(tool + " not available")
		}
	}

	dir := t.TempDir()
	exe := filepath.Join(dir, "stale-disorderd")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\nwhile :; do sleep 0.2; done\n"), 0755))
	config := filepath.Join(dir, "config")

	p, err := util.StartProcess(exe, []string{"--foreground", "--config", config}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { util.KillProcess(p) })

	other := filepath.Join(dir, "other", "config")
	assert.Zero(t, KillStale(exe, other))
	assert.False(t, p.Exited())

	g := NewWithT(t)
	g.Eventually(func() int { return KillStale(exe, config) }).
		WithTimeout(2 * time.Second).WithPolling(100 * time.Millisecond).Should(BeNumerically(">=", 1))
	g.Eventually(p.Exited).WithTimeout(2 * time.Second).Should(BeTrue())
}
