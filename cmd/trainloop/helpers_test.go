package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// chdir mirrors t.Chdir (Go 1.24+), unavailable on this toolchain.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	})
}

type cliTestEnv struct {
	baseDir    string
	configPath string
	initialDir string
	finalDir   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	chdir(t, base)

	initial := filepath.Join(base, "episodes-initial")
	final := filepath.Join(base, "episodes-final")
	for _, dir := range []string{initial, final} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
episodes_dir_initial = %q
episodes_dir_final = %q
checkpoint_dir = %q
model_dir = %q
log_dir = %q
`,
		initial,
		final,
		filepath.Join(base, "checkpoints"),
		filepath.Join(base, "pv"),
		filepath.Join(base, "logs"),
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{
		baseDir:    base,
		configPath: configPath,
		initialDir: initial,
		finalDir:   final,
	}
}

func (e *cliTestEnv) addEpisode(t *testing.T, id string, maxTimestep int) {
	t.Helper()
	dir := filepath.Join(e.initialDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir episode: %v", err)
	}
	var states []string
	for ts := 0; ts <= maxTimestep; ts++ {
		states = append(states, fmt.Sprintf(`{"timestep": %d}`, ts))
	}
	log := fmt.Sprintf(`{"states": [%s]}`, strings.Join(states, ", "))
	if err := os.WriteFile(filepath.Join(dir, "log.json"), []byte(log), 0o644); err != nil {
		t.Fatalf("write episode log: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
