package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"trainloop/internal/journal"
)

func TestRunsCommandListsJournaledRuns(t *testing.T) {
	env := setupCLITestEnv(t)

	logDir := filepath.Join(env.baseDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	store, err := journal.Open(filepath.Join(logDir, "trainloop.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	if err := store.BeginRun(context.Background(), "run-test-1", 2); err != nil {
		t.Fatalf("begin run: %v", err)
	}
	if err := store.FinishRun(context.Background(), "run-test-1", journal.StatusCompleted, ""); err != nil {
		t.Fatalf("finish run: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close journal: %v", err)
	}

	out, _, err := runCLI(t, []string{"runs"}, env.configPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "run-test-1")
	requireContains(t, out, "completed")
	requireContains(t, out, "RECORDINGS")
}

func TestRunsCommandEmptyJournal(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(filepath.Join(env.baseDir, "logs"), 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}

	out, _, err := runCLI(t, []string{"runs"}, env.configPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "RUN")
}
