package trainer

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"trainloop/internal/services"
)

func swapCommandContext(t *testing.T, fn func(context.Context, string, ...string) *exec.Cmd) {
	t.Helper()
	orig := commandContext
	commandContext = fn
	t.Cleanup(func() { commandContext = orig })
}

func TestNewCLIWithPython(t *testing.T) {
	cli := NewCLI(WithPython("/opt/python"))
	if cli.python != "/opt/python" {
		t.Fatalf("expected python override, got %q", cli.python)
	}
}

func TestTrainRequiresEpisodesDir(t *testing.T) {
	cli := NewCLI()
	err := cli.Train(context.Background(), PhaseConfig{CheckpointRoot: "/tmp/ck", ModelDir: "/tmp/pv"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTrainBuildsCommandAndPhaseDirs(t *testing.T) {
	base := t.TempDir()
	var gotName string
	var gotArgs []string
	swapCommandContext(t, func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotName = name
		gotArgs = args
		return exec.CommandContext(ctx, "sh", "-c", "exit 0")
	})

	cfg := PhaseConfig{
		EpisodesDir:     filepath.Join(base, "episodes"),
		CheckpointRoot:  filepath.Join(base, "checkpoints"),
		ModelDir:        filepath.Join(base, "models"),
		Device:          "cpu",
		Backbone:        "lg_transformer",
		BCEpochs:        40,
		PPOEpochs:       60,
		HeightMax:       300,
		WidthMax:        160,
		TensorboardRoot: filepath.Join(base, "tb"),
		RunLabel:        "human",
		ExtraArgs:       []string{"--lr", "0.001"},
	}

	if err := NewCLI().Train(context.Background(), cfg); err != nil {
		t.Fatalf("Train: %v", err)
	}

	if gotName != "python3" {
		t.Fatalf("expected python3, got %q", gotName)
	}

	joined := strings.Join(gotArgs, " ")
	wantFragments := []string{
		"-m " + trainerModule + " train_from_episodes",
		"--episodes_dir " + cfg.EpisodesDir,
		"--checkpoint_dir " + filepath.Join(cfg.CheckpointRoot, "human"),
		"--pv_dir " + cfg.ModelDir,
		"--device cpu",
		"--backbone lg_transformer",
		"--bc_epochs 40",
		"--ppo_epochs 60",
		"--h_max 300",
		"--w_max 160",
		"--tb_dir " + filepath.Join(cfg.TensorboardRoot, "human"),
		"--run_label human",
		"--lr 0.001",
	}
	for _, fragment := range wantFragments {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in args, got %q", fragment, joined)
		}
	}
	if strings.Contains(joined, "--init-from-pv") {
		t.Fatalf("cold start must not pass --init-from-pv: %q", joined)
	}

	for _, dir := range []string{
		filepath.Join(cfg.CheckpointRoot, "human"),
		filepath.Join(cfg.TensorboardRoot, "human"),
	} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected phase directory %s: %v", dir, err)
		}
	}
}

func TestTrainWarmStartAppendsFlagLast(t *testing.T) {
	base := t.TempDir()
	var gotArgs []string
	swapCommandContext(t, func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotArgs = args
		return exec.CommandContext(ctx, "sh", "-c", "exit 0")
	})

	cfg := PhaseConfig{
		EpisodesDir:    filepath.Join(base, "episodes"),
		CheckpointRoot: filepath.Join(base, "checkpoints"),
		ModelDir:       filepath.Join(base, "models"),
		Device:         "cpu",
		Backbone:       "lg_transformer",
		PPOEpochs:      30,
		HeightMax:      300,
		WidthMax:       160,
		RunLabel:       "zero_style",
		WarmStart:      true,
	}
	if err := NewCLI().Train(context.Background(), cfg); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if len(gotArgs) == 0 || gotArgs[len(gotArgs)-1] != "--init-from-pv" {
		t.Fatalf("expected trailing --init-from-pv, got %v", gotArgs)
	}
}

func TestTrainNonZeroExitIsTrainingError(t *testing.T) {
	base := t.TempDir()
	swapCommandContext(t, func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "exit 3")
	})

	cfg := PhaseConfig{
		EpisodesDir:    filepath.Join(base, "episodes"),
		CheckpointRoot: filepath.Join(base, "checkpoints"),
		ModelDir:       filepath.Join(base, "models"),
		Device:         "cpu",
		Backbone:       "lg_transformer",
		PPOEpochs:      1,
		HeightMax:      1,
		WidthMax:       1,
	}
	err := NewCLI().Train(context.Background(), cfg)
	if !errors.Is(err, services.ErrTraining) {
		t.Fatalf("expected ErrTraining, got %v", err)
	}
}

func TestEnvWithPythonPathPrepends(t *testing.T) {
	t.Setenv("PYTHONPATH", "/existing")

	env := envWithPythonPath([]string{"/extra/policy_models", ""})
	var got string
	for _, entry := range env {
		if strings.HasPrefix(entry, "PYTHONPATH=") {
			got = strings.TrimPrefix(entry, "PYTHONPATH=")
		}
	}
	want := "/extra/policy_models" + string(os.PathListSeparator) + "/existing"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
