package trainer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"trainloop/internal/services"
)

var commandContext = exec.CommandContext

const trainerModule = "policy_models.cli.run_tasks"

// PhaseConfig carries the parameters for one training invocation. It is
// created per phase call and never persisted or reused.
type PhaseConfig struct {
	EpisodesDir     string
	CheckpointRoot  string
	ModelDir        string
	Device          string
	Backbone        string
	BCEpochs        int
	PPOEpochs       int
	HeightMax       int
	WidthMax        int
	TensorboardRoot string // optional; a per-phase subdirectory is derived
	RunLabel        string
	WarmStart       bool // initialize from the persisted model of a prior phase
	ExtraArgs       []string
	PythonPaths     []string // prepended to PYTHONPATH for the child
}

// Client defines training process behaviour.
type Client interface {
	Train(ctx context.Context, cfg PhaseConfig) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithPython overrides the default python interpreter.
func WithPython(python string) Option {
	return func(c *CLI) {
		if python != "" {
			c.python = python
		}
	}
}

// CLI wraps the external training command line.
type CLI struct {
	python string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{python: "python3"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Train resolves the per-phase output directories and runs one training
// phase to completion. A non-zero exit is fatal and never retried: a
// training failure is not assumed transient.
func (c *CLI) Train(ctx context.Context, cfg PhaseConfig) error {
	if cfg.EpisodesDir == "" {
		return services.Wrap(services.ErrValidation, "trainer", "train", "episodes directory required", nil)
	}
	if cfg.CheckpointRoot == "" {
		return services.Wrap(services.ErrValidation, "trainer", "train", "checkpoint root required", nil)
	}
	if cfg.ModelDir == "" {
		return services.Wrap(services.ErrValidation, "trainer", "train", "model directory required", nil)
	}

	label := strings.TrimSpace(cfg.RunLabel)
	checkpointDir := cfg.CheckpointRoot
	if label != "" {
		checkpointDir = filepath.Join(cfg.CheckpointRoot, label)
	}
	if err := os.MkdirAll(checkpointDir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	tbDir := ""
	if cfg.TensorboardRoot != "" {
		tbDir = cfg.TensorboardRoot
		if label != "" {
			tbDir = filepath.Join(cfg.TensorboardRoot, label)
		}
		if err := os.MkdirAll(tbDir, 0o755); err != nil {
			return fmt.Errorf("create tensorboard directory: %w", err)
		}
	}

	args := []string{
		"-m", trainerModule,
		"train_from_episodes",
		"--episodes_dir", cfg.EpisodesDir,
		"--checkpoint_dir", checkpointDir,
		"--pv_dir", cfg.ModelDir,
		"--device", cfg.Device,
		"--backbone", cfg.Backbone,
		"--bc_epochs", strconv.Itoa(cfg.BCEpochs),
		"--ppo_epochs", strconv.Itoa(cfg.PPOEpochs),
		"--h_max", strconv.Itoa(cfg.HeightMax),
		"--w_max", strconv.Itoa(cfg.WidthMax),
	}
	if tbDir != "" {
		args = append(args, "--tb_dir", tbDir)
	}
	if label != "" {
		args = append(args, "--run_label", label)
	}
	args = append(args, cfg.ExtraArgs...)
	if cfg.WarmStart {
		args = append(args, "--init-from-pv")
	}

	cmd := commandContext(ctx, c.python, args...) //nolint:gosec
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = envWithPythonPath(cfg.PythonPaths)

	if err := cmd.Run(); err != nil {
		return services.Wrap(services.ErrTraining, "trainer", "train", fmt.Sprintf("phase %q", label), err)
	}
	return nil
}

// envWithPythonPath returns the current environment with the given paths
// prepended to PYTHONPATH so the child resolves internal libraries regardless
// of the caller's working directory.
func envWithPythonPath(paths []string) []string {
	env := os.Environ()
	extras := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) != "" {
			extras = append(extras, p)
		}
	}
	if len(extras) == 0 {
		return env
	}

	prefix := strings.Join(extras, string(os.PathListSeparator))
	for i, entry := range env {
		if strings.HasPrefix(entry, "PYTHONPATH=") {
			current := strings.TrimPrefix(entry, "PYTHONPATH=")
			if current != "" {
				prefix = prefix + string(os.PathListSeparator) + current
			}
			env[i] = "PYTHONPATH=" + prefix
			return env
		}
	}
	return append(env, "PYTHONPATH="+prefix)
}

var _ Client = (*CLI)(nil)
