package recorder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"trainloop/internal/services"
)

var commandContext = exec.CommandContext

// Request describes one recorder launch anchored at an episode/timestep pair.
type Request struct {
	EpisodeID           string
	Timestep            int
	EpisodesDir         string
	Port                int
	MaxAssistantActions int
	MaxHumanActions     int
	NoiseProbability    float64
	NoiseTopK           int
	PythonPaths         []string
}

// Client defines recorder process behaviour. The recorder signals completion
// solely through its on-disk artifact, so Launch returns once the process
// exits; callers poll the output directory for the result.
type Client interface {
	Launch(ctx context.Context, req Request) error
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

// CLI wraps the external recorder script.
type CLI struct {
	python string
	script string
}

// NewCLI constructs a CLI client for the given recorder script.
func NewCLI(script string, opts ...Option) *CLI {
	cli := &CLI{python: "python3", script: script}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Launch starts one recorder process and waits for it to exit. The recorder
// binds a fixed port, so exactly one launch may be in flight at a time.
func (c *CLI) Launch(ctx context.Context, req Request) error {
	if strings.TrimSpace(c.script) == "" {
		return services.Wrap(services.ErrValidation, "recorder", "launch", "recorder script path required", nil)
	}
	if strings.TrimSpace(req.EpisodeID) == "" {
		return services.Wrap(services.ErrValidation, "recorder", "launch", "anchor episode id required", nil)
	}
	if req.Timestep <= 0 {
		return services.Wrap(services.ErrValidation, "recorder", "launch", "anchor timestep must be positive", nil)
	}

	args := []string{
		c.script,
		"--episode", req.EpisodeID,
		"--timestep", strconv.Itoa(req.Timestep),
		"--episodes-dir", req.EpisodesDir,
		"--port", strconv.Itoa(req.Port),
		"--max-assistant-actions", strconv.Itoa(req.MaxAssistantActions),
		"--max-human-actions", strconv.Itoa(req.MaxHumanActions),
		"--assistant-noise-prob", strconv.FormatFloat(req.NoiseProbability, 'f', -1, 64),
		"--assistant-noise-top-k", strconv.Itoa(req.NoiseTopK),
	}

	cmd := commandContext(ctx, c.python, args...) //nolint:gosec
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = envWithPythonPath(req.PythonPaths)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("launch recorder for episode %s: %w", req.EpisodeID, err)
	}
	return nil
}

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
