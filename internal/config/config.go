package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directory layout consumed and produced by a run.
type Paths struct {
	EpisodesDirInitial string `toml:"episodes_dir_initial"`
	EpisodesDirFinal   string `toml:"episodes_dir_final"`
	CheckpointDir      string `toml:"checkpoint_dir"`
	ModelDir           string `toml:"model_dir"`
	LogDir             string `toml:"log_dir"`
}

// Training contains parameters forwarded to the training process.
type Training struct {
	Python                 string   `toml:"python"`
	Device                 string   `toml:"device"`
	Backbone               string   `toml:"backbone"`
	BCEpochs               int      `toml:"bc_epochs"`
	PPOEpochs              int      `toml:"ppo_epochs"`
	PostRecordingPPOEpochs int      `toml:"post_recording_ppo_epochs"` // 0 = derive from ppo_epochs
	HeightMax              int      `toml:"h_max"`
	WidthMax               int      `toml:"w_max"`
	ExtraArgs              []string `toml:"extra_args"`
}

// Recording contains parameters for anchored zero-style recordings.
type Recording struct {
	RecordCount          int     `toml:"record_count"`
	RestartsPerSample    int     `toml:"restarts_per_sample"`
	Port                 int     `toml:"port"`
	ScriptPath           string  `toml:"script_path"`
	Prompt               bool    `toml:"prompt"`
	MaxAssistantActions  int     `toml:"max_assistant_actions"`
	HumanFollowUpActions int     `toml:"human_follow_up_actions"`
	NoiseProbability     float64 `toml:"noise_probability"`
	NoiseTopK            int     `toml:"noise_top_k"`
	TimeoutSeconds       int     `toml:"timeout_seconds"`
	PollIntervalSeconds  float64 `toml:"poll_interval_seconds"`
	Seed                 int64   `toml:"seed"` // 0 = time-based
}

// StateQueue contains the remote evaluation service polling settings.
type StateQueue struct {
	BaseURL             string  `toml:"base_url"`
	WaitSeconds         float64 `toml:"wait_seconds"`
	PollIntervalSeconds float64 `toml:"poll_interval_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for trainloop.
//
// Sections by subsystem:
//   - Paths: episode trees, checkpoint/model output, log directory
//   - Training: parameters forwarded verbatim to the training CLI
//   - Recording: anchored recording counts, recorder process knobs
//   - StateQueue: remote tester-queue polling
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Training   Training   `toml:"training"`
	Recording  Recording  `toml:"recording"`
	StateQueue StateQueue `toml:"state_queue"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/trainloop/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("trainloop.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output directories a run writes into.
// Episode directories are deliberately not created here: their absence is a
// fatal precondition the pipeline reports, not something to paper over.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CheckpointDir, c.Paths.ModelDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TensorboardRoot returns the tensorboard root under the checkpoint tree.
func (c *Config) TensorboardRoot() string {
	return filepath.Join(c.Paths.CheckpointDir, "tb")
}

// RecordTimeout returns the per-recording completion deadline.
func (c *Config) RecordTimeout() time.Duration {
	return time.Duration(c.Recording.TimeoutSeconds) * time.Second
}

// RecordPollInterval returns the recording completion poll cadence.
func (c *Config) RecordPollInterval() time.Duration {
	return time.Duration(c.Recording.PollIntervalSeconds * float64(time.Second))
}

// DrainTimeout returns the remote queue drain deadline.
func (c *Config) DrainTimeout() time.Duration {
	return time.Duration(c.StateQueue.WaitSeconds * float64(time.Second))
}

// DrainPollInterval returns the remote queue poll cadence.
func (c *Config) DrainPollInterval() time.Duration {
	return time.Duration(c.StateQueue.PollIntervalSeconds * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
