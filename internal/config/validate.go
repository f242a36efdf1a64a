package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Every numeric knob is checked
// up front so a bad value fails before any subprocess or filesystem side
// effect.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTraining(); err != nil {
		return err
	}
	if err := c.validateRecording(); err != nil {
		return err
	}
	if err := c.validateStateQueue(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.EpisodesDirInitial) == "" {
		return errors.New("paths.episodes_dir_initial must be set")
	}
	if strings.TrimSpace(c.Paths.EpisodesDirFinal) == "" {
		return errors.New("paths.episodes_dir_final must be set")
	}
	if strings.TrimSpace(c.Paths.CheckpointDir) == "" {
		return errors.New("paths.checkpoint_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ModelDir) == "" {
		return errors.New("paths.model_dir must be set")
	}
	return nil
}

func (c *Config) validateTraining() error {
	if c.Training.BCEpochs < 0 {
		return errors.New("training.bc_epochs must be zero or positive")
	}
	if c.Training.PPOEpochs <= 0 {
		return errors.New("training.ppo_epochs must be positive")
	}
	if c.Training.PostRecordingPPOEpochs < 0 {
		return errors.New("training.post_recording_ppo_epochs must be zero or positive")
	}
	if err := ensurePositiveMap(map[string]int{
		"training.h_max": c.Training.HeightMax,
		"training.w_max": c.Training.WidthMax,
	}); err != nil {
		return err
	}
	if strings.TrimSpace(c.Training.Device) == "" {
		return errors.New("training.device must be set")
	}
	if strings.TrimSpace(c.Training.Backbone) == "" {
		return errors.New("training.backbone must be set")
	}
	return nil
}

func (c *Config) validateRecording() error {
	if c.Recording.RecordCount < 0 {
		return errors.New("recording.record_count must be zero or positive")
	}
	if c.Recording.HumanFollowUpActions < 0 {
		return errors.New("recording.human_follow_up_actions must be zero or positive")
	}
	if c.Recording.NoiseProbability < 0 || c.Recording.NoiseProbability > 1 {
		return errors.New("recording.noise_probability must be between 0 and 1")
	}
	if c.Recording.PollIntervalSeconds <= 0 {
		return errors.New("recording.poll_interval_seconds must be positive")
	}
	return ensurePositiveMap(map[string]int{
		"recording.restarts_per_sample":   c.Recording.RestartsPerSample,
		"recording.port":                  c.Recording.Port,
		"recording.max_assistant_actions": c.Recording.MaxAssistantActions,
		"recording.noise_top_k":           c.Recording.NoiseTopK,
		"recording.timeout_seconds":       c.Recording.TimeoutSeconds,
	})
}

func (c *Config) validateStateQueue() error {
	if strings.TrimSpace(c.StateQueue.BaseURL) == "" {
		return errors.New("state_queue.base_url must be set")
	}
	if c.StateQueue.WaitSeconds <= 0 {
		return errors.New("state_queue.wait_seconds must be positive")
	}
	if c.StateQueue.PollIntervalSeconds <= 0 {
		return errors.New("state_queue.poll_interval_seconds must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
