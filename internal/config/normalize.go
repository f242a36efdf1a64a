package config

import "strings"

// normalize expands user paths and trims string settings so downstream code
// never sees tilde shortcuts or stray whitespace.
func (c *Config) normalize() error {
	paths := []*string{
		&c.Paths.EpisodesDirInitial,
		&c.Paths.EpisodesDirFinal,
		&c.Paths.CheckpointDir,
		&c.Paths.ModelDir,
		&c.Paths.LogDir,
		&c.Recording.ScriptPath,
	}
	for _, field := range paths {
		expanded, err := expandPath(strings.TrimSpace(*field))
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Training.Python = strings.TrimSpace(c.Training.Python)
	if c.Training.Python == "" {
		c.Training.Python = defaultPython
	}
	c.Training.Device = strings.TrimSpace(c.Training.Device)
	c.Training.Backbone = strings.TrimSpace(c.Training.Backbone)
	c.StateQueue.BaseURL = strings.TrimSpace(c.StateQueue.BaseURL)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
