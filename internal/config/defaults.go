package config

const (
	defaultEpisodesDirInitial = "persistent-data/state-service/episodes"
	defaultEpisodesDirFinal   = "persistent-data/state-service/shallow-zero-style-episodes"
	defaultCheckpointDir      = "logs/_training_artifacts"
	defaultModelDir           = "persistent-data/trainer/models"
	defaultLogDir             = "~/.local/share/trainloop/logs"
	defaultPython             = "python3"
	defaultDevice             = "cpu"
	defaultBackbone           = "lg_transformer"
	defaultBCEpochs           = 40
	defaultPPOEpochs          = 60
	defaultHeightMax          = 300
	defaultWidthMax           = 160
	defaultRestartsPerSample  = 2
	defaultRecorderPort       = 3003
	defaultRecorderScript     = "start_zero_style.py"
	defaultMaxAssistant       = 1
	defaultHumanFollowUp      = 1
	defaultNoiseProbability   = 0.25
	defaultNoiseTopK          = 3
	defaultRecordTimeout      = 600
	defaultRecordPoll         = 5.0
	defaultStateQueueURL      = "http://localhost:8000"
	defaultDrainWait          = 600.0
	defaultDrainPoll          = 5.0
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			EpisodesDirInitial: defaultEpisodesDirInitial,
			EpisodesDirFinal:   defaultEpisodesDirFinal,
			CheckpointDir:      defaultCheckpointDir,
			ModelDir:           defaultModelDir,
			LogDir:             defaultLogDir,
		},
		Training: Training{
			Python:    defaultPython,
			Device:    defaultDevice,
			Backbone:  defaultBackbone,
			BCEpochs:  defaultBCEpochs,
			PPOEpochs: defaultPPOEpochs,
			HeightMax: defaultHeightMax,
			WidthMax:  defaultWidthMax,
		},
		Recording: Recording{
			RestartsPerSample:    defaultRestartsPerSample,
			Port:                 defaultRecorderPort,
			ScriptPath:           defaultRecorderScript,
			MaxAssistantActions:  defaultMaxAssistant,
			HumanFollowUpActions: defaultHumanFollowUp,
			NoiseProbability:     defaultNoiseProbability,
			NoiseTopK:            defaultNoiseTopK,
			TimeoutSeconds:       defaultRecordTimeout,
			PollIntervalSeconds:  defaultRecordPoll,
		},
		StateQueue: StateQueue{
			BaseURL:             defaultStateQueueURL,
			WaitSeconds:         defaultDrainWait,
			PollIntervalSeconds: defaultDrainPoll,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
