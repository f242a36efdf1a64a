package recording

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"trainloop/internal/catalog"
	"trainloop/internal/logging"
	"trainloop/internal/services"
	"trainloop/internal/services/recorder"
)

// BatchConfig describes one batch of anchor recordings.
type BatchConfig struct {
	Metas               []catalog.Meta
	RecordCount         int
	RestartsPerSample   int
	EpisodesDir         string
	OutputDir           string
	Port                int
	MaxAssistantActions int
	MaxHumanActions     int
	NoiseProbability    float64
	NoiseTopK           int
	Timeout             time.Duration
	PollInterval        time.Duration
	PythonPaths         []string
}

// ScanFunc reports the completed episode ids currently present in an output
// directory.
type ScanFunc func(dir string) map[string]struct{}

// ConfirmFunc blocks for a manual acknowledgment after a completed
// recording.
type ConfirmFunc func(iteration int) error

// Orchestrator samples anchor points from the episode catalog and drives the
// recorder process one launch at a time.
type Orchestrator struct {
	client  recorder.Client
	scan    ScanFunc
	rng     *rand.Rand
	logger  *slog.Logger
	confirm ConfirmFunc
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithScanner overrides completed-episode detection.
func WithScanner(scan ScanFunc) Option {
	return func(o *Orchestrator) {
		if scan != nil {
			o.scan = scan
		}
	}
}

// WithRand overrides the sampling source. The default is seeded from the
// wall clock.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) {
		if rng != nil {
			o.rng = rng
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConfirm installs a manual acknowledgment hook invoked after every
// completed recording.
func WithConfirm(confirm ConfirmFunc) Option {
	return func(o *Orchestrator) {
		o.confirm = confirm
	}
}

// New constructs an orchestrator around a recorder client.
func New(client recorder.Client, opts ...Option) *Orchestrator {
	orch := &Orchestrator{
		client: client,
		scan:   recorder.CompletedEpisodeIDs,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(orch)
	}
	return orch
}

// LaunchBatch records cfg.RecordCount anchor episodes, restarting the
// recorder cfg.RestartsPerSample times per anchor. It returns the distinct
// metas that were sampled so the caller can mark them consumed. Launches are
// strictly sequential; the recorder binds a fixed port.
func (o *Orchestrator) LaunchBatch(ctx context.Context, cfg BatchConfig) ([]catalog.Meta, error) {
	if cfg.RecordCount <= 0 {
		o.logger.Warn("record count is zero, skipping recording batch")
		return nil, nil
	}
	if len(cfg.Metas) == 0 {
		return nil, services.Wrap(services.ErrEmptyCatalog, "recording", "launch-batch", "no episodes to sample from", nil)
	}
	restarts := cfg.RestartsPerSample
	if restarts < 1 {
		restarts = 1
	}

	snapshot := o.scan(cfg.OutputDir)
	o.logger.Info("starting recording batch",
		logging.Int("record_count", cfg.RecordCount),
		logging.Int("restarts_per_sample", restarts),
		logging.Int("already_completed", len(snapshot)))

	sampled := make([]catalog.Meta, 0, cfg.RecordCount)
	sampledIDs := make(map[string]struct{}, cfg.RecordCount)
	for i := 0; i < cfg.RecordCount; i++ {
		meta := cfg.Metas[o.rng.Intn(len(cfg.Metas))]
		timestep := meta.EvenTimesteps[o.rng.Intn(len(meta.EvenTimesteps))]
		if _, seen := sampledIDs[meta.EpisodeID]; !seen {
			sampledIDs[meta.EpisodeID] = struct{}{}
			sampled = append(sampled, meta)
		}
		o.logger.Info("sampled anchor point",
			logging.String(logging.FieldEpisodeID, meta.EpisodeID),
			logging.Int("timestep", timestep),
			logging.Int("iteration", i+1))

		for attempt := 1; attempt <= restarts; attempt++ {
			err := o.client.Launch(ctx, recorder.Request{
				EpisodeID:           meta.EpisodeID,
				Timestep:            timestep,
				EpisodesDir:         cfg.EpisodesDir,
				Port:                cfg.Port,
				MaxAssistantActions: cfg.MaxAssistantActions,
				MaxHumanActions:     cfg.MaxHumanActions,
				NoiseProbability:    cfg.NoiseProbability,
				NoiseTopK:           cfg.NoiseTopK,
				PythonPaths:         cfg.PythonPaths,
			})
			if err != nil {
				return sampled, err
			}
			newID, err := o.awaitNewCompletion(ctx, cfg, snapshot)
			if err != nil {
				return sampled, err
			}
			o.logger.Info("recording completed",
				logging.String(logging.FieldEpisodeID, newID),
				logging.Int("attempt", attempt))
			if o.confirm != nil {
				if err := o.confirm(i + 1); err != nil {
					return sampled, err
				}
			}
		}
	}
	return sampled, nil
}

// awaitNewCompletion polls the output directory until a completed episode id
// appears that is absent from snapshot, then folds every observed completion
// into snapshot so later iterations never rematch the same artifact.
func (o *Orchestrator) awaitNewCompletion(ctx context.Context, cfg BatchConfig, snapshot map[string]struct{}) (string, error) {
	deadline := time.Now().Add(cfg.Timeout)
	for {
		completed := o.scan(cfg.OutputDir)
		newID := ""
		for id := range completed {
			if _, known := snapshot[id]; !known && newID == "" {
				newID = id
			}
		}
		if newID != "" {
			for id := range completed {
				snapshot[id] = struct{}{}
			}
			return newID, nil
		}

		if time.Now().After(deadline) {
			return "", services.Wrap(services.ErrRecordingTimeout, "recording", "await-completion",
				fmt.Sprintf("no new completed episode in %s after %s", cfg.OutputDir, cfg.Timeout), nil)
		}
		timer := time.NewTimer(cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}
