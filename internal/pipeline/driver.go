package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"trainloop/internal/catalog"
	"trainloop/internal/config"
	"trainloop/internal/journal"
	"trainloop/internal/logging"
	"trainloop/internal/recording"
	"trainloop/internal/services"
	"trainloop/internal/services/trainer"
)

// Run labels for the two training phases.
const (
	PhaseHumanLabel     = "human"
	PhaseZeroStyleLabel = "zero_style"
)

// Recorder drives one batch of anchor recordings and reports the sampled
// metas.
type Recorder interface {
	LaunchBatch(ctx context.Context, cfg recording.BatchConfig) ([]catalog.Meta, error)
}

// QueueWaiter blocks until the remote evaluation queue drains or a deadline
// passes.
type QueueWaiter interface {
	WaitForDrain(ctx context.Context, timeout, pollInterval time.Duration) error
}

// Ledger marks sampled episodes as consumed.
type Ledger interface {
	MarkConsumed(episodesDir string, metas []catalog.Meta) error
}

// CatalogSource discovers eligible episodes.
type CatalogSource interface {
	Discover(episodesDir string) ([]catalog.Meta, error)
}

// Driver sequences one linear training run: validate, discover, train on the
// historical catalog, record anchored episodes, await remote evaluation, then
// fine-tune on the recordings. There is no resume; recovery is a fresh run.
type Driver struct {
	cfg      *config.Config
	trainer  trainer.Client
	recorder Recorder
	queue    QueueWaiter
	catalog  CatalogSource
	ledger   Ledger
	journal  *journal.Store
	logger   *slog.Logger
}

// Option configures the driver.
type Option func(*Driver)

// WithTrainer overrides the training client.
func WithTrainer(client trainer.Client) Option {
	return func(d *Driver) {
		if client != nil {
			d.trainer = client
		}
	}
}

// WithRecorder overrides the recording orchestrator.
func WithRecorder(rec Recorder) Option {
	return func(d *Driver) {
		if rec != nil {
			d.recorder = rec
		}
	}
}

// WithQueueWaiter overrides the remote queue waiter. Without one, the drain
// wait is skipped.
func WithQueueWaiter(waiter QueueWaiter) Option {
	return func(d *Driver) {
		d.queue = waiter
	}
}

// WithCatalog overrides episode discovery.
func WithCatalog(source CatalogSource, ledger Ledger) Option {
	return func(d *Driver) {
		if source != nil {
			d.catalog = source
		}
		if ledger != nil {
			d.ledger = ledger
		}
	}
}

// WithJournal attaches a run journal. Journal failures are logged, never
// fatal.
func WithJournal(store *journal.Store) Option {
	return func(d *Driver) {
		d.journal = store
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New constructs a driver over cfg with default collaborators built from it.
func New(cfg *config.Config, opts ...Option) *Driver {
	driver := &Driver{
		cfg:    cfg,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(driver)
	}
	if driver.trainer == nil {
		driver.trainer = trainer.NewCLI(trainer.WithPython(cfg.Training.Python))
	}
	if driver.catalog == nil {
		cat := catalog.New(driver.logger)
		driver.catalog = cat
		if driver.ledger == nil {
			driver.ledger = cat.Ledger()
		}
	}
	return driver
}

// PostRecordingPPOEpochs returns the phase-2 PPO epoch count: the explicit
// override when set, else the ceiling of half the phase-1 count, at least 1.
func PostRecordingPPOEpochs(cfg *config.Config) int {
	if cfg.Training.PostRecordingPPOEpochs > 0 {
		return cfg.Training.PostRecordingPPOEpochs
	}
	derived := (cfg.Training.PPOEpochs + 1) / 2
	if derived < 1 {
		derived = 1
	}
	return derived
}

// Run executes one full pipeline pass. Any fatal error aborts the run; only
// a remote drain timeout is downgraded to a warning.
func (d *Driver) Run(ctx context.Context) error {
	runID, ok := services.RunIDFromContext(ctx)
	if !ok {
		runID = uuid.NewString()
		ctx = services.WithRunID(ctx, runID)
	}
	logger := d.logger.With(logging.String(logging.FieldRunID, runID))

	if err := d.validate(); err != nil {
		return err
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	d.journalBegin(ctx, logger, runID)
	err := d.runPhases(ctx, logger, runID)
	d.journalFinish(ctx, logger, runID, err)
	return err
}

func (d *Driver) runPhases(ctx context.Context, logger *slog.Logger, runID string) error {
	metas, err := d.catalog.Discover(d.cfg.Paths.EpisodesDirInitial)
	if err != nil {
		return err
	}
	logger.Info("episode catalog discovered", logging.Int("episodes", len(metas)))
	d.journalPhase(ctx, logger, runID, "discover", fmt.Sprintf("episodes=%d", len(metas)))

	pythonPaths := d.pythonPaths()

	logger.Info("starting training phase", logging.String(logging.FieldPhase, PhaseHumanLabel))
	d.journalPhase(ctx, logger, runID, "train", "label="+PhaseHumanLabel)
	err = d.trainer.Train(services.WithPhase(ctx, PhaseHumanLabel), trainer.PhaseConfig{
		EpisodesDir:     d.cfg.Paths.EpisodesDirInitial,
		CheckpointRoot:  d.cfg.Paths.CheckpointDir,
		ModelDir:        d.cfg.Paths.ModelDir,
		Device:          d.cfg.Training.Device,
		Backbone:        d.cfg.Training.Backbone,
		BCEpochs:        d.cfg.Training.BCEpochs,
		PPOEpochs:       d.cfg.Training.PPOEpochs,
		HeightMax:       d.cfg.Training.HeightMax,
		WidthMax:        d.cfg.Training.WidthMax,
		TensorboardRoot: d.cfg.TensorboardRoot(),
		RunLabel:        PhaseHumanLabel,
		ExtraArgs:       d.cfg.Training.ExtraArgs,
		PythonPaths:     pythonPaths,
	})
	if err != nil {
		return err
	}

	if d.recorder != nil {
		d.journalPhase(ctx, logger, runID, "record", fmt.Sprintf("count=%d", d.cfg.Recording.RecordCount))
		sampled, err := d.recorder.LaunchBatch(ctx, recording.BatchConfig{
			Metas:               metas,
			RecordCount:         d.cfg.Recording.RecordCount,
			RestartsPerSample:   d.cfg.Recording.RestartsPerSample,
			EpisodesDir:         d.cfg.Paths.EpisodesDirInitial,
			OutputDir:           d.cfg.Paths.EpisodesDirFinal,
			Port:                d.cfg.Recording.Port,
			MaxAssistantActions: d.cfg.Recording.MaxAssistantActions,
			MaxHumanActions:     d.cfg.Recording.HumanFollowUpActions,
			NoiseProbability:    d.cfg.Recording.NoiseProbability,
			NoiseTopK:           d.cfg.Recording.NoiseTopK,
			Timeout:             d.cfg.RecordTimeout(),
			PollInterval:        d.cfg.RecordPollInterval(),
			PythonPaths:         pythonPaths,
		})
		if err != nil {
			return err
		}
		if len(sampled) > 0 && d.ledger != nil {
			if err := d.ledger.MarkConsumed(d.cfg.Paths.EpisodesDirInitial, sampled); err != nil {
				logger.Warn("could not mark sampled episodes consumed", logging.Error(err))
			}
		}
	}

	if d.queue != nil {
		d.journalPhase(ctx, logger, runID, "await-drain", "")
		err := d.queue.WaitForDrain(ctx, d.cfg.DrainTimeout(), d.cfg.DrainPollInterval())
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			// Proceeding without confirmation means the recordings may
			// lack complete evaluation metadata.
			logger.Warn("remote evaluation queue did not drain, continuing", logging.Error(err))
		}
	}

	logger.Info("starting training phase", logging.String(logging.FieldPhase, PhaseZeroStyleLabel))
	d.journalPhase(ctx, logger, runID, "train", "label="+PhaseZeroStyleLabel)
	return d.trainer.Train(services.WithPhase(ctx, PhaseZeroStyleLabel), trainer.PhaseConfig{
		EpisodesDir:     d.cfg.Paths.EpisodesDirFinal,
		CheckpointRoot:  d.cfg.Paths.CheckpointDir,
		ModelDir:        d.cfg.Paths.ModelDir,
		Device:          d.cfg.Training.Device,
		Backbone:        d.cfg.Training.Backbone,
		BCEpochs:        0,
		PPOEpochs:       PostRecordingPPOEpochs(d.cfg),
		HeightMax:       d.cfg.Training.HeightMax,
		WidthMax:        d.cfg.Training.WidthMax,
		TensorboardRoot: d.cfg.TensorboardRoot(),
		RunLabel:        PhaseZeroStyleLabel,
		WarmStart:       true,
		ExtraArgs:       d.cfg.Training.ExtraArgs,
		PythonPaths:     pythonPaths,
	})
}

// validate re-checks the directory preconditions that must hold before any
// subprocess or filesystem side effect.
func (d *Driver) validate() error {
	for _, dir := range []string{d.cfg.Paths.EpisodesDirInitial, d.cfg.Paths.EpisodesDirFinal} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return services.Wrap(services.ErrNotFound, "pipeline", "validate",
				fmt.Sprintf("episodes directory %s does not exist", dir), err)
		}
	}
	if d.cfg.Recording.RecordCount > 0 {
		script := d.cfg.Recording.ScriptPath
		if info, err := os.Stat(script); err != nil || info.IsDir() {
			return services.Wrap(services.ErrNotFound, "pipeline", "validate",
				fmt.Sprintf("recorder script %s does not exist", script), err)
		}
	}
	return nil
}

// pythonPaths returns the module-search-path entries prepended to PYTHONPATH
// for child processes: the policy library next to the recorder script, when
// present.
func (d *Driver) pythonPaths() []string {
	if d.cfg.Recording.ScriptPath == "" {
		return nil
	}
	candidate := filepath.Join(filepath.Dir(d.cfg.Recording.ScriptPath), "policy_models")
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return []string{candidate}
	}
	return nil
}

func (d *Driver) journalBegin(ctx context.Context, logger *slog.Logger, runID string) {
	if d.journal == nil {
		return
	}
	if err := d.journal.BeginRun(ctx, runID, d.cfg.Recording.RecordCount); err != nil {
		logger.Warn("could not journal run start", logging.Error(err))
	}
}

func (d *Driver) journalPhase(ctx context.Context, logger *slog.Logger, runID, phase, detail string) {
	if d.journal == nil {
		return
	}
	if err := d.journal.RecordPhase(ctx, runID, phase, detail); err != nil {
		logger.Warn("could not journal phase event", logging.Error(err))
	}
}

func (d *Driver) journalFinish(ctx context.Context, logger *slog.Logger, runID string, runErr error) {
	if d.journal == nil {
		return
	}
	status := journal.StatusCompleted
	message := ""
	if runErr != nil {
		status = journal.StatusFailed
		message = runErr.Error()
	}
	if err := d.journal.FinishRun(ctx, runID, status, message); err != nil {
		logger.Warn("could not journal run finish", logging.Error(err))
	}
}
