package main

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"trainloop/internal/catalog"
	"trainloop/internal/journal"
	"trainloop/internal/logging"
	"trainloop/internal/pipeline"
	"trainloop/internal/recording"
	"trainloop/internal/services/recorder"
	"trainloop/internal/services/statequeue"
	"trainloop/internal/services/trainer"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var recordCount int
	var restartsPerSample int
	var seed int64
	var prompt bool

	cmd := &cobra.Command{
		Use:   "run [-- training args...]",
		Short: "Execute one full training pipeline pass",
		Long: `Run the two-phase pipeline: train on the historical episode catalog,
record anchored zero-style episodes with the resulting policy, wait for the
remote evaluation queue to drain, then fine-tune on the recordings.

Arguments after -- are passed verbatim to the training command.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("record-count") {
				cfg.Recording.RecordCount = recordCount
			}
			if cmd.Flags().Changed("restarts-per-sample") {
				cfg.Recording.RestartsPerSample = restartsPerSample
			}
			if cmd.Flags().Changed("seed") {
				cfg.Recording.Seed = seed
			}
			if cmd.Flags().Changed("prompt") {
				cfg.Recording.Prompt = prompt
			}
			if at := cmd.ArgsLenAtDash(); at >= 0 {
				cfg.Training.ExtraArgs = append(cfg.Training.ExtraArgs, args[at:]...)
			}
			if cfg.Recording.Prompt && !isatty.IsTerminal(os.Stdin.Fd()) {
				return errors.New("recording prompt requires an interactive terminal")
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			if err != nil {
				return err
			}

			lockPath := filepath.Join(cfg.Paths.LogDir, "trainloop.lock")
			runLock := flock.New(lockPath)
			ok, err := runLock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !ok {
				return errors.New("another trainloop run is already in progress")
			}
			defer func() { _ = runLock.Unlock() }()

			journalFile, err := ctx.journalPath()
			if err != nil {
				return err
			}
			store, err := journal.Open(journalFile)
			if err != nil {
				return fmt.Errorf("open run journal: %w", err)
			}
			defer store.Close()

			recorderOpts := []recording.Option{
				recording.WithLogger(logging.NewComponentLogger(logger, "recording")),
			}
			if cfg.Recording.Seed != 0 {
				recorderOpts = append(recorderOpts, recording.WithRand(rand.New(rand.NewSource(cfg.Recording.Seed))))
			}
			if cfg.Recording.Prompt {
				recorderOpts = append(recorderOpts, recording.WithConfirm(stdinConfirm(cmd)))
			}
			orchestrator := recording.New(
				recorder.NewCLI(cfg.Recording.ScriptPath, recorder.WithPython(cfg.Training.Python)),
				recorderOpts...)

			waiter, err := statequeue.New(cfg.StateQueue.BaseURL,
				statequeue.WithLogger(logging.NewComponentLogger(logger, "statequeue")))
			if err != nil {
				return err
			}

			cat := catalog.New(logger)
			driver := pipeline.New(cfg,
				pipeline.WithTrainer(trainer.NewCLI(trainer.WithPython(cfg.Training.Python))),
				pipeline.WithRecorder(orchestrator),
				pipeline.WithQueueWaiter(waiter),
				pipeline.WithCatalog(cat, cat.Ledger()),
				pipeline.WithJournal(store),
				pipeline.WithLogger(logging.NewComponentLogger(logger, "pipeline")))

			return driver.Run(runCtx)
		},
	}

	cmd.Flags().IntVar(&recordCount, "record-count", 0, "Number of anchored recordings to capture")
	cmd.Flags().IntVar(&restartsPerSample, "restarts-per-sample", 0, "Recorder restarts per sampled anchor")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Sampling seed (0 uses the wall clock)")
	cmd.Flags().BoolVar(&prompt, "prompt", false, "Wait for Enter between recordings")
	return cmd
}

// stdinConfirm blocks until the operator presses Enter.
func stdinConfirm(cmd *cobra.Command) recording.ConfirmFunc {
	reader := bufio.NewReader(os.Stdin)
	return func(iteration int) error {
		fmt.Fprint(cmd.OutOrStdout(), "Press Enter after finishing this recording to continue...")
		_, err := reader.ReadString('\n')
		return err
	}
}
