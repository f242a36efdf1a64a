package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"trainloop/internal/logging"
)

const consumedDirName = "consumed-episodes"

// ConsumedDir returns the consumed-episodes tree that sits next to the
// episodes directory.
func ConsumedDir(episodesDir string) string {
	return filepath.Join(filepath.Dir(episodesDir), consumedDirName)
}

// Ledger tracks consumed episodes. Consumption is represented physically by
// directory presence in the consumed tree, not by a separate index: an
// episode directory lives in exactly one of the two trees.
type Ledger struct {
	logger *slog.Logger
}

// NewLedger constructs a ledger reporting through the given logger.
func NewLedger(logger *slog.Logger) *Ledger {
	return &Ledger{logger: logging.NewComponentLogger(logger, "ledger")}
}

// ConsumedIDs returns the set of episode ids already relocated to the
// consumed tree. A missing tree means nothing has been consumed yet.
func (l *Ledger) ConsumedIDs(episodesDir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(ConsumedDir(episodesDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("read consumed tree: %w", err)
	}

	ids := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			ids[entry.Name()] = struct{}{}
		}
	}
	return ids, nil
}

// MarkConsumed relocates each episode into the consumed tree, overwriting a
// stale destination if present. A relocation failure for one episode is
// logged and does not abort the remaining episodes.
func (l *Ledger) MarkConsumed(episodesDir string, metas []Meta) error {
	if len(metas) == 0 {
		return nil
	}

	consumedDir := ConsumedDir(episodesDir)
	if err := os.MkdirAll(consumedDir, 0o755); err != nil {
		return fmt.Errorf("create consumed tree: %w", err)
	}

	moved := 0
	for _, meta := range metas {
		src := filepath.Join(episodesDir, meta.EpisodeID)
		dst := filepath.Join(consumedDir, meta.EpisodeID)

		info, err := os.Stat(src)
		if err != nil || !info.IsDir() {
			l.logger.Warn("episode source directory missing, skipping relocation",
				logging.String(logging.FieldEpisodeID, meta.EpisodeID))
			continue
		}

		if err := os.RemoveAll(dst); err != nil {
			l.logger.Warn("could not clear stale consumed destination",
				logging.String(logging.FieldEpisodeID, meta.EpisodeID), logging.Error(err))
			continue
		}
		if err := os.Rename(src, dst); err != nil {
			l.logger.Warn("could not relocate consumed episode",
				logging.String(logging.FieldEpisodeID, meta.EpisodeID), logging.Error(err))
			continue
		}
		moved++
		l.logger.Debug("relocated consumed episode", logging.String(logging.FieldEpisodeID, meta.EpisodeID))
	}

	l.logger.Info("marked episodes as consumed", logging.Int("requested", len(metas)), logging.Int("moved", moved))
	return nil
}
