package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"trainloop/internal/logging"
	"trainloop/internal/services"
)

// Meta describes one eligible episode and its sampleable anchor timesteps.
type Meta struct {
	EpisodeID     string
	EvenTimesteps []int
	MaxTimestep   int
}

// Catalog discovers eligible episodes under an episode-log directory tree.
type Catalog struct {
	logger *slog.Logger
	ledger *Ledger
}

// New constructs a catalog that skips episodes the ledger has consumed.
func New(logger *slog.Logger) *Catalog {
	logger = logging.NewComponentLogger(logger, "catalog")
	return &Catalog{logger: logger, ledger: NewLedger(logger)}
}

// Ledger returns the consumption ledger sharing this catalog's logger.
func (c *Catalog) Ledger() *Ledger {
	return c.ledger
}

// episodeLog is the subset of an episode log the catalog needs. States stay
// loosely typed: entries are usually mappings but anything else is tolerated
// and simply contributes no timestep.
type episodeLog struct {
	EpisodeID string `json:"episode_id"`
	States    []any  `json:"states"`
}

// Discover scans the immediate subdirectories of episodesDir, ordered by
// name, and returns metadata for every eligible episode. Malformed logs are
// expected noise and skipped silently; an empty result is fatal because later
// sampling has nothing to draw from.
func (c *Catalog) Discover(episodesDir string) ([]Meta, error) {
	entries, err := os.ReadDir(episodesDir)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "discover", fmt.Sprintf("read episodes directory %s", episodesDir), err)
	}

	consumed, err := c.ledger.ConsumedIDs(episodesDir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var metas []Meta
	for _, name := range names {
		if _, ok := consumed[name]; ok {
			c.logger.Debug("skipping consumed episode", logging.String(logging.FieldEpisodeID, name))
			continue
		}
		meta, ok := c.inspectEpisode(filepath.Join(episodesDir, name), name)
		if !ok {
			continue
		}
		metas = append(metas, meta)
	}

	if len(metas) == 0 {
		return nil, services.Wrap(services.ErrEmptyCatalog, "catalog", "discover", fmt.Sprintf("no eligible episodes with JSON logs under %s", episodesDir), nil)
	}
	return metas, nil
}

func (c *Catalog) inspectEpisode(dir, name string) (Meta, bool) {
	logPath, ok := firstJSONLog(dir)
	if !ok {
		return Meta{}, false
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		return Meta{}, false
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var payload episodeLog
	if err := decoder.Decode(&payload); err != nil {
		return Meta{}, false
	}
	if len(payload.States) < 2 {
		return Meta{}, false
	}

	timesteps := collectTimesteps(payload.States)
	if len(timesteps) == 0 {
		return Meta{}, false
	}

	maxTimestep := timesteps[0]
	for _, step := range timesteps[1:] {
		if step > maxTimestep {
			maxTimestep = step
		}
	}
	if maxTimestep < 2 {
		return Meta{}, false
	}

	// Even timesteps within [0, max] minus 0: downstream consumers treat 0 as
	// an unset value and refuse to load the anchor.
	even := make([]int, 0, maxTimestep/2)
	for step := 2; step <= maxTimestep; step += 2 {
		even = append(even, step)
	}

	episodeID := strings.TrimSpace(payload.EpisodeID)
	if episodeID == "" {
		episodeID = name
	}
	return Meta{EpisodeID: episodeID, EvenTimesteps: even, MaxTimestep: maxTimestep}, true
}

// firstJSONLog returns the lexicographically first *.json file in dir.
func firstJSONLog(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), true
}

func collectTimesteps(states []any) []int {
	var timesteps []int
	for _, state := range states {
		entry, ok := state.(map[string]any)
		if !ok {
			continue
		}
		// Only literal integers count; "4.0" is not a timestep.
		number, ok := entry["timestep"].(json.Number)
		if !ok {
			continue
		}
		value, err := number.Int64()
		if err != nil {
			continue
		}
		timesteps = append(timesteps, int(value))
	}
	return timesteps
}
