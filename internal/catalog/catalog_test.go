package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"trainloop/internal/catalog"
	"trainloop/internal/logging"
	"trainloop/internal/services"
)

func writeEpisode(t *testing.T, episodesDir, name, logName, contents string) {
	t.Helper()
	dir := filepath.Join(episodesDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir episode %s: %v", name, err)
	}
	if logName == "" {
		return
	}
	if err := os.WriteFile(filepath.Join(dir, logName), []byte(contents), 0o644); err != nil {
		t.Fatalf("write log %s: %v", logName, err)
	}
}

func TestDiscoverDerivesEvenTimesteps(t *testing.T) {
	t.Parallel()

	episodesDir := filepath.Join(t.TempDir(), "episodes")
	writeEpisode(t, episodesDir, "ep-a", "log.json",
		`{"states": [{"timestep": 1}, {"timestep": 3}, {"timestep": 5}]}`)

	metas, err := catalog.New(logging.NewNop()).Discover(episodesDir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("expected 1 meta, got %d", len(metas))
	}

	meta := metas[0]
	if meta.EpisodeID != "ep-a" {
		t.Fatalf("expected directory-name id, got %q", meta.EpisodeID)
	}
	if meta.MaxTimestep != 5 {
		t.Fatalf("expected max timestep 5, got %d", meta.MaxTimestep)
	}
	if !reflect.DeepEqual(meta.EvenTimesteps, []int{2, 4}) {
		t.Fatalf("expected even timesteps [2 4], got %v", meta.EvenTimesteps)
	}
}

func TestDiscoverMetaInvariants(t *testing.T) {
	t.Parallel()

	episodesDir := filepath.Join(t.TempDir(), "episodes")
	writeEpisode(t, episodesDir, "ep-long", "log.json",
		`{"states": [{"timestep": 0}, {"timestep": 7}, {"timestep": 12}]}`)
	writeEpisode(t, episodesDir, "ep-short", "log.json",
		`{"states": [{"timestep": 2}, {"timestep": 3}]}`)

	metas, err := catalog.New(logging.NewNop()).Discover(episodesDir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	for _, meta := range metas {
		if len(meta.EvenTimesteps) == 0 {
			t.Fatalf("meta %s has no even timesteps", meta.EpisodeID)
		}
		prev := 0
		for _, step := range meta.EvenTimesteps {
			if step == 0 {
				t.Fatalf("meta %s contains timestep 0", meta.EpisodeID)
			}
			if step%2 != 0 {
				t.Fatalf("meta %s contains odd timestep %d", meta.EpisodeID, step)
			}
			if step <= prev {
				t.Fatalf("meta %s timesteps not ascending: %v", meta.EpisodeID, meta.EvenTimesteps)
			}
			if step > meta.MaxTimestep {
				t.Fatalf("meta %s timestep %d exceeds max %d", meta.EpisodeID, step, meta.MaxTimestep)
			}
			prev = step
		}
	}
}

func TestDiscoverIsIdempotent(t *testing.T) {
	t.Parallel()

	episodesDir := filepath.Join(t.TempDir(), "episodes")
	writeEpisode(t, episodesDir, "ep-b", "log.json",
		`{"states": [{"timestep": 2}, {"timestep": 8}]}`)
	writeEpisode(t, episodesDir, "ep-a", "log.json",
		`{"states": [{"timestep": 1}, {"timestep": 4}]}`)

	cat := catalog.New(logging.NewNop())
	first, err := cat.Discover(episodesDir)
	if err != nil {
		t.Fatalf("first Discover: %v", err)
	}
	second, err := cat.Discover(episodesDir)
	if err != nil {
		t.Fatalf("second Discover: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("discover not idempotent: %v vs %v", first, second)
	}
	if first[0].EpisodeID != "ep-a" || first[1].EpisodeID != "ep-b" {
		t.Fatalf("expected directory-name order, got %v", first)
	}
}

func TestDiscoverSkipsIneligibleEpisodes(t *testing.T) {
	t.Parallel()

	episodesDir := filepath.Join(t.TempDir(), "episodes")
	// No JSON log at all.
	writeEpisode(t, episodesDir, "ep-empty", "", "")
	// Malformed JSON is expected noise.
	writeEpisode(t, episodesDir, "ep-broken", "log.json", `{"states": [`)
	// Fewer than two states.
	writeEpisode(t, episodesDir, "ep-single", "log.json", `{"states": [{"timestep": 4}]}`)
	// No integer timesteps among mapping entries.
	writeEpisode(t, episodesDir, "ep-untimed", "log.json", `{"states": [{"a": 1}, {"b": 2}]}`)
	// Max timestep below 2 leaves no non-zero even anchor.
	writeEpisode(t, episodesDir, "ep-early", "log.json", `{"states": [{"timestep": 0}, {"timestep": 1}]}`)
	// The one eligible episode.
	writeEpisode(t, episodesDir, "ep-good", "log.json", `{"states": [{"timestep": 0}, {"timestep": 2}]}`)

	metas, err := catalog.New(logging.NewNop()).Discover(episodesDir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(metas) != 1 || metas[0].EpisodeID != "ep-good" {
		t.Fatalf("expected only ep-good, got %v", metas)
	}
	if !reflect.DeepEqual(metas[0].EvenTimesteps, []int{2}) {
		t.Fatalf("expected [2], got %v", metas[0].EvenTimesteps)
	}
}

func TestDiscoverIgnoresFloatTimesteps(t *testing.T) {
	t.Parallel()

	episodesDir := filepath.Join(t.TempDir(), "episodes")
	// Fractional and float-formatted timesteps never count as anchors, even
	// when the value is whole.
	writeEpisode(t, episodesDir, "ep-float", "log.json",
		`{"states": [{"timestep": 2.0}, {"timestep": 8.0}]}`)
	writeEpisode(t, episodesDir, "ep-int", "log.json",
		`{"states": [{"timestep": 2}, {"timestep": 6.0}, {"timestep": 4}]}`)

	metas, err := catalog.New(logging.NewNop()).Discover(episodesDir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(metas) != 1 || metas[0].EpisodeID != "ep-int" {
		t.Fatalf("expected only ep-int, got %v", metas)
	}
	if metas[0].MaxTimestep != 4 {
		t.Fatalf("expected max from integer states only, got %d", metas[0].MaxTimestep)
	}
	if !reflect.DeepEqual(metas[0].EvenTimesteps, []int{2, 4}) {
		t.Fatalf("expected [2 4], got %v", metas[0].EvenTimesteps)
	}
}

func TestDiscoverEmptyCatalogFails(t *testing.T) {
	t.Parallel()

	episodesDir := filepath.Join(t.TempDir(), "episodes")
	writeEpisode(t, episodesDir, "ep-noise", "log.json", `not json at all`)

	_, err := catalog.New(logging.NewNop()).Discover(episodesDir)
	if !errors.Is(err, services.ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestDiscoverMissingDirectoryFails(t *testing.T) {
	t.Parallel()

	_, err := catalog.New(logging.NewNop()).Discover(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDiscoverHonorsEpisodeIDOverrideAndFirstLog(t *testing.T) {
	t.Parallel()

	episodesDir := filepath.Join(t.TempDir(), "episodes")
	writeEpisode(t, episodesDir, "ep-dir", "b.json", `{"states": [{"timestep": 2}, {"timestep": 9}]}`)
	// a.json sorts first and carries an explicit id.
	writeEpisode(t, episodesDir, "ep-dir", "a.json",
		`{"episode_id": "custom-id", "states": [{"timestep": 1}, {"timestep": 6}]}`)

	metas, err := catalog.New(logging.NewNop()).Discover(episodesDir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("expected 1 meta, got %d", len(metas))
	}
	if metas[0].EpisodeID != "custom-id" {
		t.Fatalf("expected explicit episode id, got %q", metas[0].EpisodeID)
	}
	if metas[0].MaxTimestep != 6 {
		t.Fatalf("expected max from a.json, got %d", metas[0].MaxTimestep)
	}
}
