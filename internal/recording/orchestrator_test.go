package recording_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"trainloop/internal/catalog"
	"trainloop/internal/recording"
	"trainloop/internal/services"
	"trainloop/internal/services/recorder"
)

// fakeRecorder records launch requests and feeds completions to a paired
// scanner, one new artifact per launch.
type fakeRecorder struct {
	mu       sync.Mutex
	requests []recorder.Request
	launches int
	failOn   int
}

func (f *fakeRecorder) Launch(ctx context.Context, req recorder.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launches++
	if f.failOn > 0 && f.launches == f.failOn {
		return errors.New("recorder crashed")
	}
	f.requests = append(f.requests, req)
	return nil
}

func (f *fakeRecorder) scan(string) map[string]struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	completed := map[string]struct{}{"preexisting": {}}
	for i := 0; i < f.launches; i++ {
		completed[fmt.Sprintf("new-%d", i)] = struct{}{}
	}
	return completed
}

func testMetas() []catalog.Meta {
	return []catalog.Meta{
		{EpisodeID: "ep-a", EvenTimesteps: []int{2, 4}, MaxTimestep: 5},
		{EpisodeID: "ep-b", EvenTimesteps: []int{2, 4, 6}, MaxTimestep: 6},
	}
}

func batchConfig(metas []catalog.Meta, recordCount, restarts int) recording.BatchConfig {
	return recording.BatchConfig{
		Metas:               metas,
		RecordCount:         recordCount,
		RestartsPerSample:   restarts,
		EpisodesDir:         "/data/initial",
		OutputDir:           "/data/final",
		Port:                3003,
		MaxAssistantActions: 1,
		MaxHumanActions:     2,
		NoiseProbability:    0.25,
		NoiseTopK:           3,
		Timeout:             time.Second,
		PollInterval:        time.Millisecond,
	}
}

func TestLaunchBatchZeroCountIsNoop(t *testing.T) {
	t.Parallel()

	fake := &fakeRecorder{}
	orch := recording.New(fake, recording.WithScanner(fake.scan))
	sampled, err := orch.LaunchBatch(context.Background(), batchConfig(testMetas(), 0, 2))
	if err != nil {
		t.Fatalf("LaunchBatch: %v", err)
	}
	if len(sampled) != 0 || fake.launches != 0 {
		t.Fatalf("expected no work, got %d sampled %d launches", len(sampled), fake.launches)
	}
}

func TestLaunchBatchSpawnsCountTimesRestarts(t *testing.T) {
	t.Parallel()

	fake := &fakeRecorder{}
	orch := recording.New(fake,
		recording.WithScanner(fake.scan),
		recording.WithRand(rand.New(rand.NewSource(1))))
	sampled, err := orch.LaunchBatch(context.Background(), batchConfig(testMetas(), 3, 2))
	if err != nil {
		t.Fatalf("LaunchBatch: %v", err)
	}
	if fake.launches != 6 {
		t.Fatalf("expected 6 launches, got %d", fake.launches)
	}
	if len(sampled) == 0 || len(sampled) > 2 {
		t.Fatalf("expected between 1 and 2 distinct sampled metas, got %d", len(sampled))
	}
	for _, req := range fake.requests {
		if req.Timestep <= 0 || req.Timestep%2 != 0 {
			t.Fatalf("anchor timestep must be a positive even value, got %d", req.Timestep)
		}
		if req.EpisodesDir != "/data/initial" || req.Port != 3003 {
			t.Fatalf("unexpected request fields: %+v", req)
		}
	}
}

func TestLaunchBatchTimesOutWithoutCompletion(t *testing.T) {
	t.Parallel()

	fake := &fakeRecorder{}
	orch := recording.New(fake,
		recording.WithScanner(func(string) map[string]struct{} {
			return map[string]struct{}{"preexisting": {}}
		}),
		recording.WithRand(rand.New(rand.NewSource(1))))

	cfg := batchConfig(testMetas(), 1, 1)
	cfg.Timeout = 20 * time.Millisecond
	_, err := orch.LaunchBatch(context.Background(), cfg)
	if !errors.Is(err, services.ErrRecordingTimeout) {
		t.Fatalf("expected recording timeout, got %v", err)
	}
}

func TestLaunchBatchPropagatesLaunchFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeRecorder{failOn: 2}
	orch := recording.New(fake,
		recording.WithScanner(fake.scan),
		recording.WithRand(rand.New(rand.NewSource(1))))
	_, err := orch.LaunchBatch(context.Background(), batchConfig(testMetas(), 2, 1))
	if err == nil {
		t.Fatal("expected launch failure to abort the batch")
	}
	if fake.launches != 2 {
		t.Fatalf("expected abort after second launch, got %d", fake.launches)
	}
}

func TestLaunchBatchRequiresMetas(t *testing.T) {
	t.Parallel()

	orch := recording.New(&fakeRecorder{})
	_, err := orch.LaunchBatch(context.Background(), batchConfig(nil, 1, 1))
	if !errors.Is(err, services.ErrEmptyCatalog) {
		t.Fatalf("expected empty catalog error, got %v", err)
	}
}

func TestLaunchBatchConfirmAfterEachRecording(t *testing.T) {
	t.Parallel()

	fake := &fakeRecorder{}
	var confirms []int
	orch := recording.New(fake,
		recording.WithScanner(fake.scan),
		recording.WithRand(rand.New(rand.NewSource(1))),
		recording.WithConfirm(func(iteration int) error {
			confirms = append(confirms, iteration)
			return nil
		}))
	if _, err := orch.LaunchBatch(context.Background(), batchConfig(testMetas(), 1, 2)); err != nil {
		t.Fatalf("LaunchBatch: %v", err)
	}
	// One anchor with two restarts waits for acknowledgment twice, once per
	// completed recording.
	if len(confirms) != 2 {
		t.Fatalf("expected 2 confirmations for 2 recordings, got %v", confirms)
	}

	confirms = nil
	if _, err := orch.LaunchBatch(context.Background(), batchConfig(testMetas(), 3, 1)); err != nil {
		t.Fatalf("LaunchBatch: %v", err)
	}
	if len(confirms) != 3 {
		t.Fatalf("expected 3 confirmations for 3 recordings, got %v", confirms)
	}
}

func TestLaunchBatchConfirmAbort(t *testing.T) {
	t.Parallel()

	fake := &fakeRecorder{}
	orch := recording.New(fake,
		recording.WithScanner(fake.scan),
		recording.WithRand(rand.New(rand.NewSource(1))),
		recording.WithConfirm(func(int) error { return errors.New("operator abort") }))
	_, err := orch.LaunchBatch(context.Background(), batchConfig(testMetas(), 2, 2))
	if err == nil || fake.launches != 1 {
		t.Fatalf("expected abort after first recording, err=%v launches=%d", err, fake.launches)
	}
}
