package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kineticare/kineticare-backend/internal/generation"
	"github.com/kineticare/kineticare-backend/internal/platform/logger"
	"github.com/kineticare/kineticare-backend/internal/repos"
	"github.com/kineticare/kineticare-backend/internal/types"
)

type fakeMetricRepo struct {
	mu      sync.Mutex
	rows    []repos.StageAverageRow
	rowsErr error
	created []*types.StageMetric
	done    chan struct{}
}

func (r *fakeMetricRepo) Create(ctx context.Context, tx *gorm.DB, metrics []*types.StageMetric) ([]*types.StageMetric, error) {
	r.mu.Lock()
	r.created = append(r.created, metrics...)
	r.mu.Unlock()
	if r.done != nil {
		close(r.done)
	}
	return metrics, nil
}

func (r *fakeMetricRepo) Averages(ctx context.Context, tx *gorm.DB) ([]repos.StageAverageRow, error) {
	return r.rows, r.rowsErr
}

func newTimingUnderTest(t *testing.T, metricRepo repos.StageMetricRepo) TimingEstimator {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewTimingEstimator(nil, log, metricRepo, nil)
}

func TestStageAveragesDefaults(t *testing.T) {
	te := newTimingUnderTest(t, &fakeMetricRepo{})

	averages := te.StageAverages(context.Background())
	for stage, want := range generation.DefaultStageDurations {
		if averages[stage] != want {
			t.Errorf("stage %s: got %v, want default %v", stage, averages[stage], want)
		}
	}
}

func TestStageAveragesFromHistory(t *testing.T) {
	te := newTimingUnderTest(t, &fakeMetricRepo{rows: []repos.StageAverageRow{
		{Stage: string(generation.StageGenerating), AvgDurationMs: 4200},
		{Stage: string(generation.StageFetching), AvgDurationMs: 120},
	}})

	averages := te.StageAverages(context.Background())
	if averages[generation.StageGenerating] != 4200*time.Millisecond {
		t.Errorf("generating: got %v, want 4.2s", averages[generation.StageGenerating])
	}
	if averages[generation.StageFetching] != 120*time.Millisecond {
		t.Errorf("fetching: got %v, want 120ms", averages[generation.StageFetching])
	}
	// Stages without history keep their defaults.
	if averages[generation.StageValidating] != generation.DefaultStageDurations[generation.StageValidating] {
		t.Errorf("validating: got %v, want default", averages[generation.StageValidating])
	}
}

func TestStageAveragesQueryFailure(t *testing.T) {
	te := newTimingUnderTest(t, &fakeMetricRepo{rowsErr: errors.New("connection refused")})

	averages := te.StageAverages(context.Background())
	for stage, want := range generation.DefaultStageDurations {
		if averages[stage] != want {
			t.Errorf("stage %s: got %v, want default %v after query failure", stage, averages[stage], want)
		}
	}
}

func TestStageAveragesIgnoresNonPositiveRows(t *testing.T) {
	te := newTimingUnderTest(t, &fakeMetricRepo{rows: []repos.StageAverageRow{
		{Stage: string(generation.StageStoring), AvgDurationMs: 0},
		{Stage: string(generation.StageValidating), AvgDurationMs: -30},
	}})

	averages := te.StageAverages(context.Background())
	if averages[generation.StageStoring] != generation.DefaultStageDurations[generation.StageStoring] {
		t.Errorf("storing: got %v, want default", averages[generation.StageStoring])
	}
	if averages[generation.StageValidating] != generation.DefaultStageDurations[generation.StageValidating] {
		t.Errorf("validating: got %v, want default", averages[generation.StageValidating])
	}
}

func TestRecordWritesSample(t *testing.T) {
	repo := &fakeMetricRepo{done: make(chan struct{})}
	te := newTimingUnderTest(t, repo)

	userID := uuid.New()
	te.Record(context.Background(), userID, generation.StageGenerating, 2750*time.Millisecond)

	select {
	case <-repo.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the async metric insert")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.created) != 1 {
		t.Fatalf("got %d metrics, want 1", len(repo.created))
	}
	m := repo.created[0]
	if m.UserID != userID || m.Stage != string(generation.StageGenerating) || m.DurationMs != 2750 {
		t.Fatalf("unexpected metric: %+v", m)
	}
	if m.RecordedAt.IsZero() {
		t.Fatal("metric missing recorded-at timestamp")
	}
}
