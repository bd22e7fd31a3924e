package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kineticare/kineticare-backend/internal/cache"
	"github.com/kineticare/kineticare-backend/internal/generation"
	"github.com/kineticare/kineticare-backend/internal/platform/logger"
	"github.com/kineticare/kineticare-backend/internal/repos"
	"github.com/kineticare/kineticare-backend/internal/types"
)

const (
	stageAveragesCacheKey = "stage_averages"
	stageAveragesCacheTTL = time.Minute
)

// TimingEstimator supplies the per-stage duration averages used for
// time-remaining estimates and records fresh samples after each stage.
type TimingEstimator interface {
	// StageAverages never fails: cache falls back to the database, the
	// database falls back to the built-in defaults.
	StageAverages(ctx context.Context) map[generation.Stage]time.Duration
	// Record is fire-and-forget; failures are logged and never surface.
	Record(ctx context.Context, userID uuid.UUID, stage generation.Stage, d time.Duration)
}

type timingEstimator struct {
	db         *gorm.DB
	log        *logger.Logger
	metricRepo repos.StageMetricRepo
	cache      *cache.Cache
}

func NewTimingEstimator(db *gorm.DB, log *logger.Logger, metricRepo repos.StageMetricRepo, c *cache.Cache) TimingEstimator {
	return &timingEstimator{
		db:         db,
		log:        log.With("service", "TimingEstimator"),
		metricRepo: metricRepo,
		cache:      c,
	}
}

func (te *timingEstimator) StageAverages(ctx context.Context) map[generation.Stage]time.Duration {
	averages := make(map[generation.Stage]time.Duration, len(generation.DefaultStageDurations))
	for stage, d := range generation.DefaultStageDurations {
		averages[stage] = d
	}

	if cached, ok := te.cache.Get(ctx, stageAveragesCacheKey); ok {
		var byStage map[string]int64
		if err := json.Unmarshal([]byte(cached), &byStage); err == nil {
			for stage, ms := range byStage {
				if ms > 0 {
					averages[generation.Stage(stage)] = time.Duration(ms) * time.Millisecond
				}
			}
			return averages
		}
	}

	rows, err := te.metricRepo.Averages(ctx, nil)
	if err != nil {
		te.log.Warn("stage average query failed, using defaults", "error", err)
		return averages
	}

	byStage := make(map[string]int64, len(rows))
	for _, row := range rows {
		ms := int64(row.AvgDurationMs)
		if ms <= 0 {
			continue
		}
		byStage[row.Stage] = ms
		averages[generation.Stage(row.Stage)] = time.Duration(ms) * time.Millisecond
	}

	if raw, err := json.Marshal(byStage); err == nil {
		te.cache.Set(ctx, stageAveragesCacheKey, string(raw), stageAveragesCacheTTL)
	}
	return averages
}

func (te *timingEstimator) Record(ctx context.Context, userID uuid.UUID, stage generation.Stage, d time.Duration) {
	metric := &types.StageMetric{
		UserID:     userID,
		Stage:      string(stage),
		DurationMs: d.Milliseconds(),
		RecordedAt: time.Now(),
	}
	go func() {
		// Detach from the request context so a finished request does not
		// cancel the insert.
		insertCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := te.metricRepo.Create(insertCtx, nil, []*types.StageMetric{metric}); err != nil {
			te.log.Warn("failed to record stage metric", "stage", stage, "error", err)
		}
	}()
}
