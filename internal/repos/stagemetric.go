package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kineticare/kineticare-backend/internal/platform/logger"
	"github.com/kineticare/kineticare-backend/internal/types"
)

type StageAverageRow struct {
	Stage         string
	AvgDurationMs float64
}

type StageMetricRepo interface {
	Create(ctx context.Context, tx *gorm.DB, metrics []*types.StageMetric) ([]*types.StageMetric, error)
	Averages(ctx context.Context, tx *gorm.DB) ([]StageAverageRow, error)
}

type stageMetricRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStageMetricRepo(db *gorm.DB, baseLog *logger.Logger) StageMetricRepo {
	repoLog := baseLog.With("repo", "StageMetricRepo")
	return &stageMetricRepo{db: db, log: repoLog}
}

func (smr *stageMetricRepo) Create(ctx context.Context, tx *gorm.DB, metrics []*types.StageMetric) ([]*types.StageMetric, error) {
	transaction := tx
	if transaction == nil {
		transaction = smr.db
	}
	if len(metrics) == 0 {
		return []*types.StageMetric{}, nil
	}
	for _, m := range metrics {
		if m != nil && m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
	}
	if err := transaction.WithContext(ctx).Create(&metrics).Error; err != nil {
		return nil, err
	}
	return metrics, nil
}

func (smr *stageMetricRepo) Averages(ctx context.Context, tx *gorm.DB) ([]StageAverageRow, error) {
	transaction := tx
	if transaction == nil {
		transaction = smr.db
	}
	var rows []StageAverageRow
	if err := transaction.WithContext(ctx).
		Model(&types.StageMetric{}).
		Select("stage, AVG(duration_ms) AS avg_duration_ms").
		Group("stage").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
