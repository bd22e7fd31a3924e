package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/kineticare/kineticare-backend/internal/platform/logger"
	"github.com/kineticare/kineticare-backend/internal/types"
)

type ExerciseLibraryRepo interface {
	List(ctx context.Context, tx *gorm.DB) ([]*types.ExerciseLibraryEntry, error)
	GetByConditions(ctx context.Context, tx *gorm.DB, conditions []string) ([]*types.ExerciseLibraryEntry, error)
}

type exerciseLibraryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExerciseLibraryRepo(db *gorm.DB, baseLog *logger.Logger) ExerciseLibraryRepo {
	repoLog := baseLog.With("repo", "ExerciseLibraryRepo")
	return &exerciseLibraryRepo{db: db, log: repoLog}
}

func (elr *exerciseLibraryRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.ExerciseLibraryEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = elr.db
	}
	var results []*types.ExerciseLibraryEntry
	if err := transaction.WithContext(ctx).
		Order("condition, name").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (elr *exerciseLibraryRepo) GetByConditions(ctx context.Context, tx *gorm.DB, conditions []string) ([]*types.ExerciseLibraryEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = elr.db
	}
	var results []*types.ExerciseLibraryEntry
	if len(conditions) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("condition IN ?", conditions).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
