package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kineticare/kineticare-backend/internal/platform/logger"
	"github.com/kineticare/kineticare-backend/internal/types"
)

type SuggestionSetRepo interface {
	Create(ctx context.Context, tx *gorm.DB, sets []*types.SuggestionSet) ([]*types.SuggestionSet, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, setIDs []uuid.UUID) ([]*types.SuggestionSet, error)
	GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.SuggestionSet, error)
}

type suggestionSetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSuggestionSetRepo(db *gorm.DB, baseLog *logger.Logger) SuggestionSetRepo {
	repoLog := baseLog.With("repo", "SuggestionSetRepo")
	return &suggestionSetRepo{db: db, log: repoLog}
}

func (ssr *suggestionSetRepo) Create(ctx context.Context, tx *gorm.DB, sets []*types.SuggestionSet) ([]*types.SuggestionSet, error) {
	transaction := tx
	if transaction == nil {
		transaction = ssr.db
	}
	if len(sets) == 0 {
		return []*types.SuggestionSet{}, nil
	}
	for _, s := range sets {
		if s != nil && s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
	}
	if err := transaction.WithContext(ctx).Create(&sets).Error; err != nil {
		return nil, err
	}
	return sets, nil
}

func (ssr *suggestionSetRepo) GetByIDs(ctx context.Context, tx *gorm.DB, setIDs []uuid.UUID) ([]*types.SuggestionSet, error) {
	transaction := tx
	if transaction == nil {
		transaction = ssr.db
	}
	var results []*types.SuggestionSet
	if len(setIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", setIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ssr *suggestionSetRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.SuggestionSet, error) {
	transaction := tx
	if transaction == nil {
		transaction = ssr.db
	}
	var results []*types.SuggestionSet
	if len(userIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
