package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kineticare/kineticare-backend/internal/platform/apierr"
	"github.com/kineticare/kineticare-backend/internal/platform/logger"
	"github.com/kineticare/kineticare-backend/internal/repos"
	"github.com/kineticare/kineticare-backend/internal/requestdata"
	"github.com/kineticare/kineticare-backend/internal/types"
)

// LibraryService exposes the read-only reference data and persisted runs.
type LibraryService interface {
	ListExercises(ctx context.Context) ([]*types.ExerciseLibraryEntry, error)
	GetSuggestionSet(ctx context.Context, setID uuid.UUID) (*types.SuggestionSet, error)
}

type libraryService struct {
	db             *gorm.DB
	log            *logger.Logger
	libraryRepo    repos.ExerciseLibraryRepo
	suggestionRepo repos.SuggestionSetRepo
}

func NewLibraryService(db *gorm.DB, log *logger.Logger, libraryRepo repos.ExerciseLibraryRepo, suggestionRepo repos.SuggestionSetRepo) LibraryService {
	return &libraryService{
		db:             db,
		log:            log.With("service", "LibraryService"),
		libraryRepo:    libraryRepo,
		suggestionRepo: suggestionRepo,
	}
}

func (ls *libraryService) ListExercises(ctx context.Context) ([]*types.ExerciseLibraryEntry, error) {
	return ls.libraryRepo.List(ctx, nil)
}

func (ls *libraryService) GetSuggestionSet(ctx context.Context, setID uuid.UUID) (*types.SuggestionSet, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "UNAUTHENTICATED", fmt.Errorf("not authenticated"))
	}
	if setID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "BAD_REQUEST", fmt.Errorf("missing suggestion set id"))
	}

	sets, err := ls.suggestionRepo.GetByIDs(ctx, nil, []uuid.UUID{setID})
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "PERSISTENCE_ERROR", err)
	}
	// Ownership check: a set is only visible to the user that generated it.
	if len(sets) == 0 || sets[0] == nil || sets[0].UserID != rd.UserID {
		return nil, apierr.New(http.StatusNotFound, "NOT_FOUND", fmt.Errorf("suggestion set not found"))
	}
	return sets[0], nil
}
