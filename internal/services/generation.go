package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kineticare/kineticare-backend/internal/generation"
	"github.com/kineticare/kineticare-backend/internal/pkg/httpx"
	"github.com/kineticare/kineticare-backend/internal/pkg/retry"
	"github.com/kineticare/kineticare-backend/internal/platform/logger"
	"github.com/kineticare/kineticare-backend/internal/platform/openai"
	"github.com/kineticare/kineticare-backend/internal/repos"
	"github.com/kineticare/kineticare-backend/internal/requestdata"
	"github.com/kineticare/kineticare-backend/internal/types"
)

// GenerationService drives one request through the stage sequence, pushing
// progress events to the emitter until a terminal complete or error event.
type GenerationService interface {
	Stream(ctx context.Context, req generation.GenerateRequest, emit generation.Emitter)
}

type GenerationConfig struct {
	// MaxAttempts is the number of retries after the first model call, so the
	// model is invoked at most MaxAttempts+1 times.
	MaxAttempts    int
	BaseRetryDelay time.Duration
	// SyntheticTick is the cadence of interpolated progress events while the
	// blocking model call is in flight.
	SyntheticTick time.Duration
	// PacingDelay briefly separates the fast trailing stages so their events
	// are visible to a human observer. Not correctness-relevant.
	PacingDelay time.Duration
}

func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxAttempts:    2,
		BaseRetryDelay: time.Second,
		SyntheticTick:  time.Second,
		PacingDelay:    150 * time.Millisecond,
	}
}

type generationService struct {
	db             *gorm.DB
	log            *logger.Logger
	libraryRepo    repos.ExerciseLibraryRepo
	suggestionRepo repos.SuggestionSetRepo
	timing         TimingEstimator
	model          openai.Client
	gate           *generation.InputGate
	cfg            GenerationConfig
}

func NewGenerationService(
	db *gorm.DB,
	log *logger.Logger,
	libraryRepo repos.ExerciseLibraryRepo,
	suggestionRepo repos.SuggestionSetRepo,
	timing TimingEstimator,
	model openai.Client,
	cfg GenerationConfig,
) GenerationService {
	return &generationService{
		db:             db,
		log:            log.With("service", "GenerationService"),
		libraryRepo:    libraryRepo,
		suggestionRepo: suggestionRepo,
		timing:         timing,
		model:          model,
		gate:           generation.NewInputGate(),
		cfg:            cfg,
	}
}

// runState serializes event emission and keeps the progress sequence
// non-decreasing even while the synthetic ticker and the stage walk overlap.
type runState struct {
	mu           sync.Mutex
	emit         generation.Emitter
	lastProgress int
	remaining    time.Duration
}

func (r *runState) progress(stage generation.Stage, message string, pct int, eta time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pct < r.lastProgress {
		pct = r.lastProgress
	}
	r.lastProgress = pct
	if eta < 0 {
		eta = 0
	}
	ms := eta.Milliseconds()
	return r.emit.Progress(generation.ProgressEvent{
		Stage:                    stage,
		Message:                  message,
		Progress:                 pct,
		EstimatedTimeRemainingMs: &ms,
	})
}

// eta is the remaining-time estimate after elapsed time in the current stage.
func (r *runState) eta(elapsed time.Duration) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining - elapsed
}

func (r *runState) terminalError(pe *generation.PipelineError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emit.Progress(generation.ProgressEvent{
		Stage:     generation.StageError,
		Message:   pe.Message,
		Progress:  r.lastProgress,
		ErrorCode: pe.Code,
		Details:   pe.Details,
	})
}

func (gs *generationService) Stream(ctx context.Context, req generation.GenerateRequest, emit generation.Emitter) {
	run := &runState{emit: emit}

	terminate := func(err error) {
		pe := generation.Classify(err)
		gs.log.Warn("generation pipeline aborted",
			"code", pe.Code,
			"error", err,
		)
		if ctx.Err() != nil {
			// Client is gone; write nothing further.
			return
		}
		if emitErr := run.terminalError(pe); emitErr != nil {
			gs.log.Debug("failed to emit terminal error event", "error", emitErr)
		}
	}

	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		terminate(generation.NewPipelineError(generation.CodeAuthentication, "authentication required"))
		return
	}
	userID := rd.UserID

	if err := gs.gate.Validate(req); err != nil {
		terminate(err)
		return
	}

	averages := gs.timing.StageAverages(ctx)
	for _, stage := range generation.TimedStages {
		run.remaining += averages[stage]
	}

	if err := run.progress(generation.StageStarted, "Starting exercise generation", 0, run.eta(0)); err != nil {
		return
	}

	// fetching-reference-data
	floor, _ := generation.StageFetching.Band()
	if err := run.progress(generation.StageFetching, "Loading the exercise reference library", floor, run.eta(0)); err != nil {
		return
	}
	stageStart := time.Now()
	library, err := gs.libraryRepo.List(ctx, nil)
	if err != nil {
		terminate(&generation.PipelineError{Code: generation.CodePersistence, Message: "failed to load the exercise library", Err: err})
		return
	}
	gs.finishStage(ctx, run, userID, generation.StageFetching, averages, stageStart)

	// generating
	floor, _ = generation.StageGenerating.Band()
	if err := run.progress(generation.StageGenerating, "Generating citation-backed suggestions", floor, run.eta(0)); err != nil {
		return
	}
	stageStart = time.Now()
	rawText, err := gs.generateWithProgress(ctx, run, req, library, averages[generation.StageGenerating], stageStart)
	if err != nil {
		terminate(err)
		return
	}
	gs.finishStage(ctx, run, userID, generation.StageGenerating, averages, stageStart)

	// validating
	gs.pace(ctx)
	floor, _ = generation.StageValidating.Band()
	if err := run.progress(generation.StageValidating, "Validating the generated program", floor, run.eta(0)); err != nil {
		return
	}
	stageStart = time.Now()
	validated, err := generation.ValidateResponse(rawText)
	if err != nil {
		terminate(err)
		return
	}
	for i := range validated.Exercises {
		validated.Exercises[i].ID = uuid.New()
	}
	gs.finishStage(ctx, run, userID, generation.StageValidating, averages, stageStart)

	// storing
	gs.pace(ctx)
	floor, _ = generation.StageStoring.Band()
	if err := run.progress(generation.StageStoring, "Saving the suggestion set", floor, run.eta(0)); err != nil {
		return
	}
	stageStart = time.Now()
	set, err := gs.persist(ctx, userID, req, validated)
	if err != nil {
		terminate(&generation.PipelineError{Code: generation.CodePersistence, Message: "failed to save the suggestion set", Err: err})
		return
	}
	gs.finishStage(ctx, run, userID, generation.StageStoring, averages, stageStart)

	// complete: the 100% progress event, then the result on its own frame.
	if err := run.progress(generation.StageComplete, "Exercise program ready", 100, 0); err != nil {
		return
	}
	if err := emit.Result(generation.ResultFrame{
		Type: "result",
		Data: generation.ResultData{ID: set.ID, ValidatedResponse: *validated},
	}); err != nil {
		gs.log.Debug("failed to emit result frame", "error", err)
	}
}

// generateWithProgress runs the blocking, retried model call while a ticker
// interpolates progress through the generating band. The ticker stops the
// instant the call resolves; a failed emit cancels the call through the
// group context.
func (gs *generationService) generateWithProgress(
	ctx context.Context,
	run *runState,
	req generation.GenerateRequest,
	library []*types.ExerciseLibraryEntry,
	expected time.Duration,
	stageStart time.Time,
) (string, error) {
	systemPrompt := generation.BuildSystemPrompt(library)
	userPrompt := generation.BuildUserPrompt(req)

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	var rawText string
	g.Go(func() error {
		defer close(done)
		out, err := retry.Do(gctx, gs.cfg.MaxAttempts, gs.cfg.BaseRetryDelay, func() (string, error) {
			text, callErr := gs.model.GenerateText(gctx, systemPrompt, userPrompt)
			if callErr != nil && !modelErrRetryable(callErr) {
				return "", retry.Fatal(callErr)
			}
			return text, callErr
		})
		if err != nil {
			return err
		}
		rawText = out
		return nil
	})

	g.Go(func() error {
		tick := gs.cfg.SyntheticTick
		if tick <= 0 {
			tick = time.Second
		}
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		floor, ceiling := generation.StageGenerating.Band()
		width := float64(ceiling - floor)
		for {
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				elapsed := time.Since(stageStart)
				frac := 1.0
				if expected > 0 {
					frac = float64(elapsed) / float64(expected)
				}
				if frac > 0.9 {
					frac = 0.9
				}
				pct := floor + int(width*frac)
				if err := run.progress(generation.StageGenerating, "Generating citation-backed suggestions", pct, run.eta(elapsed)); err != nil {
					return err
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		return "", err
	}
	return rawText, nil
}

func modelErrRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return httpx.IsRetryableError(err)
}

func (gs *generationService) persist(ctx context.Context, userID uuid.UUID, req generation.GenerateRequest, validated *generation.ValidatedResponse) (*types.SuggestionSet, error) {
	payload, err := json.Marshal(validated)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	set := &types.SuggestionSet{
		UserID:          userID,
		PatientRef:      req.PatientRef,
		ClinicRef:       req.ClinicRef,
		Prompt:          req.Prompt,
		Payload:         datatypes.JSON(payload),
		ConfidenceLevel: validated.ConfidenceLevel,
	}
	created, err := gs.suggestionRepo.Create(ctx, nil, []*types.SuggestionSet{set})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

// finishStage records the timing sample and retires the stage's share of the
// remaining-time estimate.
func (gs *generationService) finishStage(ctx context.Context, run *runState, userID uuid.UUID, stage generation.Stage, averages map[generation.Stage]time.Duration, start time.Time) {
	gs.timing.Record(ctx, userID, stage, time.Since(start))
	run.mu.Lock()
	run.remaining -= averages[stage]
	if run.remaining < 0 {
		run.remaining = 0
	}
	run.mu.Unlock()
}

func (gs *generationService) pace(ctx context.Context) {
	if gs.cfg.PacingDelay <= 0 {
		return
	}
	timer := time.NewTimer(gs.cfg.PacingDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
