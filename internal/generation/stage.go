// Package generation holds the core of the suggestion pipeline: the stage
// sequence, the progress/result event shapes, the model-output validator and
// the inbound prompt gate. It is transport-agnostic; internal/sse frames the
// events and internal/services drives the stages.
package generation

import (
	"time"

	"github.com/google/uuid"
)

type Stage string

const (
	StageStarted    Stage = "started"
	StageFetching   Stage = "fetching-reference-data"
	StageGenerating Stage = "generating"
	StageValidating Stage = "validating"
	StageStoring    Stage = "storing"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

// StageOrder is the fixed forward sequence. StageError is terminal and
// reachable from any of these.
var StageOrder = []Stage{
	StageStarted,
	StageFetching,
	StageGenerating,
	StageValidating,
	StageStoring,
	StageComplete,
}

// progressBands maps each stage to its [floor, ceiling) percent band. A
// stage's reported progress never crosses into the next band before the
// stage actually completes.
var progressBands = map[Stage]struct{ Floor, Ceiling int }{
	StageStarted:    {0, 5},
	StageFetching:   {5, 40},
	StageGenerating: {40, 65},
	StageValidating: {65, 80},
	StageStoring:    {80, 95},
	StageComplete:   {100, 100},
}

func (s Stage) Band() (floor, ceiling int) {
	b, ok := progressBands[s]
	if !ok {
		return 0, 0
	}
	return b.Floor, b.Ceiling
}

// DefaultStageDurations seed the time-remaining estimate when no history
// exists for a stage yet.
var DefaultStageDurations = map[Stage]time.Duration{
	StageFetching:   500 * time.Millisecond,
	StageGenerating: 3000 * time.Millisecond,
	StageValidating: 200 * time.Millisecond,
	StageStoring:    300 * time.Millisecond,
}

// TimedStages are the stages whose durations are sampled into history.
var TimedStages = []Stage{StageFetching, StageGenerating, StageValidating, StageStoring}

type ProgressEvent struct {
	Stage                    Stage            `json:"stage"`
	Message                  string           `json:"message"`
	Progress                 int              `json:"progress"`
	EstimatedTimeRemainingMs *int64           `json:"estimated_time_remaining_ms,omitempty"`
	ErrorCode                string           `json:"error_code,omitempty"`
	Details                  []FieldViolation `json:"details,omitempty"`
}

// ResultFrame carries the final payload on its own event type, separate from
// the progress events.
type ResultFrame struct {
	Type string     `json:"type"`
	Data ResultData `json:"data"`
}

type ResultData struct {
	ID uuid.UUID `json:"id"`
	ValidatedResponse
}

// Emitter receives pipeline events in emission order. Implementations must be
// safe for use from two goroutines: the stage walk and the synthetic
// progress ticker overlap during generation.
type Emitter interface {
	Progress(ev ProgressEvent) error
	Result(res ResultFrame) error
}
