package sse

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kineticare/kineticare-backend/internal/generation"
	"github.com/kineticare/kineticare-backend/internal/platform/logger"
)

func newStreamUnderTest(t *testing.T) (*Stream, *httptest.ResponseRecorder) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	rec := httptest.NewRecorder()
	stream, err := NewStream(rec, log)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	return stream, rec
}

func TestNewStreamHeaders(t *testing.T) {
	_, rec := newStreamUnderTest(t)

	if rec.Code != 200 {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	headers := map[string]string{
		"Content-Type":      "text/event-stream",
		"Cache-Control":     "no-cache",
		"Connection":        "keep-alive",
		"X-Accel-Buffering": "no",
	}
	for key, want := range headers {
		if got := rec.Header().Get(key); got != want {
			t.Errorf("header %s: got %q, want %q", key, got, want)
		}
	}
	if !rec.Flushed {
		t.Error("headers were not flushed")
	}
}

func TestProgressFrameFormat(t *testing.T) {
	stream, rec := newStreamUnderTest(t)

	eta := int64(3200)
	ev := generation.ProgressEvent{
		Stage:                    generation.StageGenerating,
		Message:                  "Generating citation-backed suggestions",
		Progress:                 52,
		EstimatedTimeRemainingMs: &eta,
	}
	if err := stream.Progress(ev); err != nil {
		t.Fatalf("Progress: %v", err)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: progress\ndata: ") {
		t.Fatalf("unexpected frame prefix: %q", body)
	}
	if !strings.HasSuffix(body, "\n\n") {
		t.Fatalf("frame not terminated by a blank line: %q", body)
	}

	payload := strings.TrimSuffix(strings.TrimPrefix(body, "event: progress\ndata: "), "\n\n")
	var decoded map[string]any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("frame data is not valid JSON: %v", err)
	}
	if decoded["stage"] != "generating" || decoded["progress"] != float64(52) {
		t.Fatalf("unexpected payload: %v", decoded)
	}
	if decoded["estimated_time_remaining_ms"] != float64(3200) {
		t.Fatalf("unexpected time estimate: %v", decoded["estimated_time_remaining_ms"])
	}
	if _, ok := decoded["error_code"]; ok {
		t.Fatal("error_code should be omitted on success events")
	}
}

func TestResultFrameClosesStream(t *testing.T) {
	stream, rec := newStreamUnderTest(t)

	res := generation.ResultFrame{
		Type: "result",
		Data: generation.ResultData{
			ID: uuid.New(),
			ValidatedResponse: generation.ValidatedResponse{
				Exercises: []generation.ExerciseSuggestion{{
					ID:   uuid.New(),
					Name: "Bird Dog",
					Sets: 3,
					Reps: "10 each side",
				}},
				ConfidenceLevel: "medium",
			},
		},
	}
	if err := stream.Result(res); err != nil {
		t.Fatalf("Result: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "event: result\ndata: ") {
		t.Fatalf("missing result frame: %q", rec.Body.String())
	}

	if err := stream.Progress(generation.ProgressEvent{Stage: generation.StageComplete, Progress: 100}); err == nil {
		t.Fatal("expected writes after the result frame to fail")
	}
}

func TestErrorEventIsTerminal(t *testing.T) {
	stream, _ := newStreamUnderTest(t)

	ev := generation.ProgressEvent{
		Stage:     generation.StageError,
		Message:   "the model returned an empty response",
		Progress:  40,
		ErrorCode: generation.CodeEmptyResponse,
	}
	if err := stream.Progress(ev); err != nil {
		t.Fatalf("Progress: %v", err)
	}

	if err := stream.Progress(generation.ProgressEvent{Stage: generation.StageValidating, Progress: 65}); err == nil {
		t.Fatal("expected writes after a terminal error to fail")
	}
	if err := stream.Result(generation.ResultFrame{Type: "result"}); err == nil {
		t.Fatal("expected the result frame to fail after a terminal error")
	}
}

func TestMultipleProgressFrames(t *testing.T) {
	stream, rec := newStreamUnderTest(t)

	stages := []generation.Stage{generation.StageStarted, generation.StageFetching, generation.StageGenerating}
	for i, stage := range stages {
		if err := stream.Progress(generation.ProgressEvent{Stage: stage, Progress: i * 20}); err != nil {
			t.Fatalf("Progress %s: %v", stage, err)
		}
	}

	frames := strings.Count(rec.Body.String(), "event: progress\n")
	if frames != len(stages) {
		t.Fatalf("got %d frames, want %d", frames, len(stages))
	}
}
