// Package sse frames pipeline events onto a text/event-stream response, one
// stream per request.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/kineticare/kineticare-backend/internal/generation"
	"github.com/kineticare/kineticare-backend/internal/platform/logger"
)

// Stream writes one request's progress and result frames. Writes are
// serialized; the pipeline's stage walk and synthetic ticker both emit here.
type Stream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	log     *logger.Logger
	closed  bool
}

// NewStream prepares w for event streaming. The headers disable intermediary
// buffering so frames reach the client as they are generated.
func NewStream(w http.ResponseWriter, log *logger.Logger) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported by response writer")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{
		w:       w,
		flusher: flusher,
		log:     log.With("component", "SSEStream"),
	}, nil
}

func (s *Stream) Progress(ev generation.ProgressEvent) error {
	err := s.writeFrame("progress", ev)
	if err == nil && (ev.ErrorCode != "" || ev.Stage == generation.StageError) {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	}
	return err
}

func (s *Stream) Result(res generation.ResultFrame) error {
	err := s.writeFrame("result", res)
	if err == nil {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	}
	return err
}

func (s *Stream) writeFrame(event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("stream already terminated")
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, raw); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
