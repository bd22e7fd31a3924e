package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/kineticare/kineticare-backend/internal/platform/logger"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestGenerateText(t *testing.T) {
	httpClient := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.Path != "/v1/chat/completions" {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			if got := req.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Fatalf("authorization=%q", got)
			}

			var in chatRequest
			if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
				t.Fatalf("decode req: %v", err)
			}
			if in.Model != "gpt-4o-mini" {
				t.Fatalf("model=%q", in.Model)
			}
			if len(in.Messages) != 2 || in.Messages[0].Role != "system" || in.Messages[1].Role != "user" {
				t.Fatalf("messages=%+v", in.Messages)
			}

			out := map[string]any{
				"choices": []map[string]any{
					{"message": map[string]any{"content": "[]"}},
				},
			}
			b, _ := json.Marshal(out)
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"application/json"}},
				Body:       io.NopCloser(bytes.NewReader(b)),
			}, nil
		}),
	}

	c := NewWithHTTPClient(testLogger(t), "http://upstream", "test-key", "gpt-4o-mini", httpClient)
	text, err := c.GenerateText(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if text != "[]" {
		t.Fatalf("text=%q", text)
	}
}

func TestGenerateTextUpstreamStatus(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantRetryable bool
	}{
		{name: "rate limited", status: 429, wantRetryable: true},
		{name: "server error", status: 503, wantRetryable: true},
		{name: "bad request", status: 400, wantRetryable: false},
		{name: "unauthorized", status: 401, wantRetryable: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			httpClient := &http.Client{
				Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
					return &http.Response{
						StatusCode: tc.status,
						Body:       io.NopCloser(strings.NewReader(`{"error": "nope"}`)),
					}, nil
				}),
			}

			c := NewWithHTTPClient(testLogger(t), "http://upstream", "test-key", "gpt-4o-mini", httpClient)
			_, err := c.GenerateText(context.Background(), "s", "u")

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.HTTPStatusCode() != tc.status {
				t.Fatalf("status=%d, want %d", apiErr.HTTPStatusCode(), tc.status)
			}
			if apiErr.Retryable() != tc.wantRetryable {
				t.Fatalf("retryable=%v, want %v", apiErr.Retryable(), tc.wantRetryable)
			}
		})
	}
}

func TestGenerateTextNoChoices(t *testing.T) {
	httpClient := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"choices": []}`)),
			}, nil
		}),
	}

	c := NewWithHTTPClient(testLogger(t), "http://upstream", "test-key", "gpt-4o-mini", httpClient)
	if _, err := c.GenerateText(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected an error for a response without choices")
	}
}
