package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kineticare/kineticare-backend/internal/pkg/httpx"
	"github.com/kineticare/kineticare-backend/internal/platform/envutil"
	"github.com/kineticare/kineticare-backend/internal/platform/logger"
)

// Client is the generative-model client used by the pipeline. One call per
// invocation, no internal retry loop; the caller owns retry policy.
type Client interface {
	GenerateText(ctx context.Context, system string, user string) (string, error)
}

// APIError is a non-2xx upstream response. Retryability is decided once at
// construction and never revisited.
type APIError struct {
	StatusCode int
	Body       string
	retryable  bool
}

func NewAPIError(status int, body string) *APIError {
	return &APIError{
		StatusCode: status,
		Body:       body,
		retryable:  httpx.IsRetryableHTTPStatus(status),
	}
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300]
	}
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, body)
}

func (e *APIError) HTTPStatusCode() int { return e.StatusCode }
func (e *APIError) Retryable() bool     { return e.retryable }

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	apiKey := envutil.Str("OPENAI_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimRight(envutil.Str("OPENAI_BASE_URL", "https://api.openai.com"), "/")
	model := envutil.Str("OPENAI_MODEL", "gpt-4o-mini")
	timeout := time.Duration(envutil.Int("OPENAI_TIMEOUT_SECONDS", 120)) * time.Second

	return NewWithHTTPClient(log, baseURL, apiKey, model, &http.Client{Timeout: timeout}), nil
}

// NewWithHTTPClient allows injecting the HTTP client, mainly for tests.
func NewWithHTTPClient(log *logger.Logger, baseURL, apiKey, model string, httpClient *http.Client) Client {
	return &client{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *client) GenerateText(ctx context.Context, system string, user string) (string, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return "", readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := NewAPIError(resp.StatusCode, string(raw))
		c.log.Warn("OpenAI request failed",
			"status", resp.StatusCode,
			"retryable", apiErr.Retryable(),
			"elapsed", time.Since(start).String(),
		)
		return "", apiErr
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("openai decode error: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai response has no choices")
	}

	c.log.Debug("OpenAI request complete", "elapsed", time.Since(start).String())
	return out.Choices[0].Message.Content, nil
}
