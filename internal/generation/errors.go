package generation

import (
	"errors"

	"github.com/kineticare/kineticare-backend/internal/pkg/httpx"
	"github.com/kineticare/kineticare-backend/internal/platform/openai"
)

// Stable error codes surfaced to clients in the terminal progress event.
const (
	CodeAuthentication     = "AUTHENTICATION_ERROR"
	CodeValidation         = "VALIDATION_ERROR"
	CodeEmptyResponse      = "EMPTY_RESPONSE"
	CodeParseError         = "PARSE_ERROR"
	CodeInvalidStructure   = "INVALID_STRUCTURE"
	CodeTooManySuggestions = "TOO_MANY_SUGGESTIONS"
	CodeMissingFields      = "MISSING_FIELDS"
	CodeInvalidDataType    = "INVALID_DATA_TYPE"
	CodeUpstream           = "UPSTREAM_ERROR"
	CodePersistence        = "PERSISTENCE_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

type FieldViolation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// PipelineError is the single error shape crossing the pipeline boundary.
// Details carry model-output schema violations only; those are safe to show
// to clients because they describe the model's output, not system internals.
type PipelineError struct {
	Code    string
	Message string
	Details []FieldViolation
	Err     error
}

func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func (e *PipelineError) Unwrap() error { return e.Err }

func NewPipelineError(code, message string) *PipelineError {
	return &PipelineError{Code: code, Message: message}
}

// Classify maps any error escaping a stage to a PipelineError exactly once,
// at the pipeline boundary.
func Classify(err error) *PipelineError {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &PipelineError{
			Code:    CodeUpstream,
			Message: "the exercise generation service is unavailable, please try again",
			Err:     err,
		}
	}
	if httpx.IsRetryableError(err) {
		return &PipelineError{
			Code:    CodeUpstream,
			Message: "the exercise generation service timed out, please try again",
			Err:     err,
		}
	}
	return &PipelineError{
		Code:    CodeInternal,
		Message: "an unexpected error occurred",
		Err:     err,
	}
}
