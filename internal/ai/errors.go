package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means no AI backend is configured.
	ErrUnavailable = errors.New("ai: service unavailable")
	// ErrTimeout means the call exceeded its deadline.
	ErrTimeout = errors.New("ai: timeout")
	// ErrEmpty means the model answered with no text.
	ErrEmpty = errors.New("ai: empty response")
	// ErrUnknownPrompt means the catalog has no template with the given key.
	ErrUnknownPrompt = errors.New("ai: unknown prompt")
)

// APIError is a non-success answer from the AI vendor.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ai: api error %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// Code is picked up by handler summaries as err_code.
func (e *APIError) Code() string {
	if e.StatusCode == 429 {
		return "ai_rate_limited"
	}
	return "ai_api_error"
}

// Temporary reports whether retrying later may help.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
