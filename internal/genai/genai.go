// Package genai provides clients for hosted text-generation APIs.
//
// The pipeline talks to one generation backend at a time through the
// Client interface; GeminiClient is the production implementation.
package genai

import (
	"context"
	"errors"
	"fmt"
)

// GenerateOptions tune a single generation call. Zero values fall back
// to the client's configured defaults.
type GenerateOptions struct {
	// MaxOutputTokens bounds the response length.
	MaxOutputTokens int

	// Temperature controls sampling randomness.
	Temperature float64
}

// Client generates text from a system prompt and user input.
type Client interface {
	// Generate sends one generation request and returns the model's text
	// response. It retries transient failures internally; a returned
	// error is final for this call.
	Generate(ctx context.Context, systemPrompt, input string, opts GenerateOptions) (string, error)
}

// GenerationError describes a failed generation call.
type GenerationError struct {
	// StatusCode is the HTTP status, or 0 for transport-level failures.
	StatusCode int

	// Message describes the failure.
	Message string

	// Retryable reports whether the caller may usefully retry.
	Retryable bool

	// Err is the underlying error, if any.
	Err error
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generation failed (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("generation failed: %s", e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a retryable GenerationError.
func IsRetryable(err error) bool {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return false
}
