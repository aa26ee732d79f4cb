package llmclient

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrInvalidJSON = errors.New("invalid json from LLM")

// ErrEmptyImage is returned when the model responds without image bytes.
var ErrEmptyImage = errors.New("empty image from model")

// LLMClient produces structured JSON from a prompt plus an input payload.
// Cross-cutting concerns (retries, timeouts, logging) are applied via Middleware.
type LLMClient interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	Close() error
}

// ImageClient produces raw image bytes for a description.
type ImageClient interface {
	Name() string
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
	Close() error
}

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}
