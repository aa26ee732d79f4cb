package media

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("media: object not found")

// Store holds generated image bytes keyed by run and object name. The
// orchestrator keeps only the reference; bytes live here.
type Store interface {
	Put(ctx context.Context, runID, name string, content []byte) error
	Get(ctx context.Context, runID, name string) ([]byte, error)
	// URL returns a directly fetchable URL for the object, or "" when the
	// backend has no URL scheme (callers fall back to the gateway route).
	URL(ctx context.Context, runID, name string) (string, error)
}
