package archive

import (
	"context"
	"errors"

	"simulearn/internal/sim"
)

var ErrNotFound = errors.New("archive: record not found")

// Store persists completed-run records. Any durable map satisfies it;
// memory, JSON file and postgres backends are provided.
type Store interface {
	Save(ctx context.Context, rec sim.SavedRecord) error
	List(ctx context.Context) ([]sim.SavedRecord, error)
	Get(ctx context.Context, id string) (sim.SavedRecord, error)
	Delete(ctx context.Context, id string) error
}
