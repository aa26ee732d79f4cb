package archive

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"simulearn/internal/sim"
)

// countingStore wraps a MemoryStore and counts Get calls that reach it.
type countingStore struct {
	Store
	mu   sync.Mutex
	gets int
}

func (s *countingStore) Get(ctx context.Context, id string) (sim.SavedRecord, error) {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()
	return s.Store.Get(ctx, id)
}

func (s *countingStore) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

func TestCachedStoreServesRepeatGetsFromCache(t *testing.T) {
	ctx := context.Background()
	origin := &countingStore{Store: NewMemoryStore()}
	store := NewCachedStore(origin, 8)

	rec := testRecord("rec-1", time.Now())
	require.NoError(t, store.Save(ctx, rec))

	for i := 0; i < 3; i++ {
		got, err := store.Get(ctx, "rec-1")
		require.NoError(t, err)
		require.Equal(t, rec, got)
	}
	require.Equal(t, 0, origin.getCount(), "Save primes the cache")
}

func TestCachedStoreInvalidatesOnDelete(t *testing.T) {
	ctx := context.Background()
	origin := &countingStore{Store: NewMemoryStore()}
	store := NewCachedStore(origin, 8)

	require.NoError(t, store.Save(ctx, testRecord("rec-1", time.Now())))
	require.NoError(t, store.Delete(ctx, "rec-1"))

	_, err := store.Get(ctx, "rec-1")
	require.ErrorIs(t, err, ErrNotFound)
}
