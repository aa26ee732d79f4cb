package archive

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"simulearn/internal/sim"
)

// CachedStore fronts a Store with an LRU read cache for Get. Records are
// immutable, so entries only leave the cache on Delete or eviction.
type CachedStore struct {
	next  Store
	cache *lru.Cache[string, sim.SavedRecord]
}

func NewCachedStore(next Store, size int) *CachedStore {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, sim.SavedRecord](size)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return &CachedStore{next: next, cache: cache}
}

func (s *CachedStore) Save(ctx context.Context, rec sim.SavedRecord) error {
	if err := s.next.Save(ctx, rec); err != nil {
		return err
	}
	s.cache.Add(rec.ID, cloneRecord(rec))
	return nil
}

func (s *CachedStore) List(ctx context.Context) ([]sim.SavedRecord, error) {
	return s.next.List(ctx)
}

func (s *CachedStore) Get(ctx context.Context, id string) (sim.SavedRecord, error) {
	if rec, ok := s.cache.Get(id); ok {
		return cloneRecord(rec), nil
	}
	rec, err := s.next.Get(ctx, id)
	if err != nil {
		return sim.SavedRecord{}, err
	}
	s.cache.Add(id, cloneRecord(rec))
	return rec, nil
}

func (s *CachedStore) Delete(ctx context.Context, id string) error {
	s.cache.Remove(id)
	return s.next.Delete(ctx, id)
}
