package archive

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"simulearn/internal/sim"
)

type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]sim.SavedRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]sim.SavedRecord)}
}

func (s *MemoryStore) Save(_ context.Context, rec sim.SavedRecord) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return fmt.Errorf("record id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id] = cloneRecord(rec)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]sim.SavedRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]sim.SavedRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, cloneRecord(rec))
	}
	sortRecords(out)
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (sim.SavedRecord, error) {
	if s == nil {
		return sim.SavedRecord{}, fmt.Errorf("store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return sim.SavedRecord{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[strings.TrimSpace(id)]; !ok {
		return ErrNotFound
	}
	delete(s.byID, strings.TrimSpace(id))
	return nil
}

func cloneRecord(rec sim.SavedRecord) sim.SavedRecord {
	out := rec
	out.Transcript = append([]sim.Message(nil), rec.Transcript...)
	out.Report.KeyLearnings = append([]string(nil), rec.Report.KeyLearnings...)
	return out
}

func sortRecords(recs []sim.SavedRecord) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Timestamp.After(recs[j].Timestamp)
	})
}
