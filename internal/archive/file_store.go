package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"simulearn/internal/sim"
)

// FileStore keeps the archive as a single JSON array on disk, loaded lazily
// and rewritten on every mutation. Suited to local single-process use.
type FileStore struct {
	path string

	loadOnce sync.Once
	mu       sync.RWMutex
	byID     map[string]sim.SavedRecord
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, byID: make(map[string]sim.SavedRecord)}
}

func (s *FileStore) ensureLoaded() {
	s.loadOnce.Do(func() {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return
		}
		var rows []sim.SavedRecord
		if err := json.Unmarshal(b, &rows); err != nil {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, row := range rows {
			id := strings.TrimSpace(row.ID)
			if id == "" {
				continue
			}
			s.byID[id] = row
		}
	})
}

func (s *FileStore) flush() error {
	s.mu.RLock()
	rows := make([]sim.SavedRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		rows = append(rows, rec)
	}
	s.mu.RUnlock()
	sortRecords(rows)

	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o644)
}

func (s *FileStore) Save(_ context.Context, rec sim.SavedRecord) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return fmt.Errorf("record id is required")
	}
	s.ensureLoaded()
	s.mu.Lock()
	s.byID[id] = cloneRecord(rec)
	s.mu.Unlock()
	return s.flush()
}

func (s *FileStore) List(_ context.Context) ([]sim.SavedRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]sim.SavedRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, cloneRecord(rec))
	}
	sortRecords(out)
	return out, nil
}

func (s *FileStore) Get(_ context.Context, id string) (sim.SavedRecord, error) {
	if s == nil {
		return sim.SavedRecord{}, fmt.Errorf("store is nil")
	}
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return sim.SavedRecord{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	s.ensureLoaded()
	s.mu.Lock()
	if _, ok := s.byID[strings.TrimSpace(id)]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.byID, strings.TrimSpace(id))
	s.mu.Unlock()
	return s.flush()
}
