package sim

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxRuns = 128

// ManagerOptions configures the shared collaborators handed to every run.
type ManagerOptions struct {
	Turns   TurnGenerator
	Visuals VisualGenerator
	Archive ArchiveSaver
	Media   MediaStore

	// MaxRuns bounds the number of live runs kept in memory; the least
	// recently used run is evicted when the bound is exceeded.
	MaxRuns int

	Now func() time.Time
}

// Manager is the registry of live runs. Runs are keyed by a generated id
// and held in an LRU so abandoned sessions age out instead of accumulating.
type Manager struct {
	opts ManagerOptions

	mu   sync.Mutex
	runs *lru.Cache[string, *Orchestrator]
}

func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.MaxRuns <= 0 {
		opts.MaxRuns = defaultMaxRuns
	}
	runs, err := lru.New[string, *Orchestrator](opts.MaxRuns)
	if err != nil {
		return nil, err
	}
	return &Manager{opts: opts, runs: runs}, nil
}

// Start creates and registers a new run. The caller still has to drive the
// first turn via Initialize.
func (m *Manager) Start(kind ScenarioKind, topic, context string) *Orchestrator {
	run := NewOrchestrator(Options{
		RunID:   uuid.NewString(),
		Kind:    kind,
		Topic:   topic,
		Context: context,
		Turns:   m.opts.Turns,
		Visuals: m.opts.Visuals,
		Archive: m.opts.Archive,
		Media:   m.opts.Media,
		Now:     m.opts.Now,
	})
	m.mu.Lock()
	m.runs.Add(run.RunID(), run)
	m.mu.Unlock()
	return run
}

// Get returns the live run for id, if any.
func (m *Manager) Get(id string) (*Orchestrator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs.Get(strings.TrimSpace(id))
}

// Remove drops a run from the registry.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	m.runs.Remove(strings.TrimSpace(id))
	m.mu.Unlock()
}

// Len reports the number of live runs.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs.Len()
}

// Wait blocks until background work of every live run has settled.
func (m *Manager) Wait() {
	m.mu.Lock()
	runs := m.runs.Values()
	m.mu.Unlock()
	for _, run := range runs {
		run.Wait()
	}
}
