package sim

import (
	"context"
	"strconv"
	"time"
)

// SavedRecord is the archived result of one completed run: the evaluation
// report plus a copy of the transcript at end-of-run. Created at most once
// per run and never mutated afterwards.
type SavedRecord struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	ScenarioKind ScenarioKind   `json:"scenario_kind"`
	Topic        string         `json:"topic"`
	Report       AnalysisReport `json:"report"`
	Transcript   []Message      `json:"transcript"`
}

// ArchiveSaver receives the completed-run record. Implemented by the
// archive stores.
type ArchiveSaver interface {
	Save(ctx context.Context, rec SavedRecord) error
}

// MediaStore receives generated image bytes; the orchestrator keeps only
// the resulting reference.
type MediaStore interface {
	Put(ctx context.Context, runID, name string, content []byte) error
	URL(ctx context.Context, runID, name string) (string, error)
}

// newRecordID derives a unique record id from the given time.
func newRecordID(now time.Time) string {
	return strconv.FormatInt(now.UTC().UnixNano(), 10)
}
