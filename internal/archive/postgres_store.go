package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"simulearn/internal/sim"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore persists records in a single table with JSONB payloads.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) ensureSchema() error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS run_records (
  id TEXT PRIMARY KEY,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL,
  scenario_kind TEXT NOT NULL DEFAULT '',
  topic TEXT NOT NULL DEFAULT '',
  report JSONB NOT NULL,
  transcript JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_records_created_at ON run_records (created_at DESC);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Save(ctx context.Context, rec sim.SavedRecord) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return fmt.Errorf("record id is required")
	}
	report, err := json.Marshal(rec.Report)
	if err != nil {
		return err
	}
	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return err
	}
	// Records are immutable once written.
	_, err = s.db.ExecContext(ctx, `
INSERT INTO run_records (id, created_at, scenario_kind, topic, report, transcript)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO NOTHING`,
		id, rec.Timestamp, string(rec.ScenarioKind), rec.Topic, report, transcript)
	return err
}

func (s *PostgresStore) List(ctx context.Context) ([]sim.SavedRecord, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, created_at, scenario_kind, topic, report, transcript
FROM run_records ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]sim.SavedRecord, 0, 16)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (sim.SavedRecord, error) {
	if err := s.ensureSchema(); err != nil {
		return sim.SavedRecord{}, err
	}
	row := s.db.QueryRowContext(ctx, `
SELECT id, created_at, scenario_kind, topic, report, transcript
FROM run_records WHERE id = $1`, strings.TrimSpace(id))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return sim.SavedRecord{}, ErrNotFound
	}
	return rec, err
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM run_records WHERE id = $1`, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (sim.SavedRecord, error) {
	var rec sim.SavedRecord
	var kind string
	var report, transcript []byte
	if err := row.Scan(&rec.ID, &rec.Timestamp, &kind, &rec.Topic, &report, &transcript); err != nil {
		return sim.SavedRecord{}, err
	}
	rec.ScenarioKind = sim.ScenarioKind(kind)
	if err := json.Unmarshal(report, &rec.Report); err != nil {
		return sim.SavedRecord{}, err
	}
	if err := json.Unmarshal(transcript, &rec.Transcript); err != nil {
		return sim.SavedRecord{}, err
	}
	return rec, nil
}
