package database

import (
	"context"
	"fmt"

	"github.com/itstheanurag/judgexec/internal/records"
)

const schema = `
CREATE TABLE IF NOT EXISTS run_records (
	id                TEXT PRIMARY KEY,
	language          TEXT NOT NULL,
	mode              TEXT NOT NULL,
	status            TEXT NOT NULL,
	passed            INTEGER NOT NULL,
	total             INTEGER NOT NULL,
	runtime_ms        BIGINT NOT NULL,
	compilation_error TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL
)`

const insertRecord = `
INSERT INTO run_records
	(id, language, mode, status, passed, total, runtime_ms, compilation_error, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`

// Store persists run records in Postgres.
type Store struct {
	db *Database
}

func NewStore(db *Database) *Store {
	return &Store{db: db}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create run_records table: %w", err)
	}
	return nil
}

func (s *Store) Name() string {
	return "postgres"
}

func (s *Store) Save(ctx context.Context, rec *records.Record) error {
	_, err := s.db.Pool.Exec(ctx, insertRecord, recordArgs(rec)...)
	if err != nil {
		return fmt.Errorf("failed to insert run record %s: %w", rec.ID, err)
	}
	return nil
}

func recordArgs(rec *records.Record) []any {
	return []any{
		rec.ID,
		rec.Language,
		rec.Mode,
		rec.Status,
		rec.Passed,
		rec.Total,
		rec.RuntimeMs,
		rec.CompilationError,
		rec.CreatedAt,
	}
}

var _ records.Sink = (*Store)(nil)
