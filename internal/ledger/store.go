package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped on schema changes; old databases are cleared, not
// migrated, since the ledger is advisory history.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by a different schema
// version.
var ErrSchemaMismatch = errors.New("ledger schema version mismatch")

// Outcome labels for an attempt row.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Attempt is one recorded upload attempt.
type Attempt struct {
	ID            int64
	CorrelationID string
	BootSession   uint32
	FilePath      string
	Bytes         int64
	Outcome       string
	Detail        string
	AttemptedAt   time.Time
}

// Store manages the attempt history database.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the ledger database at path, creating the schema when
// absent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx,
		"SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// RecordAttempt appends one attempt row.
func (s *Store) RecordAttempt(ctx context.Context, attempt Attempt) error {
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO upload_attempts (
            correlation_id, boot_session, file_path, bytes, outcome, detail, attempted_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		attempt.CorrelationID,
		attempt.BootSession,
		attempt.FilePath,
		attempt.Bytes,
		attempt.Outcome,
		nullableString(attempt.Detail),
		attempt.AttemptedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// RecentAttempts returns up to limit attempts, newest first.
func (s *Store) RecentAttempts(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, correlation_id, boot_session, file_path, bytes, outcome, detail, attempted_at
         FROM upload_attempts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var detail sql.NullString
		var attemptedAt string
		if err := rows.Scan(&a.ID, &a.CorrelationID, &a.BootSession, &a.FilePath,
			&a.Bytes, &a.Outcome, &detail, &attemptedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Detail = detail.String
		if t, err := time.Parse(time.RFC3339Nano, attemptedAt); err == nil {
			a.AttemptedAt = t
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Stats summarizes the ledger.
type Stats struct {
	Total     int
	Successes int
	Failures  int
}

// Stats counts attempts by outcome.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT outcome, COUNT(1) FROM upload_attempts GROUP BY outcome")
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		stats.Total += count
		switch outcome {
		case OutcomeSuccess:
			stats.Successes = count
		case OutcomeFailure:
			stats.Failures = count
		}
	}
	return stats, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
