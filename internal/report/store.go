package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Store manages moderation reports in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a report store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create validates and inserts a report. The capture context is marshalled
// to JSONB and the review status starts as pending.
func (s *Store) Create(ctx context.Context, r *Report) error {
	r.Normalize()
	if err := r.Validate(); err != nil {
		return err
	}

	contextJSON, err := json.Marshal(r.Context)
	if err != nil {
		return fmt.Errorf("report: marshal context: %w", err)
	}

	const query = `
		INSERT INTO reports (reporter, reported, reason, description, category, context, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.db.ExecContext(ctx, query,
		r.Reporter,
		r.Reported,
		r.Reason,
		r.Description,
		r.Category,
		contextJSON,
		StatusPending,
	)
	if err != nil {
		return fmt.Errorf("report: insert: %w", err)
	}
	return nil
}

// CountRecent returns the number of reports filed against an identity within
// the given time window. Used by the auto-ban logic.
func (s *Store) CountRecent(ctx context.Context, reported string, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM reports
		WHERE reported = $1
		  AND created_at >= NOW() - $2::interval`

	var count int
	err := s.db.QueryRowContext(ctx, query, reported, window.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("report: count recent: %w", err)
	}
	return count, nil
}
