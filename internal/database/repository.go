package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/contribution-proof/internal/errors"
)

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

const runColumns = `id, dlp_id, score, valid, family_size, digest, response, source, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*ProofRun, error) {
	var run ProofRun
	var response string
	if err := row.Scan(
		&run.ID, &run.DLPID, &run.Score, &run.Valid, &run.FamilySize,
		&run.Digest, &response, &run.Source, &run.CreatedAt,
	); err != nil {
		return nil, err
	}
	run.Response = []byte(response)
	return &run, nil
}

// SaveRun inserts a proof run
func (r *Repository) SaveRun(ctx context.Context, run *ProofRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO proof_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.DLPID, run.Score, run.Valid, run.FamilySize,
		run.Digest, string(run.Response), run.Source, run.CreatedAt.UTC())

	if err != nil {
		return fmt.Errorf("failed to save proof run: %w", err)
	}
	return nil
}

// GetRun returns a proof run by ID
func (r *Repository) GetRun(ctx context.Context, id string) (*ProofRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM proof_runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("proof run", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proof run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*ProofRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM proof_runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list proof runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*ProofRun, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proof run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list proof runs: %w", err)
	}
	return runs, nil
}

// Stats aggregates the recorded history
func (r *Repository) Stats(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{BySource: make(map[string]int)}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN valid THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(score), 0)
		FROM proof_runs
	`).Scan(&stats.Total, &stats.Valid, &stats.AverageScore)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate proof runs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT source, COUNT(*) FROM proof_runs GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to count proof runs by source: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("failed to scan source count: %w", err)
		}
		stats.BySource[source] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count proof runs by source: %w", err)
	}

	return stats, nil
}

// PurgeOlderThan deletes runs created before cutoff and returns how many were removed
func (r *Repository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM proof_runs WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge proof runs: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged proof runs: %w", err)
	}
	return removed, nil
}
