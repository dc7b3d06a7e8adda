package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"list-scheduler/internal/core/domain"
)

// PostgresRunRepository persists job run history in PostgreSQL. The schema is
// created by the credential repository's migrations.
type PostgresRunRepository struct {
	db *sql.DB
}

func NewPostgresRunRepository(connStr string) (*PostgresRunRepository, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresRunRepository{db: db}, nil
}

func (r *PostgresRunRepository) Record(ctx context.Context, run domain.JobRun) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO job_runs (id, job_name, status, started_at, finished_at, error)
VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.JobName, string(run.Status), run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Error)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// ListRecent returns up to limit runs for the named job, newest first.
func (r *PostgresRunRepository) ListRecent(ctx context.Context, jobName string, limit int) ([]domain.JobRun, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, job_name, status, started_at, finished_at, error
FROM job_runs WHERE job_name = $1
ORDER BY started_at DESC LIMIT $2`, jobName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs for %s: %w", jobName, err)
	}
	defer rows.Close()

	var runs []domain.JobRun
	for rows.Next() {
		var run domain.JobRun
		var status string
		if err := rows.Scan(&run.ID, &run.JobName, &status, &run.StartedAt, &run.FinishedAt, &run.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		run.Status = domain.JobRunStatus(status)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *PostgresRunRepository) Close() error {
	return r.db.Close()
}
