package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"list-scheduler/internal/core/domain"
)

// SQLiteRunRepository persists job run history in SQLite.
type SQLiteRunRepository struct {
	db *sql.DB
}

func NewSQLiteRunRepository(dbPath string) (*SQLiteRunRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	repo := &SQLiteRunRepository{db: db}
	if err := repo.initSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRunRepository) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS job_runs (
    id TEXT PRIMARY KEY,
    job_name TEXT NOT NULL,
    status TEXT NOT NULL,
    started_at DATETIME NOT NULL,
    finished_at DATETIME NOT NULL,
    error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_job_runs_job_name ON job_runs(job_name);
CREATE INDEX IF NOT EXISTS idx_job_runs_started_at ON job_runs(started_at);
`
	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLiteRunRepository) Record(ctx context.Context, run domain.JobRun) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO job_runs (id, job_name, status, started_at, finished_at, error)
VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.JobName, string(run.Status), run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Error)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// ListRecent returns up to limit runs for the named job, newest first.
func (r *SQLiteRunRepository) ListRecent(ctx context.Context, jobName string, limit int) ([]domain.JobRun, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, job_name, status, started_at, finished_at, error
FROM job_runs WHERE job_name = ?
ORDER BY started_at DESC LIMIT ?`, jobName, limit)
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

func (r *SQLiteRunRepository) Close() error {
	return r.db.Close()
}
