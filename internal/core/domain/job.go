package domain

import (
	"context"
	"time"
)

// JobHandler is the unit of work bound to a scheduled job. Handlers receive a
// context that is cancelled on shutdown and report failure through the
// returned error.
type JobHandler func(ctx context.Context) error

// JobOptions control how a registered job is scheduled.
type JobOptions struct {
	// RunOnStart schedules one immediate invocation when the scheduler starts,
	// in addition to the cron trigger.
	RunOnStart bool

	// Enabled controls whether a cron trigger is bound for the job. Disabled
	// jobs stay registered and can be enabled later.
	Enabled bool
}

// DefaultJobOptions returns the options applied when a caller supplies none.
func DefaultJobOptions() JobOptions {
	return JobOptions{RunOnStart: false, Enabled: true}
}

// JobStatusSnapshot is an immutable projection of a registered job's state,
// used for status reporting. It is derived on demand and never persisted.
type JobStatusSnapshot struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Enabled   bool       `json:"enabled"`
	IsRunning bool       `json:"is_running"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	RunCount  int64      `json:"run_count"`
}

// JobRunStatus describes the outcome of a single job invocation.
type JobRunStatus string

const (
	RunCompleted JobRunStatus = "completed"
	RunFailed    JobRunStatus = "failed"
)

// JobRun is one recorded invocation of a job, persisted for run history.
type JobRun struct {
	ID         string       `json:"id"`
	JobName    string       `json:"job_name"`
	Status     JobRunStatus `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Error      string       `json:"error,omitempty"`
}
