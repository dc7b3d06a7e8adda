package http

import (
	"time"

	"list-scheduler/internal/core/domain"
)

// JobResponse is the API response model for job status snapshots.
type JobResponse struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Enabled   bool       `json:"enabled"`
	IsRunning bool       `json:"is_running"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	RunCount  int64      `json:"run_count"`
}

// ToJobResponse converts a domain snapshot to its API representation.
func ToJobResponse(snapshot domain.JobStatusSnapshot) JobResponse {
	return JobResponse{
		Name:      snapshot.Name,
		Schedule:  snapshot.Schedule,
		Enabled:   snapshot.Enabled,
		IsRunning: snapshot.IsRunning,
		LastRun:   snapshot.LastRun,
		LastError: snapshot.LastError,
		RunCount:  snapshot.RunCount,
	}
}

// ToJobResponseList converts a slice of snapshots.
func ToJobResponseList(snapshots []domain.JobStatusSnapshot) []JobResponse {
	responses := make([]JobResponse, len(snapshots))
	for i, snapshot := range snapshots {
		responses[i] = ToJobResponse(snapshot)
	}
	return responses
}

// RunResponse is the API response model for one recorded job run.
type RunResponse struct {
	ID         string    `json:"id"`
	JobName    string    `json:"job_name"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// ToRunResponseList converts recorded runs to their API representation.
func ToRunResponseList(runs []domain.JobRun) []RunResponse {
	responses := make([]RunResponse, len(runs))
	for i, run := range runs {
		responses[i] = RunResponse{
			ID:         run.ID,
			JobName:    run.JobName,
			Status:     string(run.Status),
			StartedAt:  run.StartedAt,
			FinishedAt: run.FinishedAt,
			Error:      run.Error,
		}
	}
	return responses
}
