package storage

import (
	"context"
	"sort"
	"sync"

	"list-scheduler/internal/core/domain"
)

// MemoryCredentialRepository keeps credential records in memory. Used in
// tests and for throwaway deployments without persistence.
type MemoryCredentialRepository struct {
	creds map[string]domain.Credentials
	mu    sync.RWMutex
}

func NewMemoryCredentialRepository() *MemoryCredentialRepository {
	return &MemoryCredentialRepository{
		creds: make(map[string]domain.Credentials),
	}
}

func (r *MemoryCredentialRepository) Get(ctx context.Context, integration string) (domain.Credentials, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	creds, exists := r.creds[integration]
	if !exists {
		return domain.Credentials{}, domain.ErrNotConnected
	}
	return creds, nil
}

func (r *MemoryCredentialRepository) Save(ctx context.Context, creds domain.Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.creds[creds.Integration] = creds
	return nil
}

func (r *MemoryCredentialRepository) Delete(ctx context.Context, integration string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.creds[integration]; !exists {
		return domain.ErrNotConnected
	}
	delete(r.creds, integration)
	return nil
}

// MemoryRunRepository keeps job run history in memory.
type MemoryRunRepository struct {
	runs []domain.JobRun
	mu   sync.RWMutex
}

func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{}
}

func (r *MemoryRunRepository) Record(ctx context.Context, run domain.JobRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs = append(r.runs, run)
	return nil
}

// ListRecent returns up to limit runs for the named job, newest first.
func (r *MemoryRunRepository) ListRecent(ctx context.Context, jobName string, limit int) ([]domain.JobRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]domain.JobRun, 0, limit)
	for _, run := range r.runs {
		if run.JobName == jobName {
			runs = append(runs, run)
		}
	}

	sort.Slice(runs, func(i, k int) bool {
		return runs[i].StartedAt.After(runs[k].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
