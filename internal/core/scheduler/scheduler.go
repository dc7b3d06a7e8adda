package scheduler

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"list-scheduler/internal/core/domain"
)

// specParser accepts the standard 5-field cron format
// (minute hour day-of-month month day-of-week).
var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// RunRecorder persists run history for completed and failed invocations.
type RunRecorder interface {
	Record(ctx context.Context, run domain.JobRun) error
}

// EventNotifier announces job outcomes to an external sink.
type EventNotifier interface {
	JobFinished(ctx context.Context, run domain.JobRun) error
}

// job is one registry entry. Everything except the running guard is protected
// by the scheduler mutex; the guard is an atomic CAS so two trigger firings
// for the same job can never both enter the handler.
type job struct {
	name     string
	schedule string
	handler  domain.JobHandler
	opts     domain.JobOptions

	entryID cron.EntryID // zero when no live trigger is bound

	running   atomic.Bool
	lastRun   atomic.Pointer[time.Time]
	lastError atomic.Pointer[string]
	runCount  atomic.Int64
}

// Scheduler owns a registry of named cron-triggered jobs. It is constructed
// explicitly and passed to whatever needs it; there is no package-level
// instance.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*job
	cron    *cron.Cron
	started bool
	baseCtx context.Context

	recorder RunRecorder
	notifier EventNotifier
}

// NewScheduler creates an empty scheduler. Jobs are registered before Start;
// registration after Start is allowed but the new job only gets a trigger on
// the next Start.
func NewScheduler() *Scheduler {
	return &Scheduler{
		jobs:    make(map[string]*job),
		cron:    cron.New(),
		baseCtx: context.Background(),
	}
}

// SetRunRecorder attaches a run-history sink. Recording failures are logged
// and never affect job outcomes.
func (s *Scheduler) SetRunRecorder(recorder RunRecorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = recorder
}

// SetNotifier attaches an event sink for job completion and failure events.
func (s *Scheduler) SetNotifier(notifier EventNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = notifier
}

// Register adds a named job to the registry. Registering a name twice is a
// logged no-op: the first registration wins.
func (s *Scheduler) Register(name, schedule string, handler domain.JobHandler, opts *domain.JobOptions) error {
	if _, err := specParser.Parse(schedule); err != nil {
		return fmt.Errorf("%w: %q: %v", domain.ErrInvalidSchedule, schedule, err)
	}

	options := domain.DefaultJobOptions()
	if opts != nil {
		options = *opts
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		log.Printf("Job %s is already registered, ignoring duplicate registration", name)
		return nil
	}

	s.jobs[name] = &job{
		name:     name,
		schedule: schedule,
		handler:  handler,
		opts:     options,
	}

	log.Printf("Registered job %s (schedule: %s, enabled: %t, run on start: %t)",
		name, schedule, options.Enabled, options.RunOnStart)
	return nil
}

// Start binds a cron trigger for every enabled job and starts the dispatcher.
// Calling Start on a started scheduler is a no-op. Jobs with RunOnStart get
// one immediate asynchronous invocation that does not block Start.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		log.Printf("Scheduler already started, ignoring Start")
		return
	}
	s.baseCtx = ctx

	for _, j := range s.jobs {
		if !j.opts.Enabled {
			log.Printf("Job %s is disabled, skipping trigger", j.name)
			continue
		}
		if err := s.bindTriggerLocked(j); err != nil {
			// The schedule was validated at registration; a bind failure here
			// means the expression changed semantics between cron versions.
			log.Printf("Error binding trigger for job %s: %v", j.name, err)
			continue
		}
		if j.opts.RunOnStart {
			go s.runJob(ctx, j)
		}
	}

	s.cron.Start()
	s.started = true
	log.Printf("Scheduler started with %d registered jobs", len(s.jobs))
}

// Stop cancels every live trigger. Registry entries and run history survive;
// a later Start rebinds triggers. In-flight handler invocations are not
// interrupted and release their run guard when they finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	// Stop the dispatcher without waiting for in-flight runs: they complete
	// on their own and release their guard normally.
	s.cron.Stop()

	for _, j := range s.jobs {
		if j.entryID != 0 {
			s.cron.Remove(j.entryID)
			j.entryID = 0
		}
	}

	s.started = false
	log.Printf("Scheduler stopped, registry preserved")
}

// RunJob runs the named job immediately, subject to the skip-if-busy guard.
// It returns domain.ErrJobNotFound for unknown names and the handler's error
// on failure.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	s.mu.Lock()
	j, exists := s.jobs[name]
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, name)
	}

	return s.runJob(ctx, j)
}

// runJob performs one guarded invocation. Overlapping firings are dropped,
// not queued: a firing that finds the guard held returns immediately and the
// missed run is never compensated.
func (s *Scheduler) runJob(ctx context.Context, j *job) (err error) {
	if !j.running.CompareAndSwap(false, true) {
		log.Printf("Job %s is already running, skipping this firing", j.name)
		jobRunsSkipped.WithLabelValues(j.name).Inc()
		return nil
	}
	defer j.running.Store(false)

	startedAt := time.Now()
	jobsCurrentlyRunning.Inc()
	log.Printf("Running job %s", j.name)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
			log.Printf("Job %s panicked: %v\n%s", j.name, r, debug.Stack())
		}

		finishedAt := time.Now()
		jobsCurrentlyRunning.Dec()
		jobRunDuration.WithLabelValues(j.name).Observe(finishedAt.Sub(startedAt).Seconds())

		run := domain.JobRun{
			ID:         uuid.New().String(),
			JobName:    j.name,
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
		}

		if err != nil {
			message := err.Error()
			j.lastError.Store(&message)
			jobRunsTotal.WithLabelValues(j.name, "failed").Inc()
			run.Status = domain.RunFailed
			run.Error = message
			log.Printf("Job %s failed after %v: %v", j.name, finishedAt.Sub(startedAt), err)
		} else {
			j.lastRun.Store(&finishedAt)
			j.lastError.Store(nil)
			j.runCount.Add(1)
			jobRunsTotal.WithLabelValues(j.name, "completed").Inc()
			run.Status = domain.RunCompleted
			log.Printf("Job %s completed in %v", j.name, finishedAt.Sub(startedAt))
		}

		s.recordRun(run)
	}()

	return j.handler(ctx)
}

// recordRun persists and announces one finished run. Both sinks are best
// effort.
func (s *Scheduler) recordRun(run domain.JobRun) {
	s.mu.Lock()
	recorder := s.recorder
	notifier := s.notifier
	s.mu.Unlock()

	if recorder != nil {
		if err := recorder.Record(s.baseCtx, run); err != nil {
			log.Printf("Failed to record run for job %s: %v", run.JobName, err)
		}
	}
	if notifier != nil {
		if err := notifier.JobFinished(s.baseCtx, run); err != nil {
			log.Printf("Failed to notify run for job %s: %v", run.JobName, err)
		}
	}
}

// Status returns a snapshot for every registered job, sorted by name for
// stable output.
func (s *Scheduler) Status() []domain.JobStatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshots := make([]domain.JobStatusSnapshot, 0, len(s.jobs))
	for _, j := range s.jobs {
		snapshot := domain.JobStatusSnapshot{
			Name:      j.name,
			Schedule:  j.schedule,
			Enabled:   j.opts.Enabled,
			IsRunning: j.running.Load(),
			LastRun:   j.lastRun.Load(),
			RunCount:  j.runCount.Load(),
		}
		if message := j.lastError.Load(); message != nil {
			snapshot.LastError = *message
		}
		snapshots = append(snapshots, snapshot)
	}

	sort.Slice(snapshots, func(i, k int) bool {
		return snapshots[i].Name < snapshots[k].Name
	})
	return snapshots
}

// SetEnabled toggles a job's enabled flag. On a started scheduler it also
// binds or removes the live trigger to match. Run history and the running
// guard are untouched.
func (s *Scheduler) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, name)
	}

	if j.opts.Enabled == enabled {
		return nil
	}
	j.opts.Enabled = enabled

	if !s.started {
		return nil
	}

	if enabled {
		if err := s.bindTriggerLocked(j); err != nil {
			return fmt.Errorf("failed to bind trigger for job %s: %w", name, err)
		}
		log.Printf("Enabled job %s", name)
	} else {
		if j.entryID != 0 {
			s.cron.Remove(j.entryID)
			j.entryID = 0
		}
		log.Printf("Disabled job %s", name)
	}

	return nil
}

// bindTriggerLocked attaches a cron entry that fires the job. Callers hold
// the scheduler mutex.
func (s *Scheduler) bindTriggerLocked(j *job) error {
	entryID, err := s.cron.AddFunc(j.schedule, func() {
		// Each firing gets its own error boundary: a failing or panicking job
		// records lastError and never takes the dispatcher down.
		if err := s.runJob(s.baseCtx, j); err != nil {
			log.Printf("Scheduled run of job %s failed: %v", j.name, err)
		}
	})
	if err != nil {
		return err
	}
	j.entryID = entryID
	return nil
}
