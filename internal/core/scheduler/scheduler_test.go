package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"list-scheduler/internal/core/domain"
)

func noopHandler(ctx context.Context) error {
	return nil
}

func findSnapshot(t *testing.T, snapshots []domain.JobStatusSnapshot, name string) domain.JobStatusSnapshot {
	t.Helper()
	for _, snapshot := range snapshots {
		if snapshot.Name == name {
			return snapshot
		}
	}
	t.Fatalf("no snapshot for job %s", name)
	return domain.JobStatusSnapshot{}
}

func TestRegisterValidatesSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{name: "Valid every 10 minutes", schedule: "*/10 * * * *", wantErr: false},
		{name: "Valid hourly", schedule: "0 * * * *", wantErr: false},
		{name: "Valid weekdays at 9am", schedule: "0 9 * * MON-FRI", wantErr: false},
		{name: "Invalid expression", schedule: "not-a-schedule", wantErr: true},
		{name: "Invalid 6-field cron (with seconds)", schedule: "0 */10 * * * *", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler()
			err := s.Register("job", tt.schedule, noopHandler, nil)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidSchedule) {
					t.Errorf("Register() = %v, want ErrInvalidSchedule", err)
				}
			} else if err != nil {
				t.Errorf("Register() unexpected error: %v", err)
			}
		})
	}
}

func TestRegisterDuplicateIsNoOp(t *testing.T) {
	s := NewScheduler()

	first := 0
	second := 0
	if err := s.Register("sync-watchlist", "0 * * * *", func(ctx context.Context) error {
		first++
		return nil
	}, nil); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}
	if err := s.Register("sync-watchlist", "*/5 * * * *", func(ctx context.Context) error {
		second++
		return nil
	}, nil); err != nil {
		t.Fatalf("Register() duplicate returned error: %v", err)
	}

	if err := s.RunJob(context.Background(), "sync-watchlist"); err != nil {
		t.Fatalf("RunJob() unexpected error: %v", err)
	}

	if first != 1 || second != 0 {
		t.Errorf("duplicate registration overrode the original handler (first=%d, second=%d)", first, second)
	}

	snapshot := findSnapshot(t, s.Status(), "sync-watchlist")
	if snapshot.Schedule != "0 * * * *" {
		t.Errorf("schedule = %q, want the first registration's %q", snapshot.Schedule, "0 * * * *")
	}
}

func TestRunJobNotFound(t *testing.T) {
	s := NewScheduler()

	err := s.RunJob(context.Background(), "missing")
	if !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("RunJob() = %v, want ErrJobNotFound", err)
	}
}

func TestRunJobSuccessUpdatesState(t *testing.T) {
	s := NewScheduler()
	if err := s.Register("sync-lists", "0 * * * *", noopHandler, nil); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	before := time.Now()
	if err := s.RunJob(context.Background(), "sync-lists"); err != nil {
		t.Fatalf("RunJob() unexpected error: %v", err)
	}

	snapshot := findSnapshot(t, s.Status(), "sync-lists")
	if snapshot.RunCount != 1 {
		t.Errorf("RunCount = %d, want 1", snapshot.RunCount)
	}
	if snapshot.LastError != "" {
		t.Errorf("LastError = %q, want empty", snapshot.LastError)
	}
	if snapshot.LastRun == nil || snapshot.LastRun.Before(before) {
		t.Errorf("LastRun = %v, want at or after %v", snapshot.LastRun, before)
	}
	if snapshot.IsRunning {
		t.Error("IsRunning = true after the run returned")
	}
}

func TestRunJobFailureRecordsError(t *testing.T) {
	s := NewScheduler()
	handlerErr := errors.New("upstream returned status 502")
	if err := s.Register("sync-lists", "0 * * * *", func(ctx context.Context) error {
		return handlerErr
	}, nil); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	if err := s.RunJob(context.Background(), "sync-lists"); !errors.Is(err, handlerErr) {
		t.Errorf("RunJob() = %v, want handler error", err)
	}

	snapshot := findSnapshot(t, s.Status(), "sync-lists")
	if snapshot.RunCount != 0 {
		t.Errorf("RunCount = %d after failure, want 0", snapshot.RunCount)
	}
	if snapshot.LastError != handlerErr.Error() {
		t.Errorf("LastError = %q, want %q", snapshot.LastError, handlerErr.Error())
	}
	if snapshot.IsRunning {
		t.Error("IsRunning = true after a failed run returned")
	}

	// A later success clears the recorded error.
	s2 := NewScheduler()
	fail := true
	if err := s2.Register("sync-lists", "0 * * * *", func(ctx context.Context) error {
		if fail {
			return handlerErr
		}
		return nil
	}, nil); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}
	_ = s2.RunJob(context.Background(), "sync-lists")
	fail = false
	if err := s2.RunJob(context.Background(), "sync-lists"); err != nil {
		t.Fatalf("RunJob() unexpected error: %v", err)
	}
	snapshot = findSnapshot(t, s2.Status(), "sync-lists")
	if snapshot.LastError != "" {
		t.Errorf("LastError = %q after success, want cleared", snapshot.LastError)
	}
}

func TestRunJobSkipsOverlappingRuns(t *testing.T) {
	s := NewScheduler()

	started := make(chan struct{})
	release := make(chan struct{})
	var invocations atomic.Int32

	if err := s.Register("sync-watchlist", "* * * * *", func(ctx context.Context) error {
		invocations.Add(1)
		close(started)
		<-release
		return nil
	}, nil); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.RunJob(context.Background(), "sync-watchlist"); err != nil {
			t.Errorf("RunJob() unexpected error: %v", err)
		}
	}()

	<-started

	snapshot := findSnapshot(t, s.Status(), "sync-watchlist")
	if !snapshot.IsRunning {
		t.Error("IsRunning = false while the handler is in flight")
	}

	// Second firing while the first is in flight: skipped, handler not
	// invoked again.
	if err := s.RunJob(context.Background(), "sync-watchlist"); err != nil {
		t.Errorf("RunJob() overlap returned error: %v", err)
	}
	if got := invocations.Load(); got != 1 {
		t.Errorf("handler invoked %d times during overlap, want 1", got)
	}

	close(release)
	wg.Wait()

	snapshot = findSnapshot(t, s.Status(), "sync-watchlist")
	if snapshot.IsRunning {
		t.Error("IsRunning = true after both attempts returned")
	}
	if snapshot.RunCount != 1 {
		t.Errorf("RunCount = %d, want 1 (skipped firing must not count)", snapshot.RunCount)
	}
}

func TestRunJobRecoversFromPanic(t *testing.T) {
	s := NewScheduler()
	if err := s.Register("sync-lists", "0 * * * *", func(ctx context.Context) error {
		panic("nil map write in handler")
	}, nil); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	err := s.RunJob(context.Background(), "sync-lists")
	if err == nil {
		t.Fatal("RunJob() expected error from panicking handler, got nil")
	}

	snapshot := findSnapshot(t, s.Status(), "sync-lists")
	if snapshot.IsRunning {
		t.Error("IsRunning = true after panic, guard leaked")
	}
	if snapshot.LastError == "" {
		t.Error("LastError empty after panic")
	}
}

func TestSetEnabled(t *testing.T) {
	s := NewScheduler()
	var invocations atomic.Int32
	if err := s.Register("sync-lists", "0 * * * *", func(ctx context.Context) error {
		invocations.Add(1)
		return nil
	}, nil); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	if err := s.SetEnabled("missing", true); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("SetEnabled() = %v, want ErrJobNotFound", err)
	}

	// Build up some history, then disable and re-enable.
	_ = s.RunJob(context.Background(), "sync-lists")

	if err := s.SetEnabled("sync-lists", false); err != nil {
		t.Fatalf("SetEnabled(false) unexpected error: %v", err)
	}
	snapshot := findSnapshot(t, s.Status(), "sync-lists")
	if snapshot.Enabled {
		t.Error("Enabled = true after disable")
	}
	if snapshot.RunCount != 1 {
		t.Errorf("RunCount = %d after disable, want history preserved", snapshot.RunCount)
	}

	if err := s.SetEnabled("sync-lists", true); err != nil {
		t.Fatalf("SetEnabled(true) unexpected error: %v", err)
	}
	snapshot = findSnapshot(t, s.Status(), "sync-lists")
	if !snapshot.Enabled {
		t.Error("Enabled = false after enable")
	}
	if snapshot.RunCount != 1 {
		t.Errorf("RunCount = %d after enable, want history preserved", snapshot.RunCount)
	}
}

func TestStartRunOnStartAndDisabledJobs(t *testing.T) {
	s := NewScheduler()

	ran := make(chan string, 2)
	if err := s.Register("eager", "0 0 * * *", func(ctx context.Context) error {
		ran <- "eager"
		return nil
	}, &domain.JobOptions{RunOnStart: true, Enabled: true}); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}
	if err := s.Register("dormant", "0 0 * * *", func(ctx context.Context) error {
		ran <- "dormant"
		return nil
	}, &domain.JobOptions{RunOnStart: true, Enabled: false}); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	defer s.Stop()

	select {
	case name := <-ran:
		if name != "eager" {
			t.Errorf("unexpected job ran on start: %s", name)
		}
	case <-time.After(time.Second):
		t.Fatal("RunOnStart job did not run after Start")
	}

	// The disabled job stays registered but must not run, even with
	// RunOnStart set.
	select {
	case name := <-ran:
		t.Errorf("disabled job %s ran on start", name)
	case <-time.After(50 * time.Millisecond):
	}

	snapshot := findSnapshot(t, s.Status(), "dormant")
	if snapshot.Enabled {
		t.Error("disabled job reported as enabled")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	s := NewScheduler()
	var invocations atomic.Int32
	if err := s.Register("eager", "0 0 * * *", func(ctx context.Context) error {
		invocations.Add(1)
		return nil
	}, &domain.JobOptions{RunOnStart: true, Enabled: true}); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop()
	s.Start(ctx)

	// Only the first Start schedules the RunOnStart invocation.
	time.Sleep(100 * time.Millisecond)
	if got := invocations.Load(); got != 1 {
		t.Errorf("RunOnStart handler invoked %d times after double Start, want 1", got)
	}
}

func TestStopPreservesHistory(t *testing.T) {
	s := NewScheduler()
	if err := s.Register("sync-lists", "0 * * * *", noopHandler, nil); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	s.Start(context.Background())
	if err := s.RunJob(context.Background(), "sync-lists"); err != nil {
		t.Fatalf("RunJob() unexpected error: %v", err)
	}
	s.Stop()

	snapshot := findSnapshot(t, s.Status(), "sync-lists")
	if snapshot.RunCount != 1 || snapshot.LastRun == nil {
		t.Errorf("run history lost across Stop: %+v", snapshot)
	}

	// Registry survives a stop/start cycle.
	s.Start(context.Background())
	defer s.Stop()
	if err := s.RunJob(context.Background(), "sync-lists"); err != nil {
		t.Fatalf("RunJob() after restart unexpected error: %v", err)
	}
	snapshot = findSnapshot(t, s.Status(), "sync-lists")
	if snapshot.RunCount != 2 {
		t.Errorf("RunCount = %d after restart, want 2", snapshot.RunCount)
	}
}

type capturingRecorder struct {
	mu   sync.Mutex
	runs []domain.JobRun
}

func (r *capturingRecorder) Record(ctx context.Context, run domain.JobRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

func TestRunRecorderReceivesOutcomes(t *testing.T) {
	s := NewScheduler()
	recorder := &capturingRecorder{}
	s.SetRunRecorder(recorder)

	fail := false
	if err := s.Register("sync-lists", "0 * * * *", func(ctx context.Context) error {
		if fail {
			return errors.New("catalog unavailable")
		}
		return nil
	}, nil); err != nil {
		t.Fatalf("Register() unexpected error: %v", err)
	}

	_ = s.RunJob(context.Background(), "sync-lists")
	fail = true
	_ = s.RunJob(context.Background(), "sync-lists")

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.runs) != 2 {
		t.Fatalf("recorded %d runs, want 2", len(recorder.runs))
	}
	if recorder.runs[0].Status != domain.RunCompleted {
		t.Errorf("first run status = %s, want completed", recorder.runs[0].Status)
	}
	if recorder.runs[1].Status != domain.RunFailed || recorder.runs[1].Error == "" {
		t.Errorf("second run = %+v, want failed with error", recorder.runs[1])
	}
	for _, run := range recorder.runs {
		if run.ID == "" || run.JobName != "sync-lists" {
			t.Errorf("run record incomplete: %+v", run)
		}
	}
}
