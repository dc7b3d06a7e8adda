package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"list-scheduler/internal/core/domain"
)

const defaultRunHistoryLimit = 20

// JobController is the scheduler surface the handlers drive.
type JobController interface {
	Status() []domain.JobStatusSnapshot
	RunJob(ctx context.Context, name string) error
	SetEnabled(name string, enabled bool) error
}

// RunHistory lists recorded runs for a job.
type RunHistory interface {
	ListRecent(ctx context.Context, jobName string, limit int) ([]domain.JobRun, error)
}

type JobHandler struct {
	scheduler JobController
	history   RunHistory
}

func NewJobHandler(scheduler JobController, history RunHistory) *JobHandler {
	return &JobHandler{
		scheduler: scheduler,
		history:   history,
	}
}

// GetAllJobs returns a status snapshot for every registered job.
func (h *JobHandler) GetAllJobs(w http.ResponseWriter, r *http.Request) {
	snapshots := h.scheduler.Status()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ToJobResponseList(snapshots))
}

// GetJob returns the status snapshot of a single job.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	for _, snapshot := range h.scheduler.Status() {
		if snapshot.Name == name {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(ToJobResponse(snapshot))
			return
		}
	}

	errorJobNotFound(w, name)
}

// RunJob triggers an immediate run of the named job. The run happens in the
// background; the response only acknowledges the trigger. A job that is
// already running answers 409 and nothing is queued.
func (h *JobHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	found := false
	for _, snapshot := range h.scheduler.Status() {
		if snapshot.Name == name {
			found = true
			if snapshot.IsRunning {
				errorJobBusy(w, name)
				return
			}
			break
		}
	}
	if !found {
		errorJobNotFound(w, name)
		return
	}

	go func() {
		if err := h.scheduler.RunJob(context.Background(), name); err != nil {
			log.Printf("Triggered run of job %s failed: %v", name, err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

// EnableJob re-enables scheduled runs of the named job.
func (h *JobHandler) EnableJob(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// DisableJob stops scheduled runs of the named job. The job stays registered
// and keeps its run history.
func (h *JobHandler) DisableJob(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *JobHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	name := mux.Vars(r)["name"]

	if err := h.scheduler.SetEnabled(name, enabled); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			errorJobNotFound(w, name)
			return
		}
		log.Printf("Failed to set job %s enabled=%t: %v", name, enabled, err)
		errorInternalServer(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetJobRuns returns the most recent recorded runs of the named job.
func (h *JobHandler) GetJobRuns(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	limit := defaultRunHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.history.ListRecent(r.Context(), name, limit)
	if err != nil {
		log.Printf("Failed to list runs for job %s: %v", name, err)
		errorInternalServer(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ToRunResponseList(runs))
}

// Healthz reports process liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
