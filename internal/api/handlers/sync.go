package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fkoester/sevactual/internal/api/dto"
	syncengine "github.com/fkoester/sevactual/internal/sync"
)

// Runner is the sync surface the API triggers; *sync.Engine implements it.
type Runner interface {
	Run(ctx context.Context, opts syncengine.RunOptions) (*syncengine.Result, error)
}

// Job status values.
const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// SyncJob tracks one asynchronous sync triggered over the API.
type SyncJob struct {
	ID         string             `json:"id"`
	Status     string             `json:"status"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
	Result     *syncengine.Result `json:"result,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// SyncHandler starts sync jobs and reports their progress. Jobs run one
// at a time; a second trigger while one is running is rejected.
type SyncHandler struct {
	*Base
	runner Runner

	mu      sync.Mutex
	jobs    map[string]*SyncJob
	running bool
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(runner Runner) *SyncHandler {
	return &SyncHandler{
		Base:   NewBase(nil),
		runner: runner,
		jobs:   make(map[string]*SyncJob),
	}
}

type startSyncRequest struct {
	Reconcile bool `json:"reconcile"`
	DryRun    bool `json:"dry_run"`
}

// Start triggers an asynchronous full sync and returns the job ID.
func (h *SyncHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSyncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
			return
		}
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		h.WriteError(w, http.StatusConflict,
			dto.NewAPIError("sync_in_progress", "a sync is already running"))
		return
	}

	job := &SyncJob{
		ID:        uuid.NewString(),
		Status:    JobRunning,
		StartedAt: time.Now().UTC(),
	}
	h.jobs[job.ID] = job
	h.running = true
	// Snapshot before unlocking; runJob mutates the job under the lock
	snapshot := *job
	h.mu.Unlock()

	go h.runJob(job, syncengine.RunOptions{Reconcile: req.Reconcile, DryRun: req.DryRun})

	h.WriteJSON(w, http.StatusAccepted, snapshot)
}

func (h *SyncHandler) runJob(job *SyncJob, opts syncengine.RunOptions) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	result, err := h.runner.Run(ctx, opts)

	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now().UTC()
	job.FinishedAt = &now
	job.Result = result
	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
	} else {
		job.Status = JobCompleted
	}
	h.running = false
}

// Get returns the status of one job.
func (h *SyncHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	job, ok := h.jobs[chi.URLParam(r, "jobID")]
	var snapshot SyncJob
	if ok {
		snapshot = *job
	}
	h.mu.Unlock()

	if !ok {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("job"))
		return
	}
	h.WriteJSON(w, http.StatusOK, snapshot)
}
