package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/YuldShah/uptovipnew/internal/domain"
	"github.com/YuldShah/uptovipnew/internal/repository"
)

// JobHandler queues downloads for the worker pool.
type JobHandler struct {
	jobs       repository.JobRepository
	maxRetries int
	logger     *slog.Logger
}

// NewJobHandler creates a job handler. maxRetries bounds queue-level
// attempts for transient failures.
func NewJobHandler(jobs repository.JobRepository, maxRetries int, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		jobs:       jobs,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// JobResponse represents a job in API responses.
type JobResponse struct {
	JobID     string                 `json:"job_id"`
	Status    string                 `json:"status"`
	URL       string                 `json:"url"`
	Attempts  int                    `json:"attempts"`
	Error     string                 `json:"error,omitempty"`
	Result    *domain.DownloadResult `json:"result,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func jobResponse(job *domain.Job) JobResponse {
	return JobResponse{
		JobID:     string(job.ID),
		Status:    string(job.Status),
		URL:       job.Request.SourceURL,
		Attempts:  job.Attempts,
		Error:     job.LastError,
		Result:    job.Result,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

// Submit handles POST /api/v1/jobs
func (h *JobHandler) Submit(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	job := domain.NewJob(domain.JobID(uuid.NewString()), payload.Request(), h.maxRetries)
	if err := h.jobs.Enqueue(r.Context(), job); err != nil {
		h.logger.Error("enqueue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to queue job")
		return
	}

	h.logger.Info("job queued", "job_id", job.ID, "url", payload.URL, "user_id", payload.UserID)
	writeJSON(w, http.StatusAccepted, jobResponse(job))
}

// Get handles GET /api/v1/jobs/{jobID}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := domain.JobID(chi.URLParam(r, "jobID"))

	job, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(job))
}
