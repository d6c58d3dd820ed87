package handler

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/sync/semaphore"

	"github.com/YuldShah/uptovipnew/internal/domain"
	"github.com/YuldShah/uptovipnew/internal/metrics"
	"github.com/YuldShah/uptovipnew/internal/validation"
)

// Orchestrator is the download core as seen by the HTTP layer.
type Orchestrator interface {
	ResolveAndDownload(ctx context.Context, req domain.DownloadRequest) domain.DownloadResult
	ListFormats(ctx context.Context, rawURL string) iter.Seq2[domain.FormatDescriptor, error]
	Invalidate(ctx context.Context, fp domain.Fingerprint) error
}

// DownloadHandler serves synchronous downloads and format listings.
type DownloadHandler struct {
	orch     Orchestrator
	inflight *semaphore.Weighted
	logger   *slog.Logger
}

// NewDownloadHandler creates a handler allowing at most maxInflight
// synchronous downloads at once.
func NewDownloadHandler(orch Orchestrator, maxInflight int64, logger *slog.Logger) *DownloadHandler {
	if maxInflight <= 0 {
		maxInflight = 16
	}
	return &DownloadHandler{
		orch:     orch,
		inflight: semaphore.NewWeighted(maxInflight),
		logger:   logger,
	}
}

// DownloadPayload is the JSON body for downloads and jobs.
type DownloadPayload struct {
	URL      string `json:"url" validate:"required,safe_url"`
	UserID   int64  `json:"user_id" validate:"required"`
	Quality  string `json:"quality,omitempty" validate:"omitempty,oneof=high medium low audio custom"`
	Format   string `json:"format,omitempty" validate:"omitempty,oneof=video audio document"`
	FormatID string `json:"format_id,omitempty" validate:"required_if=Quality custom"`
	Platform string `json:"platform,omitempty"`
	Force    bool   `json:"force,omitempty"`
}

// Request converts the payload into a domain request.
func (p DownloadPayload) Request() domain.DownloadRequest {
	return domain.DownloadRequest{
		SourceURL:    p.URL,
		Quality:      domain.Quality(p.Quality),
		Format:       domain.OutputFormat(p.Format),
		UserID:       p.UserID,
		PlatformHint: domain.PlatformID(p.Platform),
		FormatID:     p.FormatID,
		Force:        p.Force,
	}
}

func decodePayload(r *http.Request) (DownloadPayload, error) {
	var p DownloadPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		return p, errInvalidBody
	}
	if err := validation.Struct(p); err != nil {
		return p, err
	}
	return p, nil
}

// Download handles POST /api/v1/downloads and blocks until the artifact is
// published or the request fails.
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.inflight.Acquire(r.Context(), 1); err != nil {
		metrics.HTTPRejected.WithLabelValues("inflight_wait_cancelled").Inc()
		writeError(w, http.StatusServiceUnavailable, "server busy")
		return
	}
	defer h.inflight.Release(1)

	result := h.orch.ResolveAndDownload(r.Context(), payload.Request())
	writeJSON(w, statusForKind(result.FailureKind), result)
}

// FormatsResponse lists the formats offered for a URL.
type FormatsResponse struct {
	URL     string                    `json:"url"`
	Formats []domain.FormatDescriptor `json:"formats"`
}

// maxFormats caps a single listing response.
const maxFormats = 200

// Formats handles GET /api/v1/formats?url=...&limit=...
func (h *DownloadHandler) Formats(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if err := validation.URL(rawURL); err != nil {
		writeDomainError(w, err)
		return
	}

	limit := maxFormats
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed < maxFormats {
			limit = parsed
		}
	}

	resp := FormatsResponse{URL: rawURL, Formats: []domain.FormatDescriptor{}}
	for f, err := range h.orch.ListFormats(r.Context(), rawURL) {
		if err != nil {
			h.logger.Warn("format listing failed", "url", rawURL, "error", err)
			writeDomainError(w, err)
			return
		}
		resp.Formats = append(resp.Formats, f)
		if len(resp.Formats) >= limit {
			break
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
