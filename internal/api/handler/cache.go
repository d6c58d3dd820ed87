package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// Evicter removes stale cache entries on demand.
type Evicter interface {
	Evict(ctx context.Context) (int, error)
}

// CacheHandler exposes cache maintenance.
type CacheHandler struct {
	orch   Orchestrator
	cache  Evicter
	logger *slog.Logger
}

// NewCacheHandler creates a cache handler.
func NewCacheHandler(orch Orchestrator, cache Evicter, logger *slog.Logger) *CacheHandler {
	return &CacheHandler{orch: orch, cache: cache, logger: logger}
}

// Invalidate handles DELETE /api/v1/cache/{fingerprint}
func (h *CacheHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	fp := domain.Fingerprint(chi.URLParam(r, "fingerprint"))
	if !fp.Valid() {
		writeError(w, http.StatusBadRequest, "invalid fingerprint")
		return
	}

	if err := h.orch.Invalidate(r.Context(), fp); err != nil {
		h.logger.Error("cache invalidate failed", "fingerprint", fp.Short(), "error", err)
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EvictResponse reports an eviction pass.
type EvictResponse struct {
	Removed int `json:"removed"`
}

// Evict handles POST /api/v1/cache/evict
func (h *CacheHandler) Evict(w http.ResponseWriter, r *http.Request) {
	removed, err := h.cache.Evict(r.Context())
	if err != nil {
		h.logger.Error("cache evict failed", "error", err)
		writeError(w, http.StatusInternalServerError, "eviction failed")
		return
	}
	writeJSON(w, http.StatusOK, EvictResponse{Removed: removed})
}
