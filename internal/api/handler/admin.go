package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/YuldShah/uptovipnew/internal/domain"
	"github.com/YuldShah/uptovipnew/internal/repository"
)

// AdminHandler manages users, required channels, preferences and stats.
type AdminHandler struct {
	users    repository.UserRepository
	channels repository.ChannelRepository
	prefs    repository.PreferenceRepository
	stats    repository.StatsRepository
	logger   *slog.Logger
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(
	users repository.UserRepository,
	channels repository.ChannelRepository,
	prefs repository.PreferenceRepository,
	stats repository.StatsRepository,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		users:    users,
		channels: channels,
		prefs:    prefs,
		stats:    stats,
		logger:   logger,
	}
}

func userIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	return id, err == nil && id != 0
}

// AccessPayload changes a user's access flag.
type AccessPayload struct {
	Status string `json:"status"`
}

// AccessResponse reports a user's access flag.
type AccessResponse struct {
	UserID int64  `json:"user_id"`
	Status string `json:"status"`
}

// GetAccess handles GET /api/v1/users/{userID}/access
func (h *AdminHandler) GetAccess(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	status, err := h.users.GetAccessStatus(r.Context(), userID)
	if err != nil {
		h.logger.Error("get access status failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, AccessResponse{UserID: userID, Status: status.String()})
}

// SetAccess handles PUT /api/v1/users/{userID}/access
func (h *AdminHandler) SetAccess(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var payload AccessPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDomainError(w, errInvalidBody)
		return
	}
	status, err := domain.ParseAccessStatus(payload.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.users.SetAccessStatus(r.Context(), userID, status); err != nil {
		h.logger.Error("set access status failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	h.logger.Info("user access changed", "user_id", userID, "status", status.String())
	writeJSON(w, http.StatusOK, AccessResponse{UserID: userID, Status: status.String()})
}

// SettingsPayload is the body of a preference update.
type SettingsPayload struct {
	Platform string `json:"platform,omitempty"`
	Quality  string `json:"quality"`
	Format   string `json:"format,omitempty"`
}

// SettingsResponse reports effective preferences.
type SettingsResponse struct {
	UserID   int64  `json:"user_id"`
	Platform string `json:"platform,omitempty"`
	Quality  string `json:"quality"`
	Format   string `json:"format,omitempty"`
}

// GetSettings handles GET /api/v1/users/{userID}/settings?platform=...
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	platform := domain.PlatformID(r.URL.Query().Get("platform"))

	settings, err := h.prefs.Get(r.Context(), userID, platform)
	if err != nil {
		h.logger.Error("get settings failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, SettingsResponse{
		UserID:   userID,
		Platform: string(platform),
		Quality:  string(settings.Quality),
		Format:   string(settings.Format),
	})
}

// PutSettings handles PUT /api/v1/users/{userID}/settings
func (h *AdminHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var payload SettingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDomainError(w, errInvalidBody)
		return
	}
	quality, err := domain.ParseQuality(payload.Quality)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var format domain.OutputFormat
	if payload.Format != "" {
		if format, err = domain.ParseOutputFormat(payload.Format); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	settings := domain.UserSettings{
		UserID:   userID,
		Platform: domain.PlatformID(payload.Platform),
		Quality:  quality,
		Format:   format,
	}
	if err := h.prefs.Set(r.Context(), settings); err != nil {
		h.logger.Error("set settings failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, SettingsResponse{
		UserID:   userID,
		Platform: payload.Platform,
		Quality:  string(quality),
		Format:   string(format),
	})
}

// ListChannels handles GET /api/v1/channels
func (h *AdminHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channels.List(r.Context())
	if err != nil {
		h.logger.Error("list channels failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list channels")
		return
	}
	if channels == nil {
		channels = []domain.Channel{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"channels": channels})
}

// AddChannel handles POST /api/v1/channels
func (h *AdminHandler) AddChannel(w http.ResponseWriter, r *http.Request) {
	var ch domain.Channel
	if err := json.NewDecoder(r.Body).Decode(&ch); err != nil {
		writeDomainError(w, errInvalidBody)
		return
	}
	if ch.ChannelID == 0 {
		writeError(w, http.StatusBadRequest, "channel_id is required")
		return
	}
	ch.IsActive = true
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}

	if err := h.channels.Add(r.Context(), ch); err != nil {
		h.logger.Error("add channel failed", "channel_id", ch.ChannelID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add channel")
		return
	}
	h.logger.Info("required channel added", "channel_id", ch.ChannelID, "name", ch.Name)
	writeJSON(w, http.StatusCreated, ch)
}

// RemoveChannel handles DELETE /api/v1/channels/{channelID}
func (h *AdminHandler) RemoveChannel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "channelID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}

	if err := h.channels.Remove(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	h.logger.Info("required channel removed", "channel_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// SummaryResponse aggregates download statistics.
type SummaryResponse struct {
	Since     time.Time                `json:"since"`
	Platforms []domain.PlatformSummary `json:"platforms"`
}

// StatsSummary handles GET /api/v1/stats/summary?since=24h
func (h *AdminHandler) StatsSummary(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if s := r.URL.Query().Get("since"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "since must be a positive duration")
			return
		}
		window = d
	}
	since := time.Now().UTC().Add(-window)

	summary, err := h.stats.Summary(r.Context(), since)
	if err != nil {
		h.logger.Error("stats summary failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	if summary == nil {
		summary = []domain.PlatformSummary{}
	}
	writeJSON(w, http.StatusOK, SummaryResponse{Since: since, Platforms: summary})
}
