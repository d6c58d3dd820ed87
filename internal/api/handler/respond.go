package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeDomainError maps err onto a status code and writes it.
func writeDomainError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), ErrorResponse{Error: err.Error()})
}

// statusForKind returns the HTTP status for a failed download.
func statusForKind(kind domain.FailureKind) int {
	switch kind {
	case domain.FailureNone:
		return http.StatusOK
	case domain.FailureAccessDenied:
		return http.StatusForbidden
	case domain.FailureNoEngineAvailable:
		return http.StatusUnprocessableEntity
	case domain.FailureContentUnavailable:
		return http.StatusNotFound
	case domain.FailureRateLimited:
		return http.StatusTooManyRequests
	case domain.FailureTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrEntryNotFound),
		errors.Is(err, domain.ErrChannelNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrFormatsUnsupported):
		return http.StatusUnprocessableEntity
	}

	var engErr *domain.EngineError
	if errors.As(err, &engErr) || errors.Is(err, domain.ErrUpstream) || domain.KindOf(err) != domain.FailureUpstreamError {
		return statusForKind(domain.KindOf(err))
	}
	return http.StatusInternalServerError
}

var errInvalidBody = fmt.Errorf("%w: malformed JSON body", domain.ErrInvalidRequest)
