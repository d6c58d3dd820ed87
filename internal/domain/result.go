package domain

import "time"

// Outcome is the terminal outcome of a request.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// FailureKind classifies a failed request.
type FailureKind string

const (
	FailureNone                   FailureKind = ""
	FailureAccessDenied           FailureKind = "access_denied"
	FailureNoEngineAvailable      FailureKind = "no_engine_available"
	FailureAuthenticationRequired FailureKind = "authentication_required"
	FailureContentUnavailable     FailureKind = "content_unavailable"
	FailureRateLimited            FailureKind = "rate_limited"
	FailureTimeout                FailureKind = "timeout"
	FailureUpstreamError          FailureKind = "upstream_error"
)

// Transient reports whether failures of this kind may succeed on retry.
func (k FailureKind) Transient() bool {
	switch k {
	case FailureRateLimited, FailureTimeout, FailureUpstreamError:
		return true
	}
	return false
}

// DownloadResult is produced once per orchestration call.
type DownloadResult struct {
	RequestID         string        `json:"request_id"`
	UserID            int64         `json:"user_id"`
	SourceURL         string        `json:"source_url"`
	Fingerprint       Fingerprint   `json:"fingerprint,omitempty"`
	ArtifactReference string        `json:"artifact_reference,omitempty"`
	ArtifactKind      ArtifactKind  `json:"artifact_kind,omitempty"`
	EngineUsed        PlatformID    `json:"engine_used,omitempty"`
	BytesTransferred  int64         `json:"bytes_transferred"`
	Duration          time.Duration `json:"duration"`
	Outcome           Outcome       `json:"outcome"`
	FailureKind       FailureKind   `json:"failure_kind,omitempty"`
	AccessReason      AccessReason  `json:"access_reason,omitempty"`
	CacheHit          bool          `json:"cache_hit"`
	Shared            bool          `json:"shared"`
	Error             string        `json:"error,omitempty"`
}

// Succeeded reports whether the result carries a usable artifact.
func (r DownloadResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}
