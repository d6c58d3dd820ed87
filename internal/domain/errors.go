package domain

import (
	"context"
	"errors"
)

// Domain errors.
var (
	// ErrAccessDenied is returned when the access gate rejects a user.
	ErrAccessDenied = errors.New("access denied")

	// ErrNoEngineAvailable is returned when no engine accepts the URL.
	ErrNoEngineAvailable = errors.New("no engine available")

	// ErrAuthenticationRequired is returned when the platform needs credentials none of the configured sources satisfy.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrContentUnavailable is returned for deleted, private or region-blocked media.
	ErrContentUnavailable = errors.New("content unavailable")

	// ErrRateLimited is returned when rate limited by external services.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout is returned when a fetch exceeds its time budget.
	ErrTimeout = errors.New("fetch timed out")

	// ErrUpstream is returned for unexpected engine-internal failures.
	ErrUpstream = errors.New("upstream error")

	// ErrStorageFull is returned when there is insufficient storage space.
	ErrStorageFull = errors.New("insufficient storage space")

	// ErrFileTooLarge is returned when media exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file exceeds size limit")

	// ErrInvalidRequest is returned when a download request is malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrFormatsUnsupported is returned when format listing is requested for an engine that cannot list.
	ErrFormatsUnsupported = errors.New("format listing not supported")

	// ErrEntryNotFound is returned when a cache entry does not exist.
	ErrEntryNotFound = errors.New("cache entry not found")

	// ErrJobNotFound is returned when a job cannot be found.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists is returned when a job ID is enqueued twice.
	ErrJobExists = errors.New("job already exists")

	// ErrNoJobs is returned when there are no jobs to process.
	ErrNoJobs = errors.New("no jobs available")

	// ErrUserNotFound is returned when a user has no stored record.
	ErrUserNotFound = errors.New("user not found")

	// ErrChannelNotFound is returned when a required channel does not exist.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrInvalidAPIKey is returned when the API key is invalid.
	ErrInvalidAPIKey = errors.New("invalid API key")
)

var kindSentinels = map[FailureKind]error{
	FailureAccessDenied:           ErrAccessDenied,
	FailureNoEngineAvailable:      ErrNoEngineAvailable,
	FailureAuthenticationRequired: ErrAuthenticationRequired,
	FailureContentUnavailable:     ErrContentUnavailable,
	FailureRateLimited:            ErrRateLimited,
	FailureTimeout:                ErrTimeout,
	FailureUpstreamError:          ErrUpstream,
}

// EngineError wraps an engine failure with platform context.
type EngineError struct {
	Platform PlatformID
	Op       string
	Kind     FailureKind
	Err      error

	// Permanent stops retries even for a transient kind.
	Permanent bool
}

func (e *EngineError) Error() string {
	msg := e.Op + ": " + string(e.Kind)
	if e.Platform != "" {
		msg = e.Op + " [" + e.Platform.String() + "]: " + string(e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the failure kind.
func (e *EngineError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// NewEngineError creates a new EngineError.
func NewEngineError(platform PlatformID, op string, kind FailureKind, err error) *EngineError {
	return &EngineError{
		Platform: platform,
		Op:       op,
		Kind:     kind,
		Err:      err,
	}
}

// KindOf classifies any error into a failure kind.
func KindOf(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	if errors.Is(err, ErrFileTooLarge) {
		return FailureContentUnavailable
	}
	return FailureUpstreamError
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var ee *EngineError
	if errors.As(err, &ee) && ee.Permanent {
		return false
	}
	if errors.Is(err, ErrFileTooLarge) || errors.Is(err, ErrStorageFull) {
		return false
	}
	return KindOf(err).Transient()
}
