package domain

import "time"

// Fingerprint is the content-addressed cache key of a request.
type Fingerprint string

// String returns the string representation of the Fingerprint.
func (f Fingerprint) String() string {
	return string(f)
}

// Short returns a prefix suitable for log lines.
func (f Fingerprint) Short() string {
	if len(f) > 12 {
		return string(f[:12])
	}
	return string(f)
}

// Valid reports whether f looks like a hex SHA-256 digest.
func (f Fingerprint) Valid() bool {
	if len(f) != 64 {
		return false
	}
	for _, c := range f {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// CacheEntry maps a fingerprint to a previously stored artifact.
type CacheEntry struct {
	Fingerprint       Fingerprint `json:"fingerprint"`
	ArtifactReference string      `json:"artifact_reference"`
	CreatedAt         time.Time   `json:"created_at"`
	LastValidatedAt   time.Time   `json:"last_validated_at"`
	SizeBytes         int64       `json:"size_bytes"`

	// ArtifactKind is how the stored artifact was delivered. Empty for
	// entries written before the kind was recorded.
	ArtifactKind ArtifactKind `json:"artifact_kind,omitempty"`
}

// IsStale reports whether the entry is older than ttl at now.
// A non-positive ttl disables staleness.
func (e *CacheEntry) IsStale(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(e.LastValidatedAt) > ttl
}
