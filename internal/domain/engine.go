package domain

import "net/url"

// PlatformID identifies a download engine variant.
type PlatformID string

const (
	PlatformYouTube     PlatformID = "youtube"
	PlatformGeneric     PlatformID = "generic"
	PlatformDirect      PlatformID = "direct"
	PlatformInstagram   PlatformID = "instagram"
	PlatformPixeldrain  PlatformID = "pixeldrain"
	PlatformKrakenfiles PlatformID = "krakenfiles"
)

// String returns the string representation of the PlatformID.
func (p PlatformID) String() string {
	return string(p)
}

// Capabilities describes what an engine can do.
type Capabilities struct {
	SupportsQualitySelection bool `json:"supports_quality_selection"`
	SupportsAudioOnly        bool `json:"supports_audio_only"`
	SupportsFormatListing    bool `json:"supports_format_listing"`
	RequiresAuthentication   bool `json:"requires_authentication"`
}

// EngineDescriptor is the static registration of an engine.
type EngineDescriptor struct {
	PlatformID   PlatformID
	Matcher      func(u *url.URL) bool `json:"-"`
	Priority     int
	Capabilities Capabilities
}

// Matches reports whether the engine accepts u.
func (d EngineDescriptor) Matches(u *url.URL) bool {
	if d.Matcher == nil || u == nil {
		return false
	}
	return d.Matcher(u)
}

// FormatKind tells video formats from audio-only ones.
type FormatKind string

const (
	FormatKindVideo FormatKind = "video"
	FormatKindAudio FormatKind = "audio"
)

// FormatDescriptor is one selectable upstream format.
type FormatDescriptor struct {
	ID                 string     `json:"id"`
	Label              string     `json:"label"`
	EstimatedSizeBytes int64      `json:"estimated_size_bytes"`
	QualityRank        int        `json:"quality_rank"`
	Kind               FormatKind `json:"kind"`
	Height             int        `json:"height,omitempty"`
	Ext                string     `json:"ext,omitempty"`
	Codec              string     `json:"codec,omitempty"`
}

// ArtifactKind is how a finished file is delivered.
type ArtifactKind string

const (
	ArtifactVideo    ArtifactKind = "video"
	ArtifactAudio    ArtifactKind = "audio"
	ArtifactDocument ArtifactKind = "document"
)

// KindForFormat returns the default delivery kind for an output format.
func KindForFormat(f OutputFormat) ArtifactKind {
	switch f {
	case FormatAudio:
		return ArtifactAudio
	case FormatDocument:
		return ArtifactDocument
	}
	return ArtifactVideo
}
