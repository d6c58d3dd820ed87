// Package artifact uploads finished downloads and returns a reference the
// bot can deliver again without re-fetching.
package artifact

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// Artifact is a finished file ready for upload.
type Artifact struct {
	Path        string
	FileName    string
	Size        int64
	Kind        domain.ArtifactKind
	Title       string
	Fingerprint domain.Fingerprint
}

// Name returns FileName, or the base of Path when it is empty.
func (a Artifact) Name() string {
	if a.FileName != "" {
		return a.FileName
	}
	return filepath.Base(a.Path)
}

// Store persists an artifact and returns its reference.
type Store interface {
	Upload(ctx context.Context, a Artifact) (string, error)
}

// ErrEmptyReference is returned when a backend accepted the upload but
// produced no reference.
var ErrEmptyReference = errors.New("upload returned no reference")
