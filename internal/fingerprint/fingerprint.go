// Package fingerprint derives content-addressed cache keys from download requests.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// keyVersion changes whenever the normalization rules change.
const keyVersion = "v1"

// Build returns the fingerprint of a request. It performs no I/O.
// A URL that cannot be normalized is hashed in its trimmed form so the
// function stays total; such requests fail later at engine selection.
func Build(req domain.DownloadRequest) domain.Fingerprint {
	normalized, err := Normalize(req.SourceURL)
	if err != nil {
		normalized = strings.TrimSpace(req.SourceURL)
	}

	quality := req.Quality
	if quality == "" {
		quality = domain.DefaultQuality
	}
	format := req.Format
	if format == "" {
		format = domain.FormatVideo
	}

	parts := []string{keyVersion, normalized, string(quality), string(format)}
	if quality == domain.QualityCustom {
		parts = append(parts, strings.TrimSpace(req.FormatID))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return domain.Fingerprint(hex.EncodeToString(sum[:]))
}
