package engine

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// directExts are the URL path extensions the direct engine claims.
var directExts = map[string]bool{
	".zip": true, ".rar": true, ".7z": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true,
	".pdf": true, ".doc": true, ".docx": true, ".xlsx": true, ".ppt": true, ".pptx": true,
	".exe": true, ".msi": true, ".deb": true, ".rpm": true, ".dmg": true, ".pkg": true,
	".iso": true, ".img": true, ".bin": true, ".apk": true,
	".mp4": true, ".mkv": true, ".mp3": true, ".m4a": true, ".webm": true,
}

func isDocumentExt(ext string) bool {
	ext = strings.ToLower(ext)
	return directExts[ext] && KindFromExt(ext) == domain.ArtifactDocument
}

// isDirectFileURL reports whether the URL path ends in a known file extension.
func isDirectFileURL(u *url.URL) bool {
	return directExts[strings.ToLower(path.Ext(u.Path))]
}

// DirectEngine downloads plain file links over HTTP.
type DirectEngine struct {
	fetcher *httpFetcher
}

// NewDirectEngine creates the direct link engine.
func NewDirectEngine(cfg HTTPConfig, logger *slog.Logger) *DirectEngine {
	return &DirectEngine{fetcher: newHTTPFetcher(cfg, logger)}
}

// Descriptor returns the static registration data.
func (e *DirectEngine) Descriptor() domain.EngineDescriptor {
	return domain.EngineDescriptor{
		PlatformID: domain.PlatformDirect,
		Matcher:    isDirectFileURL,
		Priority:   PriorityDirect,
	}
}

// Fetch downloads the file behind the request URL.
func (e *DirectEngine) Fetch(ctx context.Context, in FetchInput) (*Download, error) {
	u, err := ParseHTTPURL(in.Request.SourceURL)
	if err != nil {
		return nil, err
	}

	dl, err := e.fetcher.download(ctx, domain.PlatformDirect, u.String(), in.WorkDir)
	if err != nil {
		return nil, err
	}
	if in.Request.Format == domain.FormatDocument {
		dl.Kind = domain.ArtifactDocument
	}
	return dl, nil
}
