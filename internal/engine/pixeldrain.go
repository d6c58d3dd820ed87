package engine

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

const pixeldrainAPI = "https://pixeldrain.com"

// PixeldrainEngine turns share pages into API download links.
type PixeldrainEngine struct {
	fetcher *httpFetcher
	apiBase string
}

// NewPixeldrainEngine creates the Pixeldrain engine.
func NewPixeldrainEngine(cfg HTTPConfig, logger *slog.Logger) *PixeldrainEngine {
	return &PixeldrainEngine{fetcher: newHTTPFetcher(cfg, logger), apiBase: pixeldrainAPI}
}

// SetAPIBase overrides the API host.
func (e *PixeldrainEngine) SetAPIBase(base string) {
	e.apiBase = strings.TrimRight(base, "/")
}

// Descriptor returns the static registration data.
func (e *PixeldrainEngine) Descriptor() domain.EngineDescriptor {
	return domain.EngineDescriptor{
		PlatformID: domain.PlatformPixeldrain,
		Matcher: func(u *url.URL) bool {
			return hostIs(u.Host, "pixeldrain.com")
		},
		Priority: PriorityHostSpecific,
	}
}

// pixeldrainFileID extracts the file ID from /u/<id>, /file/<id> or
// /api/file/<id>.
func pixeldrainFileID(u *url.URL) (string, bool) {
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case len(segs) == 2 && (segs[0] == "u" || segs[0] == "file"):
		return segs[1], segs[1] != ""
	case len(segs) == 3 && segs[0] == "api" && segs[1] == "file":
		return segs[2], segs[2] != ""
	}
	return "", false
}

// Fetch downloads the file through the API.
func (e *PixeldrainEngine) Fetch(ctx context.Context, in FetchInput) (*Download, error) {
	u, err := ParseHTTPURL(in.Request.SourceURL)
	if err != nil {
		return nil, err
	}
	id, ok := pixeldrainFileID(u)
	if !ok {
		ee := domain.NewEngineError(domain.PlatformPixeldrain, "fetch", domain.FailureContentUnavailable,
			errors.New("invalid Pixeldrain URL format"))
		ee.Permanent = true
		return nil, ee
	}

	dl, err := e.fetcher.download(ctx, domain.PlatformPixeldrain, e.apiBase+"/api/file/"+url.PathEscape(id)+"?download", in.WorkDir)
	if err != nil {
		return nil, err
	}
	if in.Request.Format == domain.FormatDocument {
		dl.Kind = domain.ArtifactDocument
	}
	return dl, nil
}
