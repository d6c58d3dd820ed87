package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// Dispatch priorities. Higher is tried first.
const (
	PriorityHostSpecific = 100
	PriorityYouTube      = 90
	PriorityDirect       = 50
	PriorityGeneric      = 0
)

// YtdlpConfig configures the engines backed by yt-dlp.
type YtdlpConfig struct {
	// AudioFormat is the container for audio extraction (default m4a).
	AudioFormat string

	// MaxFileSize rejects media larger than this many bytes. Zero disables.
	MaxFileSize int64

	// ExternalDownloader is passed to yt-dlp's --downloader, e.g. aria2c.
	ExternalDownloader string

	// POToken is appended to YouTube extractor args when set.
	POToken string
}

func (c YtdlpConfig) audioFormat() string {
	if c.AudioFormat == "" {
		return "m4a"
	}
	return c.AudioFormat
}

// ytdlpEngine holds the fetch flow shared by the youtube, generic and
// instagram engines: probe with the auth chain, then walk the format chain.
type ytdlpEngine struct {
	desc          domain.EngineDescriptor
	runner        Runner
	cfg           YtdlpConfig
	extractorArgs string
	formatChain   func(domain.DownloadRequest) []string
	logger        *slog.Logger
}

// Descriptor returns the static registration data.
func (e *ytdlpEngine) Descriptor() domain.EngineDescriptor {
	return e.desc
}

func (e *ytdlpEngine) invocation(rawURL string, src AuthSource, workDir string) (Invocation, error) {
	inv := Invocation{URL: rawURL, ExtractorArgs: e.extractorArgs}
	switch src.Kind {
	case AuthCookieFile:
		path, err := src.CookiePath(workDir)
		if err != nil {
			return inv, err
		}
		inv.CookieFile = path
	case AuthBrowser:
		inv.Browser = src.Browser
	}
	return inv, nil
}

// probe fetches metadata with the first credential that works.
func (e *ytdlpEngine) probe(ctx context.Context, rawURL, workDir string, chain []AuthSource) (*mediaInfo, AuthSource, error) {
	platform := e.desc.PlatformID
	return probeChain(ctx, platform, chain, func(src AuthSource) (*mediaInfo, error) {
		inv, err := e.invocation(rawURL, src, workDir)
		if err != nil {
			return nil, domain.NewEngineError(platform, "probe", domain.FailureAuthenticationRequired, err)
		}
		inv.DumpJSON = true

		out, err := e.runner.Run(ctx, inv)
		if err != nil {
			return nil, classifyRun(ctx, platform, "probe", stderrOf(out), err)
		}
		info, err := parseMediaInfo(out.Stdout)
		if err != nil {
			return nil, domain.NewEngineError(platform, "probe", domain.FailureUpstreamError, err)
		}
		return info, nil
	})
}

// Fetch downloads the requested media into in.WorkDir.
func (e *ytdlpEngine) Fetch(ctx context.Context, in FetchInput) (*Download, error) {
	req := in.Request
	platform := e.desc.PlatformID

	info, src, err := e.probe(ctx, req.SourceURL, in.WorkDir, in.Auth)
	if err != nil {
		return nil, err
	}
	if info.IsLive {
		ee := domain.NewEngineError(platform, "fetch", domain.FailureContentUnavailable,
			errors.New("live streams are not supported"))
		ee.Permanent = true
		return nil, ee
	}
	if e.cfg.MaxFileSize > 0 && info.Size() > e.cfg.MaxFileSize {
		return nil, tooLarge(platform, info.Size(), e.cfg.MaxFileSize)
	}

	logger := e.logger.With("engine", platform, "auth", src.String())

	base, err := e.invocation(req.SourceURL, src, in.WorkDir)
	if err != nil {
		return nil, domain.NewEngineError(platform, "fetch", domain.FailureAuthenticationRequired, err)
	}
	base.OutputTemplate = filepath.Join(in.WorkDir, "%(title).70s.%(ext)s")
	base.MaxFileSize = e.cfg.MaxFileSize
	base.ExternalDownloader = e.cfg.ExternalDownloader
	if req.WantsAudio() {
		base.AudioFormat = e.cfg.audioFormat()
	}

	var lastErr error = domain.NewEngineError(platform, "fetch", domain.FailureUpstreamError, errors.New("no format produced a file"))
	for _, format := range e.formatChain(req) {
		inv := base
		inv.Format = format

		out, err := e.runner.Run(ctx, inv)
		if err != nil {
			ee := classifyRun(ctx, platform, "fetch", stderrOf(out), err)
			if ctx.Err() != nil || ee.Kind == domain.FailureRateLimited {
				return nil, ee
			}
			logger.Warn("format failed, trying next", "format", format, "error", ee)
			lastErr = ee
			continue
		}

		path, size, err := largestFile(in.WorkDir)
		if err != nil {
			logger.Warn("no file after download", "format", format)
			continue
		}
		if e.cfg.MaxFileSize > 0 && size > e.cfg.MaxFileSize {
			return nil, tooLarge(platform, size, e.cfg.MaxFileSize)
		}

		logger.Info("download finished", "format", format, "size_bytes", size)
		return &Download{
			Path:  path,
			Size:  size,
			Kind:  requestKind(req, path),
			Title: info.Title,
			Ext:   filepath.Ext(path),
		}, nil
	}
	return nil, lastErr
}

func stderrOf(out *RunOutput) string {
	if out == nil {
		return ""
	}
	return out.Stderr
}

func tooLarge(platform domain.PlatformID, size, limit int64) error {
	ee := domain.NewEngineError(platform, "fetch", domain.FailureContentUnavailable,
		fmt.Errorf("%w: %d bytes, limit %d", domain.ErrFileTooLarge, size, limit))
	ee.Permanent = true
	return ee
}

// requestKind decides how the artifact is delivered: the request's output
// format wins, otherwise the file extension decides.
func requestKind(req domain.DownloadRequest, path string) domain.ArtifactKind {
	switch {
	case req.WantsAudio():
		return domain.ArtifactAudio
	case req.Format == domain.FormatDocument:
		return domain.ArtifactDocument
	}
	return KindFromExt(filepath.Ext(path))
}

// withTempDir runs fn with a scratch directory removed afterwards.
func withTempDir[T any](fn func(dir string) (T, error)) (T, error) {
	dir, err := os.MkdirTemp("", "uptovip-probe-*")
	if err != nil {
		var zero T
		return zero, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)
	return fn(dir)
}
