package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// HTTPConfig configures the engines that download over plain HTTP.
type HTTPConfig struct {
	UserAgent string

	// HeaderTimeout bounds the wait for response headers.
	HeaderTimeout time.Duration

	// ReadTimeout aborts a body read that stalls this long.
	ReadTimeout time.Duration

	// MaxFileSize rejects bodies larger than this many bytes. Zero disables.
	MaxFileSize int64
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.4472.124 Safari/537.36"

// httpFetcher streams a URL into a work directory.
type httpFetcher struct {
	// client is used for short page and API requests.
	client *http.Client
	// streamClient has no overall timeout; stalls are caught per read.
	streamClient *http.Client
	cfg          HTTPConfig
	logger       *slog.Logger
}

func newHTTPFetcher(cfg HTTPConfig, logger *slog.Logger) *httpFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.HeaderTimeout <= 0 {
		cfg.HeaderTimeout = 30 * time.Second
	}

	return &httpFetcher{
		client: &http.Client{
			Timeout: cfg.HeaderTimeout,
		},
		streamClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: cfg.HeaderTimeout,
			},
		},
		cfg:    cfg,
		logger: logger,
	}
}

func (f *httpFetcher) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	return req, nil
}

// download streams rawURL into workDir and returns the stored file.
func (f *httpFetcher) download(ctx context.Context, platform domain.PlatformID, rawURL, workDir string) (*Download, error) {
	req, err := f.newRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, domain.NewEngineError(platform, "download", domain.FailureUpstreamError, err)
	}

	resp, err := f.streamClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, platform, "download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(platform, "download", resp.StatusCode)
	}

	size := resp.ContentLength
	if f.cfg.MaxFileSize > 0 && size > f.cfg.MaxFileSize {
		return nil, tooLarge(platform, size, f.cfg.MaxFileSize)
	}
	if free := FreeSpace(workDir); size > 0 && free > 0 && size > free {
		ee := domain.NewEngineError(platform, "download", domain.FailureUpstreamError,
			fmt.Errorf("%w: need %d bytes, %d free", domain.ErrStorageFull, size, free))
		ee.Permanent = true
		return nil, ee
	}

	name := responseFileName(resp, rawURL)
	dst := filepath.Join(workDir, name)
	out, err := os.Create(dst)
	if err != nil {
		return nil, domain.NewEngineError(platform, "download", domain.FailureUpstreamError, fmt.Errorf("create file: %w", err))
	}

	body := newProgressReader(resp.Body, size, f.cfg.ReadTimeout, f.logger.With("engine", platform))
	var src io.Reader = body
	if f.cfg.MaxFileSize > 0 {
		src = io.LimitReader(body, f.cfg.MaxFileSize+1)
	}

	written, err := io.Copy(out, src)
	body.Close()
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, transportError(ctx, platform, "download", err)
	}
	if f.cfg.MaxFileSize > 0 && written > f.cfg.MaxFileSize {
		return nil, tooLarge(platform, written, f.cfg.MaxFileSize)
	}

	if filepath.Ext(dst) == "" {
		if renamed, err := addSniffedExt(dst); err == nil {
			dst = renamed
		}
	}

	return &Download{
		Path: dst,
		Size: written,
		Kind: DetectKind(dst),
		Ext:  filepath.Ext(dst),
	}, nil
}

func transportError(ctx context.Context, platform domain.PlatformID, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		ee := domain.NewEngineError(platform, op, domain.FailureTimeout, ctxErr)
		ee.Permanent = errors.Is(ctxErr, context.Canceled)
		return ee
	}
	if errors.Is(err, errStalled) {
		return domain.NewEngineError(platform, op, domain.FailureTimeout, err)
	}
	return domain.NewEngineError(platform, op, domain.FailureUpstreamError, err)
}

// responseFileName picks the Content-Disposition name, then the URL
// basename, then a random name.
func responseFileName(resp *http.Response, rawURL string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := sanitizeFileName(params["filename"]); name != "" {
				return name
			}
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if name := sanitizeFileName(path.Base(u.Path)); name != "" && name != "/" && name != "." {
			return name
		}
	}
	return uuid.NewString()
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(name)
	if name == "." || name == "/" || strings.HasPrefix(name, ".") {
		return ""
	}
	return name
}

// DetectKind classifies a finished file by extension, falling back to
// content sniffing for extensions that say nothing about media.
func DetectKind(path string) domain.ArtifactKind {
	if kind := KindFromExt(filepath.Ext(path)); kind != domain.ArtifactDocument {
		return kind
	}
	if isDocumentExt(filepath.Ext(path)) {
		return domain.ArtifactDocument
	}

	ctype, err := sniffContentType(path)
	if err != nil {
		return domain.ArtifactDocument
	}
	switch {
	case strings.HasPrefix(ctype, "video/"):
		return domain.ArtifactVideo
	case strings.HasPrefix(ctype, "audio/"):
		return domain.ArtifactAudio
	}
	return domain.ArtifactDocument
}

func sniffContentType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

func addSniffedExt(path string) (string, error) {
	ctype, err := sniffContentType(path)
	if err != nil {
		return "", err
	}
	mediaType, _, _ := mime.ParseMediaType(ctype)
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 || mediaType == "application/octet-stream" {
		return "", fmt.Errorf("no extension for %s", ctype)
	}
	renamed := path + exts[0]
	if err := os.Rename(path, renamed); err != nil {
		return "", err
	}
	return renamed, nil
}

var errStalled = errors.New("download stalled")

// progressReader tracks download progress and detects stalls (no data
// for readTimeout).
type progressReader struct {
	reader      io.ReadCloser
	total       int64
	downloaded  int64
	readTimeout time.Duration
	lastRead    time.Time
	lastLog     time.Time
	logger      *slog.Logger
	mu          sync.Mutex
	closed      bool
}

func newProgressReader(r io.ReadCloser, total int64, readTimeout time.Duration, logger *slog.Logger) *progressReader {
	now := time.Now()
	return &progressReader{
		reader:      r,
		total:       total,
		readTimeout: readTimeout,
		lastRead:    now,
		lastLog:     now,
		logger:      logger,
	}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)

	p.mu.Lock()
	defer p.mu.Unlock()

	if n > 0 {
		p.downloaded += int64(n)
		p.lastRead = time.Now()

		if time.Since(p.lastLog) > 30*time.Second {
			p.logProgress()
			p.lastLog = time.Now()
		}
	}

	// Zero-byte reads count toward a stall too.
	if err == nil && p.readTimeout > 0 && time.Since(p.lastRead) > p.readTimeout {
		return n, fmt.Errorf("%w: no data received for %v", errStalled, p.readTimeout)
	}

	return n, err
}

func (p *progressReader) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	if p.downloaded > 0 {
		p.logProgress()
	}
	p.mu.Unlock()

	return p.reader.Close()
}

func (p *progressReader) logProgress() {
	if p.total > 0 {
		pct := float64(p.downloaded) / float64(p.total) * 100
		p.logger.Info("download progress",
			"downloaded_mb", p.downloaded/(1024*1024),
			"total_mb", p.total/(1024*1024),
			"percent", fmt.Sprintf("%.1f%%", pct),
		)
	} else {
		p.logger.Info("download progress",
			"downloaded_mb", p.downloaded/(1024*1024),
		)
	}
}
