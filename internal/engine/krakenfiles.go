package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// KrakenfilesEngine resolves a file page to its download link by
// submitting the page's download form.
type KrakenfilesEngine struct {
	fetcher *httpFetcher
}

// NewKrakenfilesEngine creates the Krakenfiles engine.
func NewKrakenfilesEngine(cfg HTTPConfig, logger *slog.Logger) *KrakenfilesEngine {
	return &KrakenfilesEngine{fetcher: newHTTPFetcher(cfg, logger)}
}

// Descriptor returns the static registration data.
func (e *KrakenfilesEngine) Descriptor() domain.EngineDescriptor {
	return domain.EngineDescriptor{
		PlatformID: domain.PlatformKrakenfiles,
		Matcher: func(u *url.URL) bool {
			return hostIs(u.Host, "krakenfiles.com")
		},
		Priority: PriorityHostSpecific,
	}
}

// Fetch resolves the page and downloads the file.
func (e *KrakenfilesEngine) Fetch(ctx context.Context, in FetchInput) (*Download, error) {
	page, err := ParseHTTPURL(in.Request.SourceURL)
	if err != nil {
		return nil, err
	}

	link, err := e.resolve(ctx, page)
	if err != nil {
		return nil, err
	}

	dl, err := e.fetcher.download(ctx, domain.PlatformKrakenfiles, link, in.WorkDir)
	if err != nil {
		return nil, err
	}
	if in.Request.Format == domain.FormatDocument {
		dl.Kind = domain.ArtifactDocument
	}
	return dl, nil
}

// resolve reads the form action and token from the file page and posts
// the token to get the direct link.
func (e *KrakenfilesEngine) resolve(ctx context.Context, page *url.URL) (string, error) {
	const platform = domain.PlatformKrakenfiles

	req, err := e.fetcher.newRequest(ctx, http.MethodGet, page.String(), nil)
	if err != nil {
		return "", domain.NewEngineError(platform, "resolve", domain.FailureUpstreamError, err)
	}
	resp, err := e.fetcher.client.Do(req)
	if err != nil {
		return "", transportError(ctx, platform, "resolve", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(platform, "resolve", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", domain.NewEngineError(platform, "resolve", domain.FailureUpstreamError, fmt.Errorf("parse page: %w", err))
	}
	action, _ := doc.Find("form#dl-form").Attr("action")
	token, _ := doc.Find("input#dl-token").Attr("value")
	if action == "" || token == "" {
		ee := domain.NewEngineError(platform, "resolve", domain.FailureContentUnavailable, errors.New("download form not found"))
		ee.Permanent = true
		return "", ee
	}

	target, err := page.Parse(action)
	if err != nil {
		return "", domain.NewEngineError(platform, "resolve", domain.FailureUpstreamError, fmt.Errorf("form action: %w", err))
	}

	form := url.Values{"token": {token}}
	post, err := e.fetcher.newRequest(ctx, http.MethodPost, target.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", domain.NewEngineError(platform, "resolve", domain.FailureUpstreamError, err)
	}
	post.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	post.Header.Set("Referer", page.String())

	presp, err := e.fetcher.client.Do(post)
	if err != nil {
		return "", transportError(ctx, platform, "resolve", err)
	}
	defer presp.Body.Close()
	if presp.StatusCode != http.StatusOK {
		return "", classifyStatus(platform, "resolve", presp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
		URL    string `json:"url"`
	}
	if err := json.NewDecoder(io.LimitReader(presp.Body, 1<<20)).Decode(&body); err != nil {
		return "", domain.NewEngineError(platform, "resolve", domain.FailureUpstreamError, fmt.Errorf("decode token response: %w", err))
	}
	if body.URL == "" {
		ee := domain.NewEngineError(platform, "resolve", domain.FailureContentUnavailable, fmt.Errorf("no download link (status %q)", body.Status))
		ee.Permanent = true
		return "", ee
	}

	link, err := page.Parse(body.URL)
	if err != nil {
		return "", domain.NewEngineError(platform, "resolve", domain.FailureUpstreamError, err)
	}
	return link.String(), nil
}
