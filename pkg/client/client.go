// Package client talks to the uptovip admin API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// Client communicates with a running uptovip server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// HealthResponse is the response from the readiness endpoint.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Job mirrors the server's job view.
type Job struct {
	JobID     string                 `json:"job_id"`
	Status    string                 `json:"status"`
	URL       string                 `json:"url"`
	Attempts  int                    `json:"attempts"`
	Error     string                 `json:"error,omitempty"`
	Result    *domain.DownloadResult `json:"result,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// DownloadRequest is the body of synchronous downloads and queued jobs.
type DownloadRequest struct {
	URL      string `json:"url"`
	UserID   int64  `json:"user_id"`
	Quality  string `json:"quality,omitempty"`
	Format   string `json:"format,omitempty"`
	FormatID string `json:"format_id,omitempty"`
	Platform string `json:"platform,omitempty"`
	Force    bool   `json:"force,omitempty"`
}

// Summary aggregates download statistics since a point in time.
type Summary struct {
	Since     time.Time                `json:"since"`
	Platforms []domain.PlatformSummary `json:"platforms"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a client for the server at baseURL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 20 * time.Minute, // synchronous downloads can run long
		},
	}
}

// Ready queries the readiness probe.
func (c *Client) Ready(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/ready", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Download runs a synchronous download and returns its result.
func (c *Client) Download(ctx context.Context, req DownloadRequest) (*domain.DownloadResult, error) {
	var result domain.DownloadResult
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/downloads", req, &result)
	var apiErr *APIError
	if errors.As(err, &apiErr) && result.Outcome != "" {
		// Failed downloads still carry a result body.
		return &result, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitJob queues a download.
func (c *Client) SubmitJob(ctx context.Context, req DownloadRequest) (*Job, error) {
	var job Job
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/jobs", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob returns a queued job.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Formats lists the formats available for rawURL.
func (c *Client) Formats(ctx context.Context, rawURL string, limit int) ([]domain.FormatDescriptor, error) {
	q := url.Values{"url": {rawURL}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Formats []domain.FormatDescriptor `json:"formats"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/formats?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Formats, nil
}

// Invalidate drops every cache entry for fingerprint.
func (c *Client) Invalidate(ctx context.Context, fp domain.Fingerprint) error {
	return c.doRequest(ctx, http.MethodDelete, "/api/v1/cache/"+string(fp), nil, nil)
}

// Evict removes expired cache entries and returns how many were dropped.
func (c *Client) Evict(ctx context.Context) (int, error) {
	var resp struct {
		Removed int `json:"removed"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/cache/evict", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// SetAccess changes a user's access flag.
func (c *Client) SetAccess(ctx context.Context, userID int64, status domain.AccessStatus) error {
	body := map[string]string{"status": status.String()}
	return c.doRequest(ctx, http.MethodPut, userPath(userID, "access"), body, nil)
}

// GetAccess returns a user's access flag.
func (c *Client) GetAccess(ctx context.Context, userID int64) (domain.AccessStatus, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doRequest(ctx, http.MethodGet, userPath(userID, "access"), nil, &resp); err != nil {
		return domain.AccessStatusNormal, err
	}
	return domain.ParseAccessStatus(resp.Status)
}

// Channels lists the required channels.
func (c *Client) Channels(ctx context.Context) ([]domain.Channel, error) {
	var resp struct {
		Channels []domain.Channel `json:"channels"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/channels", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

// AddChannel registers a required channel.
func (c *Client) AddChannel(ctx context.Context, ch domain.Channel) (*domain.Channel, error) {
	var added domain.Channel
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/channels", ch, &added); err != nil {
		return nil, err
	}
	return &added, nil
}

// RemoveChannel deletes a required channel.
func (c *Client) RemoveChannel(ctx context.Context, channelID int64) error {
	path := "/api/v1/channels/" + strconv.FormatInt(channelID, 10)
	return c.doRequest(ctx, http.MethodDelete, path, nil, nil)
}

// StatsSummary returns per-platform download statistics over window.
func (c *Client) StatsSummary(ctx context.Context, window time.Duration) (*Summary, error) {
	path := "/api/v1/stats/summary"
	if window > 0 {
		path += "?since=" + url.QueryEscape(window.String())
	}
	var s Summary
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func userPath(userID int64, leaf string) string {
	return "/api/v1/users/" + strconv.FormatInt(userID, 10) + "/" + leaf
}

// doRequest performs an HTTP request against the server.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		if result != nil {
			json.Unmarshal(respBody, result)
		}
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			apiErr.Message = errResp.Error
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
