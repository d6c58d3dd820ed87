package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// stderrRules are checked in order; the first matching substring wins.
var stderrRules = []struct {
	kind    domain.FailureKind
	needles []string
}{
	{domain.FailureRateLimited, []string{"http error 429", "too many requests", "rate-limit", "rate limit"}},
	{domain.FailureContentUnavailable, []string{
		"private video", "video unavailable", "not available", "has been removed",
		"is not a valid url", "unsupported url", "this live event",
	}},
	{domain.FailureAuthenticationRequired, []string{"sign in to confirm", "login required", "authentication", "cookies"}},
	{domain.FailureTimeout, []string{"timed out", "timeout"}},
}

// classifyOutput maps yt-dlp diagnostics to a failure kind.
func classifyOutput(stderr string) domain.FailureKind {
	msg := strings.ToLower(stderr)
	for _, rule := range stderrRules {
		for _, needle := range rule.needles {
			if strings.Contains(msg, needle) {
				return rule.kind
			}
		}
	}
	return domain.FailureUpstreamError
}

// classifyRun wraps a failed yt-dlp run. Context errors take precedence
// over whatever yt-dlp printed while being killed.
func classifyRun(ctx context.Context, platform domain.PlatformID, op, stderr string, err error) *domain.EngineError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		kind := domain.FailureTimeout
		ee := domain.NewEngineError(platform, op, kind, ctxErr)
		ee.Permanent = errors.Is(ctxErr, context.Canceled)
		return ee
	}

	kind := classifyOutput(stderr)
	detail := lastLine(stderr)
	if detail == "" && err != nil {
		detail = err.Error()
	}

	ee := domain.NewEngineError(platform, op, kind, errors.New(detail))
	if kind == domain.FailureContentUnavailable || kind == domain.FailureAuthenticationRequired {
		ee.Permanent = true
	}
	return ee
}

// classifyStatus maps an unexpected HTTP status to an engine error.
func classifyStatus(platform domain.PlatformID, op string, code int) *domain.EngineError {
	err := fmt.Errorf("unexpected status code: %d", code)
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.NewEngineError(platform, op, domain.FailureAuthenticationRequired, err)
	case code == http.StatusNotFound || code == http.StatusGone:
		return domain.NewEngineError(platform, op, domain.FailureContentUnavailable, err)
	case code == http.StatusTooManyRequests:
		return domain.NewEngineError(platform, op, domain.FailureRateLimited, err)
	case code >= 500:
		return domain.NewEngineError(platform, op, domain.FailureUpstreamError, err)
	}
	ee := domain.NewEngineError(platform, op, domain.FailureUpstreamError, err)
	ee.Permanent = true
	return ee
}

// lastLine returns the last non-empty ERROR line, or the last line.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(lines[i], "ERROR:") {
			return strings.TrimSpace(lines[i])
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
