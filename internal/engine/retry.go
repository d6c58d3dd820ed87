package engine

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/YuldShah/uptovipnew/internal/domain"
	"github.com/YuldShah/uptovipnew/internal/metrics"
)

// RetryConfig holds retry configuration.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig allows two retries after the first attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  2 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// NewRetryConfig builds a config allowing retries extra attempts.
func NewRetryConfig(retries int, delay, maxDelay time.Duration) RetryConfig {
	cfg := DefaultRetryConfig()
	if retries < 0 {
		retries = 0
	}
	cfg.MaxAttempts = retries + 1
	if delay > 0 {
		cfg.InitialDelay = delay
	}
	if maxDelay > 0 {
		cfg.MaxDelay = maxDelay
	}
	return cfg
}

// RetryWithCheck executes a function with retry, allowing custom retry decision.
func RetryWithCheck[T any](
	ctx context.Context,
	cfg RetryConfig,
	fn func() (T, error),
	shouldRetry func(error) bool,
) (T, error) {
	var lastErr error
	var zero T

	delay := cfg.InitialDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !shouldRetry(err) {
			break
		}

		// Don't wait after the last attempt
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return zero, lastErr
}

// Invoke runs e.Fetch, retrying transient failures. The work directory is
// emptied before every retry.
func Invoke(ctx context.Context, e Engine, in FetchInput, cfg RetryConfig) (*Download, error) {
	platform := e.Descriptor().PlatformID.String()
	attempt := 0

	return RetryWithCheck(ctx, cfg, func() (*Download, error) {
		attempt++
		if attempt > 1 {
			clearDir(in.WorkDir)
		}

		dl, err := e.Fetch(ctx, in)
		if err != nil {
			metrics.EngineFetches.WithLabelValues(platform, string(domain.KindOf(err))).Inc()
			return nil, err
		}
		metrics.EngineFetches.WithLabelValues(platform, "success").Inc()
		return dl, nil
	}, domain.IsTransient)
}

func clearDir(dir string) {
	if dir == "" {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		os.RemoveAll(filepath.Join(dir, entry.Name()))
	}
}
