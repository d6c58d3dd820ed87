// Package stats records download outcomes without blocking the caller.
package stats

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/YuldShah/uptovipnew/internal/domain"
	"github.com/YuldShah/uptovipnew/internal/metrics"
	"github.com/YuldShah/uptovipnew/internal/repository"
)

// DefaultBufferSize is used when the configured buffer is not positive.
const DefaultBufferSize = 1024

// Sink updates Prometheus counters inline and persists results from a
// background goroutine. When the buffer is full the result is dropped.
type Sink struct {
	repo   repository.StatsRepository
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	ch     chan domain.DownloadResult
	closed bool
	wg     sync.WaitGroup
}

// NewSink creates a sink writing to repo. Call Start to begin persisting.
func NewSink(repo repository.StatsRepository, bufferSize int, logger *slog.Logger) *Sink {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Sink{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		ch:     make(chan domain.DownloadResult, bufferSize),
	}
}

// Start launches the writer goroutine.
func (s *Sink) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Record accepts a result without blocking.
func (s *Sink) Record(r domain.DownloadResult) {
	metrics.RequestsTotal.WithLabelValues(string(r.Outcome), string(r.FailureKind)).Inc()
	if r.Succeeded() && !r.CacheHit {
		metrics.BytesTransferred.Add(float64(r.BytesTransferred))
	}
	if r.EngineUsed != "" && !r.CacheHit {
		metrics.FetchDuration.WithLabelValues(r.EngineUsed.String()).Observe(r.Duration.Seconds())
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		metrics.StatsDropped.Inc()
		return
	}

	select {
	case s.ch <- r:
	default:
		metrics.StatsDropped.Inc()
		s.logger.Warn("stats buffer full, dropping result", "request_id", r.RequestID)
	}
}

// Stop closes the sink and waits up to timeout for buffered results.
func (s *Sink) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("stats sink stop timed out")
	}
}

func (s *Sink) run(ctx context.Context) {
	defer s.wg.Done()

	for r := range s.ch {
		stat := domain.StatFromResult(r, s.now().UTC())

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		err := s.repo.Insert(writeCtx, stat)
		cancel()
		if err != nil {
			s.logger.Error("failed to persist download stat",
				"request_id", r.RequestID,
				"error", err,
			)
		}
	}
}
