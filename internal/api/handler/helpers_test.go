package handler

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/YuldShah/uptovipnew/internal/domain"
	"github.com/YuldShah/uptovipnew/internal/repository"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

const testFingerprint = domain.Fingerprint("9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08")

// mockJobRepository is a test implementation of repository.JobRepository.
type mockJobRepository struct {
	mu         sync.Mutex
	stats      *repository.QueueStats
	statsErr   error
	jobs       map[domain.JobID]*domain.Job
	enqueueErr error
}

func newMockJobRepository() *mockJobRepository {
	return &mockJobRepository{
		stats: &repository.QueueStats{},
		jobs:  make(map[domain.JobID]*domain.Job),
	}
}

func (m *mockJobRepository) Enqueue(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *mockJobRepository) Dequeue(ctx context.Context) (*domain.Job, error) {
	return nil, domain.ErrNoJobs
}

func (m *mockJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		return job, nil
	}
	return nil, domain.ErrJobNotFound
}

func (m *mockJobRepository) Update(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *mockJobRepository) ListPending(ctx context.Context) ([]*domain.Job, error) {
	return nil, nil
}

func (m *mockJobRepository) Stats(ctx context.Context) (*repository.QueueStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

// mockOrchestrator records calls and returns canned results.
type mockOrchestrator struct {
	mu       sync.Mutex
	requests []domain.DownloadRequest
	result   domain.DownloadResult
	block    chan struct{}

	formats    []domain.FormatDescriptor
	formatsErr error

	invalidated   []domain.Fingerprint
	invalidateErr error
}

func (m *mockOrchestrator) ResolveAndDownload(ctx context.Context, req domain.DownloadRequest) domain.DownloadResult {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	block := m.block
	m.mu.Unlock()

	if block != nil {
		<-block
	}
	res := m.result
	res.SourceURL = req.SourceURL
	res.UserID = req.UserID
	return res
}

func (m *mockOrchestrator) ListFormats(ctx context.Context, rawURL string) iter.Seq2[domain.FormatDescriptor, error] {
	return func(yield func(domain.FormatDescriptor, error) bool) {
		if m.formatsErr != nil {
			yield(domain.FormatDescriptor{}, m.formatsErr)
			return
		}
		for _, f := range m.formats {
			if !yield(f, nil) {
				return
			}
		}
	}
}

func (m *mockOrchestrator) Invalidate(ctx context.Context, fp domain.Fingerprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, fp)
	return m.invalidateErr
}

func (m *mockOrchestrator) calls() []domain.DownloadRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DownloadRequest(nil), m.requests...)
}

type mockEvicter struct {
	removed int
	err     error
}

func (m *mockEvicter) Evict(ctx context.Context) (int, error) {
	return m.removed, m.err
}

type mockUsers struct {
	mu       sync.Mutex
	statuses map[int64]domain.AccessStatus
	err      error
}

func (m *mockUsers) GetAccessStatus(ctx context.Context, userID int64) (domain.AccessStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.AccessStatusNormal, m.err
	}
	return m.statuses[userID], nil
}

func (m *mockUsers) SetAccessStatus(ctx context.Context, userID int64, status domain.AccessStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.statuses == nil {
		m.statuses = make(map[int64]domain.AccessStatus)
	}
	m.statuses[userID] = status
	return nil
}

type mockChannels struct {
	mu       sync.Mutex
	channels []domain.Channel
}

func (m *mockChannels) ListActive(ctx context.Context) ([]domain.Channel, error) {
	return m.List(ctx)
}

func (m *mockChannels) List(ctx context.Context) ([]domain.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Channel(nil), m.channels...), nil
}

func (m *mockChannels) Add(ctx context.Context, ch domain.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
	return nil
}

func (m *mockChannels) SetActive(ctx context.Context, channelID int64, active bool) error {
	return nil
}

func (m *mockChannels) Remove(ctx context.Context, channelID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ch := range m.channels {
		if ch.ChannelID == channelID {
			m.channels = append(m.channels[:i], m.channels[i+1:]...)
			return nil
		}
	}
	return domain.ErrChannelNotFound
}

type mockPrefs struct {
	mu       sync.Mutex
	settings map[int64]domain.UserSettings
}

func (m *mockPrefs) GetPreference(ctx context.Context, userID int64, platform domain.PlatformID) (domain.Quality, error) {
	s, err := m.Get(ctx, userID, platform)
	if err != nil {
		return "", err
	}
	return s.Quality, nil
}

func (m *mockPrefs) Get(ctx context.Context, userID int64, platform domain.PlatformID) (*domain.UserSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.settings[userID]; ok {
		return &s, nil
	}
	return &domain.UserSettings{UserID: userID, Platform: platform, Quality: domain.DefaultQuality}, nil
}

func (m *mockPrefs) Set(ctx context.Context, s domain.UserSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		m.settings = make(map[int64]domain.UserSettings)
	}
	m.settings[s.UserID] = s
	return nil
}

type mockStatsRepo struct {
	mu      sync.Mutex
	since   time.Time
	summary []domain.PlatformSummary
}

func (m *mockStatsRepo) Insert(ctx context.Context, stat domain.DownloadStat) error {
	return nil
}

func (m *mockStatsRepo) Summary(ctx context.Context, since time.Time) ([]domain.PlatformSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.since = since
	return m.summary, nil
}

type mockEventSource struct {
	mu      sync.Mutex
	events  []domain.Event
	queries []domain.EventQuery
	hist    bool
	subs    map[uint64]chan domain.Event
	nextSub uint64
}

func (m *mockEventSource) Query(ctx context.Context, q domain.EventQuery) (*domain.EventQueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	return &domain.EventQueryResult{Events: m.events, Total: len(m.events)}, nil
}

func (m *mockEventSource) QueryHistorical(ctx context.Context, q domain.EventQuery) (*domain.EventQueryResult, error) {
	m.mu.Lock()
	m.hist = true
	m.mu.Unlock()
	return m.Query(ctx, q)
}

func (m *mockEventSource) GetRecent(n int) []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.events) {
		n = len(m.events)
	}
	return m.events[:n]
}

func (m *mockEventSource) Subscribe() (uint64, <-chan domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		m.subs = make(map[uint64]chan domain.Event)
	}
	m.nextSub++
	ch := make(chan domain.Event, 4)
	m.subs[m.nextSub] = ch
	return m.nextSub, ch
}

func (m *mockEventSource) Unsubscribe(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
}

func (m *mockEventSource) publish(e domain.Event) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		ch <- e
	}
	return len(m.subs)
}
