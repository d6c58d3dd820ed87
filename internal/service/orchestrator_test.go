package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/YuldShah/uptovipnew/internal/access"
	"github.com/YuldShah/uptovipnew/internal/artifact"
	"github.com/YuldShah/uptovipnew/internal/cache"
	"github.com/YuldShah/uptovipnew/internal/domain"
	"github.com/YuldShah/uptovipnew/internal/engine"
	"github.com/YuldShah/uptovipnew/internal/fingerprint"
	"github.com/YuldShah/uptovipnew/pkg/ffmpeg"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockEngine counts fetches and delegates to fn.
type mockEngine struct {
	platform domain.PlatformID
	caps     domain.Capabilities
	calls    atomic.Int32
	fn       func(ctx context.Context, in engine.FetchInput) (*engine.Download, error)

	mu       sync.Mutex
	requests []domain.DownloadRequest
	auth     [][]engine.AuthSource
}

func newMockEngine(fn func(ctx context.Context, in engine.FetchInput) (*engine.Download, error)) *mockEngine {
	if fn == nil {
		fn = writeDownload("video.mp4", "video-bytes", domain.ArtifactVideo)
	}
	return &mockEngine{platform: domain.PlatformYouTube, fn: fn}
}

func (m *mockEngine) Descriptor() domain.EngineDescriptor {
	return domain.EngineDescriptor{
		PlatformID: m.platform,
		Matcher: func(u *url.URL) bool {
			return strings.Contains(u.Host, "youtube.com") || u.Host == "youtu.be"
		},
		Priority:     engine.PriorityYouTube,
		Capabilities: m.caps,
	}
}

func (m *mockEngine) Fetch(ctx context.Context, in engine.FetchInput) (*engine.Download, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.requests = append(m.requests, in.Request)
	m.auth = append(m.auth, in.Auth)
	m.mu.Unlock()
	return m.fn(ctx, in)
}

func (m *mockEngine) lastRequest() domain.DownloadRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

func writeDownload(name, content string, kind domain.ArtifactKind) func(ctx context.Context, in engine.FetchInput) (*engine.Download, error) {
	return func(ctx context.Context, in engine.FetchInput) (*engine.Download, error) {
		p := filepath.Join(in.WorkDir, name)
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			return nil, err
		}
		return &engine.Download{Path: p, Size: int64(len(content)), Kind: kind, Title: "title", Ext: filepath.Ext(name)}, nil
	}
}

// mockDecision answers access questions from maps.
type mockDecision struct {
	mu          sync.Mutex
	admins      map[int64]bool
	members     map[int64]bool
	memberErr   error
	memberCalls int
}

func (m *mockDecision) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	return m.admins[userID], nil
}

func (m *mockDecision) IsBanned(ctx context.Context, userID int64) (bool, error) {
	return false, nil
}

func (m *mockDecision) IsWhitelisted(ctx context.Context, userID int64) (bool, error) {
	return false, nil
}

func (m *mockDecision) IsMemberOfAny(ctx context.Context, userID int64, channelIDs []int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memberCalls++
	if m.memberErr != nil {
		return false, m.memberErr
	}
	return m.members[userID], nil
}

type staticChannels []domain.Channel

func (s staticChannels) ListActive(ctx context.Context) ([]domain.Channel, error) {
	return s, nil
}

type allowAll struct{}

func (allowAll) Check(ctx context.Context, userID int64) domain.AccessDecision {
	return domain.Allow(domain.AccessReasonAdmin)
}

// countingCache counts lookups on top of the real cache.
type countingCache struct {
	*cache.Cache
	lookups atomic.Int32
}

func (c *countingCache) Lookup(ctx context.Context, fp domain.Fingerprint) (*domain.CacheEntry, error) {
	c.lookups.Add(1)
	return c.Cache.Lookup(ctx, fp)
}

type mockArtifactStore struct {
	mu        sync.Mutex
	artifacts []artifact.Artifact
	err       error
}

func (m *mockArtifactStore) Upload(ctx context.Context, a artifact.Artifact) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if _, err := os.Stat(a.Path); err != nil {
		return "", err
	}
	m.artifacts = append(m.artifacts, a)
	return fmt.Sprintf("tg-file-%d", len(m.artifacts)), nil
}

func (m *mockArtifactStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.artifacts)
}

type mockStats struct {
	mu      sync.Mutex
	results []domain.DownloadResult
}

func (m *mockStats) Record(r domain.DownloadResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
}

func (m *mockStats) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

type mockPrefs struct {
	quality domain.Quality
	format  domain.OutputFormat
	err     error
}

func (m *mockPrefs) Get(ctx context.Context, userID int64, platform domain.PlatformID) (*domain.UserSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.UserSettings{UserID: userID, Platform: platform, Quality: m.quality, Format: m.format}, nil
}

type mockAlerter struct {
	mu     sync.Mutex
	alerts []domain.EventCategory
}

func (m *mockAlerter) Alert(ctx context.Context, category domain.EventCategory, source string, err error, metadata domain.EventMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, category)
}

type harness struct {
	orch      *Orchestrator
	engine    *mockEngine
	cache     *countingCache
	cacheMem  *cache.MemoryStore
	artifacts *mockArtifactStore
	stats     *mockStats
	alerter   *mockAlerter
}

func newHarness(t *testing.T, eng *mockEngine, gate Gate, mutate func(*Deps, *OrchestratorConfig)) *harness {
	t.Helper()

	mem := cache.NewMemoryStore()
	h := &harness{
		engine:    eng,
		cache:     &countingCache{Cache: cache.New(mem, cache.Config{TTL: time.Hour}, testLogger())},
		cacheMem:  mem,
		artifacts: &mockArtifactStore{},
		stats:     &mockStats{},
		alerter:   &mockAlerter{},
	}
	if gate == nil {
		gate = allowAll{}
	}

	deps := Deps{
		Gate:        gate,
		Preferences: &mockPrefs{quality: domain.QualityHigh},
		Cache:       h.cache,
		Registry:    engine.NewRegistry(eng),
		Artifacts:   h.artifacts,
		Stats:       h.stats,
		Alerter:     h.alerter,
	}
	cfg := OrchestratorConfig{
		TempPath:     t.TempDir(),
		FetchTimeout: 5 * time.Second,
		Retry:        engine.NewRetryConfig(2, time.Millisecond, time.Millisecond),
	}
	if mutate != nil {
		mutate(&deps, &cfg)
	}

	h.orch = NewOrchestrator(deps, cfg, testLogger())
	return h
}

func videoRequest(userID int64) domain.DownloadRequest {
	return domain.DownloadRequest{
		SourceURL: "https://youtube.com/watch?v=abc123",
		Quality:   domain.QualityHigh,
		Format:    domain.FormatVideo,
		UserID:    userID,
	}
}

func TestResolveAndDownload_AdminThenChannelMember(t *testing.T) {
	decisions := &mockDecision{
		admins:  map[int64]bool{1: true},
		members: map[int64]bool{2: true},
	}
	gate := access.NewGate(decisions, staticChannels{{ChannelID: -1001, IsActive: true}}, nil,
		access.Config{Enabled: true}, testLogger())
	h := newHarness(t, newMockEngine(nil), gate, nil)

	first := h.orch.ResolveAndDownload(context.Background(), videoRequest(1))
	if first.Outcome != domain.OutcomeSuccess {
		t.Fatalf("first outcome = %s (%s)", first.Outcome, first.Error)
	}
	if first.AccessReason != domain.AccessReasonAdmin {
		t.Errorf("first reason = %s, want admin", first.AccessReason)
	}
	if first.EngineUsed != domain.PlatformYouTube {
		t.Errorf("engine = %s, want youtube", first.EngineUsed)
	}
	if first.CacheHit {
		t.Error("first request should miss the cache")
	}
	if decisions.memberCalls != 0 {
		t.Errorf("membership queried %d times for an admin", decisions.memberCalls)
	}

	second := h.orch.ResolveAndDownload(context.Background(), videoRequest(2))
	if second.Outcome != domain.OutcomeSuccess {
		t.Fatalf("second outcome = %s (%s)", second.Outcome, second.Error)
	}
	if second.AccessReason != domain.AccessReasonChannelMember {
		t.Errorf("second reason = %s, want channel_member", second.AccessReason)
	}
	if !second.CacheHit {
		t.Error("second request should hit the cache")
	}
	if second.ArtifactReference != first.ArtifactReference {
		t.Errorf("reference = %q, want %q", second.ArtifactReference, first.ArtifactReference)
	}
	if second.Fingerprint != first.Fingerprint {
		t.Error("fingerprints differ for identical requests")
	}
	if n := h.engine.calls.Load(); n != 1 {
		t.Errorf("engine calls = %d, want 1", n)
	}
	if n := h.stats.count(); n != 2 {
		t.Errorf("stats records = %d, want 2", n)
	}
}

func TestResolveAndDownload_ConcurrentRequestsFetchOnce(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	write := writeDownload("video.mp4", "video-bytes", domain.ArtifactVideo)
	eng := newMockEngine(func(ctx context.Context, in engine.FetchInput) (*engine.Download, error) {
		once.Do(func() { close(started) })
		<-release
		return write(ctx, in)
	})
	h := newHarness(t, eng, nil, nil)

	const callers = 8
	results := make([]domain.DownloadResult, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = h.orch.ResolveAndDownload(context.Background(), videoRequest(1))
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.orch.ResolveAndDownload(context.Background(), videoRequest(int64(i+1)))
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := eng.calls.Load(); n != 1 {
		t.Fatalf("engine calls = %d, want 1", n)
	}
	for i, r := range results {
		if r.Outcome != domain.OutcomeSuccess {
			t.Errorf("result %d outcome = %s (%s)", i, r.Outcome, r.Error)
		}
		if r.ArtifactReference != results[0].ArtifactReference {
			t.Errorf("result %d reference = %q, want %q", i, r.ArtifactReference, results[0].ArtifactReference)
		}
	}
	if n := h.artifacts.count(); n != 1 {
		t.Errorf("uploads = %d, want 1", n)
	}
	if n := h.stats.count(); n != callers {
		t.Errorf("stats records = %d, want %d", n, callers)
	}
}

func TestResolveAndDownload_FailSecureGate(t *testing.T) {
	decisions := &mockDecision{memberErr: errors.New("telegram api unreachable")}
	gate := access.NewGate(decisions, staticChannels{{ChannelID: -1001, IsActive: true}}, nil,
		access.Config{Enabled: true}, testLogger())
	h := newHarness(t, newMockEngine(nil), gate, nil)

	result := h.orch.ResolveAndDownload(context.Background(), videoRequest(5))

	if result.Outcome != domain.OutcomeFailure {
		t.Fatalf("outcome = %s, want failure", result.Outcome)
	}
	if result.FailureKind != domain.FailureAccessDenied {
		t.Errorf("failure kind = %s, want access_denied", result.FailureKind)
	}
	if result.AccessReason != domain.AccessReasonError {
		t.Errorf("reason = %s, want error", result.AccessReason)
	}
	if n := h.cache.lookups.Load(); n != 0 {
		t.Errorf("cache lookups = %d, want 0", n)
	}
	if n := h.engine.calls.Load(); n != 0 {
		t.Errorf("engine calls = %d, want 0", n)
	}
	if n := h.stats.count(); n != 1 {
		t.Errorf("stats records = %d, want 1", n)
	}
}

func TestResolveAndDownload_QualityIsolation(t *testing.T) {
	h := newHarness(t, newMockEngine(nil), nil, nil)

	video := h.orch.ResolveAndDownload(context.Background(), videoRequest(1))
	if video.Outcome != domain.OutcomeSuccess {
		t.Fatalf("video outcome = %s (%s)", video.Outcome, video.Error)
	}

	audioReq := videoRequest(1)
	audioReq.Quality = domain.QualityAudio
	audioReq.Format = domain.FormatAudio
	audio := h.orch.ResolveAndDownload(context.Background(), audioReq)

	if audio.Outcome != domain.OutcomeSuccess {
		t.Fatalf("audio outcome = %s (%s)", audio.Outcome, audio.Error)
	}
	if audio.CacheHit {
		t.Error("audio request must not hit the video entry")
	}
	if audio.Fingerprint == video.Fingerprint {
		t.Error("audio and video fingerprints must differ")
	}
	if n := h.engine.calls.Load(); n != 2 {
		t.Errorf("engine calls = %d, want 2", n)
	}
}

func TestResolveAndDownload_RetryBound(t *testing.T) {
	for _, retries := range []int{0, 1, 2, 3} {
		t.Run(fmt.Sprintf("retries=%d", retries), func(t *testing.T) {
			eng := newMockEngine(func(ctx context.Context, in engine.FetchInput) (*engine.Download, error) {
				return nil, domain.NewEngineError(domain.PlatformYouTube, "fetch", domain.FailureRateLimited, errors.New("HTTP Error 429"))
			})
			h := newHarness(t, eng, nil, func(d *Deps, c *OrchestratorConfig) {
				c.Retry = engine.NewRetryConfig(retries, time.Millisecond, time.Millisecond)
			})

			result := h.orch.ResolveAndDownload(context.Background(), videoRequest(1))
			if result.FailureKind != domain.FailureRateLimited {
				t.Errorf("failure kind = %s, want rate_limited", result.FailureKind)
			}
			if n := eng.calls.Load(); n != int32(retries+1) {
				t.Errorf("engine calls = %d, want %d", n, retries+1)
			}
		})
	}
}

func TestResolveAndDownload_PermanentFailureNotRetried(t *testing.T) {
	eng := newMockEngine(func(ctx context.Context, in engine.FetchInput) (*engine.Download, error) {
		return nil, domain.NewEngineError(domain.PlatformYouTube, "fetch", domain.FailureContentUnavailable, errors.New("Private video"))
	})
	h := newHarness(t, eng, nil, nil)

	result := h.orch.ResolveAndDownload(context.Background(), videoRequest(1))
	if result.FailureKind != domain.FailureContentUnavailable {
		t.Errorf("failure kind = %s, want content_unavailable", result.FailureKind)
	}
	if n := eng.calls.Load(); n != 1 {
		t.Errorf("engine calls = %d, want 1", n)
	}
	if _, err := h.cacheMem.Get(context.Background(), result.Fingerprint); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Error("failed fetch must not be cached")
	}
}

func TestResolveAndDownload_NoEngine(t *testing.T) {
	h := newHarness(t, newMockEngine(nil), nil, nil)

	for _, raw := range []string{"ftp://example.com/file", "https://example.com/video"} {
		req := videoRequest(1)
		req.SourceURL = raw
		result := h.orch.ResolveAndDownload(context.Background(), req)
		if result.FailureKind != domain.FailureNoEngineAvailable {
			t.Errorf("%s: failure kind = %s, want no_engine_available", raw, result.FailureKind)
		}
	}
	if n := h.engine.calls.Load(); n != 0 {
		t.Errorf("engine calls = %d, want 0", n)
	}
}

func TestResolveAndDownload_FillsQualityFromPreference(t *testing.T) {
	eng := newMockEngine(nil)
	h := newHarness(t, eng, nil, func(d *Deps, c *OrchestratorConfig) {
		d.Preferences = &mockPrefs{quality: domain.QualityMedium}
	})

	req := videoRequest(1)
	req.Quality = ""
	req.Format = ""
	result := h.orch.ResolveAndDownload(context.Background(), req)
	if result.Outcome != domain.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s)", result.Outcome, result.Error)
	}

	got := eng.lastRequest()
	if got.Quality != domain.QualityMedium || got.Format != domain.FormatVideo {
		t.Errorf("engine saw quality=%s format=%s, want medium/video", got.Quality, got.Format)
	}

	want := fingerprint.Build(req.WithQuality(domain.QualityMedium))
	if result.Fingerprint != want {
		t.Errorf("fingerprint = %s, want %s", result.Fingerprint.Short(), want.Short())
	}
}

func TestResolveAndDownload_FillsFormatFromPreference(t *testing.T) {
	eng := newMockEngine(nil)
	h := newHarness(t, eng, nil, func(d *Deps, c *OrchestratorConfig) {
		d.Preferences = &mockPrefs{quality: domain.QualityLow, format: domain.FormatDocument}
	})

	req := videoRequest(1)
	req.Quality = ""
	req.Format = ""
	result := h.orch.ResolveAndDownload(context.Background(), req)
	if result.Outcome != domain.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s)", result.Outcome, result.Error)
	}

	got := eng.lastRequest()
	if got.Quality != domain.QualityLow || got.Format != domain.FormatDocument {
		t.Errorf("engine saw quality=%s format=%s, want low/document", got.Quality, got.Format)
	}
	if result.ArtifactKind != domain.ArtifactDocument {
		t.Errorf("kind = %s, want document", result.ArtifactKind)
	}

	want := req.WithQuality(domain.QualityLow)
	want.Format = domain.FormatDocument
	if result.Fingerprint != fingerprint.Build(want) {
		t.Error("fingerprint must include the stored format")
	}
}

func TestResolveAndDownload_ExplicitFormatBeatsPreference(t *testing.T) {
	eng := newMockEngine(nil)
	h := newHarness(t, eng, nil, func(d *Deps, c *OrchestratorConfig) {
		d.Preferences = &mockPrefs{quality: domain.QualityHigh, format: domain.FormatDocument}
	})

	req := videoRequest(1)
	req.Quality = ""
	result := h.orch.ResolveAndDownload(context.Background(), req)
	if result.Outcome != domain.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s)", result.Outcome, result.Error)
	}
	if got := eng.lastRequest().Format; got != domain.FormatVideo {
		t.Errorf("format = %s, want video", got)
	}
}

func TestResolveAndDownload_AudioPreferenceDefaultsToAudioFormat(t *testing.T) {
	eng := newMockEngine(writeDownload("song.m4a", "audio-bytes", domain.ArtifactAudio))
	h := newHarness(t, eng, nil, func(d *Deps, c *OrchestratorConfig) {
		d.Preferences = &mockPrefs{quality: domain.QualityAudio, format: domain.FormatVideo}
	})

	req := videoRequest(1)
	req.Quality = ""
	req.Format = ""
	h.orch.ResolveAndDownload(context.Background(), req)
	if got := eng.lastRequest().Format; got != domain.FormatAudio {
		t.Errorf("format = %s, want audio", got)
	}
}

func TestResolveAndDownload_PreferenceErrorUsesDefault(t *testing.T) {
	eng := newMockEngine(nil)
	h := newHarness(t, eng, nil, func(d *Deps, c *OrchestratorConfig) {
		d.Preferences = &mockPrefs{err: errors.New("db locked")}
	})

	req := videoRequest(1)
	req.Quality = ""
	result := h.orch.ResolveAndDownload(context.Background(), req)
	if result.Outcome != domain.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s)", result.Outcome, result.Error)
	}
	if got := eng.lastRequest().Quality; got != domain.DefaultQuality {
		t.Errorf("quality = %s, want %s", got, domain.DefaultQuality)
	}
}

func TestResolveAndDownload_CallerCancelled(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	write := writeDownload("video.mp4", "video-bytes", domain.ArtifactVideo)
	eng := newMockEngine(func(ctx context.Context, in engine.FetchInput) (*engine.Download, error) {
		close(started)
		<-release
		return write(ctx, in)
	})
	h := newHarness(t, eng, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan domain.DownloadResult, 1)
	go func() {
		done <- h.orch.ResolveAndDownload(ctx, videoRequest(1))
	}()

	<-started
	cancel()

	result := <-done
	if result.FailureKind != domain.FailureTimeout {
		t.Errorf("failure kind = %s, want timeout", result.FailureKind)
	}
	if result.Error != "caller cancelled" {
		t.Errorf("error = %q, want caller cancelled", result.Error)
	}

	// The fetch keeps running for later callers.
	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for h.cacheMem.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	again := h.orch.ResolveAndDownload(context.Background(), videoRequest(1))
	if !again.CacheHit {
		t.Error("detached fetch should have populated the cache")
	}
	if n := eng.calls.Load(); n != 1 {
		t.Errorf("engine calls = %d, want 1", n)
	}
}

func TestResolveAndDownload_EnginePanic(t *testing.T) {
	eng := newMockEngine(func(ctx context.Context, in engine.FetchInput) (*engine.Download, error) {
		panic("nil map write")
	})
	h := newHarness(t, eng, nil, nil)

	result := h.orch.ResolveAndDownload(context.Background(), videoRequest(1))
	if result.FailureKind != domain.FailureUpstreamError {
		t.Errorf("failure kind = %s, want upstream_error", result.FailureKind)
	}
	if !strings.Contains(result.Error, "panic") {
		t.Errorf("error = %q, want panic mention", result.Error)
	}
	if n := h.stats.count(); n != 1 {
		t.Errorf("stats records = %d, want 1", n)
	}

	// The flight is released after a panic.
	eng.fn = writeDownload("video.mp4", "ok", domain.ArtifactVideo)
	if r := h.orch.ResolveAndDownload(context.Background(), videoRequest(1)); r.Outcome != domain.OutcomeSuccess {
		t.Errorf("retry after panic outcome = %s (%s)", r.Outcome, r.Error)
	}
}

func TestResolveAndDownload_ForceRefetches(t *testing.T) {
	h := newHarness(t, newMockEngine(nil), nil, nil)

	first := h.orch.ResolveAndDownload(context.Background(), videoRequest(1))
	forced := videoRequest(1)
	forced.Force = true
	second := h.orch.ResolveAndDownload(context.Background(), forced)

	if second.CacheHit {
		t.Error("forced request should not hit the cache")
	}
	if n := h.engine.calls.Load(); n != 2 {
		t.Errorf("engine calls = %d, want 2", n)
	}
	if second.ArtifactReference == first.ArtifactReference {
		t.Error("forced request should store a new reference")
	}

	entry, err := h.cache.Lookup(context.Background(), first.Fingerprint)
	if err != nil || entry == nil || entry.ArtifactReference != second.ArtifactReference {
		t.Errorf("cache entry = %+v, %v; want reference %s", entry, err, second.ArtifactReference)
	}
}

func TestResolveAndDownload_RejectsOversizedArtifact(t *testing.T) {
	h := newHarness(t, newMockEngine(nil), nil, func(d *Deps, c *OrchestratorConfig) {
		c.MaxFileSize = 4
	})

	result := h.orch.ResolveAndDownload(context.Background(), videoRequest(1))
	if result.FailureKind != domain.FailureContentUnavailable {
		t.Errorf("failure kind = %s, want content_unavailable", result.FailureKind)
	}
	if n := h.artifacts.count(); n != 0 {
		t.Errorf("uploads = %d, want 0", n)
	}
}

func TestResolveAndDownload_UploadFailure(t *testing.T) {
	h := newHarness(t, newMockEngine(nil), nil, nil)
	h.artifacts.err = errors.New("telegram: Request Entity Too Large (400)")

	result := h.orch.ResolveAndDownload(context.Background(), videoRequest(1))
	if result.FailureKind != domain.FailureUpstreamError {
		t.Errorf("failure kind = %s, want upstream_error", result.FailureKind)
	}
	if h.cacheMem.Len() != 0 {
		t.Error("failed upload must not be cached")
	}

	h.alerter.mu.Lock()
	defer h.alerter.mu.Unlock()
	found := false
	for _, c := range h.alerter.alerts {
		if c == domain.EventCategoryUpload {
			found = true
		}
	}
	if !found {
		t.Errorf("alerts = %v, want an upload alert", h.alerter.alerts)
	}
}

func TestResolveAndDownload_WorkDirRemoved(t *testing.T) {
	tmp := t.TempDir()
	h := newHarness(t, newMockEngine(nil), nil, func(d *Deps, c *OrchestratorConfig) {
		c.TempPath = tmp
	})

	h.orch.ResolveAndDownload(context.Background(), videoRequest(1))

	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp path has %d leftover entries", len(entries))
	}
}

type mockMedia struct {
	info      ffmpeg.MediaInfo
	extracted atomic.Int32
}

func (m *mockMedia) Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error) {
	info := m.info
	return &info, nil
}

func (m *mockMedia) ExtractAudio(ctx context.Context, inputPath string, cfg ffmpeg.ExtractAudioConfig) (string, error) {
	m.extracted.Add(1)
	out := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "." + cfg.Format
	return out, os.WriteFile(out, []byte("aac"), 0644)
}

func TestResolveAndDownload_ExtractsAudioFromVideo(t *testing.T) {
	media := &mockMedia{info: ffmpeg.MediaInfo{HasVideo: true, HasAudio: true}}
	h := newHarness(t, newMockEngine(nil), nil, func(d *Deps, c *OrchestratorConfig) {
		d.Media = media
	})

	req := videoRequest(1)
	req.Quality = domain.QualityAudio
	req.Format = domain.FormatAudio
	result := h.orch.ResolveAndDownload(context.Background(), req)

	if result.Outcome != domain.OutcomeSuccess {
		t.Fatalf("outcome = %s (%s)", result.Outcome, result.Error)
	}
	if result.ArtifactKind != domain.ArtifactAudio {
		t.Errorf("kind = %s, want audio", result.ArtifactKind)
	}
	if media.extracted.Load() != 1 {
		t.Errorf("extractions = %d, want 1", media.extracted.Load())
	}

	h.artifacts.mu.Lock()
	defer h.artifacts.mu.Unlock()
	if got := h.artifacts.artifacts[0]; got.Kind != domain.ArtifactAudio || filepath.Ext(got.FileName) != ".m4a" {
		t.Errorf("uploaded %+v, want m4a audio", got)
	}
}

func TestResolveAndDownload_AudioOnlyFileIsAudio(t *testing.T) {
	media := &mockMedia{info: ffmpeg.MediaInfo{HasAudio: true}}
	h := newHarness(t, newMockEngine(nil), nil, func(d *Deps, c *OrchestratorConfig) {
		d.Media = media
	})

	result := h.orch.ResolveAndDownload(context.Background(), videoRequest(1))
	if result.ArtifactKind != domain.ArtifactAudio {
		t.Errorf("kind = %s, want audio", result.ArtifactKind)
	}
	if media.extracted.Load() != 0 {
		t.Error("audio-only file should not be converted")
	}
}

func TestResolveAndDownload_DocumentFormat(t *testing.T) {
	h := newHarness(t, newMockEngine(nil), nil, nil)

	req := videoRequest(1)
	req.Format = domain.FormatDocument
	result := h.orch.ResolveAndDownload(context.Background(), req)
	if result.ArtifactKind != domain.ArtifactDocument {
		t.Errorf("kind = %s, want document", result.ArtifactKind)
	}
}

func TestResolveAndDownload_CacheHitKeepsStoredKind(t *testing.T) {
	eng := newMockEngine(writeDownload("archive.zip", "zip-bytes", domain.ArtifactDocument))
	eng.platform = domain.PlatformDirect
	h := newHarness(t, eng, nil, nil)

	first := h.orch.ResolveAndDownload(context.Background(), videoRequest(1))
	if first.Outcome != domain.OutcomeSuccess || first.CacheHit {
		t.Fatalf("first: outcome=%s cache_hit=%t (%s)", first.Outcome, first.CacheHit, first.Error)
	}
	if first.ArtifactKind != domain.ArtifactDocument {
		t.Errorf("first kind = %s, want document", first.ArtifactKind)
	}

	second := h.orch.ResolveAndDownload(context.Background(), videoRequest(2))
	if !second.CacheHit {
		t.Fatal("second request should be served from cache")
	}
	if second.ArtifactKind != domain.ArtifactDocument {
		t.Errorf("cached kind = %s, want document", second.ArtifactKind)
	}
	if second.ArtifactReference != first.ArtifactReference {
		t.Errorf("reference = %q, want %q", second.ArtifactReference, first.ArtifactReference)
	}
	if n := eng.calls.Load(); n != 1 {
		t.Errorf("engine calls = %d, want 1", n)
	}
}

func TestResolveAndDownload_LegacyEntryKindFromFormat(t *testing.T) {
	h := newHarness(t, newMockEngine(nil), nil, nil)
	ctx := context.Background()

	req := videoRequest(1)
	req.Format = domain.FormatAudio
	fp := fingerprint.Build(req)
	if _, err := h.cacheMem.Upsert(ctx, domain.CacheEntry{
		Fingerprint:       fp,
		ArtifactReference: "old-ref",
		CreatedAt:         time.Now(),
		LastValidatedAt:   time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	result := h.orch.ResolveAndDownload(ctx, req)
	if !result.CacheHit || result.ArtifactKind != domain.ArtifactAudio {
		t.Errorf("cache_hit=%t kind=%s, want hit/audio", result.CacheHit, result.ArtifactKind)
	}
}

func TestResolveAndDownload_FetchTimeout(t *testing.T) {
	write := writeDownload("video.mp4", "video-bytes", domain.ArtifactVideo)
	var attempt atomic.Int32
	eng := newMockEngine(func(ctx context.Context, in engine.FetchInput) (*engine.Download, error) {
		if attempt.Add(1) == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return write(ctx, in)
	})
	h := newHarness(t, eng, nil, func(d *Deps, c *OrchestratorConfig) {
		c.FetchTimeout = 50 * time.Millisecond
		c.Retry = engine.NewRetryConfig(0, time.Millisecond, time.Millisecond)
	})

	first := h.orch.ResolveAndDownload(context.Background(), videoRequest(1))
	if first.Outcome != domain.OutcomeFailure || first.FailureKind != domain.FailureTimeout {
		t.Fatalf("first: outcome=%s kind=%s, want failure/timeout", first.Outcome, first.FailureKind)
	}
	if n := eng.calls.Load(); n != 1 {
		t.Errorf("engine calls after timeout = %d, want 1", n)
	}
	if _, err := h.cacheMem.Get(context.Background(), first.Fingerprint); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Error("timed out fetch must not be cached")
	}

	second := h.orch.ResolveAndDownload(context.Background(), videoRequest(1))
	if second.Outcome != domain.OutcomeSuccess || second.CacheHit {
		t.Fatalf("retry: outcome=%s cache_hit=%t (%s)", second.Outcome, second.CacheHit, second.Error)
	}
	if n := eng.calls.Load(); n != 2 {
		t.Errorf("engine calls = %d, want 2", n)
	}
	if h.stats.count() != 2 {
		t.Errorf("stats records = %d, want 2", h.stats.count())
	}
}

func TestResolveAndDownload_PassesAuthChain(t *testing.T) {
	eng := newMockEngine(nil)
	h := newHarness(t, eng, nil, func(d *Deps, c *OrchestratorConfig) {
		c.Auth = engine.AuthConfig{Browsers: []string{"firefox", "chrome"}}
	})

	h.orch.ResolveAndDownload(context.Background(), videoRequest(1))

	eng.mu.Lock()
	defer eng.mu.Unlock()
	chain := eng.auth[0]
	if len(chain) != 3 {
		t.Fatalf("chain length = %d, want 3", len(chain))
	}
	if chain[0].Browser != "firefox" || chain[1].Browser != "chrome" || chain[2].Kind != engine.AuthAnonymous {
		t.Errorf("chain = %v", chain)
	}
}

func TestInvalidate(t *testing.T) {
	h := newHarness(t, newMockEngine(nil), nil, nil)

	first := h.orch.ResolveAndDownload(context.Background(), videoRequest(1))
	if err := h.orch.Invalidate(context.Background(), first.Fingerprint); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	second := h.orch.ResolveAndDownload(context.Background(), videoRequest(1))
	if second.CacheHit {
		t.Error("request after invalidation should miss")
	}
	if n := h.engine.calls.Load(); n != 2 {
		t.Errorf("engine calls = %d, want 2", n)
	}
}

// listerEngine also enumerates formats.
type listerEngine struct {
	*mockEngine
	listCalls atomic.Int32
	formats   []domain.FormatDescriptor
}

func (l *listerEngine) ListFormats(ctx context.Context, rawURL string, auth []engine.AuthSource) ([]domain.FormatDescriptor, error) {
	l.listCalls.Add(1)
	return l.formats, nil
}

func TestListFormats(t *testing.T) {
	base := newMockEngine(nil)
	base.caps = domain.Capabilities{SupportsFormatListing: true}
	lister := &listerEngine{
		mockEngine: base,
		formats: []domain.FormatDescriptor{
			{ID: "137", Label: "1080p mp4", Kind: domain.FormatKindVideo, QualityRank: 0},
			{ID: "22", Label: "720p mp4", Kind: domain.FormatKindVideo, QualityRank: 1},
			{ID: "140", Label: "audio 128k m4a", Kind: domain.FormatKindAudio, QualityRank: 2},
		},
	}

	o := NewOrchestrator(Deps{
		Gate:      allowAll{},
		Cache:     cache.New(cache.NewMemoryStore(), cache.Config{}, testLogger()),
		Registry:  engine.NewRegistry(lister),
		Artifacts: &mockArtifactStore{},
		Stats:     &mockStats{},
	}, OrchestratorConfig{TempPath: t.TempDir()}, testLogger())

	seq := o.ListFormats(context.Background(), "https://youtu.be/abc123")

	var ids []string
	for f, err := range seq {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids = append(ids, f.ID)
	}
	if strings.Join(ids, ",") != "137,22,140" {
		t.Errorf("ids = %v", ids)
	}

	// Early break stops the iteration.
	count := 0
	for range seq {
		count++
		break
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	// Each iteration probes again.
	if n := lister.listCalls.Load(); n != 2 {
		t.Errorf("list calls = %d, want 2", n)
	}
}

func TestListFormats_Unsupported(t *testing.T) {
	o := NewOrchestrator(Deps{
		Gate:      allowAll{},
		Cache:     cache.New(cache.NewMemoryStore(), cache.Config{}, testLogger()),
		Registry:  engine.NewRegistry(newMockEngine(nil)),
		Artifacts: &mockArtifactStore{},
		Stats:     &mockStats{},
	}, OrchestratorConfig{TempPath: t.TempDir()}, testLogger())

	var errs []error
	for _, err := range o.ListFormats(context.Background(), "https://youtu.be/abc123") {
		errs = append(errs, err)
	}
	if len(errs) != 1 || !errors.Is(errs[0], domain.ErrFormatsUnsupported) {
		t.Errorf("errs = %v, want one ErrFormatsUnsupported", errs)
	}

	errs = nil
	for _, err := range o.ListFormats(context.Background(), "gopher://nope") {
		errs = append(errs, err)
	}
	if len(errs) != 1 || !errors.Is(errs[0], domain.ErrNoEngineAvailable) {
		t.Errorf("errs = %v, want one ErrNoEngineAvailable", errs)
	}
}
