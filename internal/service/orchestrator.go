// Package service implements the download orchestration core.
package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/YuldShah/uptovipnew/internal/artifact"
	"github.com/YuldShah/uptovipnew/internal/domain"
	"github.com/YuldShah/uptovipnew/internal/engine"
	"github.com/YuldShah/uptovipnew/internal/fingerprint"
	"github.com/YuldShah/uptovipnew/internal/metrics"
	"github.com/YuldShah/uptovipnew/pkg/ffmpeg"
)

// Gate decides whether a user may download.
type Gate interface {
	Check(ctx context.Context, userID int64) domain.AccessDecision
}

// PreferenceStore returns a user's effective settings for a platform.
type PreferenceStore interface {
	Get(ctx context.Context, userID int64, platform domain.PlatformID) (*domain.UserSettings, error)
}

// ContentCache maps fingerprints to stored artifacts.
type ContentCache interface {
	Lookup(ctx context.Context, fp domain.Fingerprint) (*domain.CacheEntry, error)
	Store(ctx context.Context, fp domain.Fingerprint, ref string, kind domain.ArtifactKind, sizeBytes int64) (*domain.CacheEntry, error)
	Invalidate(ctx context.Context, fp domain.Fingerprint) error
}

// StatsSink receives one result per request. Record must not block.
type StatsSink interface {
	Record(result domain.DownloadResult)
}

// MediaProcessor inspects and converts downloaded files.
type MediaProcessor interface {
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
	ExtractAudio(ctx context.Context, inputPath string, cfg ffmpeg.ExtractAudioConfig) (string, error)
}

// Alerter receives failures operators should see.
type Alerter interface {
	Alert(ctx context.Context, category domain.EventCategory, source string, err error, metadata domain.EventMetadata)
}

// OrchestratorConfig holds orchestration settings.
type OrchestratorConfig struct {
	// TempPath is the parent of per-fetch work directories.
	TempPath string

	// FetchTimeout bounds one fetch including retries and upload.
	FetchTimeout time.Duration

	// MaxFileSize rejects larger artifacts before upload. Zero disables.
	MaxFileSize int64

	// AudioFormat is the container used when audio is extracted locally.
	AudioFormat string

	Retry engine.RetryConfig
	Auth  engine.AuthConfig
}

// Orchestrator runs requests through gate, cache, engine and upload.
type Orchestrator struct {
	gate     Gate
	prefs    PreferenceStore
	cache    ContentCache
	registry *engine.Registry
	store    artifact.Store
	stats    StatsSink
	media    MediaProcessor
	alerter  Alerter
	cfg      OrchestratorConfig
	logger   *slog.Logger
	now      func() time.Time

	flights singleflight.Group
}

// Deps groups the collaborators of an Orchestrator. Media and Alerter
// may be nil.
type Deps struct {
	Gate        Gate
	Preferences PreferenceStore
	Cache       ContentCache
	Registry    *engine.Registry
	Artifacts   artifact.Store
	Stats       StatsSink
	Media       MediaProcessor
	Alerter     Alerter
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(deps Deps, cfg OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Minute
	}
	if cfg.TempPath == "" {
		cfg.TempPath = os.TempDir()
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = "m4a"
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = engine.DefaultRetryConfig()
	}

	return &Orchestrator{
		gate:     deps.Gate,
		prefs:    deps.Preferences,
		cache:    deps.Cache,
		registry: deps.Registry,
		store:    deps.Artifacts,
		stats:    deps.Stats,
		media:    deps.Media,
		alerter:  deps.Alerter,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// fetchOutcome is the value shared by every caller of one flight.
type fetchOutcome struct {
	ref      string
	kind     domain.ArtifactKind
	size     int64
	cacheHit bool
}

// request tracks one call through the state machine.
type request struct {
	state  domain.State
	result domain.DownloadResult
	logger *slog.Logger
}

func (r *request) transition(next domain.State) {
	if !r.state.CanTransition(next) {
		r.logger.Error("illegal state transition", "from", r.state, "to", next)
	}
	r.logger.Debug("state transition", "from", r.state, "to", next)
	r.state = next
}

func (r *request) fail(kind domain.FailureKind, err error) domain.DownloadResult {
	r.transition(domain.StateFailed)
	r.result.Outcome = domain.OutcomeFailure
	r.result.FailureKind = kind
	if err != nil {
		r.result.Error = err.Error()
	}
	return r.result
}

func (r *request) succeed() domain.DownloadResult {
	r.transition(domain.StateDone)
	r.result.Outcome = domain.OutcomeSuccess
	return r.result
}

// ResolveAndDownload runs one request to a terminal state. It never
// panics and always hands exactly one result to the stats sink.
func (o *Orchestrator) ResolveAndDownload(ctx context.Context, req domain.DownloadRequest) (result domain.DownloadResult) {
	start := o.now()
	r := &request{
		state: domain.StatePending,
		result: domain.DownloadResult{
			RequestID: uuid.New().String(),
			UserID:    req.UserID,
			SourceURL: req.SourceURL,
		},
	}
	r.logger = o.logger.With("request_id", r.result.RequestID, "user_id", req.UserID)

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("orchestration panic", "panic", p)
			result = r.result
			result.Outcome = domain.OutcomeFailure
			result.FailureKind = domain.FailureUpstreamError
			result.Error = fmt.Sprintf("internal error: %v", p)
		}
		result.Duration = o.now().Sub(start)
		o.stats.Record(result)
		o.logResult(r.logger, result)
	}()

	return o.resolve(ctx, req, r)
}

func (o *Orchestrator) resolve(ctx context.Context, req domain.DownloadRequest, r *request) domain.DownloadResult {
	decision := o.gate.Check(ctx, req.UserID)
	r.result.AccessReason = decision.Reason
	if !decision.Allowed {
		return r.fail(domain.FailureAccessDenied, fmt.Errorf("%w: %s", domain.ErrAccessDenied, decision.Reason))
	}
	r.transition(domain.StateGated)

	if err := req.Validate(); err != nil {
		return r.fail(domain.FailureNoEngineAvailable, err)
	}

	eng, err := o.registry.Select(req)
	if err != nil {
		return r.fail(domain.KindOf(err), err)
	}
	platform := eng.Descriptor().PlatformID
	r.result.EngineUsed = platform

	req = o.withPreference(ctx, req, platform, r.logger)
	fp := fingerprint.Build(req)
	r.result.Fingerprint = fp
	r.logger = r.logger.With("fingerprint", fp.Short(), "engine", platform)

	if !req.Force {
		entry, err := o.cache.Lookup(ctx, fp)
		if err != nil {
			r.logger.Warn("cache lookup failed, fetching", "error", err)
			o.alert(ctx, domain.EventCategoryCache, "cache", err, domain.EventMetadata{"fingerprint": fp.String()})
		}
		r.transition(domain.StateCacheChecked)
		if entry != nil {
			r.transition(domain.StateCacheHit)
			r.result.CacheHit = true
			r.result.ArtifactReference = entry.ArtifactReference
			r.result.ArtifactKind = cachedKind(entry, req)
			return r.succeed()
		}
	} else {
		r.transition(domain.StateCacheChecked)
	}

	r.transition(domain.StateEngineSelected)
	r.transition(domain.StateFetching)

	ch := o.flights.DoChan(fp.String(), func() (interface{}, error) {
		return o.fetch(ctx, eng, req, fp, r.logger)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		r.logger.Info("caller stopped waiting, fetch continues")
		return r.fail(domain.FailureTimeout, errors.New("caller cancelled"))
	}

	r.result.Shared = res.Shared
	if res.Err != nil {
		return r.fail(domain.KindOf(res.Err), res.Err)
	}

	out := res.Val.(fetchOutcome)
	r.result.ArtifactReference = out.ref
	r.result.ArtifactKind = out.kind
	if out.cacheHit {
		r.transition(domain.StateCacheHit)
		r.result.CacheHit = true
		return r.succeed()
	}

	r.result.BytesTransferred = out.size
	r.transition(domain.StateStored)
	return r.succeed()
}

// cachedKind is the delivery kind recorded with entry. Entries written
// without one fall back to the requested format.
func cachedKind(entry *domain.CacheEntry, req domain.DownloadRequest) domain.ArtifactKind {
	if entry.ArtifactKind != "" {
		return entry.ArtifactKind
	}
	return domain.KindForFormat(req.Format)
}

// withPreference fills an empty quality and format from the user's stored
// settings. An audio quality turns the default video format into audio.
func (o *Orchestrator) withPreference(ctx context.Context, req domain.DownloadRequest, platform domain.PlatformID, logger *slog.Logger) domain.DownloadRequest {
	if req.Quality != "" && req.Format != "" {
		return req
	}

	var stored *domain.UserSettings
	if o.prefs != nil {
		settings, err := o.prefs.Get(ctx, req.UserID, platform)
		if err != nil {
			logger.Warn("preference lookup failed, using defaults", "error", err)
		} else {
			stored = settings
		}
	}

	if req.Quality == "" {
		q := domain.DefaultQuality
		if stored != nil && stored.Quality.Valid() && stored.Quality != domain.QualityCustom {
			q = stored.Quality
		}
		req = req.WithQuality(q)
	}

	if req.Format == "" {
		req.Format = domain.FormatVideo
		if stored != nil && stored.Format.Valid() {
			req.Format = stored.Format
		}
		if req.Quality == domain.QualityAudio && req.Format == domain.FormatVideo {
			req.Format = domain.FormatAudio
		}
	}
	return req
}

// fetch is the body of a flight. It runs on a context detached from the
// caller so that waiting requests are not cancelled with the first one.
func (o *Orchestrator) fetch(parent context.Context, eng engine.Engine, req domain.DownloadRequest, fp domain.Fingerprint, logger *slog.Logger) (out interface{}, err error) {
	desc := eng.Descriptor()
	defer func() {
		if p := recover(); p != nil {
			logger.Error("engine panic", "panic", p)
			out = nil
			err = domain.NewEngineError(desc.PlatformID, "fetch", domain.FailureUpstreamError, fmt.Errorf("panic: %v", p))
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), o.cfg.FetchTimeout)
	defer cancel()

	if !req.Force {
		entry, err := o.cache.Lookup(ctx, fp)
		if err == nil && entry != nil {
			return fetchOutcome{
				ref:      entry.ArtifactReference,
				kind:     cachedKind(entry, req),
				size:     entry.SizeBytes,
				cacheHit: true,
			}, nil
		}
	}

	metrics.InflightFetches.Inc()
	defer metrics.InflightFetches.Dec()

	if err := os.MkdirAll(o.cfg.TempPath, 0755); err != nil {
		return nil, fmt.Errorf("create temp path: %w", err)
	}
	workDir, err := os.MkdirTemp(o.cfg.TempPath, "fetch-"+fp.Short()+"-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	chain := o.cfg.Auth.BuildChain(desc.PlatformID, desc.Capabilities.RequiresAuthentication)
	logger.Info("fetching", "auth_sources", len(chain))

	dl, err := engine.Invoke(ctx, eng, engine.FetchInput{
		Request: req,
		WorkDir: workDir,
		Auth:    chain,
	}, o.cfg.Retry)
	if err != nil {
		if !errors.Is(err, domain.ErrContentUnavailable) {
			o.alert(ctx, domain.EventCategoryEngine, desc.PlatformID.String(), err, domain.EventMetadata{
				"fingerprint": fp.String(),
				"url":         req.SourceURL,
			})
		}
		return nil, err
	}

	dl, err = o.postProcess(ctx, desc.PlatformID, req, dl, logger)
	if err != nil {
		return nil, err
	}

	if o.cfg.MaxFileSize > 0 && dl.Size > o.cfg.MaxFileSize {
		return nil, &domain.EngineError{
			Platform:  desc.PlatformID,
			Op:        "fetch",
			Kind:      domain.FailureContentUnavailable,
			Err:       fmt.Errorf("%w: %d bytes", domain.ErrFileTooLarge, dl.Size),
			Permanent: true,
		}
	}

	ref, err := o.store.Upload(ctx, artifact.Artifact{
		Path:        dl.Path,
		FileName:    dl.FileName(),
		Size:        dl.Size,
		Kind:        dl.Kind,
		Title:       dl.Title,
		Fingerprint: fp,
	})
	if err != nil {
		o.alert(ctx, domain.EventCategoryUpload, "artifact_store", err, domain.EventMetadata{"fingerprint": fp.String()})
		return nil, domain.NewEngineError(desc.PlatformID, "upload", domain.FailureUpstreamError, err)
	}

	if _, err := o.cache.Store(ctx, fp, ref, dl.Kind, dl.Size); err != nil {
		logger.Error("failed to store cache entry", "error", err)
		o.alert(ctx, domain.EventCategoryCache, "cache", err, domain.EventMetadata{"fingerprint": fp.String()})
	}

	return fetchOutcome{ref: ref, kind: dl.Kind, size: dl.Size}, nil
}

// postProcess fixes up the artifact kind and extracts audio when the
// engine returned a video for an audio request.
func (o *Orchestrator) postProcess(ctx context.Context, platform domain.PlatformID, req domain.DownloadRequest, dl *engine.Download, logger *slog.Logger) (*engine.Download, error) {
	if req.Format == domain.FormatDocument {
		dl.Kind = domain.ArtifactDocument
		return dl, nil
	}
	if o.media == nil || dl.Kind == domain.ArtifactDocument {
		return dl, nil
	}

	info, err := o.media.Probe(ctx, dl.Path)
	if err != nil {
		logger.Debug("probe failed, keeping detected kind", "error", err)
		return dl, nil
	}

	switch {
	case req.WantsAudio() && !info.HasAudio:
		return nil, &domain.EngineError{
			Platform:  platform,
			Op:        "extract audio",
			Kind:      domain.FailureContentUnavailable,
			Err:       errors.New("media has no audio track"),
			Permanent: true,
		}
	case req.WantsAudio() && info.HasVideo:
		out, err := o.media.ExtractAudio(ctx, dl.Path, ffmpeg.ExtractAudioConfig{Format: o.cfg.AudioFormat})
		if err != nil {
			return nil, domain.NewEngineError(platform, "extract audio", domain.FailureUpstreamError, err)
		}
		st, err := os.Stat(out)
		if err != nil {
			return nil, fmt.Errorf("stat extracted audio: %w", err)
		}
		os.Remove(dl.Path)
		return &engine.Download{
			Path:  out,
			Size:  st.Size(),
			Kind:  domain.ArtifactAudio,
			Title: dl.Title,
			Ext:   filepath.Ext(out),
		}, nil
	case !info.HasVideo && info.HasAudio:
		dl.Kind = domain.ArtifactAudio
	}
	return dl, nil
}

// ListFormats lazily enumerates the formats of rawURL. Each iteration
// probes the origin again.
func (o *Orchestrator) ListFormats(ctx context.Context, rawURL string) iter.Seq2[domain.FormatDescriptor, error] {
	return func(yield func(domain.FormatDescriptor, error) bool) {
		eng, err := o.registry.Select(domain.DownloadRequest{SourceURL: rawURL})
		if err != nil {
			yield(domain.FormatDescriptor{}, err)
			return
		}

		desc := eng.Descriptor()
		lister, ok := eng.(engine.FormatLister)
		if !ok || !desc.Capabilities.SupportsFormatListing {
			yield(domain.FormatDescriptor{}, fmt.Errorf("%w: %s", domain.ErrFormatsUnsupported, desc.PlatformID))
			return
		}

		formats, err := lister.ListFormats(ctx, rawURL, o.cfg.Auth.BuildChain(desc.PlatformID, desc.Capabilities.RequiresAuthentication))
		if err != nil {
			yield(domain.FormatDescriptor{}, err)
			return
		}
		for _, f := range formats {
			if !yield(f, nil) {
				return
			}
		}
	}
}

// Invalidate drops the cache entry for fp so the next request re-fetches.
func (o *Orchestrator) Invalidate(ctx context.Context, fp domain.Fingerprint) error {
	return o.cache.Invalidate(ctx, fp)
}

func (o *Orchestrator) alert(ctx context.Context, category domain.EventCategory, source string, err error, metadata domain.EventMetadata) {
	if o.alerter != nil {
		o.alerter.Alert(ctx, category, source, err, metadata)
	}
}

func (o *Orchestrator) logResult(logger *slog.Logger, result domain.DownloadResult) {
	if result.Succeeded() {
		logger.Info("request completed",
			"cache_hit", result.CacheHit,
			"shared", result.Shared,
			"bytes", result.BytesTransferred,
			"duration", result.Duration,
		)
		return
	}
	logger.Warn("request failed",
		"failure_kind", result.FailureKind,
		"error", result.Error,
		"duration", result.Duration,
	)
}
