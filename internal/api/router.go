package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YuldShah/uptovipnew/internal/api/handler"
	mw "github.com/YuldShah/uptovipnew/internal/api/middleware"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Health   *handler.HealthHandler
	Download *handler.DownloadHandler
	Job      *handler.JobHandler
	Cache    *handler.CacheHandler
	Event    *handler.EventHandler
	Admin    *handler.AdminHandler
}

// RouterConfig holds the router's own settings.
type RouterConfig struct {
	APIKey string

	// RequestTimeout bounds non-streaming API calls. Synchronous downloads
	// are bounded by the fetch timeout instead.
	RequestTimeout time.Duration

	// RateLimit and RateBurst configure per-client limiting; zero disables.
	RateLimit float64
	RateBurst int
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(h Handlers, cfg RouterConfig) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = time.Minute
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.CORS)

	// Probes and metrics (no auth)
	r.Get("/health", h.Health.Live)
	r.Get("/ready", h.Health.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// API v1 (authenticated)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(cfg.APIKey))
		if cfg.RateLimit > 0 {
			r.Use(mw.NewRateLimiter(cfg.RateLimit, cfg.RateBurst).Middleware)
		}

		// Long-running and streaming endpoints
		r.Post("/downloads", h.Download.Download)
		r.Get("/events/stream", h.Event.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))

			r.Get("/stats", h.Health.Stats)
			r.Get("/stats/summary", h.Admin.StatsSummary)

			r.Get("/formats", h.Download.Formats)

			r.Post("/jobs", h.Job.Submit)
			r.Get("/jobs/{jobID}", h.Job.Get)

			r.Delete("/cache/{fingerprint}", h.Cache.Invalidate)
			r.Post("/cache/evict", h.Cache.Evict)

			r.Get("/events", h.Event.List)
			r.Get("/events/recent", h.Event.Recent)

			r.Get("/users/{userID}/access", h.Admin.GetAccess)
			r.Put("/users/{userID}/access", h.Admin.SetAccess)
			r.Get("/users/{userID}/settings", h.Admin.GetSettings)
			r.Put("/users/{userID}/settings", h.Admin.PutSettings)

			r.Get("/channels", h.Admin.ListChannels)
			r.Post("/channels", h.Admin.AddChannel)
			r.Delete("/channels/{channelID}", h.Admin.RemoveChannel)
		})
	})

	return r
}
