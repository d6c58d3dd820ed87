package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v3"

	"github.com/YuldShah/uptovipnew/internal/access"
	"github.com/YuldShah/uptovipnew/internal/api"
	"github.com/YuldShah/uptovipnew/internal/api/handler"
	"github.com/YuldShah/uptovipnew/internal/artifact"
	"github.com/YuldShah/uptovipnew/internal/cache"
	"github.com/YuldShah/uptovipnew/internal/config"
	"github.com/YuldShah/uptovipnew/internal/database"
	"github.com/YuldShah/uptovipnew/internal/engine"
	"github.com/YuldShah/uptovipnew/internal/repository"
	"github.com/YuldShah/uptovipnew/internal/service"
	"github.com/YuldShah/uptovipnew/internal/stats"
	"github.com/YuldShah/uptovipnew/internal/worker"
	"github.com/YuldShah/uptovipnew/pkg/ffmpeg"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// pingFunc adapts a function to handler.Pinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("uptovip %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting uptovip",
		"version", Version,
		"build_time", BuildTime,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Storage.TempPath, 0755); err != nil {
		return fmt.Errorf("create temp directory: %w", err)
	}

	db, err := database.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	deps := map[string]handler.Pinger{
		"database": pingFunc(db.PingContext),
	}

	// Repositories
	jobRepo := repository.NewMemoryJobQueue()
	userRepo := repository.NewSQLUserRepository(db)
	channelRepo := repository.NewSQLChannelRepository(db)
	prefRepo := repository.NewSQLPreferenceRepository(db)
	statsRepo := repository.NewSQLStatsRepository(db)
	eventRepo := repository.NewSQLEventRepository(db)

	// Content cache
	var store cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		rs := cache.NewRedisStore(cache.RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		defer rs.Close()
		if err := rs.Ping(ctx); err != nil {
			logger.Warn("redis not reachable at startup", "addr", cfg.Cache.RedisAddr, "error", err)
		}
		deps["cache"] = rs
		store = rs
	case "memory":
		store = cache.NewMemoryStore()
	default:
		store = cache.NewSQLStore(db)
	}
	contentCache := cache.New(store, cache.Config{TTL: cfg.Cache.TTL}, logger)

	// Telegram client, used for membership checks and the telegram artifact store.
	var bot *tele.Bot
	if cfg.Telegram.BotToken != "" {
		bot, err = tele.NewBot(tele.Settings{
			Token:   cfg.Telegram.BotToken,
			URL:     cfg.Telegram.APIURL,
			Offline: true,
		})
		if err != nil {
			return fmt.Errorf("create telegram client: %w", err)
		}
	}

	artifacts, err := newArtifactStore(ctx, cfg, bot, logger)
	if err != nil {
		return err
	}

	// Engines
	runner := engine.NewYtdlpRunner(cfg.Engine.YtdlpPath)
	httpCfg := engine.HTTPConfig{
		UserAgent:   cfg.Engine.UserAgent,
		MaxFileSize: cfg.Storage.MaxFileSize,
	}
	ytCfg := engine.YtdlpConfig{
		AudioFormat:        cfg.Engine.AudioFormat,
		MaxFileSize:        cfg.Storage.MaxFileSize,
		ExternalDownloader: cfg.Engine.ExternalDownloader(),
		POToken:            cfg.Engine.POToken,
	}
	registry := engine.NewRegistry(
		engine.NewYouTubeEngine(runner, ytCfg, logger),
		engine.NewInstagramEngine(runner, ytCfg, logger),
		engine.NewPixeldrainEngine(httpCfg, logger),
		engine.NewKrakenfilesEngine(httpCfg, logger),
		engine.NewDirectEngine(httpCfg, logger),
		engine.NewGenericEngine(runner, ytCfg, logger),
	)

	var media service.MediaProcessor
	if proc, err := ffmpeg.NewProcessor(); err != nil {
		logger.Warn("ffmpeg unavailable, media probing disabled", "error", err)
	} else {
		media = proc
	}

	// Services
	events := service.NewEventService(service.DefaultEventServiceConfig(), eventRepo, logger)
	defer events.Close()

	sink := stats.NewSink(statsRepo, stats.DefaultBufferSize, logger)
	sink.Start(ctx)

	var members access.MemberLookup
	if bot != nil {
		members = bot
	}
	directory := access.NewDirectory(cfg.Access.AdminIDs, userRepo, members, logger)
	gate := access.NewGate(directory, channelRepo, events, access.Config{Enabled: cfg.Access.Enabled}, logger)

	orch := service.NewOrchestrator(service.Deps{
		Gate:        gate,
		Preferences: prefRepo,
		Cache:       contentCache,
		Registry:    registry,
		Artifacts:   artifacts,
		Stats:       sink,
		Media:       media,
		Alerter:     events,
	}, service.OrchestratorConfig{
		TempPath:     cfg.Storage.TempPath,
		FetchTimeout: cfg.Engine.FetchTimeout,
		MaxFileSize:  cfg.Storage.MaxFileSize,
		AudioFormat:  cfg.Engine.AudioFormat,
		Retry:        engine.NewRetryConfig(cfg.Engine.Retries, cfg.Engine.RetryDelay, cfg.Engine.MaxRetryDelay),
		Auth: engine.AuthConfig{
			CookieFile:          cfg.Auth.CookieFile,
			PlatformCookieFiles: cfg.Auth.PlatformCookieFiles(),
			Browsers:            cfg.Auth.Browsers,
			Passphrase:          cfg.Auth.CookiePassphrase,
		},
	}, logger)

	// Background workers
	pool := worker.NewPool(worker.Config{
		Workers:      cfg.Worker.Count,
		PollInterval: cfg.Worker.PollInterval,
	}, jobRepo, orch, logger)
	pool.Start()

	janitor := worker.NewJanitor(cfg.Cache.EvictInterval, contentCache, events, logger)
	janitor.Start(ctx)

	router := api.NewRouter(api.Handlers{
		Health:   handler.NewHealthHandler(jobRepo, deps, cfg.Storage.TempPath),
		Download: handler.NewDownloadHandler(orch, cfg.Server.MaxInflight, logger),
		Job:      handler.NewJobHandler(jobRepo, cfg.Worker.QueueRetries, logger),
		Cache:    handler.NewCacheHandler(orch, contentCache, logger),
		Event:    handler.NewEventHandler(events, logger),
		Admin:    handler.NewAdminHandler(userRepo, channelRepo, prefRepo, statsRepo, logger),
	}, api.RouterConfig{
		APIKey:    cfg.Server.APIKey,
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
		if err := pool.Stop(25 * time.Second); err != nil {
			errs = append(errs, fmt.Errorf("worker pool: %w", err))
		}
		janitor.Stop()
		if err := sink.Stop(5 * time.Second); err != nil {
			errs = append(errs, fmt.Errorf("stats sink: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func newArtifactStore(ctx context.Context, cfg *config.Config, bot *tele.Bot, logger *slog.Logger) (artifact.Store, error) {
	switch cfg.Artifact.Backend {
	case "s3":
		return artifact.NewS3Store(ctx, artifact.S3Config{
			Bucket:   cfg.Artifact.S3Bucket,
			Region:   cfg.Artifact.S3Region,
			Prefix:   cfg.Artifact.S3Prefix,
			Endpoint: cfg.Artifact.S3Endpoint,
		})
	case "local":
		return artifact.NewLocalStore(cfg.Artifact.LocalPath)
	default:
		if bot == nil {
			return nil, errors.New("telegram artifact store requires a bot token")
		}
		return artifact.NewTelegramStore(bot, cfg.Telegram.StorageChatID, logger), nil
	}
}
