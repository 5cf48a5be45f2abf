package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	mem "clearspace/adapters/memory"
	fileAdapter "clearspace/adapters/jsonfile"
	redisAdapter "clearspace/adapters/redis"
	sqlxAdapter "clearspace/adapters/sqlx"
	"clearspace/api/httpapi"
	"clearspace/catalog"
	"clearspace/config"
	"clearspace/core"
	"clearspace/engine"
	"clearspace/insights"
	"clearspace/integrations/webhook"
	"clearspace/leaderboard"
	"clearspace/progress"
	"clearspace/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Hub       *realtime.Hub
	Tracker   *leaderboard.Tracker
	Collector *insights.Collector
	Service   *engine.ProgressService
	Handler   http.Handler
	Server    *http.Server
}

func provideConfig(ctx context.Context) (*config.Config, error) {
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideTracker() *leaderboard.Tracker {
	return leaderboard.NewTracker(leaderboard.NewSkipList())
}

func provideCollector() *insights.Collector {
	return insights.NewCollector()
}

func provideCatalogs(cfg *config.Config) (*catalog.Catalogs, error) {
	return catalog.Load(cfg.Catalog.BadgesPath, cfg.Catalog.LevelsPath, cfg.Catalog.PlansPath)
}

func provideSink(cfg *config.Config) *webhook.Sink {
	types := make([]core.EventType, 0, len(cfg.Webhook.EventTypes))
	for _, t := range cfg.Webhook.EventTypes {
		types = append(types, core.EventType(t))
	}
	return webhook.New(cfg.Webhook.Endpoints, webhook.WithEventTypes(types...))
}

func provideStorage(ctx context.Context, cfg *config.Config) (engine.Storage, error) {
	return setupStorage(ctx, cfg)
}

func provideService(storage engine.Storage, cats *catalog.Catalogs, hub *realtime.Hub,
	tracker *leaderboard.Tracker, collector *insights.Collector, sink *webhook.Sink) *engine.ProgressService {
	return progress.New(
		progress.WithStorage(storage),
		progress.WithCatalogs(cats),
		progress.WithDispatchMode(engine.DispatchAsync),
		progress.WithRealtime(hub),
		progress.WithLeaderboard(tracker),
		progress.WithInsights(collector),
		progress.WithWebhook(sink),
	)
}

func provideHandler(svc *engine.ProgressService, hub *realtime.Hub, tracker *leaderboard.Tracker,
	collector *insights.Collector, cfg *config.Config) http.Handler {
	return httpapi.NewMux(svc, httpapi.Deps{
		Hub:       hub,
		Board:     tracker.Board(),
		Collector: collector,
	}, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	out := os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	var handler slog.Handler
	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the appropriate storage adapter based on configuration.
func setupStorage(ctx context.Context, cfg *config.Config) (engine.Storage, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), nil
	case "redis":
		return redisAdapter.New(cfg.Storage.Redis)
	case "sql":
		store, err := sqlxAdapter.New(cfg.Storage.SQL)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "file":
		return fileAdapter.New(cfg.Storage.File.Path)
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
