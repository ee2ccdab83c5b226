package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gtnh-items-tracker/internal/config"
	"gtnh-items-tracker/internal/monitor"
	"gtnh-items-tracker/internal/pipeline"
	"gtnh-items-tracker/internal/rowstore"
	"gtnh-items-tracker/internal/session"
	"gtnh-items-tracker/internal/web"
	assets "gtnh-items-tracker/web"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "dotenv error:", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(2)
	}

	logger := newLogger(cfg.LogLevel)

	logConfig(logger, cfg)

	metrics := monitor.NewMetrics()

	startCtx, cancelStart := context.WithTimeout(context.Background(), cfg.RowStoreTimeout)
	store, closeCache, err := openRowStore(startCtx, cfg, metrics)
	cancelStart()
	if err != nil {
		logger.Error("failed to open row store", "rowstore", cfg.RowStore, "err", err)
		os.Exit(2)
	}
	defer closeCache()
	defer store.Close()

	healthChecker := monitor.NewHealthChecker(store, cfg.HealthCheckInterval, cfg.HealthCheckTimeout, metrics, logger)
	defer healthChecker.Shutdown()

	runner := pipeline.NewRunner(store, pipeline.RunnerConfig{
		Table:    cfg.Table,
		Lookback: cfg.Lookback,
		Align:    cfg.QueryCacheTTL,
	}, metrics, logger)
	state := pipeline.NewState()
	bus := pipeline.NewEventBus(16)
	defer bus.Shutdown()

	history := pipeline.NewHistory(cfg.RunHistory)
	refresher := pipeline.NewRefresher(runner, state, bus, cfg.RefreshInterval, cfg.RefreshInterval, logger)
	refresher.SetHistory(history)
	refresher.Start()
	defer refresher.Shutdown()

	dist, err := assets.Assets()
	if err != nil {
		logger.Error("failed to load page assets", "err", err)
		os.Exit(2)
	}
	h, err := web.NewServer(web.Deps{
		State:     state,
		Refresher: refresher,
		Events:    bus,
		History:   history,
		Sessions:  session.NewStore(cfg.SessionTTL),
		Health:    healthChecker,
		Metrics:   metrics,
		Assets:    dist,
	}, web.Options{
		RefreshInterval: cfg.RefreshInterval,
		KPIWindow:       cfg.KPIWindow,
		SessionTTL:      cfg.SessionTTL,
	}, logger)
	if err != nil {
		logger.Error("failed to create web server", "err", err)
		os.Exit(2)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting items-tracker", "listen", cfg.ListenAddr, "rowstore", cfg.RowStore, "table", cfg.Table)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	// Close open SSE streams before waiting on the HTTP server.
	bus.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// openRowStore builds the configured connector wrapped in the query cache.
// The returned func releases the cache backend.
func openRowStore(ctx context.Context, cfg config.Config, metrics *monitor.Metrics) (rowstore.Store, func(), error) {
	var base rowstore.Store
	switch cfg.RowStore {
	case config.RowStorePostgres:
		pg, err := rowstore.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.RowStoreTimeout)
		if err != nil {
			return nil, nil, err
		}
		base = pg
	default:
		c, err := rowstore.NewPostgRESTClient(cfg.SupabaseURL, cfg.SupabaseKey, cfg.PageSize, cfg.RowStoreTimeout)
		if err != nil {
			return nil, nil, err
		}
		base = c
	}

	noop := func() {}
	switch cfg.QueryCache {
	case config.CacheOff:
		return base, noop, nil
	case config.CacheRedis:
		rc, err := rowstore.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			_ = base.Close()
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		return rowstore.NewCachedStore(base, rc, cfg.QueryCacheTTL, metrics), func() { _ = rc.Close() }, nil
	default:
		return rowstore.NewCachedStore(base, rowstore.NewMemoryCache(), cfg.QueryCacheTTL, metrics), noop, nil
	}
}

func newLogger(level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	switch level {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "info":
		lvl.Set(slog.LevelInfo)
	case "warn", "warning":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}

func logConfig(logger *slog.Logger, cfg config.Config) {
	logger.Info("configuration",
		"listen_addr", cfg.ListenAddr,
		"rowstore", string(cfg.RowStore),
		"supabase_url", cfg.SupabaseURL,
		"supabase_key", redact(cfg.SupabaseKey),
		"database_url", redact(cfg.DatabaseURL),
		"table", cfg.Table,
		"page_size", cfg.PageSize,
		"rowstore_timeout", cfg.RowStoreTimeout,
		"query_cache", string(cfg.QueryCache),
		"query_cache_ttl", cfg.QueryCacheTTL,
		"redis_url", redact(cfg.RedisURL),
		"refresh_interval", cfg.RefreshInterval,
		"lookback", cfg.Lookback,
		"kpi_window", cfg.KPIWindow,
		"run_history", cfg.RunHistory,
		"session_ttl", cfg.SessionTTL,
		"health_check_interval", cfg.HealthCheckInterval,
		"log_level", cfg.LogLevel,
	)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
