package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RowStoreType selects how the tracker talks to the row store.
// - postgrest (default): Supabase REST endpoint (SUPABASE_URL + SUPABASE_KEY)
// - postgres: direct SQL connection (DATABASE_URL)
type RowStoreType string

const (
	RowStorePostgREST RowStoreType = "postgrest"
	RowStorePostgres  RowStoreType = "postgres"
)

// CacheType controls the query cache backend.
type CacheType string

const (
	CacheMemory CacheType = "memory"
	CacheRedis  CacheType = "redis"
	CacheOff    CacheType = "off"
)

// Config contains all runtime configuration for the tracker.
type Config struct {
	// Core
	ListenAddr string
	LogLevel   string

	// Row store
	RowStore        RowStoreType
	SupabaseURL     string
	SupabaseKey     string
	DatabaseURL     string
	Table           string
	PageSize        int
	RowStoreTimeout time.Duration

	// Query cache
	QueryCache    CacheType
	QueryCacheTTL time.Duration
	RedisURL      string

	// Pipeline
	RefreshInterval time.Duration
	Lookback        time.Duration // 0 disables the lower bound
	KPIWindow       time.Duration
	RunHistory      int

	// Sessions
	SessionTTL time.Duration

	// Row store health
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
}

// Load parses env vars and returns a validated Config.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr: getEnvString("LISTEN_ADDR", ":8501"),
		LogLevel:   getEnvString("LOG_LEVEL", "info"),

		RowStore:        RowStoreType(getEnvString("ROWSTORE", string(RowStorePostgREST))),
		SupabaseURL:     getEnvString("SUPABASE_URL", ""),
		SupabaseKey:     getEnvString("SUPABASE_KEY", ""),
		DatabaseURL:     getEnvString("DATABASE_URL", ""),
		Table:           getEnvString("ROWSTORE_TABLE", "ae_items_flat"),
		PageSize:        getEnvInt("ROWSTORE_PAGE_SIZE", 1000),
		RowStoreTimeout: getEnvDuration("ROWSTORE_TIMEOUT", 30*time.Second),

		QueryCache:    CacheType(getEnvString("QUERY_CACHE", string(CacheMemory))),
		QueryCacheTTL: getEnvDuration("QUERY_CACHE_TTL", 20*time.Minute),
		RedisURL:      getEnvString("REDIS_URL", ""),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 15*time.Minute),
		Lookback:        getEnvDuration("LOOKBACK", 0),
		KPIWindow:       getEnvDuration("KPI_WINDOW", 24*time.Hour),
		RunHistory:      getEnvInt("RUN_HISTORY", 96),

		SessionTTL: getEnvDuration("SESSION_TTL", 24*time.Hour),

		HealthCheckInterval: getEnvDuration("HEALTH_CHECK_INTERVAL", 30*time.Second),
		HealthCheckTimeout:  getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks configuration constraints.
func (c Config) Validate() error {
	switch c.RowStore {
	case RowStorePostgREST:
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required when ROWSTORE=postgrest")
		}
		if c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_KEY is required when ROWSTORE=postgrest")
		}
	case RowStorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when ROWSTORE=postgres")
		}
	default:
		return fmt.Errorf("invalid ROWSTORE: %q (must be postgrest|postgres)", c.RowStore)
	}

	if strings.TrimSpace(c.Table) == "" {
		return fmt.Errorf("ROWSTORE_TABLE must not be empty")
	}
	if c.PageSize < 1 {
		return fmt.Errorf("ROWSTORE_PAGE_SIZE must be >= 1")
	}
	if c.RowStoreTimeout <= 0 {
		return fmt.Errorf("ROWSTORE_TIMEOUT must be > 0")
	}

	switch c.QueryCache {
	case CacheMemory, CacheOff:
		// ok
	case CacheRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when QUERY_CACHE=redis")
		}
	default:
		return fmt.Errorf("invalid QUERY_CACHE: %q (must be memory|redis|off)", c.QueryCache)
	}
	if c.QueryCacheTTL < 0 {
		return fmt.Errorf("QUERY_CACHE_TTL must be >= 0")
	}

	if c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be > 0")
	}
	if c.Lookback < 0 {
		return fmt.Errorf("LOOKBACK must be >= 0")
	}
	if c.KPIWindow <= 0 {
		return fmt.Errorf("KPI_WINDOW must be > 0")
	}
	if c.RunHistory < 1 {
		return fmt.Errorf("RUN_HISTORY must be >= 1")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}

	if c.HealthCheckInterval <= 0 {
		return fmt.Errorf("HEALTH_CHECK_INTERVAL must be > 0")
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be > 0")
	}

	return nil
}

// Helper functions for parsing environment variables

func getEnvString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}
