package config

import (
	"testing"
	"time"
)

func setPostgREST(t *testing.T) {
	t.Setenv("ROWSTORE", "postgrest")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_KEY", "anon-key")
}

func TestDefaults(t *testing.T) {
	setPostgREST(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Table != "ae_items_flat" {
		t.Errorf("Table = %q, want ae_items_flat", cfg.Table)
	}
	if cfg.QueryCacheTTL != 20*time.Minute {
		t.Errorf("QueryCacheTTL = %v, want 20m", cfg.QueryCacheTTL)
	}
	if cfg.RefreshInterval != 15*time.Minute {
		t.Errorf("RefreshInterval = %v, want 15m", cfg.RefreshInterval)
	}
	if cfg.KPIWindow != 24*time.Hour {
		t.Errorf("KPIWindow = %v, want 24h", cfg.KPIWindow)
	}
	if cfg.Lookback != 0 {
		t.Errorf("Lookback = %v, want disabled", cfg.Lookback)
	}
	if cfg.RunHistory != 96 {
		t.Errorf("RunHistory = %d, want 96", cfg.RunHistory)
	}
	if cfg.QueryCache != CacheMemory {
		t.Errorf("QueryCache = %v, want %v", cfg.QueryCache, CacheMemory)
	}
}

func TestPostgRESTRequiresCredentials(t *testing.T) {
	t.Setenv("ROWSTORE", "postgrest")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_KEY", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when SUPABASE_URL is missing")
	}
}

func TestPostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("ROWSTORE", "postgres")
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when DATABASE_URL is missing")
	}

	t.Setenv("DATABASE_URL", "postgres://tracker@localhost/gtnh")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RowStore != RowStorePostgres {
		t.Errorf("RowStore = %v, want %v", cfg.RowStore, RowStorePostgres)
	}
}

func TestRedisCacheRequiresURL(t *testing.T) {
	setPostgREST(t)
	t.Setenv("QUERY_CACHE", "redis")
	t.Setenv("REDIS_URL", "")

	if _, err := Load(); err == nil {
		t.Error("expected error when REDIS_URL is missing")
	}

	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	if _, err := Load(); err != nil {
		t.Errorf("Load() error = %v", err)
	}
}

func TestInvalidValuesRejected(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"ROWSTORE", "mysql"},
		{"QUERY_CACHE", "disk"},
		{"ROWSTORE_PAGE_SIZE", "0"},
		{"REFRESH_INTERVAL", "0s"},
		{"LOOKBACK", "-1h"},
		{"KPI_WINDOW", "0s"},
		{"RUN_HISTORY", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setPostgREST(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestUnparseableValuesFallBackToDefaults(t *testing.T) {
	setPostgREST(t)
	t.Setenv("QUERY_CACHE_TTL", "twenty minutes")
	t.Setenv("ROWSTORE_PAGE_SIZE", "lots")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.QueryCacheTTL != 20*time.Minute {
		t.Errorf("QueryCacheTTL = %v, want 20m", cfg.QueryCacheTTL)
	}
	if cfg.PageSize != 1000 {
		t.Errorf("PageSize = %d, want 1000", cfg.PageSize)
	}
}
