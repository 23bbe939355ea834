package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "prod" {
		t.Fatalf("expected App.Env to be prod, got %q", cfg.App.Env)
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected Redis URL: %q", cfg.Redis.URL)
	}
	if cfg.Auth.Header != "X-Admin-Key" {
		t.Fatalf("unexpected admin header %q", cfg.Auth.Header)
	}
	if cfg.Auth.TrustProxyHeaders {
		t.Fatal("expected proxy headers to be untrusted by default")
	}
	if cfg.Scraper.MinFresh != 5 || cfg.Scraper.MaxRetained != 200 {
		t.Fatalf("unexpected scraper defaults %+v", cfg.Scraper)
	}
	if got := cfg.Cron.Interval; got != 6*time.Hour {
		t.Fatalf("expected cron interval 6h, got %v", got)
	}
	if got := cfg.Storage.MaxUploadBytes(); got != 200<<20 {
		t.Fatalf("unexpected max upload bytes %d", got)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStorageBackend, "ftp")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown storage backend to fail")
	}
}

func TestLoad_RequiresPlaceholders(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvRelaySourceURL, "https://music.example.com/track")
	if _, err := Load(); err == nil {
		t.Fatal("expected relay template without {id} to fail")
	}

	setMinimalEnv(t)
	t.Setenv(EnvRelaySourceURL, "")
	t.Setenv(EnvScraperListingURL, "https://music.example.com/mixes")
	if _, err := Load(); err == nil {
		t.Fatal("expected listing template without {page} to fail")
	}
}

func TestLoad_RejectsInvertedPlayCountRange(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvScraperPlayCountMin, "500")
	t.Setenv(EnvScraperPlayCountMax, "10")
	if _, err := Load(); err == nil {
		t.Fatal("expected inverted play count range to fail")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "prod")
	t.Setenv(EnvPort, "8081")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(EnvStorageBackend, "memory")
	t.Setenv(EnvDocumentsBackend, "redis")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
}

func TestRedisEnabled(t *testing.T) {
	if (RedisConfig{}).Enabled() {
		t.Fatal("empty redis config should be disabled")
	}
	if !(RedisConfig{Address: "localhost:6379"}).Enabled() {
		t.Fatal("address should enable redis")
	}
}
