package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Auth      AuthConfig
	Storage   StorageConfig
	GCP       GCPConfig
	GCS       GCSConfig
	S3        S3Config
	Documents DocumentsConfig
	Redis     RedisConfig
	DB        DBConfig
	Scraper   ScraperConfig
	Relay     RelayConfig
	Cron      CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MEDIAGW_APP_ENV" required:"true"`
	Port         string `envconfig:"MEDIAGW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MEDIAGW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MEDIAGW_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"MEDIAGW_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AuthConfig holds the shared-secret gate. An empty AdminSecret leaves the
// gate open.
type AuthConfig struct {
	AdminSecret      string        `envconfig:"MEDIAGW_ADMIN_SECRET"`
	Header           string        `envconfig:"MEDIAGW_ADMIN_HEADER" default:"X-Admin-Key"`
	RateLimitWindow  time.Duration `envconfig:"MEDIAGW_AUTH_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitIPLimit int           `envconfig:"MEDIAGW_AUTH_RATE_LIMIT_IP_LIMIT" default:"20"`

	// TrustProxyHeaders keys the /auth rate limit by X-Forwarded-For or
	// X-Real-IP. Enable it only behind a proxy that overwrites them.
	TrustProxyHeaders bool `envconfig:"MEDIAGW_TRUST_PROXY_HEADERS" default:"false"`
}

type StorageConfig struct {
	Backend       string `envconfig:"MEDIAGW_STORAGE_BACKEND" default:"none"`
	PublicBaseURL string `envconfig:"MEDIAGW_STORAGE_PUBLIC_BASE_URL"`
	MaxUploadMB   int    `envconfig:"MEDIAGW_MAX_UPLOAD_MB" default:"200"`
	ListLimit     int    `envconfig:"MEDIAGW_STORAGE_LIST_LIMIT" default:"1000"`
}

// MaxUploadBytes converts the configured upload cap to bytes.
func (s StorageConfig) MaxUploadBytes() int64 {
	if s.MaxUploadMB <= 0 {
		return 0
	}
	return int64(s.MaxUploadMB) << 20
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MEDIAGW_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MEDIAGW_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MEDIAGW_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string        `envconfig:"MEDIAGW_GCS_BUCKET_NAME"`
	Timeout    time.Duration `envconfig:"MEDIAGW_GCS_TIMEOUT" default:"30s"`
}

type S3Config struct {
	Bucket          string `envconfig:"MEDIAGW_S3_BUCKET"`
	Region          string `envconfig:"MEDIAGW_S3_REGION" default:"us-east-1"`
	Endpoint        string `envconfig:"MEDIAGW_S3_ENDPOINT"`
	AccessKeyID     string `envconfig:"MEDIAGW_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"MEDIAGW_S3_SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `envconfig:"MEDIAGW_S3_USE_PATH_STYLE" default:"false"`
}

type DocumentsConfig struct {
	Backend string `envconfig:"MEDIAGW_DOCUMENTS_BACKEND" default:"redis"`
	Key     string `envconfig:"MEDIAGW_DOCUMENT_KEY" default:"catalog"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MEDIAGW_REDIS_URL"`
	Address      string        `envconfig:"MEDIAGW_REDIS_ADDR"`
	Password     string        `envconfig:"MEDIAGW_REDIS_PASSWORD"`
	DB           int           `envconfig:"MEDIAGW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MEDIAGW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MEDIAGW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MEDIAGW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MEDIAGW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MEDIAGW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether enough settings exist to dial redis.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type DBConfig struct {
	DSN         string `envconfig:"MEDIAGW_DB_DSN"`
	Driver      string `envconfig:"MEDIAGW_DB_DRIVER" default:"postgres"`
	AutoMigrate bool   `envconfig:"MEDIAGW_AUTO_MIGRATE" default:"false"`

	MaxOpenConns    int           `envconfig:"MEDIAGW_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"MEDIAGW_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"MEDIAGW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MEDIAGW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// Statements slower than this are logged at warn; zero disables it.
	SlowQuery time.Duration `envconfig:"MEDIAGW_DB_SLOW_QUERY" default:"500ms"`
}

type ScraperConfig struct {
	// ListingURL contains a {page} placeholder, e.g. https://example.com/mixes?page={page}.
	ListingURL   string        `envconfig:"MEDIAGW_SCRAPER_LISTING_URL"`
	Pages        int           `envconfig:"MEDIAGW_SCRAPER_PAGES" default:"3"`
	Referer      string        `envconfig:"MEDIAGW_SCRAPER_REFERER"`
	Collection   string        `envconfig:"MEDIAGW_SCRAPER_COLLECTION" default:"mixes"`
	MinFresh     int           `envconfig:"MEDIAGW_SCRAPER_MIN_FRESH" default:"5"`
	MaxRetained  int           `envconfig:"MEDIAGW_SCRAPER_MAX_RETAINED" default:"200"`
	Timeout      time.Duration `envconfig:"MEDIAGW_SCRAPER_TIMEOUT" default:"15s"`
	Concurrency  int           `envconfig:"MEDIAGW_SCRAPER_CONCURRENCY" default:"3"`
	PlayCountMin int           `envconfig:"MEDIAGW_SCRAPER_PLAYCOUNT_MIN" default:"1000"`
	PlayCountMax int           `envconfig:"MEDIAGW_SCRAPER_PLAYCOUNT_MAX" default:"50000"`
}

type RelayConfig struct {
	// SourceURL contains an {id} placeholder, e.g. https://example.com/track/{id}.
	SourceURL     string        `envconfig:"MEDIAGW_RELAY_SOURCE_URL"`
	Timeout       time.Duration `envconfig:"MEDIAGW_RELAY_TIMEOUT" default:"15s"`
	HeaderTimeout time.Duration `envconfig:"MEDIAGW_RELAY_HEADER_TIMEOUT" default:"20s"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"MEDIAGW_CRON_INTERVAL" default:"6h"`
	LockTTL  time.Duration `envconfig:"MEDIAGW_CRON_LOCK_TTL" default:"30m"`
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Storage.Backend) {
	case StorageBackendNone, StorageBackendMemory, StorageBackendGCS, StorageBackendS3:
	default:
		return fmt.Errorf("%s must be one of none|memory|gcs|s3, got %q", EnvStorageBackend, c.Storage.Backend)
	}
	switch strings.ToLower(c.Documents.Backend) {
	case DocumentsBackendNone, DocumentsBackendMemory, DocumentsBackendRedis, DocumentsBackendSQL:
	default:
		return fmt.Errorf("%s must be one of none|memory|redis|sql, got %q", EnvDocumentsBackend, c.Documents.Backend)
	}
	if c.Storage.PublicBaseURL != "" {
		if _, err := url.Parse(c.Storage.PublicBaseURL); err != nil {
			return fmt.Errorf("%s: %w", EnvStoragePublicBaseURL, err)
		}
	}
	if c.Scraper.ListingURL != "" && !strings.Contains(c.Scraper.ListingURL, PagePlaceholder) {
		return fmt.Errorf("%s must contain %s", EnvScraperListingURL, PagePlaceholder)
	}
	if c.Relay.SourceURL != "" && !strings.Contains(c.Relay.SourceURL, IDPlaceholder) {
		return fmt.Errorf("%s must contain %s", EnvRelaySourceURL, IDPlaceholder)
	}
	if c.Scraper.PlayCountMax < c.Scraper.PlayCountMin {
		return fmt.Errorf("%s must not be below %s", EnvScraperPlayCountMax, EnvScraperPlayCountMin)
	}
	return nil
}
