package config

const (
	EnvPrefix = "MEDIAGW"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	PagePlaceholder = "{page}"
	IDPlaceholder   = "{id}"

	StorageBackendNone   = "none"
	StorageBackendMemory = "memory"
	StorageBackendGCS    = "gcs"
	StorageBackendS3     = "s3"

	DocumentsBackendNone   = "none"
	DocumentsBackendMemory = "memory"
	DocumentsBackendRedis  = "redis"
	DocumentsBackendSQL    = "sql"

	EnvAppEnv               = "MEDIAGW_APP_ENV"
	EnvPort                 = "MEDIAGW_APP_PORT"
	EnvAdminSecret          = "MEDIAGW_ADMIN_SECRET"
	EnvStorageBackend       = "MEDIAGW_STORAGE_BACKEND"
	EnvStoragePublicBaseURL = "MEDIAGW_STORAGE_PUBLIC_BASE_URL"
	EnvDocumentsBackend     = "MEDIAGW_DOCUMENTS_BACKEND"
	EnvRedisURL             = "MEDIAGW_REDIS_URL"
	EnvDBDSN                = "MEDIAGW_DB_DSN"
	EnvDBDriver             = "MEDIAGW_DB_DRIVER"
	EnvScraperListingURL    = "MEDIAGW_SCRAPER_LISTING_URL"
	EnvScraperPlayCountMin  = "MEDIAGW_SCRAPER_PLAYCOUNT_MIN"
	EnvScraperPlayCountMax  = "MEDIAGW_SCRAPER_PLAYCOUNT_MAX"
	EnvRelaySourceURL       = "MEDIAGW_RELAY_SOURCE_URL"
	EnvCronInterval         = "MEDIAGW_CRON_INTERVAL"
)
