package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Mongo     MongoConfig
	Source    SourceConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
	Breaker   BreakerConfig
	Lock      LockConfig
	Logger    LoggerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// MongoConfig holds document-store connection values.
type MongoConfig struct {
	URI                    string
	Database               string
	MinPoolSize            uint64
	MaxPoolSize            uint64
	MaxConnIdleSeconds     int
	ServerSelectionSeconds int
	ConnectTimeoutSeconds  int
	SocketTimeoutSeconds   int
}

// SourceConfig points at the external paginated ticket source.
type SourceConfig struct {
	BaseURL             string
	FetchTimeoutSeconds int
	MaxRetries          int
}

// NotifyConfig configures the notification egress.
type NotifyConfig struct {
	URL               string
	TimeoutSeconds    int
	MaxAttempts       int
	MaxConcurrent     int64
	BackoffCapSeconds int
}

// RateLimitConfig configures the global outbound limiter.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowSeconds     int
}

// BreakerConfig configures circuit breakers.
type BreakerConfig struct {
	WindowSize       int
	FailureThreshold int
	CooldownSeconds  int
}

// LockConfig configures the distributed lock.
type LockConfig struct {
	TTLSeconds     int
	RefreshSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-ingest-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Mongo: MongoConfig{
			URI:                    getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
			Database:               getEnv("MONGO_DATABASE", "support_saas"),
			MinPoolSize:            uint64(getEnvAsInt("MONGO_MIN_POOL_SIZE", 10)),
			MaxPoolSize:            uint64(getEnvAsInt("MONGO_MAX_POOL_SIZE", 50)),
			MaxConnIdleSeconds:     getEnvAsInt("MONGO_MAX_CONN_IDLE_SECONDS", 45),
			ServerSelectionSeconds: getEnvAsInt("MONGO_SERVER_SELECTION_SECONDS", 5),
			ConnectTimeoutSeconds:  getEnvAsInt("MONGO_CONNECT_TIMEOUT_SECONDS", 10),
			SocketTimeoutSeconds:   getEnvAsInt("MONGO_SOCKET_TIMEOUT_SECONDS", 5),
		},
		Source: SourceConfig{
			BaseURL:             getEnv("SOURCE_BASE_URL", "http://mock-external-api:9000"),
			FetchTimeoutSeconds: getEnvAsInt("SOURCE_FETCH_TIMEOUT_SECONDS", 15),
			MaxRetries:          getEnvAsInt("SOURCE_MAX_RETRIES", 3),
		},
		Notify: NotifyConfig{
			URL:               getEnv("NOTIFY_URL", "http://mock-external-api:9000/notify"),
			TimeoutSeconds:    getEnvAsInt("NOTIFY_TIMEOUT_SECONDS", 10),
			MaxAttempts:       getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 3),
			MaxConcurrent:     int64(getEnvAsInt("NOTIFY_MAX_CONCURRENT", 8)),
			BackoffCapSeconds: getEnvAsInt("NOTIFY_BACKOFF_CAP_SECONDS", 8),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvAsInt("RATE_LIMIT_REQUESTS", 60),
			WindowSeconds:     getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
		Breaker: BreakerConfig{
			WindowSize:       getEnvAsInt("BREAKER_WINDOW_SIZE", 10),
			FailureThreshold: getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
			CooldownSeconds:  getEnvAsInt("BREAKER_COOLDOWN_SECONDS", 30),
		},
		Lock: LockConfig{
			TTLSeconds:     getEnvAsInt("LOCK_TTL_SECONDS", 60),
			RefreshSeconds: getEnvAsInt("LOCK_REFRESH_SECONDS", 30),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if cfg.Mongo.MinPoolSize > cfg.Mongo.MaxPoolSize {
		return nil, fmt.Errorf("MONGO_MIN_POOL_SIZE %d exceeds MONGO_MAX_POOL_SIZE %d",
			cfg.Mongo.MinPoolSize, cfg.Mongo.MaxPoolSize)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// FetchTimeout returns the page-fetch timeout duration.
func (s SourceConfig) FetchTimeout() time.Duration {
	return time.Duration(s.FetchTimeoutSeconds) * time.Second
}

// Timeout returns the per-notification request timeout.
func (n NotifyConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// Window returns the rolling window duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// Cooldown returns how long an open breaker waits before probing.
func (b BreakerConfig) Cooldown() time.Duration {
	return time.Duration(b.CooldownSeconds) * time.Second
}

// TTL returns the lock lease duration.
func (l LockConfig) TTL() time.Duration {
	return time.Duration(l.TTLSeconds) * time.Second
}

// RefreshInterval returns how often a held lease is refreshed.
func (l LockConfig) RefreshInterval() time.Duration {
	return time.Duration(l.RefreshSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
