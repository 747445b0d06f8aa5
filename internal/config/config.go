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
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Broker   BrokerConfig
	Channel  ChannelConfig
	Listing  ListingConfig
	Worker   WorkerConfig
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

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables the
// cross-instance event fan-out.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// BrokerConfig configures the AMQP lifecycle event sink. Empty URL disables it.
type BrokerConfig struct {
	URL           string
	Exchange      string
	RetryAttempts int
	RetryDelayMS  int
}

// ChannelConfig points at the chat gateway that owns the messaging connections.
type ChannelConfig struct {
	BaseURL        string
	Token          string
	TimeoutSeconds int
}

// ListingConfig tunes the ticket listing.
type ListingConfig struct {
	PageSize                int
	AnnotateSyncEligibility bool
	WaitingThresholdMinutes int
}

// WorkerConfig tunes background and post-commit work.
type WorkerConfig struct {
	WaitingIntervalSeconds   int
	WaitingBatchSize         int
	WaitingBatchMaxLimit     int
	SideEffectTimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticketdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Broker: BrokerConfig{
			URL:           os.Getenv("AMQP_URL"),
			Exchange:      getEnv("AMQP_EXCHANGE", "helpdesk.tickets"),
			RetryAttempts: getEnvAsInt("AMQP_RETRY_ATTEMPTS", 5),
			RetryDelayMS:  getEnvAsInt("AMQP_RETRY_DELAY_MS", 500),
		},
		Channel: ChannelConfig{
			BaseURL:        getEnv("CHANNEL_GATEWAY_URL", "http://127.0.0.1:8090"),
			Token:          os.Getenv("CHANNEL_GATEWAY_TOKEN"),
			TimeoutSeconds: getEnvAsInt("CHANNEL_GATEWAY_TIMEOUT_SECONDS", 15),
		},
		Listing: ListingConfig{
			PageSize:                getEnvAsInt("LISTING_PAGE_SIZE", 40),
			AnnotateSyncEligibility: getEnvAsBool("LISTING_ANNOTATE_SYNC_ELIGIBILITY", false),
			WaitingThresholdMinutes: getEnvAsInt("LISTING_WAITING_THRESHOLD_MINUTES", 10),
		},
		Worker: WorkerConfig{
			WaitingIntervalSeconds:   getEnvAsInt("WORKER_WAITING_INTERVAL_SECONDS", 0),
			WaitingBatchSize:         getEnvAsInt("WORKER_WAITING_BATCH_SIZE", 200),
			WaitingBatchMaxLimit:     getEnvAsInt("WAITING_BATCH_MAX_LIMIT", 1000),
			SideEffectTimeoutSeconds: getEnvAsInt("SIDE_EFFECT_TIMEOUT_SECONDS", 10),
		},
	}

	if cfg.Listing.PageSize <= 0 {
		return nil, fmt.Errorf("invalid LISTING_PAGE_SIZE: %d", cfg.Listing.PageSize)
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

// Timeout returns the per-call timeout for gateway requests.
func (c ChannelConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds)
}

// WaitingThreshold returns how long an unanswered message must wait before
// its ticket counts as waiting.
func (l ListingConfig) WaitingThreshold() time.Duration {
	return time.Duration(l.WaitingThresholdMinutes) * time.Minute
}

// WaitingInterval returns the sweep period; zero disables the worker.
func (w WorkerConfig) WaitingInterval() time.Duration {
	return seconds(w.WaitingIntervalSeconds)
}

// SideEffectTimeout bounds each post-commit hook.
func (w WorkerConfig) SideEffectTimeout() time.Duration {
	return seconds(w.SideEffectTimeoutSeconds)
}

// RetryDelay returns the initial AMQP dial backoff.
func (b BrokerConfig) RetryDelay() time.Duration {
	return time.Duration(b.RetryDelayMS) * time.Millisecond
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
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

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
