package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	TicketAPI TicketAPIConfig
	Sync      SyncConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Lookup    LookupConfig
	Rules     RulesConfig
	Import    ImportConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `validate:"required"`
	Env                   string `validate:"oneof=development staging production test"`
	Host                  string
	Port                  string `validate:"required,numeric"`
	Version               string
	RequestTimeoutSeconds int `validate:"gte=0"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `validate:"required"`
	MaxConns       int32  `validate:"gte=1"`
	MinConns       int32  `validate:"gte=0,ltefield=MaxConns"`
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string `validate:"required,hostname_port"`
	Password string
	DB       int `validate:"gte=0"`
	PoolSize int `validate:"gte=0"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

// AuthConfig defines the admin token settings.
type AuthConfig struct {
	AdminJWTSecret string `validate:"required,min=16"`
}

// TicketAPIConfig points at the external ticketing API.
type TicketAPIConfig struct {
	BaseURL        string `validate:"required,url"`
	AgentID        string `validate:"required"`
	ApplicationID  string `validate:"required"`
	Username       string `validate:"required"`
	Password       string `validate:"required"`
	TimeoutSeconds int    `validate:"gte=1"`
}

// SyncConfig drives the incremental sync cycle.
type SyncConfig struct {
	Enabled         bool
	Cron            string `validate:"required,cronspec"`
	Timezone        string `validate:"required,timezone"`
	LookbackDays    int    `validate:"gte=0,lte=31"`
	PageSize        int    `validate:"gte=1,lte=1000"`
	PageMaxAttempts int    `validate:"gte=1"`
}

// QueueConfig tunes the job queue.
type QueueConfig struct {
	Name                  string `validate:"required"`
	MaxAttempts           int    `validate:"gte=1"`
	RetryBaseDelaySeconds int    `validate:"gte=1"`
	DedupTTLHours         int    `validate:"gte=1"`
}

// WorkerConfig sizes the batch worker pool.
type WorkerConfig struct {
	Count             int `validate:"gte=1"`
	JobTimeoutSeconds int `validate:"gte=1"`
	EnrichConcurrency int `validate:"gte=1,lte=100"`
}

// LookupConfig controls the reference-table snapshot cache.
type LookupConfig struct {
	RefreshIntervalMinutes int `validate:"gte=1"`
}

// RulesConfig optionally points at a YAML rulebook override.
type RulesConfig struct {
	Path string `validate:"omitempty,file"`
}

// ImportConfig restricts export imports to one directory.
type ImportConfig struct {
	Dir string `validate:"required"`
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
			Name:                  getEnv("APP_NAME", "ticket-ingest"),
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
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 0),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
		},
		TicketAPI: TicketAPIConfig{
			BaseURL:        os.Getenv("TICKET_API_BASE_URL"),
			AgentID:        os.Getenv("TICKET_API_AGENT_ID"),
			ApplicationID:  os.Getenv("TICKET_API_APPLICATION_ID"),
			Username:       os.Getenv("TICKET_API_USERNAME"),
			Password:       os.Getenv("TICKET_API_PASSWORD"),
			TimeoutSeconds: getEnvAsInt("TICKET_API_TIMEOUT_SECONDS", 30),
		},
		Sync: SyncConfig{
			Enabled:         getEnvAsBool("SYNC_ENABLED", true),
			Cron:            getEnv("SYNC_CRON", "@every 1h"),
			Timezone:        getEnv("SYNC_TIMEZONE", "Asia/Jakarta"),
			LookbackDays:    getEnvAsInt("SYNC_LOOKBACK_DAYS", 0),
			PageSize:        getEnvAsInt("SYNC_PAGE_SIZE", 100),
			PageMaxAttempts: getEnvAsInt("SYNC_PAGE_MAX_ATTEMPTS", 3),
		},
		Queue: QueueConfig{
			Name:                  getEnv("QUEUE_NAME", "tickets"),
			MaxAttempts:           getEnvAsInt("QUEUE_MAX_ATTEMPTS", 3),
			RetryBaseDelaySeconds: getEnvAsInt("QUEUE_RETRY_BASE_DELAY_SECONDS", 5),
			DedupTTLHours:         getEnvAsInt("QUEUE_DEDUP_TTL_HOURS", 24),
		},
		Worker: WorkerConfig{
			Count:             getEnvAsInt("WORKER_COUNT", 2),
			JobTimeoutSeconds: getEnvAsInt("JOB_TIMEOUT_SECONDS", 300),
			EnrichConcurrency: getEnvAsInt("ENRICH_CONCURRENCY", 10),
		},
		Lookup: LookupConfig{
			RefreshIntervalMinutes: getEnvAsInt("LOOKUP_REFRESH_INTERVAL_MINUTES", 15),
		},
		Rules: RulesConfig{
			Path: os.Getenv("RULEBOOK_PATH"),
		},
		Import: ImportConfig{
			Dir: getEnv("IMPORT_DIR", "./uploads"),
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags of cfg.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.RegisterValidation("cronspec", isCronSpec); err != nil {
		return fmt.Errorf("register cronspec rule: %w", err)
	}
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func isCronSpec(fl validator.FieldLevel) bool {
	_, err := cron.ParseStandard(fl.Field().String())
	return err == nil
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

// Location resolves the sync timezone. Validation guarantees it loads.
func (s SyncConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Timeout returns the per-request timeout of the ticket API client.
func (t TicketAPIConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the first retry delay.
func (q QueueConfig) RetryBaseDelay() time.Duration {
	return time.Duration(q.RetryBaseDelaySeconds) * time.Second
}

// DedupTTL returns how long job ids are remembered.
func (q QueueConfig) DedupTTL() time.Duration {
	return time.Duration(q.DedupTTLHours) * time.Hour
}

// JobTimeout returns the deadline of a single job.
func (w WorkerConfig) JobTimeout() time.Duration {
	return time.Duration(w.JobTimeoutSeconds) * time.Second
}

// RefreshInterval returns how long a lookup snapshot stays fresh.
func (l LookupConfig) RefreshInterval() time.Duration {
	return time.Duration(l.RefreshIntervalMinutes) * time.Minute
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
