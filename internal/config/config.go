package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	DefaultDailyLimit     = 5
	DefaultQuotaTimezone  = "UTC"
	DefaultPort           = "3333"

	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	defaultRetentionDays  = 30
	defaultNotifyWorkers  = 5
	defaultNotifyQueue    = 100
	defaultNotifyAttempts = 3
)

type Config struct {
	// Application
	AppEnv   string
	Port     string
	LogLevel string

	// Database
	Storage     string
	DatabaseURL string
	DBMaxConns  int
	DBMinConns  int

	// Quota
	DailyRequestLimit  int
	QuotaTimezone      string
	QuotaRetentionDays int

	// Notifications
	NotifyWorkers      int
	NotifyQueueSize    int
	NotifyMaxAttempts  int
	NotifyRetryDelay   time.Duration
	FCMCredentialsB64  string
	FCMCredentialsFile string

	// Auth
	ClerkSecretKey string
	JWTSecret      string

	// HTTP
	MetricsUser    string
	MetricsPass    string
	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string
}

// Load reads configuration from the environment. Callers load .env first.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", EnvProduction),
		Port:     getEnv("PORT", DefaultPort),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Storage:     getEnv("STORAGE", StoragePostgres),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 25),
		DBMinConns:  getEnvInt("DB_MIN_CONNS", 5),

		DailyRequestLimit:  getEnvInt("DAILY_REQUEST_LIMIT", DefaultDailyLimit),
		QuotaTimezone:      getEnv("QUOTA_TIMEZONE", DefaultQuotaTimezone),
		QuotaRetentionDays: getEnvInt("QUOTA_RETENTION_DAYS", defaultRetentionDays),

		NotifyWorkers:      getEnvInt("NOTIFY_WORKERS", defaultNotifyWorkers),
		NotifyQueueSize:    getEnvInt("NOTIFY_QUEUE_SIZE", defaultNotifyQueue),
		NotifyMaxAttempts:  getEnvInt("NOTIFY_MAX_ATTEMPTS", defaultNotifyAttempts),
		NotifyRetryDelay:   getEnvDuration("NOTIFY_RETRY_DELAY", 500*time.Millisecond),
		FCMCredentialsB64:  getEnv("FCM_SERVICE_ACCOUNT_JSON", ""),
		FCMCredentialsFile: getEnv("FCM_CREDENTIALS_FILE", ""),

		ClerkSecretKey: getEnv("CLERK_SECRET_KEY", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),

		MetricsUser:    getEnv("METRICS_USER", ""),
		MetricsPass:    getEnv("METRICS_PASS", ""),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 30),
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", "*"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE=postgres")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage)
	}

	if c.DailyRequestLimit < 1 {
		return fmt.Errorf("DAILY_REQUEST_LIMIT must be at least 1")
	}
	if _, err := time.LoadLocation(c.QuotaTimezone); err != nil {
		return fmt.Errorf("invalid QUOTA_TIMEZONE %q: %w", c.QuotaTimezone, err)
	}
	if c.NotifyWorkers < 1 {
		return fmt.Errorf("NOTIFY_WORKERS must be at least 1")
	}
	if c.NotifyMaxAttempts < 1 {
		return fmt.Errorf("NOTIFY_MAX_ATTEMPTS must be at least 1")
	}

	if !c.IsDevelopment() && c.ClerkSecretKey == "" && c.JWTSecret == "" {
		return fmt.Errorf("CLERK_SECRET_KEY or JWT_SECRET is required outside development")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	return nil
}

// IsDevelopment reports whether APP_ENV was explicitly set to development.
// Only then may the server run without a token verifier.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// QuotaLocation is the reference timezone for quota days. Validate has
// already checked that it loads.
func (c *Config) QuotaLocation() *time.Location {
	loc, err := time.LoadLocation(c.QuotaTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) QuotaRetention() time.Duration {
	return time.Duration(c.QuotaRetentionDays) * 24 * time.Hour
}

func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
