package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration
type Config struct {
	Environment string

	ServerHost         string
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	RedisURL string

	JWTSecret      string
	JWTAlgorithm   string
	AccessTokenTTL time.Duration

	// bcrypt hash of the key the backup scheduler sends in X-API-Key
	SchedulerAPIKeyHash string

	RateLimitEnabled       bool
	RateLimitRequests      int
	RateLimitWindow        time.Duration
	RateLimitBlockDuration time.Duration

	EventsEnabled bool
	EventsChannel string

	MetricsEnabled bool

	LogLevel  string
	LogFormat string

	CORSEnabled          bool
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAge           time.Duration

	PolicyPath string
}

var (
	ErrMissingDatabaseURL  = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret    = errors.New("JWT_SECRET is required")
	ErrInvalidJWTAlgorithm = errors.New("invalid JWT algorithm")
	ErrInvalidRateLimit    = errors.New("RATE_LIMIT_REQUESTS must be positive when rate limiting is enabled")
)

// Load reads configuration from the environment, loading .env first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnvOrDefault("ENV", "development"),

		ServerHost:         getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
		ServerPort:         getEnvOrDefault("SERVER_PORT", "8080"),
		ServerReadTimeout:  getEnvOrDefaultDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getEnvOrDefaultDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:  getEnvOrDefaultDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),

		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DBMaxOpenConns:    getEnvOrDefaultInt("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns:    getEnvOrDefaultInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvOrDefaultDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),

		RedisURL: os.Getenv("REDIS_URL"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTAlgorithm:   getEnvOrDefault("JWT_ALG", "HS256"),
		AccessTokenTTL: getEnvOrDefaultDuration("JWT_ACCESS_TOKEN_TTL", 15*time.Minute),

		SchedulerAPIKeyHash: os.Getenv("SCHEDULER_API_KEY_HASH"),

		RateLimitEnabled:       getEnvOrDefaultBool("RATE_LIMIT_ENABLED", false),
		RateLimitRequests:      getEnvOrDefaultInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:        getEnvOrDefaultDuration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitBlockDuration: getEnvOrDefaultDuration("RATE_LIMIT_BLOCK_DURATION", 15*time.Minute),

		EventsEnabled: getEnvOrDefaultBool("EVENTS_ENABLED", false),
		EventsChannel: getEnvOrDefault("EVENTS_CHANNEL", "workflowguard.events"),

		MetricsEnabled: getEnvOrDefaultBool("METRICS_ENABLED", true),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		CORSEnabled:          getEnvOrDefaultBool("CORS_ENABLED", true),
		CORSAllowedOrigins:   parseAllowedOrigins(os.Getenv("CORS_ALLOWED_ORIGINS")),
		CORSAllowCredentials: getEnvOrDefaultBool("CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAge:           getEnvOrDefaultDuration("CORS_MAX_AGE", 10*time.Minute),

		PolicyPath: getEnvOrDefault("POLICY_PATH", "config/policy.yaml"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if c.JWTAlgorithm != "HS256" {
		return ErrInvalidJWTAlgorithm
	}
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.RateLimitEnabled && c.RateLimitRequests <= 0 {
		return ErrInvalidRateLimit
	}
	return nil
}

// RedisEnabled reports whether any component needs a Redis connection.
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != "" && (c.RateLimitEnabled || c.EventsEnabled)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvOrDefaultDuration accepts Go durations ("15m") or plain seconds ("900").
func getEnvOrDefaultDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func parseAllowedOrigins(value string) []string {
	if value == "" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(value, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
