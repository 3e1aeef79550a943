package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Server
	Port string

	// Logging
	LogLevel  string
	LogPretty bool

	// Request Execution
	RequestTimeout  time.Duration
	MaxRequestSize  int64
	MaxResponseSize int64
	MaxHeaderCount  int
	MaxRedirects    int
	MaxRunDelay     time.Duration

	// Versioning
	MaxVersions int

	// Sharing
	ShareTokenBytes int

	// Rate Limiting
	RateLimitRPS   int
	RateLimitBurst int

	// Cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// SSRF Protection
	AllowLocalhost  bool
	AllowPrivateIPs bool
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "dev"),
		DBPassword:    getEnv("DB_PASSWORD", "localdb"),
		DBName:        getEnv("DB_NAME", "collectionrunner"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPretty:     getEnv("LOG_PRETTY", "false") == "true",
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
	}

	var err error
	cfg.RequestTimeout, err = time.ParseDuration(getEnv("REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}

	cfg.MaxRunDelay, err = time.ParseDuration(getEnv("RUN_DELAY_MAX", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RUN_DELAY_MAX: %w", err)
	}

	cfg.CacheTTL, err = time.ParseDuration(getEnv("CACHE_TTL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}

	cfg.MaxRequestSize, err = strconv.ParseInt(getEnv("MAX_REQUEST_SIZE", "10485760"), 10, 64) // 10MB
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_REQUEST_SIZE: %w", err)
	}

	cfg.MaxResponseSize, err = strconv.ParseInt(getEnv("MAX_RESPONSE_SIZE", "52428800"), 10, 64) // 50MB
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_RESPONSE_SIZE: %w", err)
	}

	cfg.MaxHeaderCount, err = strconv.Atoi(getEnv("MAX_HEADER_COUNT", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_HEADER_COUNT: %w", err)
	}

	cfg.MaxRedirects, err = strconv.Atoi(getEnv("MAX_REDIRECTS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_REDIRECTS: %w", err)
	}

	cfg.MaxVersions, err = strconv.Atoi(getEnv("MAX_VERSIONS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_VERSIONS: %w", err)
	}

	cfg.ShareTokenBytes, err = strconv.Atoi(getEnv("SHARE_TOKEN_BYTES", "32"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHARE_TOKEN_BYTES: %w", err)
	}

	cfg.RateLimitRPS, err = strconv.Atoi(getEnv("RATE_LIMIT_RPS", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	cfg.RateLimitBurst, err = strconv.Atoi(getEnv("RATE_LIMIT_BURST", "2000"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.AllowLocalhost = getEnv("ALLOW_LOCALHOST", "true") == "true"
	cfg.AllowPrivateIPs = getEnv("ALLOW_PRIVATE_IPS", "true") == "true"

	return cfg, nil
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
