package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the importer.
type Config struct {
	Server   ServerConfig
	Fetch    FetchConfig
	Proxy    ProxyConfig
	LLM      LLMConfig
	Import   ImportConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Relay    RelayConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type FetchConfig struct {
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	MaxBodyBytes   int64
	RatePerHost    float64
	RateBurst      int
}

// ProxyConfig is optional; an empty URL means direct connections.
type ProxyConfig struct {
	URL      string
	User     string
	Password string
}

// LLMConfig configures the optional OpenAI-compatible enhancer.
type LLMConfig struct {
	Enabled     bool
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
}

type ImportConfig struct {
	Workers int
	MaxURLs int
}

type DatabaseConfig struct {
	URL      string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RelayConfig struct {
	Enabled      bool
	PollInterval time.Duration
	BatchSize    int
	StreamMaxLen int64
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, after applying an optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8080),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 10*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Fetch: FetchConfig{
			Timeout:        getDurationOrDefault("FETCH_TIMEOUT", 20*time.Second),
			UserAgent:      getEnvOrDefault("FETCH_USER_AGENT", defaultUserAgent),
			AcceptLanguage: getEnvOrDefault("FETCH_ACCEPT_LANGUAGE", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7"),
			MaxBodyBytes:   int64(getIntOrDefault("FETCH_MAX_BODY_BYTES", 5<<20)),
			RatePerHost:    getFloatOrDefault("FETCH_RATE_PER_HOST", 2),
			RateBurst:      getIntOrDefault("FETCH_RATE_BURST", 2),
		},
		Proxy: ProxyConfig{
			URL:      os.Getenv("PROXY_URL"),
			User:     os.Getenv("PROXY_USER"),
			Password: os.Getenv("PROXY_PASSWORD"),
		},
		LLM: LLMConfig{
			Enabled:     getBoolOrDefault("LLM_ENABLED", false),
			APIKey:      os.Getenv("LLM_API_KEY"),
			BaseURL:     os.Getenv("LLM_BASE_URL"),
			Model:       getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
			Timeout:     getDurationOrDefault("LLM_TIMEOUT", 25*time.Second),
			Temperature: float32(getFloatOrDefault("LLM_TEMPERATURE", 0.3)),
			MaxTokens:   getIntOrDefault("LLM_MAX_TOKENS", 1500),
		},
		Import: ImportConfig{
			Workers: getIntOrDefault("IMPORT_WORKERS", 6),
			MaxURLs: getIntOrDefault("IMPORT_MAX_URLS", 200),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Relay: RelayConfig{
			Enabled:      getBoolOrDefault("RELAY_ENABLED", false),
			PollInterval: getDurationOrDefault("RELAY_POLL_INTERVAL", 5*time.Second),
			BatchSize:    getIntOrDefault("RELAY_BATCH_SIZE", 100),
			StreamMaxLen: int64(getIntOrDefault("RELAY_STREAM_MAXLEN", 100000)),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Fetch.Timeout < 15*time.Second || c.Fetch.Timeout > 30*time.Second {
		return fmt.Errorf("FETCH_TIMEOUT must be between 15s and 30s")
	}

	if c.Fetch.RatePerHost <= 0 {
		return fmt.Errorf("FETCH_RATE_PER_HOST must be positive")
	}

	if c.Import.Workers < 1 || c.Import.Workers > 8 {
		return fmt.Errorf("IMPORT_WORKERS must be between 1 and 8")
	}

	if c.Import.MaxURLs < 1 {
		return fmt.Errorf("IMPORT_MAX_URLS must be at least 1")
	}

	if c.LLM.Enabled && c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required when LLM_ENABLED is set")
	}

	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}

	if c.Relay.Enabled && c.Database.URL == "" {
		return fmt.Errorf("RELAY_ENABLED requires DATABASE_URL")
	}

	return nil
}

// NewLogger builds the process logger from the logging settings.
func (c LoggingConfig) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
