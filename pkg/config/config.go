package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Application settings
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`
	Live     LiveConfig     `yaml:"live"`
	Insights InsightsConfig `yaml:"insights"`
	Query    QueryConfig    `yaml:"query"`
	Ingest   IngestConfig   `yaml:"ingest"`
}

// Server settings
type ServerConfig struct {
	Port           string        `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Persisted cache settings
type StorageConfig struct {
	Backend       string `yaml:"backend"` // memory, file or redis
	FilePath      string `yaml:"file_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`
}

// Live provider API settings
type LiveConfig struct {
	ProviderAPIURL     string        `yaml:"provider_api_url"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout"`
	RateLimitPerSecond int           `yaml:"rate_limit_per_second"`
	DeveloperToken     string        `yaml:"developer_token"`
}

type InsightsConfig struct {
	GeminiAPIKey string `yaml:"gemini_api_key"`
	Model        string `yaml:"model"`
}

// Push ingestion settings. An empty secret leaves webhooks unsigned.
type IngestConfig struct {
	WebhookSecret string `yaml:"webhook_secret"`
}

// Query settings. Dashboard sessions idle longer than SessionIdleTTL are
// dropped and at most MaxSessions are held at once.
type QueryConfig struct {
	DefaultRangeDays int           `yaml:"default_range_days"`
	SessionIdleTTL   time.Duration `yaml:"session_idle_ttl"`
	MaxSessions      int           `yaml:"max_sessions"`
}

// Logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE and the environment, in increasing precedence. A .env file in
// the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := config.loadFile(path); err != nil {
			return nil, err
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			RequestTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Backend:   BackendMemory,
			FilePath:  "./data",
			RedisAddr: "localhost:6379",
			KeyPrefix: "perfhub:",
		},
		Live: LiveConfig{
			ProviderAPIURL:     "https://api.mari-performance.hub",
			FetchTimeout:       10 * time.Second,
			RateLimitPerSecond: 10,
		},
		Insights: InsightsConfig{
			Model: "gemini-2.5-pro",
		},
		Query: QueryConfig{
			DefaultRangeDays: 30,
			SessionIdleTTL:   30 * time.Minute,
			MaxSessions:      1024,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.RequestTimeout = getDurationEnv("REQUEST_TIMEOUT", c.Server.RequestTimeout)

	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.FilePath = getEnv("STORAGE_FILE_PATH", c.Storage.FilePath)
	c.Storage.RedisAddr = getEnv("REDIS_ADDR", c.Storage.RedisAddr)
	c.Storage.RedisPassword = getEnv("REDIS_PASSWORD", c.Storage.RedisPassword)
	c.Storage.RedisDB = getIntEnv("REDIS_DB", c.Storage.RedisDB)
	c.Storage.KeyPrefix = getEnv("STORAGE_KEY_PREFIX", c.Storage.KeyPrefix)

	c.Live.ProviderAPIURL = getEnv("PROVIDER_API_URL", c.Live.ProviderAPIURL)
	c.Live.FetchTimeout = getDurationEnv("FETCH_TIMEOUT", c.Live.FetchTimeout)
	c.Live.RateLimitPerSecond = getIntEnv("RATE_LIMIT_PER_SECOND", c.Live.RateLimitPerSecond)
	c.Live.DeveloperToken = getEnv("GOOGLE_ADS_DEVELOPER_TOKEN", c.Live.DeveloperToken)

	c.Insights.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.Insights.GeminiAPIKey)
	c.Insights.Model = getEnv("GEMINI_MODEL", c.Insights.Model)

	c.Query.DefaultRangeDays = getIntEnv("DEFAULT_RANGE_DAYS", c.Query.DefaultRangeDays)
	c.Query.SessionIdleTTL = getDurationEnv("SESSION_IDLE_TTL", c.Query.SessionIdleTTL)
	c.Query.MaxSessions = getIntEnv("MAX_SESSIONS", c.Query.MaxSessions)

	c.Ingest.WebhookSecret = getEnv("WEBHOOK_SECRET", c.Ingest.WebhookSecret)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == BackendFile && c.Storage.FilePath == "" {
		return fmt.Errorf("file storage backend requires a file path")
	}
	if c.Live.RateLimitPerSecond <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", c.Live.RateLimitPerSecond)
	}
	if c.Query.DefaultRangeDays <= 0 {
		return fmt.Errorf("default range days must be positive, got %d", c.Query.DefaultRangeDays)
	}
	if c.Query.MaxSessions <= 0 {
		return fmt.Errorf("max sessions must be positive, got %d", c.Query.MaxSessions)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
