package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the classification server.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Classifier ClassifierConfig
	Storage    StorageConfig
	Pipeline   PipelineConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	RateLimitPerMin int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type ClassifierConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	HTTP             HTTPClassifierConfig
}

type HTTPClassifierConfig struct {
	BaseURL string
	Model   string
}

type StorageConfig struct {
	Dir string
}

type PipelineConfig struct {
	Workers   int
	QueueSize int
}

var validProviders = map[string]bool{
	"http": true,
	"mock": true,
}

// Load reads configuration from the environment (and an optional .env file)
// and returns a validated Config. Returns an error with a descriptive
// message if any required value is missing or invalid.
func Load() (*Config, error) {
	// .env is a convenience for local development; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("PULMOSCAN_PORT", 8080),
			Env:             envString("PULMOSCAN_ENV", "development"),
			RateLimitPerMin: envInt("RATE_LIMIT_PER_MIN", 120),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Cache: CacheConfig{
			Enabled: envBool("CACHE_ENABLED", true),
			TTL:     envDuration("CACHE_TTL", 7*24*time.Hour),
		},
		Classifier: ClassifierConfig{
			Provider:         envString("CLASSIFIER_PROVIDER", "http"),
			InferenceTimeout: envDurationSecs("INFERENCE_TIMEOUT_SECS", 60*time.Second),
			HTTP: HTTPClassifierConfig{
				BaseURL: envString("CLASSIFIER_BASE_URL", "http://localhost:8500"),
				Model:   envString("CLASSIFIER_MODEL", "covid"),
			},
		},
		Storage: StorageConfig{
			Dir: envString("STORAGE_DIR", "data/images"),
		},
		Pipeline: PipelineConfig{
			Workers:   envInt("PIPELINE_WORKERS", 4),
			QueueSize: envInt("PIPELINE_QUEUE_SIZE", 64),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validProviders[c.Classifier.Provider] {
		return fmt.Errorf("CLASSIFIER_PROVIDER must be one of http, mock; got %q", c.Classifier.Provider)
	}
	if c.Classifier.Provider == "http" {
		base := c.Classifier.HTTP.BaseURL
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			return fmt.Errorf("CLASSIFIER_BASE_URL must start with http:// or https://, got %q", base)
		}
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.QueueSize < 1 {
		return fmt.Errorf("PIPELINE_QUEUE_SIZE must be at least 1, got %d", c.Pipeline.QueueSize)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
