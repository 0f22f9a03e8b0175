package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	API       APIConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Sync      SyncConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// APIConfig holds resort API configuration
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type       string `mapstructure:"type"` // "memory", "redis" or "sqlite"
	RedisURL   string `mapstructure:"redis_url"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
	Burst int `mapstructure:"burst"`
}

// SyncConfig holds the timeout profiles of foreground and background calls
type SyncConfig struct {
	ForegroundTimeout      time.Duration `mapstructure:"foreground_timeout"`
	BackgroundTimeout      time.Duration `mapstructure:"background_timeout"`
	BackgroundTotalTimeout time.Duration `mapstructure:"background_total_timeout"`
}

// SchedulerConfig holds background job configuration
type SchedulerConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	PurgeInterval     time.Duration `mapstructure:"purge_interval"`
	Retention         time.Duration `mapstructure:"retention"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
	FavoriteResortIDs []string      `mapstructure:"favorite_resort_ids"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from environment variables, an optional .env file
// and an optional config file
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/powderchaser/")

	// Environment variable settings
	v.SetEnvPrefix("POWDERCHASER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile exports the variables of ./.env without overriding the
// environment. A missing file is not an error.
func loadEnvFile() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading .env file: %w", err)
	}
	return nil
}

// setDefaults sets default configuration values. Every key needs a default so
// AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Resort API defaults
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.api_key", "")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("api.max_retries", 2)
	v.SetDefault("api.initial_backoff", "500ms")
	v.SetDefault("api.max_backoff", "5s")
	v.SetDefault("api.requests_per_second", 10)
	v.SetDefault("api.burst", 20)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.sqlite_path", "powderchaser-cache.db")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 120)
	v.SetDefault("ratelimit.burst", 20)

	// Sync defaults
	v.SetDefault("sync.foreground_timeout", "10s")
	v.SetDefault("sync.background_timeout", "4s")
	v.SetDefault("sync.background_total_timeout", "30s")

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.purge_interval", "1h")
	v.SetDefault("scheduler.retention", "72h")
	v.SetDefault("scheduler.refresh_interval", "15m")
	v.SetDefault("scheduler.favorite_resort_ids", []string{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.API.BaseURL == "" {
		return fmt.Errorf("resort API base URL is required (set POWDERCHASER_API_BASE_URL)")
	}

	if config.API.InitialBackoff > 0 && config.API.MaxBackoff > 0 && config.API.InitialBackoff > config.API.MaxBackoff {
		return fmt.Errorf("API initial backoff (%s) must not exceed max backoff (%s)",
			config.API.InitialBackoff, config.API.MaxBackoff)
	}

	switch config.Cache.Type {
	case "memory":
	case "redis":
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when cache type is 'redis'")
		}
	case "sqlite":
		if config.Cache.SQLitePath == "" {
			return fmt.Errorf("SQLite path is required when cache type is 'sqlite'")
		}
	default:
		return fmt.Errorf("cache type must be 'memory', 'redis' or 'sqlite', got: %s", config.Cache.Type)
	}

	if config.Sync.BackgroundTimeout >= config.Sync.ForegroundTimeout {
		return fmt.Errorf("background timeout (%s) must be shorter than foreground timeout (%s)",
			config.Sync.BackgroundTimeout, config.Sync.ForegroundTimeout)
	}

	if config.Scheduler.Enabled {
		if config.Scheduler.PurgeInterval < time.Minute || config.Scheduler.RefreshInterval < time.Minute {
			return fmt.Errorf("scheduler intervals must be at least one minute")
		}
		if config.Scheduler.Retention <= 0 {
			return fmt.Errorf("scheduler retention must be positive")
		}
	}

	return nil
}
