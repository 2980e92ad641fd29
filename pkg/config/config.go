package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Storage struct {
		Driver string `yaml:"driver"` // memory, redis or mongo

		Redis struct {
			Address  string `yaml:"address"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size"`
		} `yaml:"redis"`

		Mongo struct {
			URI        string        `yaml:"uri"`
			Database   string        `yaml:"database"`
			Collection string        `yaml:"collection"`
			Timeout    time.Duration `yaml:"timeout"`
		} `yaml:"mongo"`
	} `yaml:"storage"`

	YouTube struct {
		APIKey            string        `yaml:"api_key"`
		BaseURL           string        `yaml:"base_url"`
		Timeout           time.Duration `yaml:"timeout"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		Burst             int           `yaml:"burst"`

		CircuitBreaker struct {
			FailureThreshold int           `yaml:"failure_threshold"`
			SuccessThreshold int           `yaml:"success_threshold"`
			Timeout          time.Duration `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"youtube"`

	Resolver struct {
		DefaultMaxAge   time.Duration `yaml:"default_max_age"`
		EventMaxAge     time.Duration `yaml:"event_max_age"`
		CacheRetention  time.Duration `yaml:"cache_retention"`
		CacheMaxEntries int           `yaml:"cache_max_entries"`

		Retry struct {
			MaxAttempts int           `yaml:"max_attempts"`
			BaseDelay   time.Duration `yaml:"base_delay"`
		} `yaml:"retry"`
	} `yaml:"resolver"`

	Sweeper struct {
		Enabled  bool          `yaml:"enabled"`
		Interval time.Duration `yaml:"interval"`
		LockTTL  time.Duration `yaml:"lock_ttl"`
		// Concurrency bounds how many sessions one sweep refreshes in parallel.
		Concurrency int `yaml:"concurrency"`
	} `yaml:"sweeper"`

	Backup struct {
		Enabled   bool          `yaml:"enabled"`
		Directory string        `yaml:"directory"`
		Interval  time.Duration `yaml:"interval"`
		Keep      int           `yaml:"keep"` // 0 keeps every backup
	} `yaml:"backup"`

	Events struct {
		Enabled bool   `yaml:"enabled"` // requires redis storage
		Channel string `yaml:"channel"`
	} `yaml:"events"`

	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
		MaxConcurrent     int     `yaml:"max_concurrent"`
	} `yaml:"rate_limiting"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Storage
	switch c.Storage.Driver {
	case "memory":
	case "redis":
		if c.Storage.Redis.Address == "" {
			return fmt.Errorf("storage.redis.address must not be empty when storage.driver=redis")
		}
		if c.Storage.Redis.PoolSize <= 0 {
			return fmt.Errorf("storage.redis.pool_size must be > 0 when storage.driver=redis")
		}
	case "mongo":
		if c.Storage.Mongo.URI == "" {
			return fmt.Errorf("storage.mongo.uri must not be empty when storage.driver=mongo")
		}
		if c.Storage.Mongo.Collection == "" {
			return fmt.Errorf("storage.mongo.collection must not be empty when storage.driver=mongo")
		}
	default:
		return fmt.Errorf("storage.driver must be one of memory, redis, mongo (got %q)", c.Storage.Driver)
	}

	// YouTube
	if c.YouTube.BaseURL == "" {
		return fmt.Errorf("youtube.base_url must not be empty")
	}
	if c.YouTube.Timeout <= 0 {
		return fmt.Errorf("youtube.timeout must be > 0")
	}
	if c.YouTube.RequestsPerSecond <= 0 {
		return fmt.Errorf("youtube.requests_per_second must be > 0")
	}
	if c.YouTube.Burst <= 0 {
		return fmt.Errorf("youtube.burst must be > 0")
	}
	if c.YouTube.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("youtube.circuit_breaker.failure_threshold must be > 0")
	}

	// Resolver
	if c.Resolver.DefaultMaxAge <= 0 {
		return fmt.Errorf("resolver.default_max_age must be > 0")
	}
	if c.Resolver.EventMaxAge <= 0 {
		return fmt.Errorf("resolver.event_max_age must be > 0")
	}
	if c.Resolver.CacheRetention < c.Resolver.DefaultMaxAge {
		return fmt.Errorf("resolver.cache_retention must be >= resolver.default_max_age")
	}
	if c.Resolver.CacheMaxEntries < 0 {
		return fmt.Errorf("resolver.cache_max_entries must be >= 0")
	}
	if c.Resolver.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("resolver.retry.max_attempts must be > 0")
	}
	if c.Resolver.Retry.BaseDelay < 0 {
		return fmt.Errorf("resolver.retry.base_delay must be >= 0")
	}

	// Sweeper
	if c.Sweeper.Enabled && c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweeper.interval must be > 0 when sweeper.enabled=true")
	}
	if c.Sweeper.Concurrency <= 0 {
		return fmt.Errorf("sweeper.concurrency must be > 0")
	}

	// Backup
	if c.Backup.Directory == "" {
		return fmt.Errorf("backup.directory must not be empty")
	}
	if c.Backup.Enabled && c.Backup.Interval <= 0 {
		return fmt.Errorf("backup.interval must be > 0 when backup.enabled=true")
	}
	if c.Backup.Keep < 0 {
		return fmt.Errorf("backup.keep must be >= 0")
	}

	// Events
	if c.Events.Enabled && c.Storage.Driver != "redis" {
		return fmt.Errorf("events.enabled requires storage.driver=redis")
	}

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be > 0")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.max_concurrent must be >= 0 when rate limiting is enabled")
		}
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Storage.Driver = "memory"
	cfg.Storage.Redis.Address = "localhost:6379"
	cfg.Storage.Redis.PoolSize = 10
	cfg.Storage.Mongo.URI = "mongodb://localhost:27017/collabstream"
	cfg.Storage.Mongo.Database = "collabstream"
	cfg.Storage.Mongo.Collection = "collab_sessions"
	cfg.Storage.Mongo.Timeout = 10 * time.Second

	cfg.YouTube.BaseURL = "https://www.googleapis.com/youtube/v3"
	cfg.YouTube.Timeout = 10 * time.Second
	cfg.YouTube.RequestsPerSecond = 5
	cfg.YouTube.Burst = 10
	cfg.YouTube.CircuitBreaker.FailureThreshold = 5
	cfg.YouTube.CircuitBreaker.SuccessThreshold = 2
	cfg.YouTube.CircuitBreaker.Timeout = 30 * time.Second

	cfg.Resolver.DefaultMaxAge = 5 * time.Minute
	cfg.Resolver.EventMaxAge = 30 * time.Second
	cfg.Resolver.CacheRetention = 24 * time.Hour
	cfg.Resolver.CacheMaxEntries = 10000
	cfg.Resolver.Retry.MaxAttempts = 3
	cfg.Resolver.Retry.BaseDelay = 500 * time.Millisecond

	cfg.Sweeper.Enabled = true
	cfg.Sweeper.Interval = 5 * time.Minute
	cfg.Sweeper.LockTTL = 4 * time.Minute
	cfg.Sweeper.Concurrency = 4

	cfg.Backup.Enabled = false
	cfg.Backup.Directory = "backups"
	cfg.Backup.Interval = time.Hour
	cfg.Backup.Keep = 24

	cfg.Events.Enabled = false
	cfg.Events.Channel = "collabstream:events"

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.TokenTTL = 24 * time.Hour

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 20
	cfg.RateLimiting.Burst = 40
	cfg.RateLimiting.MaxConcurrent = 0

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "collabstream"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("COLLAB_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("COLLAB_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if driver := os.Getenv("COLLAB_STORAGE_DRIVER"); driver != "" {
		c.Storage.Driver = driver
	}
	if addr := os.Getenv("COLLAB_REDIS_ADDRESS"); addr != "" {
		c.Storage.Redis.Address = addr
	}
	if uri := os.Getenv("COLLAB_MONGO_URI"); uri != "" {
		c.Storage.Mongo.URI = uri
	}
	if key := os.Getenv("COLLAB_YOUTUBE_API_KEY"); key != "" {
		c.YouTube.APIKey = key
	}
	if secret := os.Getenv("COLLAB_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
}
