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

	Realtime struct {
		PingInterval    time.Duration `yaml:"ping_interval"`
		PongTimeout     time.Duration `yaml:"pong_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		SendBufferSize  int           `yaml:"send_buffer_size"`
		MaxMessageBytes int64         `yaml:"max_message_bytes"`
	} `yaml:"realtime"`

	Streaming struct {
		MinUpdateInterval     time.Duration `yaml:"min_update_interval"`
		DefaultUpdateInterval time.Duration `yaml:"default_update_interval"`
		HeartbeatInterval     time.Duration `yaml:"heartbeat_interval"`
		EventBufferSize       int           `yaml:"event_buffer_size"`
	} `yaml:"streaming"`

	Aggregation struct {
		GridSizeMeters     float64       `yaml:"grid_size_meters"`
		SeverityMultiplier float64       `yaml:"severity_multiplier"`
		TimeDecayFactor    float64       `yaml:"time_decay_factor"`
		CacheTTL           time.Duration `yaml:"cache_ttl"`
	} `yaml:"aggregation"`

	Risk struct {
		Enabled bool          `yaml:"enabled"`
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"risk"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret       string        `yaml:"jwt_secret"`
		AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
		RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
		MaxConcurrent     int     `yaml:"max_concurrent"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
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

	if c.Realtime.PingInterval <= 0 {
		return fmt.Errorf("realtime.ping_interval must be > 0")
	}
	if c.Realtime.PongTimeout <= 0 {
		return fmt.Errorf("realtime.pong_timeout must be > 0")
	}
	if c.Realtime.SendBufferSize <= 0 {
		return fmt.Errorf("realtime.send_buffer_size must be > 0")
	}

	if c.Streaming.MinUpdateInterval <= 0 {
		return fmt.Errorf("streaming.min_update_interval must be > 0")
	}
	if c.Streaming.DefaultUpdateInterval < c.Streaming.MinUpdateInterval {
		return fmt.Errorf("streaming.default_update_interval must be >= min_update_interval")
	}
	if c.Streaming.HeartbeatInterval <= 0 {
		return fmt.Errorf("streaming.heartbeat_interval must be > 0")
	}
	if c.Streaming.EventBufferSize <= 0 {
		return fmt.Errorf("streaming.event_buffer_size must be > 0")
	}

	if c.Aggregation.GridSizeMeters <= 0 {
		return fmt.Errorf("aggregation.grid_size_meters must be > 0")
	}
	if c.Aggregation.SeverityMultiplier < 0 {
		return fmt.Errorf("aggregation.severity_multiplier must be >= 0")
	}
	if c.Aggregation.TimeDecayFactor < 0 {
		return fmt.Errorf("aggregation.time_decay_factor must be >= 0")
	}
	if c.Aggregation.CacheTTL < 0 {
		return fmt.Errorf("aggregation.cache_ttl must be >= 0")
	}

	if c.Risk.Enabled {
		if c.Risk.BaseURL == "" {
			return fmt.Errorf("risk.base_url must not be empty when risk.enabled=true")
		}
		if c.Risk.Timeout <= 0 {
			return fmt.Errorf("risk.timeout must be > 0 when risk.enabled=true")
		}
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth.refresh_token_ttl must be > 0")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.max_concurrent must be >= 0")
		}
	}

	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file falls back to defaults.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
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

	cfg.Realtime.PingInterval = 30 * time.Second
	cfg.Realtime.PongTimeout = 60 * time.Second
	cfg.Realtime.WriteTimeout = 10 * time.Second
	cfg.Realtime.SendBufferSize = 64
	cfg.Realtime.MaxMessageBytes = 64 * 1024

	cfg.Streaming.MinUpdateInterval = 5 * time.Second
	cfg.Streaming.DefaultUpdateInterval = 30 * time.Second
	cfg.Streaming.HeartbeatInterval = 30 * time.Second
	cfg.Streaming.EventBufferSize = 32

	cfg.Aggregation.GridSizeMeters = 50
	cfg.Aggregation.SeverityMultiplier = 2.0
	cfg.Aggregation.TimeDecayFactor = 0.5
	cfg.Aggregation.CacheTTL = 10 * time.Second

	cfg.Risk.Enabled = false
	cfg.Risk.BaseURL = "http://localhost:5000"
	cfg.Risk.Timeout = 5 * time.Second

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 50
	cfg.RateLimiting.Burst = 100
	cfg.RateLimiting.MaxConcurrent = 0

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("CAMPUSPULSE_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("CAMPUSPULSE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("CAMPUSPULSE_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if addr := os.Getenv("CAMPUSPULSE_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
	if url := os.Getenv("CAMPUSPULSE_RISK_BASE_URL"); url != "" {
		c.Risk.BaseURL = url
	}
}
