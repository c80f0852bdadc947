// Package config loads runtime settings for the fastchat service from the
// environment, applies defaults, and repairs out-of-range values.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// MaxReplayLimit caps REPLAY_LIMIT.
const MaxReplayLimit = 200

// RateLimitConfig defines the parameters for per-connection event rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST" envDefault:"10"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
}

// MongoConfig holds the document database connection settings.
type MongoConfig struct {
	URI         string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	Database    string        `env:"MONGO_DATABASE" envDefault:"fastchat"`
	Timeout     time.Duration `env:"MONGO_TIMEOUT" envDefault:"5s"`
	MinPoolSize uint64        `env:"MONGO_MIN_POOL_SIZE" envDefault:"0"`
	MaxPoolSize uint64        `env:"MONGO_MAX_POOL_SIZE" envDefault:"100"`
}

// JWTConfig holds the signing secrets and lifetimes of access and refresh tokens.
type JWTConfig struct {
	Secret         string        `env:"JWT_SECRET"`
	RefreshSecret  string        `env:"JWT_REFRESH_SECRET"`
	AccessExpires  time.Duration `env:"JWT_ACCESS_EXPIRES" envDefault:"15m"`
	RefreshExpires time.Duration `env:"JWT_REFRESH_EXPIRES" envDefault:"168h"`
}

// TelemetryConfig toggles the OTLP exporters.
type TelemetryConfig struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"fastchat"`
}

// Config holds the server configuration including security controls.
type Config struct {
	Port             string          `env:"PORT" envDefault:":3000"`
	AllowedOrigins   []string        `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	MaxMessageSize   int64           `env:"MAX_MESSAGE_SIZE" envDefault:"4096"`
	HandshakeTimeout time.Duration   `env:"HANDSHAKE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout  time.Duration   `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	VerifyRoomJoin   bool            `env:"VERIFY_ROOM_JOIN" envDefault:"true"`
	ReplayLimit      int             `env:"REPLAY_LIMIT" envDefault:"50"`
	StoreDriver      string          `env:"STORE_DRIVER" envDefault:"mongo"`
	LogLevel         string          `env:"LOG_LEVEL" envDefault:"info"`
	RateLimit        RateLimitConfig
	Mongo            MongoConfig
	JWT              JWTConfig
	Telemetry        TelemetryConfig

	origins Origins
}

// Default returns a Config populated with default values for all settings.
// Secrets are left empty.
func Default() *Config {
	cfg := &Config{}
	// Parsing an empty environment only applies envDefault tags.
	_ = env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{}})
	cfg.Sanitize()
	return cfg
}

// Load creates a Config from environment variables, falling back to defaults
// for anything unset, and sanitizes the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// Sanitize repairs zero or negative values and normalizes the origin allow-list.
func (c *Config) Sanitize() {
	if c.Port == "" {
		c.Port = ":3000"
	}
	if !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	// Replay must fit in a connection's send buffer.
	if c.ReplayLimit <= 0 {
		c.ReplayLimit = 50
	}
	if c.ReplayLimit > MaxReplayLimit {
		c.ReplayLimit = MaxReplayLimit
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 10
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = time.Second
	}
	if c.Mongo.Timeout <= 0 {
		c.Mongo.Timeout = 5 * time.Second
	}
	if c.JWT.AccessExpires <= 0 {
		c.JWT.AccessExpires = 15 * time.Minute
	}
	if c.JWT.RefreshExpires <= 0 {
		c.JWT.RefreshExpires = 7 * 24 * time.Hour
	}
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	if c.StoreDriver != StoreMemory {
		c.StoreDriver = StoreMongo
	}

	c.origins = NewOrigins(c.AllowedOrigins)
	c.AllowedOrigins = c.origins.List()
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET is required"))
	}
	if c.JWT.Secret != "" && c.JWT.Secret == c.JWT.RefreshSecret {
		errs = append(errs, errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	return errors.Join(errs...)
}

// Origins returns the normalized origin allow-list.
func (c *Config) Origins() Origins {
	return c.origins
}

// Level maps LOG_LEVEL onto a slog level. Unknown values mean info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
