package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Smoothing mode names accepted by PoseConfig.Smoothing.
const (
	SmoothingNone = "none"
	SmoothingEMA  = "ema"
)

// Config holds all service configuration. It is immutable after startup.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Pose      PoseConfig      `yaml:"pose"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Payload   PayloadConfig   `yaml:"payload"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
	Port string `envconfig:"PORT" default:"8765" yaml:"port"`
	// CORSOrigins lists the allowed cross-origin hosts; "*" allows any.
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*" yaml:"cors_origins"`
}

// PoseConfig holds merge engine configuration.
type PoseConfig struct {
	// VisibilityThreshold is the minimum detector confidence for a landmark
	// observation to update the stored state.
	VisibilityThreshold float64 `envconfig:"VIS_THRESH" default:"0.5" yaml:"visibility_threshold"`
	// Smoothing selects the blend strategy: "none" or "ema".
	Smoothing string `envconfig:"SMOOTHING" default:"ema" yaml:"smoothing"`
	// Alpha is the EMA responsiveness in (0,1]; ignored for "none".
	Alpha float64 `envconfig:"EMA_ALPHA" default:"0.35" yaml:"alpha"`
}

// BroadcastConfig holds fan-out loop configuration.
type BroadcastConfig struct {
	// Hz is the broadcast tick rate, independent of the producer frame rate.
	Hz float64 `envconfig:"BROADCAST_HZ" default:"30" yaml:"hz"`
}

// PayloadConfig holds wire payload configuration.
type PayloadConfig struct {
	// NaNToZero serializes unknown coordinates as 0.0 instead of null.
	NaNToZero bool `envconfig:"NAN_TO_ZERO" default:"true" yaml:"nan_to_zero"`
	// RoundDigits caps coordinate precision to N decimal places; negative
	// means full precision.
	RoundDigits int `envconfig:"ROUND_DIGITS" default:"-1" yaml:"round_digits"`
}

// IngestConfig holds producer-side configuration.
type IngestConfig struct {
	// MaxFailures is the number of consecutive source failures tolerated
	// before the producer loop gives up.
	MaxFailures int `envconfig:"INGEST_MAX_FAILURES" default:"30" yaml:"max_failures"`
	// LogPoses attaches a console observer that logs each merged state.
	LogPoses bool `envconfig:"LOG_POSES" default:"false" yaml:"log_poses"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds HTTP rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads configuration from a YAML file layered over the defaults.
// File and environment sources do not mix: a file, when given, is the single
// source of truth apart from defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from the environment or falls back to
// defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        "8765",
			CORSOrigins: []string{"*"},
		},
		Pose: PoseConfig{
			VisibilityThreshold: 0.5,
			Smoothing:           SmoothingEMA,
			Alpha:               0.35,
		},
		Broadcast: BroadcastConfig{
			Hz: 30,
		},
		Payload: PayloadConfig{
			NaNToZero:   true,
			RoundDigits: -1,
		},
		Ingest: IngestConfig{
			MaxFailures: 30,
			LogPoses:    false,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Validate checks option ranges that cannot be expressed in struct tags.
func (c *Config) Validate() error {
	if c.Pose.VisibilityThreshold < 0 || c.Pose.VisibilityThreshold > 1 {
		return fmt.Errorf("visibility threshold must be in [0,1], got %g", c.Pose.VisibilityThreshold)
	}
	switch c.Pose.Smoothing {
	case SmoothingNone:
	case SmoothingEMA:
		if c.Pose.Alpha <= 0 || c.Pose.Alpha > 1 {
			return fmt.Errorf("ema alpha must be in (0,1], got %g", c.Pose.Alpha)
		}
	default:
		return fmt.Errorf("unknown smoothing mode %q", c.Pose.Smoothing)
	}
	if c.Broadcast.Hz <= 0 {
		return fmt.Errorf("broadcast rate must be positive, got %g", c.Broadcast.Hz)
	}
	if c.Ingest.MaxFailures < 1 {
		return fmt.Errorf("ingest max failures must be at least 1, got %d", c.Ingest.MaxFailures)
	}
	return nil
}
