// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Gemini settings. The API key is optional at startup: the session
	// selects a credential on demand through the credential selector.
	GeminiAPIKey  string `env:"GEMINI_API_KEY" json:"-"` // Masked in JSON
	GeminiBaseURL string `env:"GEMINI_BASE_URL, default=https://generativelanguage.googleapis.com/v1beta" json:"gemini_base_url"`
	ImageModel    string `env:"IMAGE_MODEL, default=imagen-3.0-generate-002" json:"image_model"`
	VideoModel    string `env:"VIDEO_MODEL, default=veo-2.0-generate-001" json:"video_model"`

	// Animation polling settings. PollTimeout bounds the operation
	// poll loop; zero disables the bound.
	PollInterval time.Duration `env:"POLL_INTERVAL, default=5s" json:"poll_interval"`
	PollTimeout  time.Duration `env:"POLL_TIMEOUT, default=10m" json:"poll_timeout"`

	// StatusRotateInterval controls how often the session cycles its
	// progress message while an animation is running.
	StatusRotateInterval time.Duration `env:"STATUS_ROTATE_INTERVAL, default=4s" json:"status_rotate_interval"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/logomotion" json:"temp_dir"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, GeminiBaseURL: %s, ImageModel: %s, VideoModel: %s, PollInterval: %s, PollTimeout: %s, TempDir: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.GeminiBaseURL,
		c.ImageModel,
		c.VideoModel,
		c.PollInterval,
		c.PollTimeout,
		c.TempDir,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
