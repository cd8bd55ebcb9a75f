// Package config loads and validates the job runner's environment
// configuration.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/videditor/jobrunner/errors"
)

// Environment names accepted for NODE_ENV.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// Config is the fully validated runtime configuration.
type Config struct {
	NodeEnv string
	Port    int

	DatabaseURL string

	JobConcurrency int
	PollIntervalMs int

	FFmpegBinary string

	Tigris Tigris

	OpenRouterAPIKey string
	OpenRouterModel  string

	WhisperBinary string
	WhisperModel  string
}

// Tigris holds credentials for the S3-compatible object store.
type Tigris struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

// Load reads configuration from the environment, applies defaults, and
// validates ranges. A missing or out-of-range value is a fatal startup
// error for the caller.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	// Exact env names, no prefix: the deployment contract predates this
	// process and is shared with the upload API.
	for _, name := range []string{
		"NODE_ENV", "PORT", "DATABASE_URL",
		"JOB_CONCURRENCY", "POLL_INTERVAL_MS", "FFMPEG_BINARY",
		"TIGRIS_ENDPOINT", "TIGRIS_REGION", "TIGRIS_BUCKET",
		"TIGRIS_ACCESS_KEY_ID", "TIGRIS_SECRET_ACCESS_KEY",
		"OPENROUTER_API_KEY", "OPENROUTER_MODEL",
		"WHISPER_BINARY", "WHISPER_MODEL",
	} {
		if err := v.BindEnv(name); err != nil {
			return nil, errors.Wrapf(err, "failed to bind %s", name)
		}
	}

	v.SetDefault("NODE_ENV", EnvDevelopment)
	v.SetDefault("PORT", 8081)
	v.SetDefault("JOB_CONCURRENCY", 1)
	v.SetDefault("POLL_INTERVAL_MS", 1000)
	v.SetDefault("OPENROUTER_MODEL", "openai/gpt-4o")
	v.SetDefault("WHISPER_BINARY", "whisper-cli")
	v.SetDefault("WHISPER_MODEL", "small")

	cfg := &Config{
		NodeEnv:          v.GetString("NODE_ENV"),
		Port:             v.GetInt("PORT"),
		DatabaseURL:      strings.TrimSpace(v.GetString("DATABASE_URL")),
		JobConcurrency:   v.GetInt("JOB_CONCURRENCY"),
		PollIntervalMs:   v.GetInt("POLL_INTERVAL_MS"),
		FFmpegBinary:     v.GetString("FFMPEG_BINARY"),
		OpenRouterAPIKey: v.GetString("OPENROUTER_API_KEY"),
		OpenRouterModel:  v.GetString("OPENROUTER_MODEL"),
		WhisperBinary:    v.GetString("WHISPER_BINARY"),
		WhisperModel:     v.GetString("WHISPER_MODEL"),
		Tigris: Tigris{
			Endpoint:        v.GetString("TIGRIS_ENDPOINT"),
			Region:          v.GetString("TIGRIS_REGION"),
			Bucket:          v.GetString("TIGRIS_BUCKET"),
			AccessKeyID:     v.GetString("TIGRIS_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("TIGRIS_SECRET_ACCESS_KEY"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and numeric ranges.
func (c *Config) Validate() error {
	switch c.NodeEnv {
	case EnvDevelopment, EnvTest, EnvProduction:
	default:
		return errors.Newf("NODE_ENV must be one of development|test|production, got %q", c.NodeEnv)
	}

	if c.Port < 1 || c.Port > 65535 {
		return errors.Newf("PORT must be in range 1-65535, got %d", c.Port)
	}

	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	if c.JobConcurrency < 1 || c.JobConcurrency > 20 {
		return errors.Newf("JOB_CONCURRENCY must be in range 1-20, got %d", c.JobConcurrency)
	}

	if c.PollIntervalMs < 100 {
		return errors.Newf("POLL_INTERVAL_MS must be at least 100, got %d", c.PollIntervalMs)
	}

	return nil
}

// IsProduction reports whether the runner is in production mode. Controls
// log format and SQL echo.
func (c *Config) IsProduction() bool {
	return c.NodeEnv == EnvProduction
}
