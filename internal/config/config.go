// Package config loads server settings from .env and the environment.
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
	"github.com/mhpenta/autodrip"
)

// Config holds every setting of the server.
type Config struct {
	// Server
	Port           string
	MaxUploadBytes int64
	SessionTTL     time.Duration

	// Gemini API
	GeminiAPIKey string
	GeminiModel  string
	ImageSize    autodrip.ImageSize

	// Request budget shared by all sessions; 0 uses the model defaults
	RequestsPerMinute int
	TokensPerMinute   int

	// ExportDir, when set, receives a copy of every finished image
	ExportDir string

	// Logging
	LogLevel  slog.Level
	LogFormat string
}

// Load reads .env files (missing files are ignored) and then the process
// environment. Variables already set in the environment win over .env.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		slog.Debug(".env file not loaded, using environment variables", "error", err.Error())
	}

	var errs []error

	maxUpload, err := getInt64("AUTODRIP_MAX_UPLOAD_BYTES", autodrip.MaxImageSize)
	errs = append(errs, err)
	ttl, err := getDuration("AUTODRIP_SESSION_TTL", 30*time.Minute)
	errs = append(errs, err)
	rpm, err := getInt("AUTODRIP_REQUESTS_PER_MINUTE", 0)
	errs = append(errs, err)
	tpm, err := getInt("AUTODRIP_TOKENS_PER_MINUTE", 0)
	errs = append(errs, err)
	level, err := getLevel("AUTODRIP_LOG_LEVEL", slog.LevelInfo)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		MaxUploadBytes: maxUpload,
		SessionTTL:     ttl,

		GeminiAPIKey: getEnv("GEMINI_API_KEY", getEnv("API_KEY", "")),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-3-pro-image-preview"),
		ImageSize:    autodrip.ImageSize(strings.ToUpper(getEnv("AUTODRIP_IMAGE_SIZE", string(autodrip.ImageSize1K)))),

		RequestsPerMinute: rpm,
		TokensPerMinute:   tpm,

		ExportDir: getEnv("AUTODRIP_EXPORT_DIR", ""),

		LogLevel:  level,
		LogFormat: strings.ToLower(getEnv("AUTODRIP_LOG_FORMAT", "text")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// validate checks values that parsed but make no sense.
func (c *Config) validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	switch c.ImageSize {
	case autodrip.ImageSize1K, autodrip.ImageSize2K, autodrip.ImageSize4K:
	default:
		return fmt.Errorf("AUTODRIP_IMAGE_SIZE must be 1K, 2K or 4K, got %q", c.ImageSize)
	}
	if c.MaxUploadBytes <= 0 || c.MaxUploadBytes > autodrip.MaxImageSize {
		return fmt.Errorf("AUTODRIP_MAX_UPLOAD_BYTES must be between 1 and %d", autodrip.MaxImageSize)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("AUTODRIP_SESSION_TTL must be positive")
	}
	if c.RequestsPerMinute < 0 || c.TokensPerMinute < 0 {
		return fmt.Errorf("rate limits cannot be negative")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("AUTODRIP_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// getEnv returns the variable or defaultValue when unset or empty.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getInt64(key string, defaultValue int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getLevel(key string, defaultValue slog.Level) (slog.Level, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return level, nil
}
