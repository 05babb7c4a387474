// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when a variable is unset or invalid.
const (
	DefaultTimezone            = "UTC"
	DefaultSessionTTL          = 30 * time.Minute
	DefaultExternalCallTimeout = 15 * time.Second
	DefaultLogFormat           = "console"
	DefaultOTelExporter        = "none"
	DefaultOTelServiceName     = "ledger-bot"
)

var (
	validLogFormats    = []string{"console", "json"}
	validOTelExporters = []string{"none", "stdout", "otlp-grpc", "otlp-http"}
)

// Config holds all configuration for the application.
type Config struct {
	TelegramBotToken string
	// DatabaseURL is optional. The ledger is kept in memory when it is empty.
	DatabaseURL string

	LogLevel    string
	LogFormat   string
	LogHashSalt string

	Timezone            string
	Location            *time.Location
	SessionTTL          time.Duration
	ExternalCallTimeout time.Duration

	S3 S3Config

	// GeminiAPIKey enables category and tag suggestions when set.
	GeminiAPIKey string

	OTelExporter    string
	OTelServiceName string
}

// S3Config holds the receipt bucket settings.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	KeyPrefix       string
}

// Enabled reports whether receipts can be uploaded.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		LogFormat:        strings.ToLower(envOr("LOG_FORMAT", DefaultLogFormat)),
		LogHashSalt:      os.Getenv("LOG_HASH_SALT"),
		OTelExporter:     strings.ToLower(envOr("OTEL_EXPORTER", DefaultOTelExporter)),
		OTelServiceName:  envOr("OTEL_SERVICE_NAME", DefaultOTelServiceName),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          os.Getenv("S3_REGION"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
			KeyPrefix:       os.Getenv("S3_KEY_PREFIX"),
		},
	}

	cfg.Timezone = DefaultTimezone
	cfg.Location = time.UTC
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			cfg.Timezone = tz
			cfg.Location = loc
		}
	}

	cfg.SessionTTL = durationOr("SESSION_TTL", DefaultSessionTTL)
	cfg.ExternalCallTimeout = durationOr("EXTERNAL_CALL_TIMEOUT", DefaultExternalCallTimeout)

	// Validate required configuration.
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present.
func (c *Config) validate() error {
	var errs []string

	if c.TelegramBotToken == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN is required")
	}

	if !slices.Contains(validLogFormats, c.LogFormat) {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be one of %s", strings.Join(validLogFormats, ", ")))
	}

	if !slices.Contains(validOTelExporters, c.OTelExporter) {
		errs = append(errs, fmt.Sprintf("OTEL_EXPORTER must be one of %s", strings.Join(validOTelExporters, ", ")))
	}

	if c.S3.Enabled() && (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		errs = append(errs, "S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// durationOr parses a positive duration, falling back on any error.
func durationOr(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
