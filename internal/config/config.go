// Package config loads and validates the application configuration: the
// environment surface and the monitored-sources file. Both are read once at
// startup; invalid configuration fails the process before anything runs.
package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// Config holds the environment-supplied configuration.
type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN, required"`
	RecipientID      int64  `env:"RECIPIENT_ID, required"`
	DatabasePath     string `env:"DATABASE_PATH, default=./data/watchtower.db"`
	MediaDir         string `env:"MEDIA_DIR, default=./data/media"`
	SourcesPath      string `env:"SOURCES_PATH, default=./sources.json"`
	ScraperBaseURL   string `env:"SCRAPER_BASE_URL"`
	ScraperToken     string `env:"SCRAPER_TOKEN"`
	FailureThreshold int    `env:"FAILURE_THRESHOLD, default=3"`
	LockErased       bool   `env:"LOCK_ERASED, default=false"`
	LogLevel         string `env:"LOG_LEVEL, default=info"`
}

// Load reads configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if cfg.RecipientID <= 0 {
		return nil, fmt.Errorf("RECIPIENT_ID must be a positive Telegram user ID")
	}
	if cfg.FailureThreshold < 1 {
		return nil, fmt.Errorf("FAILURE_THRESHOLD must be at least 1")
	}
	return &cfg, nil
}
