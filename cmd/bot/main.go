package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/oklog/run"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/bot"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/config"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/fetch"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/media"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/registry"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/scheduler"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/storage"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/triage"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/vault"
)

func main() {
	if err := realMain(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func realMain() error {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.LogLevel)

	sources, err := config.LoadSources(cfg.SourcesPath)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}
	if sources.HasInstagram() && (cfg.ScraperBaseURL == "" || cfg.ScraperToken == "") {
		return fmt.Errorf("SCRAPER_BASE_URL and SCRAPER_TOKEN are required when instagram accounts are configured")
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	mediaStore, err := media.NewStore(cfg.MediaDir)
	if err != nil {
		return fmt.Errorf("open media store: %w", err)
	}

	machine := triage.New(store, cfg.RecipientID, cfg.LockErased)
	vaultSvc := vault.New(store)

	b, err := bot.New(cfg.TelegramBotToken, vaultSvc, machine, nil, cfg.RecipientID, log)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	reg := registry.New(store, b, cfg.FailureThreshold, log)
	b.SetRegistry(reg)

	for _, src := range sources.Sources() {
		if err := reg.Register(ctx, &src); err != nil {
			return fmt.Errorf("register sources: %w", err)
		}
	}

	sched := scheduler.New(store, reg, b, log)
	sched.RegisterFetcher(model.KindRSS, fetch.NewRSS(http.DefaultClient, log))
	if sources.HasInstagram() {
		ig := fetch.NewInstagram(http.DefaultClient, cfg.ScraperBaseURL, cfg.ScraperToken, mediaStore, log)
		sched.RegisterFetcher(model.KindInstagram, ig)
		sched.RegisterDownloader(model.KindInstagram, ig)
	}

	log.Info("starting watchtower", "sources", len(sources.Sources()))

	var g run.Group
	{
		schedCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return sched.Run(schedCtx)
		}, func(error) {
			cancel()
		})
	}
	{
		botCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return b.Run(botCtx)
		}, func(error) {
			cancel()
		})
	}
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	var sig run.SignalError
	if err != nil && !errors.As(err, &sig) {
		return err
	}

	log.Info("watchtower stopped")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
