package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"business-news-scraper/internal/app"
	"business-news-scraper/internal/config"
	"business-news-scraper/internal/observability"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	maxPages := flag.Int("max-pages", 0, "override crawl.max_pages")
	dryRun := flag.Bool("dry-run", false, "scrape and dedup without writing to storage")
	once := flag.Bool("once", false, "run a single crawl regardless of scheduler.mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *maxPages > 0 {
		cfg.Crawl.MaxPages = *maxPages
	}
	if *dryRun {
		cfg.Publish.DryRun = true
	}
	if *once {
		cfg.Scheduler.Mode = "oneshot"
	}

	logger := observability.New(observability.Options{
		Path:       cfg.Observability.LogPath,
		Level:      cfg.Observability.LogLevel,
		MaxSizeMB:  cfg.Observability.MaxSizeMB,
		MaxBackups: cfg.Observability.MaxBackups,
		MaxAgeDays: cfg.Observability.MaxAgeDays,
		Compress:   cfg.Observability.Compress,
	})

	os.Exit(run(cfg, logger))
}

func run(cfg *config.Config, logger *observability.Logger) int {
	defer func() {
		if err := logger.Close(); err != nil {
			log.Printf("Failed to close logger: %v", err)
		}
	}()

	ctx, cancel := app.GracefulShutdown(context.Background(), logger)
	defer cancel()

	repo, err := app.OpenRepository(cfg, logger)
	if err != nil {
		logger.Error("Failed to open storage", "driver", cfg.Storage.Driver, "error", err.Error())
		return 1
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Warn("Failed to close storage", "error", err.Error())
		}
	}()

	guard := app.NewGuard(cfg, logger)
	runner, err := app.BuildRunner(cfg, repo, app.NewSessionFactory(cfg, guard, logger), logger)
	if err != nil {
		logger.Error("Failed to build runner", "error", err.Error())
		return 1
	}

	logger.Info("Business news scraper starting",
		"base_url", cfg.Crawl.BaseURL,
		"max_pages", cfg.Crawl.MaxPages,
		"storage", cfg.Storage.Driver,
		"browser", cfg.Rod.Enabled,
		"scheduler", cfg.Scheduler.Mode,
	)

	job := func(ctx context.Context) error {
		_, err := runner.RunOnce(ctx)
		return err
	}

	err = app.NewScheduler(cfg.Scheduler, job, logger).Run(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		logger.Warn("Run cancelled")
		return 130
	default:
		logger.Error("Run failed", "error", err.Error())
		return 1
	}
}
