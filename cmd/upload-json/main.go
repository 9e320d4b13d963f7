package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"business-news-scraper/internal/app"
	"business-news-scraper/internal/config"
	"business-news-scraper/internal/ingest"
	"business-news-scraper/internal/observability"
)

// upload-json загружает JSON-выгрузку прогона в хранилище: upsert по URL, по одной записи
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config path] export.json\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogPath, cfg.Observability.LogLevel)
	os.Exit(run(cfg, flag.Arg(0), logger))
}

func run(cfg *config.Config, path string, logger *observability.Logger) int {
	defer func() { _ = logger.Close() }()

	ctx, cancel := app.GracefulShutdown(context.Background(), logger)
	defer cancel()

	exp, err := ingest.Load(path)
	if err != nil {
		logger.Error("Failed to load export", "path", path, "error", err.Error())
		return 1
	}

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

	records := ingest.ToRecords(exp, time.Now())
	logger.Info("Uploading export", "path", path, "articles", len(records))

	res := ingest.Upload(ctx, repo, records, logger)
	fmt.Printf("Upload complete: %d succeeded, %d failed\n", res.Succeeded, res.Failed)

	if res.Failed > 0 {
		return 1
	}
	return 0
}
