package app

import (
	"context"
	"fmt"
	"time"

	"business-news-scraper/internal/config"
	"business-news-scraper/internal/ingest"
	"business-news-scraper/internal/observability"
	"business-news-scraper/internal/publish"
	"business-news-scraper/internal/scraper"
	"business-news-scraper/internal/storage"
)

// Runner - один полный прогон: обход, снимок, публикация, сводка
type Runner struct {
	cfg          *config.Config
	orchestrator *Orchestrator
	publisher    *publish.Publisher
	logger       *observability.Logger
	now          func() time.Time
}

type RunSummary struct {
	Crawl        *CrawlStats
	Publish      publish.Result
	SnapshotPath string
}

func NewRunner(cfg *config.Config, orchestrator *Orchestrator, publisher *publish.Publisher, logger *observability.Logger) *Runner {
	return &Runner{
		cfg:          cfg,
		orchestrator: orchestrator,
		publisher:    publisher,
		logger:       logger,
		now:          time.Now,
	}
}

// BuildRunner собирает прогон из конфига поверх открытого хранилища
func BuildRunner(cfg *config.Config, repo storage.Repository, sessions SessionFactory, logger *observability.Logger) (*Runner, error) {
	selectors, err := cfg.Selectors()
	if err != nil {
		return nil, fmt.Errorf("failed to load selectors: %w", err)
	}

	scn := scraper.NewScraper(*selectors, cfg.Rules(), cfg.ScanPacing(), cfg.Crawl.Source, logger.With("component", "scanner"))

	delayMin, delayMax := cfg.GetPageDelayRange()
	orch := NewOrchestrator(CrawlOptions{
		BaseURL:  cfg.Crawl.BaseURL,
		MaxPages: cfg.Crawl.MaxPages,
		DelayMin: delayMin,
		DelayMax: delayMax,
	}, sessions, scn, logger.With("component", "orchestrator"))

	pub := publish.NewPublisher(repo, cfg.Publish.BatchSize, cfg.Publish.DryRun, logger.With("component", "publisher"))

	return NewRunner(cfg, orch, pub, logger), nil
}

// RunOnce выполняет прогон. Ошибка - только для сбоя сессии или отмены:
// сбои страниц и пачек учитываются в сводке
func (r *Runner) RunOnce(ctx context.Context) (*RunSummary, error) {
	articles, stats, err := r.orchestrator.Run(ctx)
	summary := &RunSummary{Crawl: stats}
	if err != nil {
		return summary, err
	}

	if dir := r.cfg.Crawl.SnapshotDir; dir != "" {
		now := r.now()
		exp := ingest.NewExport(r.cfg.Crawl.Source, r.cfg.Crawl.BaseURL, r.cfg.Crawl.MaxPages, articles, now)
		path, err := ingest.WriteSnapshot(dir, exp, now)
		if err != nil {
			r.logger.Warn("Failed to write snapshot", "error", err.Error())
		} else {
			summary.SnapshotPath = path
			r.logger.Info("Snapshot written", "path", path, "articles", len(articles))
		}
	}

	summary.Publish = r.publisher.Publish(ctx, articles)

	r.logger.Info("Run summary",
		"run_id", stats.RunID,
		"pages", stats.Pages,
		"failed_pages", stats.FailedPages,
		"scraped", len(articles),
		"known", summary.Publish.Known,
		"attempted", summary.Publish.Attempted,
		"succeeded", summary.Publish.Succeeded,
		"failed", summary.Publish.Failed,
		"dry_run", summary.Publish.DryRun,
		"duration", stats.Duration.String(),
	)
	return summary, nil
}
