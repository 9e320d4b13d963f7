package publish

import (
	"context"
	"time"

	"business-news-scraper/internal/normalize"
	"business-news-scraper/internal/observability"
	"business-news-scraper/internal/scraper"
	"business-news-scraper/internal/storage"
)

const DefaultBatchSize = 50

// Result - точные счётчики одного прогона публикации
type Result struct {
	Scraped   int
	Known     int
	Attempted int
	Succeeded int
	Failed    int
	Batches   int
	DryRun    bool
}

// Publisher сверяет статьи с хранилищем и загружает новые пачками.
// Упавшая пачка считается целиком неуспешной, не повторяется и не мешает остальным
type Publisher struct {
	repo      storage.Repository
	batchSize int
	dryRun    bool
	logger    *observability.Logger
	now       func() time.Time
}

func NewPublisher(repo storage.Repository, batchSize int, dryRun bool, logger *observability.Logger) *Publisher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Publisher{
		repo:      repo,
		batchSize: batchSize,
		dryRun:    dryRun,
		logger:    logger,
		now:       time.Now,
	}
}

func (p *Publisher) Publish(ctx context.Context, articles []scraper.RawArticle) Result {
	res := Result{Scraped: len(articles), DryRun: p.dryRun}

	known, err := p.repo.ListAllURLs(ctx)
	if err != nil {
		p.logger.Warn("Could not fetch existing URLs, treating all as new", "error", err.Error())
		known = map[string]struct{}{}
	}

	fresh := FilterNew(articles, known)
	res.Known = len(articles) - len(fresh)

	p.logger.Info("Deduplicated against store",
		"scraped", len(articles),
		"new", len(fresh),
	)

	if len(fresh) == 0 {
		p.logger.Info("No new articles to upload")
		return res
	}

	res.Attempted = len(fresh)

	if p.dryRun {
		for _, a := range fresh {
			p.logger.Info("Dry run: would upload",
				"url", a.URL,
				"headline", normalize.TruncatePreview(a.Headline, 80),
			)
		}
		return res
	}

	createdAt := p.now()
	for i, batch := range Partition(fresh, p.batchSize) {
		res.Batches++
		records := make([]storage.ArticleRecord, 0, len(batch))
		for _, a := range batch {
			records = append(records, storage.FromRawArticle(a, createdAt))
		}

		if err := p.repo.InsertBatch(ctx, records); err != nil {
			res.Failed += len(batch)
			p.logger.Error("Batch failed",
				"batch", i+1,
				"size", len(batch),
				"error", err.Error(),
			)
			continue
		}

		res.Succeeded += len(batch)
		p.logger.Info("Batch uploaded", "batch", i+1, "size", len(batch))
	}

	p.logger.Info("Upload finished",
		"attempted", res.Attempted,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
	)
	return res
}

// FilterNew оставляет статьи с неизвестными URL; повтор URL во входе
// тоже отбрасывается, побеждает первое вхождение
func FilterNew(articles []scraper.RawArticle, known map[string]struct{}) []scraper.RawArticle {
	seen := make(map[string]struct{}, len(articles))
	fresh := make([]scraper.RawArticle, 0, len(articles))
	for _, a := range articles {
		if _, ok := known[a.URL]; ok {
			continue
		}
		if _, ok := seen[a.URL]; ok {
			continue
		}
		seen[a.URL] = struct{}{}
		fresh = append(fresh, a)
	}
	return fresh
}

// Partition режет список на пачки не больше size, порядок сохраняется
func Partition(articles []scraper.RawArticle, size int) [][]scraper.RawArticle {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var batches [][]scraper.RawArticle
	for start := 0; start < len(articles); start += size {
		end := start + size
		if end > len(articles) {
			end = len(articles)
		}
		batches = append(batches, articles[start:end])
	}
	return batches
}
