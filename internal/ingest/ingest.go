package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"business-news-scraper/internal/observability"
	"business-news-scraper/internal/scraper"
	"business-news-scraper/internal/storage"
)

// DefaultSource - метка источника, если в выгрузке её нет
const DefaultSource = "Manual Upload"

// Export - JSON-выгрузка одного прогона
type Export struct {
	Source    string          `json:"source"`
	URL       string          `json:"url"`
	Total     int             `json:"total"`
	Pages     int             `json:"pages"`
	Timestamp string          `json:"timestamp"`
	Articles  []ExportArticle `json:"articles"`
}

type ExportArticle struct {
	Headline    string  `json:"headline"`
	URL         string  `json:"url"`
	Page        int     `json:"page,omitempty"`
	Author      *string `json:"author,omitempty"`
	PublishDate *string `json:"publish_date,omitempty"`
	Category    *string `json:"category,omitempty"`
	Source      string  `json:"source,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

// UploadResult - счётчики загрузки выгрузки
type UploadResult struct {
	Total     int
	Succeeded int
	Failed    int
}

// NewExport собирает выгрузку из результатов сканирования
func NewExport(source, baseURL string, pages int, articles []scraper.RawArticle, now time.Time) Export {
	exp := Export{
		Source:    source,
		URL:       baseURL,
		Total:     len(articles),
		Pages:     pages,
		Timestamp: now.UTC().Format(time.RFC3339),
		Articles:  make([]ExportArticle, 0, len(articles)),
	}
	for _, a := range articles {
		item := ExportArticle{
			Headline: a.Headline,
			URL:      a.URL,
			Page:     a.Page,
			Author:   a.Author,
			Category: a.Category,
			Source:   a.Source,
		}
		if a.PublishDate != nil {
			s := a.PublishDate.UTC().Format(time.RFC3339)
			item.PublishDate = &s
		}
		exp.Articles = append(exp.Articles, item)
	}
	return exp
}

// WriteSnapshot пишет выгрузку в dir и возвращает путь к файлу
func WriteSnapshot(dir string, exp Export, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	path := filepath.Join(dir, "business_news_"+now.UTC().Format("20060102T150405Z")+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}

func Load(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}

	var exp Export
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}
	return &exp, nil
}

// ToRecords переводит статьи выгрузки в записи: companies пустой, category нет,
// created_at из статьи, иначе из выгрузки, иначе now
func ToRecords(exp *Export, now time.Time) []storage.ArticleRecord {
	source := exp.Source
	if source == "" {
		source = DefaultSource
	}

	dp := scraper.NewDateParser()
	createdAt := func(values ...string) time.Time {
		for _, v := range values {
			if t, ok := dp.ParseMachine(v); ok {
				return t.UTC()
			}
		}
		return now.UTC()
	}

	records := make([]storage.ArticleRecord, 0, len(exp.Articles))
	for _, a := range exp.Articles {
		records = append(records, storage.ArticleRecord{
			Headline:  a.Headline,
			URL:       a.URL,
			Companies: []string{},
			Source:    source,
			CreatedAt: createdAt(a.Timestamp, exp.Timestamp),
		})
	}
	return records
}

// Upload сохраняет записи по одной через upsert по URL.
// Ошибка одной записи не останавливает остальные
func Upload(ctx context.Context, repo storage.Repository, records []storage.ArticleRecord, logger *observability.Logger) UploadResult {
	res := UploadResult{Total: len(records)}

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			res.Failed += len(records) - i
			logger.Warn("Upload interrupted", "remaining", len(records)-i)
			break
		}

		if rec.URL == "" || rec.Headline == "" {
			res.Failed++
			logger.Warn("Skipping article without url or headline", "index", i)
			continue
		}

		if err := repo.UpsertByURL(ctx, rec); err != nil {
			res.Failed++
			logger.Error("Failed to upload article", "url", rec.URL, "error", err.Error())
			continue
		}
		res.Succeeded++
		logger.Debug("Article uploaded", "index", i+1, "total", len(records), "url", rec.URL)
	}

	logger.Info("Upload complete",
		"succeeded", res.Succeeded,
		"failed", res.Failed,
	)
	return res
}
