package storage

import (
	"context"
	"errors"
	"time"

	"business-news-scraper/internal/scraper"
)

// ErrNotFound - записи с таким URL нет
var ErrNotFound = errors.New("article not found")

// ArticleRecord - статья в том виде, в каком она лежит в хранилище.
// URL уникален и служит ключом конфликта
type ArticleRecord struct {
	Headline    string     `json:"headline" bson:"headline"`
	URL         string     `json:"url" bson:"url"`
	Companies   []string   `json:"companies" bson:"companies"`
	Category    *string    `json:"category" bson:"category,omitempty"`
	Author      *string    `json:"author" bson:"author,omitempty"`
	PublishedAt *time.Time `json:"publish_date" bson:"publish_date,omitempty"`
	Source      string     `json:"source" bson:"source"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
}

// Repository интерфейс для работы с хранилищем статей
type Repository interface {
	// ListAllURLs возвращает все сохранённые URL
	ListAllURLs(ctx context.Context) (map[string]struct{}, error)

	// InsertBatch вставляет пачку целиком: либо все записи, либо ни одной
	InsertBatch(ctx context.Context, records []ArticleRecord) error

	// UpsertByURL создаёт запись или обновляет существующую с тем же URL
	UpsertByURL(ctx context.Context, record ArticleRecord) error

	// GetByURL возвращает запись или ErrNotFound
	GetByURL(ctx context.Context, url string) (*ArticleRecord, error)

	Close() error
}

// FromRawArticle переводит результат сканирования в запись хранилища
func FromRawArticle(a scraper.RawArticle, createdAt time.Time) ArticleRecord {
	return ArticleRecord{
		Headline:    a.Headline,
		URL:         a.URL,
		Companies:   []string{},
		Category:    a.Category,
		Author:      a.Author,
		PublishedAt: a.PublishDate,
		Source:      a.Source,
		CreatedAt:   createdAt.UTC(),
	}
}
