package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"business-news-scraper/internal/observability"
	"business-news-scraper/internal/scraper"
	"business-news-scraper/internal/storage"
)

type memRepo struct {
	rows    map[string]storage.ArticleRecord
	failURL string
}

func (m *memRepo) ListAllURLs(context.Context) (map[string]struct{}, error) {
	urls := make(map[string]struct{}, len(m.rows))
	for u := range m.rows {
		urls[u] = struct{}{}
	}
	return urls, nil
}

func (m *memRepo) InsertBatch(context.Context, []storage.ArticleRecord) error {
	return errors.New("not used")
}

func (m *memRepo) UpsertByURL(_ context.Context, rec storage.ArticleRecord) error {
	if rec.URL == m.failURL {
		return errors.New("row-level security violation")
	}
	m.rows[rec.URL] = rec
	return nil
}

func (m *memRepo) GetByURL(_ context.Context, url string) (*storage.ArticleRecord, error) {
	rec, ok := m.rows[url]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &rec, nil
}

func (m *memRepo) Close() error { return nil }

var fixedNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func TestSnapshotRoundTrip(t *testing.T) {
	category := "Retail"
	published := time.Date(2025, 12, 19, 11, 39, 0, 0, time.UTC)
	articles := []scraper.RawArticle{
		{Headline: "Retailer Posts Record Quarter", URL: "https://wwd.com/business-news/a/", Page: 1,
			Category: &category, PublishDate: &published, Source: "WWD Business News"},
		{Headline: "Luxury Group Names New CEO", URL: "https://wwd.com/business-news/b/", Page: 2,
			Source: "WWD Business News"},
	}

	exp := NewExport("WWD Business News", "https://wwd.com/business-news", 2, articles, fixedNow)
	path, err := WriteSnapshot(filepath.Join(t.TempDir(), "snapshots"), exp, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "business_news_20260310T150000Z.json", filepath.Base(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Total)
	assert.Equal(t, 2, loaded.Pages)
	assert.Equal(t, "2026-03-10T15:00:00Z", loaded.Timestamp)
	require.Len(t, loaded.Articles, 2)
	require.NotNil(t, loaded.Articles[0].PublishDate)
	assert.Equal(t, "2025-12-19T11:39:00Z", *loaded.Articles[0].PublishDate)
	assert.Nil(t, loaded.Articles[1].Category)
}

func TestToRecordsCreatedAtFallbacks(t *testing.T) {
	exp := &Export{
		Timestamp: "2026-01-05T08:30:00",
		Articles: []ExportArticle{
			{Headline: "Article With Own Time", URL: "https://wwd.com/a/", Timestamp: "2026-02-01T10:00:00Z"},
			{Headline: "Article With Doc Time", URL: "https://wwd.com/b/"},
		},
	}

	records := ToRecords(exp, fixedNow)
	require.Len(t, records, 2)

	assert.Equal(t, DefaultSource, records[0].Source)
	assert.Equal(t, []string{}, records[0].Companies)
	assert.Nil(t, records[0].Category)
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), records[0].CreatedAt)
	assert.Equal(t, time.Date(2026, 1, 5, 8, 30, 0, 0, time.UTC), records[1].CreatedAt)

	exp.Timestamp = ""
	records = ToRecords(exp, fixedNow)
	assert.Equal(t, fixedNow, records[1].CreatedAt)
}

func TestUploadCountsFailures(t *testing.T) {
	repo := &memRepo{rows: map[string]storage.ArticleRecord{}, failURL: "https://wwd.com/bad/"}
	records := []storage.ArticleRecord{
		{Headline: "Good Article One", URL: "https://wwd.com/a/"},
		{Headline: "Rejected Article", URL: "https://wwd.com/bad/"},
		{Headline: "", URL: "https://wwd.com/empty/"},
		{Headline: "Good Article Two", URL: "https://wwd.com/b/"},
	}

	res := Upload(context.Background(), repo, records, observability.Discard())

	assert.Equal(t, UploadResult{Total: 4, Succeeded: 2, Failed: 2}, res)
	assert.Len(t, repo.rows, 2)
}

func TestUploadIsUpsert(t *testing.T) {
	repo := &memRepo{rows: map[string]storage.ArticleRecord{}}
	rec := storage.ArticleRecord{Headline: "Same Article", URL: "https://wwd.com/a/"}

	Upload(context.Background(), repo, []storage.ArticleRecord{rec}, observability.Discard())
	res := Upload(context.Background(), repo, []storage.ArticleRecord{rec}, observability.Discard())

	assert.Equal(t, 1, res.Succeeded)
	assert.Len(t, repo.rows, 1)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}
