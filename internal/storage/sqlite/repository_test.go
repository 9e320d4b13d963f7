package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"business-news-scraper/internal/observability"
	"business-news-scraper/internal/storage"
)

func createTestRepository(t *testing.T) *Repository {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	repo, err := NewRepository(dbPath, "articles", 5*time.Second, observability.Discard())
	require.NoError(t, err, "should create repository")
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func record(url, headline string) storage.ArticleRecord {
	return storage.ArticleRecord{
		Headline:  headline,
		URL:       url,
		Companies: []string{},
		Source:    "WWD Business News",
		CreatedAt: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	}
}

func TestNewRepository_InitializesSchema(t *testing.T) {
	repo := createTestRepository(t)

	urls, err := repo.ListAllURLs(context.Background())
	require.NoError(t, err, "articles table should exist")
	assert.Empty(t, urls)
}

func TestNewRepository_RejectsBadTable(t *testing.T) {
	_, err := NewRepository(filepath.Join(t.TempDir(), "x.db"), "articles; --", time.Second, observability.Discard())
	assert.Error(t, err)
}

func TestNewRepository_CreatesMissingDirectory(t *testing.T) {
	for _, dsn := range []string{
		filepath.Join(t.TempDir(), "data", "news.db"),
		"file:" + filepath.Join(t.TempDir(), "nested", "data", "news.db") + "?_busy_timeout=5000",
	} {
		repo, err := NewRepository(dsn, "articles", 5*time.Second, observability.Discard())
		require.NoError(t, err, dsn)

		urls, err := repo.ListAllURLs(context.Background())
		require.NoError(t, err)
		assert.Empty(t, urls)
		require.NoError(t, repo.Close())
	}
}

func TestEnsureDirSkipsInMemory(t *testing.T) {
	assert.NoError(t, ensureDir(":memory:"))
	assert.NoError(t, ensureDir("file::memory:?cache=shared"))
	assert.NoError(t, ensureDir("file:news?mode=memory&cache=shared"))
}

func TestInsertBatchAndList(t *testing.T) {
	repo := createTestRepository(t)
	ctx := context.Background()

	err := repo.InsertBatch(ctx, []storage.ArticleRecord{
		record("https://wwd.com/business-news/a/", "First Headline"),
		record("https://wwd.com/business-news/b/", "Second Headline"),
	})
	require.NoError(t, err)

	urls, err := repo.ListAllURLs(ctx)
	require.NoError(t, err)
	assert.Len(t, urls, 2)
	assert.Contains(t, urls, "https://wwd.com/business-news/a/")
}

func TestInsertBatch_DuplicateRollsBackWholeBatch(t *testing.T) {
	repo := createTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertBatch(ctx, []storage.ArticleRecord{
		record("https://wwd.com/business-news/a/", "First Headline"),
	}))

	err := repo.InsertBatch(ctx, []storage.ArticleRecord{
		record("https://wwd.com/business-news/c/", "Third Headline"),
		record("https://wwd.com/business-news/a/", "First Headline Again"),
	})
	require.Error(t, err)

	urls, err := repo.ListAllURLs(ctx)
	require.NoError(t, err)
	assert.Len(t, urls, 1, "failed batch must not leave partial rows")
}

func TestUpsertByURL_CreatesThenUpdates(t *testing.T) {
	repo := createTestRepository(t)
	ctx := context.Background()
	url := "https://wwd.com/business-news/a/"

	require.NoError(t, repo.UpsertByURL(ctx, record(url, "Original Headline")))

	updated := record(url, "Updated Headline")
	category := "Retail"
	author := "Jane Doe"
	published := time.Date(2025, 12, 19, 11, 39, 0, 0, time.UTC)
	updated.Category = &category
	updated.Author = &author
	updated.PublishedAt = &published
	updated.Companies = []string{"Tapestry"}
	require.NoError(t, repo.UpsertByURL(ctx, updated))

	urls, err := repo.ListAllURLs(ctx)
	require.NoError(t, err)
	assert.Len(t, urls, 1)

	got, err := repo.GetByURL(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, "Updated Headline", got.Headline)
	assert.Equal(t, []string{"Tapestry"}, got.Companies)
	require.NotNil(t, got.Category)
	assert.Equal(t, "Retail", *got.Category)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, got.PublishedAt.Equal(published))
}

func TestGetByURL_NotFound(t *testing.T) {
	repo := createTestRepository(t)

	_, err := repo.GetByURL(context.Background(), "https://wwd.com/missing/")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetByURL_AbsentOptionals(t *testing.T) {
	repo := createTestRepository(t)
	ctx := context.Background()
	url := "https://wwd.com/business-news/a/"

	require.NoError(t, repo.InsertBatch(ctx, []storage.ArticleRecord{record(url, "Plain Headline")}))

	got, err := repo.GetByURL(ctx, url)
	require.NoError(t, err)
	assert.Nil(t, got.Category)
	assert.Nil(t, got.Author)
	assert.Nil(t, got.PublishedAt)
	assert.Equal(t, []string{}, got.Companies)
}
