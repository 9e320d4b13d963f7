package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"business-news-scraper/internal/observability"
	"business-news-scraper/internal/storage"
)

// Интеграционный тест: нужен живой MongoDB в NEWS_TEST_MONGO_URI
func createTestRepository(t *testing.T) *Repository {
	uri := os.Getenv("NEWS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("NEWS_TEST_MONGO_URI not set")
	}

	collection := "articles_" + uuid.NewString()[:8]
	repo, err := NewRepository(uri, "news_test", collection, 5*time.Second, observability.Discard())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.articles.Drop(context.Background())
		_ = repo.Close()
	})
	return repo
}

func record(url, headline string) storage.ArticleRecord {
	return storage.ArticleRecord{
		Headline:  headline,
		URL:       url,
		Source:    "WWD Business News",
		CreatedAt: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	}
}

func TestWithCompaniesNeverNull(t *testing.T) {
	rec := withCompanies(record("https://wwd.com/a/", "Headline"))
	assert.Equal(t, []string{}, rec.Companies)
}

func TestCleanupContextOutlivesExpiredParent(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-parent.Done()
	require.ErrorIs(t, parent.Err(), context.DeadlineExceeded)

	ctx, cleanupCancel := cleanupContext(parent, time.Second)
	defer cleanupCancel()

	assert.NoError(t, ctx.Err())
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 500*time.Millisecond)
}

func TestInsertBatchCleansUpAfterTimeout(t *testing.T) {
	repo := createTestRepository(t)
	repo.commandTimeout = time.Nanosecond

	err := repo.InsertBatch(context.Background(), []storage.ArticleRecord{
		record("https://wwd.com/business-news/a/", "First Headline"),
		record("https://wwd.com/business-news/b/", "Second Headline"),
	})
	require.Error(t, err)

	repo.commandTimeout = 5 * time.Second
	urls, err := repo.ListAllURLs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestMongoRoundTrip(t *testing.T) {
	repo := createTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertBatch(ctx, []storage.ArticleRecord{
		record("https://wwd.com/business-news/a/", "First Headline"),
		record("https://wwd.com/business-news/b/", "Second Headline"),
	}))

	err := repo.InsertBatch(ctx, []storage.ArticleRecord{
		record("https://wwd.com/business-news/c/", "Third Headline"),
		record("https://wwd.com/business-news/a/", "Duplicate"),
	})
	require.Error(t, err)

	urls, err := repo.ListAllURLs(ctx)
	require.NoError(t, err)
	assert.Len(t, urls, 2, "partial batch must be cleaned up")

	updated := record("https://wwd.com/business-news/a/", "Updated Headline")
	require.NoError(t, repo.UpsertByURL(ctx, updated))

	got, err := repo.GetByURL(ctx, updated.URL)
	require.NoError(t, err)
	assert.Equal(t, "Updated Headline", got.Headline)

	_, err = repo.GetByURL(ctx, "https://wwd.com/missing/")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
