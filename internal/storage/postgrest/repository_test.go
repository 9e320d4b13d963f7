package postgrest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"business-news-scraper/internal/observability"
	"business-news-scraper/internal/storage"
)

const testKey = "test-service-key"

// fakeTable - минимальная таблица articles с уникальным url
type fakeTable struct {
	mu      sync.Mutex
	rows    map[string]storage.ArticleRecord
	order   []string
	prefers []string
}

func (f *fakeTable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") != testKey || r.Header.Get("Authorization") != "Bearer "+testKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if r.URL.Path != "/rest/v1/articles" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	q := r.URL.Query()
	switch r.Method {
	case http.MethodGet:
		if eq := q.Get("url"); eq != "" {
			out := []storage.ArticleRecord{}
			if rec, ok := f.rows[strings.TrimPrefix(eq, "eq.")]; ok {
				out = append(out, rec)
			}
			_ = json.NewEncoder(w).Encode(out)
			return
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		out := []map[string]string{}
		for i := offset; i < len(f.order) && i < offset+limit; i++ {
			out = append(out, map[string]string{"url": f.order[i]})
		}
		_ = json.NewEncoder(w).Encode(out)

	case http.MethodPost:
		f.prefers = append(f.prefers, r.Header.Get("Prefer"))
		var batch []storage.ArticleRecord
		if q.Get("on_conflict") == "url" {
			var rec storage.ArticleRecord
			if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.put(rec)
			w.WriteHeader(http.StatusCreated)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		// PostgREST требует одинаковый набор ключей у всех объектов пачки
		var objects []map[string]json.RawMessage
		if err := json.Unmarshal(body, &objects); err != nil || !sameKeys(objects) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":"PGRST102","message":"All object keys must match"}`))
			return
		}
		if err := json.Unmarshal(body, &batch); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, rec := range batch {
			if _, exists := f.rows[rec.URL]; exists {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value"}`))
				return
			}
		}
		for _, rec := range batch {
			f.put(rec)
		}
		w.WriteHeader(http.StatusCreated)
	}
}

func sameKeys(objects []map[string]json.RawMessage) bool {
	if len(objects) == 0 {
		return true
	}
	for _, obj := range objects[1:] {
		if len(obj) != len(objects[0]) {
			return false
		}
		for k := range obj {
			if _, ok := objects[0][k]; !ok {
				return false
			}
		}
	}
	return true
}

func (f *fakeTable) put(rec storage.ArticleRecord) {
	if _, exists := f.rows[rec.URL]; !exists {
		f.order = append(f.order, rec.URL)
	}
	f.rows[rec.URL] = rec
}

func newTestRepository(t *testing.T) (*Repository, *fakeTable) {
	table := &fakeTable{rows: make(map[string]storage.ArticleRecord)}
	srv := httptest.NewServer(table)
	t.Cleanup(srv.Close)

	repo, err := NewRepository(srv.URL+"/", testKey, "articles", 5*time.Second, observability.Discard())
	require.NoError(t, err)
	return repo, table
}

func record(url, headline string) storage.ArticleRecord {
	return storage.ArticleRecord{
		Headline:  headline,
		URL:       url,
		Source:    "WWD Business News",
		CreatedAt: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	}
}

func TestInsertBatchAndListPaged(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	var batch []storage.ArticleRecord
	for i := 0; i < listPageSize+5; i++ {
		batch = append(batch, record("https://wwd.com/business-news/"+strconv.Itoa(i)+"/", "Headline "+strconv.Itoa(i)))
	}
	require.NoError(t, repo.InsertBatch(ctx, batch))

	urls, err := repo.ListAllURLs(ctx)
	require.NoError(t, err)
	assert.Len(t, urls, listPageSize+5)
}

func TestInsertBatchMixedOptionalFields(t *testing.T) {
	repo, table := newTestRepository(t)
	ctx := context.Background()

	author := "Evan Clark"
	category := "Retail"
	published := time.Date(2026, 3, 10, 11, 39, 0, 0, time.UTC)

	withByline := record("https://wwd.com/business-news/a/", "Macy's Beats Estimates")
	withByline.Author = &author
	withByline.Category = &category
	withByline.PublishedAt = &published

	require.NoError(t, repo.InsertBatch(ctx, []storage.ArticleRecord{
		withByline,
		record("https://wwd.com/business-news/b/", "Tapestry Closes Deal"),
	}))
	assert.Len(t, table.rows, 2)

	got, err := repo.GetByURL(ctx, "https://wwd.com/business-news/a/")
	require.NoError(t, err)
	require.NotNil(t, got.Author)
	assert.Equal(t, author, *got.Author)

	got, err = repo.GetByURL(ctx, "https://wwd.com/business-news/b/")
	require.NoError(t, err)
	assert.Nil(t, got.Author)
	assert.Nil(t, got.PublishedAt)
}

func TestInsertBatchConflictFailsWholeBatch(t *testing.T) {
	repo, table := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertBatch(ctx, []storage.ArticleRecord{record("https://wwd.com/a/", "First Headline")}))

	err := repo.InsertBatch(ctx, []storage.ArticleRecord{
		record("https://wwd.com/b/", "Second Headline"),
		record("https://wwd.com/a/", "Duplicate"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Len(t, table.rows, 1)
}

func TestUpsertByURL(t *testing.T) {
	repo, table := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertByURL(ctx, record("https://wwd.com/a/", "Original Headline")))
	require.NoError(t, repo.UpsertByURL(ctx, record("https://wwd.com/a/", "Updated Headline")))

	got, err := repo.GetByURL(ctx, "https://wwd.com/a/")
	require.NoError(t, err)
	assert.Equal(t, "Updated Headline", got.Headline)
	assert.Equal(t, []string{}, got.Companies)
	assert.Nil(t, got.Category)
	assert.Contains(t, table.prefers, "resolution=merge-duplicates,return=minimal")
}

func TestGetByURLNotFound(t *testing.T) {
	repo, _ := newTestRepository(t)

	_, err := repo.GetByURL(context.Background(), "https://wwd.com/missing/")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWrongCredentialSurfacesStatus(t *testing.T) {
	repo, _ := newTestRepository(t)
	repo.credential = "wrong"

	_, err := repo.ListAllURLs(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestNewRepositoryValidates(t *testing.T) {
	_, err := NewRepository("not a url", testKey, "articles", time.Second, observability.Discard())
	assert.Error(t, err)

	_, err = NewRepository("https://project.supabase.co", testKey, "articles;", time.Second, observability.Discard())
	assert.Error(t, err)
}
