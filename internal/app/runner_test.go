package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"business-news-scraper/internal/config"
	"business-news-scraper/internal/dom"
	"business-news-scraper/internal/ingest"
	"business-news-scraper/internal/observability"
	"business-news-scraper/internal/scraper"
	"business-news-scraper/internal/storage/sqlite"
)

// htmlSession отдаёт заранее заданный HTML по URL
type htmlSession struct {
	pages   map[string]string
	current string
	closed  bool
}

func (h *htmlSession) Navigate(_ context.Context, url string) error {
	if _, ok := h.pages[url]; !ok {
		return errors.New("404 not found")
	}
	h.current = url
	return nil
}

func (h *htmlSession) WaitVisible(context.Context, string, time.Duration) error { return nil }
func (h *htmlSession) ScrollTo(context.Context, float64) error                  { return nil }

func (h *htmlSession) Snapshot(context.Context) (dom.Page, error) {
	doc, err := dom.Parse(h.pages[h.current], h.current)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (h *htmlSession) Close() error {
	h.closed = true
	return nil
}

const listingPage1 = `<html><body><main><section><div class="river-items-wrapper">
	<div>
		<h3><a href="/business-news/retail/retailer-record-quarter-1/">Retailer Posts Record Quarter</a></h3>
		<div class="c-card__meta"><a href="/">WWD</a><a href="/business-news/retail/">Retail</a></div>
		<time class="c-timestamp" datetime="2025-12-19T11:39:00Z">Dec 19, 2025, 11:39am</time>
	</div>
	<div><h3><a href="/business-news/financial/luxury-group-ceo-2/">Luxury Group Names New CEO</a></h3></div>
	<div><h3><a href="/newsletters/">Sign up for our newsletter</a></h3></div>
</div></section></main></body></html>`

const listingPage2 = `<html><body><main><section><div class="river-items-wrapper">
	<div><h3><a href="/business-news/financial/luxury-group-ceo-2/">Luxury Group Names New CEO</a></h3></div>
	<div><h3><a href="/business-news/mergers/brand-acquired-3/">Heritage Brand Acquired By Rival</a></h3></div>
	<div><h3><a href="/business-news/retail/store-closures-4/">Department Store Plans Closures</a></h3></div>
</div></section></main></body></html>`

func newRunnerConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := &config.Config{
		Crawl: config.CrawlConfig{
			BaseURL:     "https://wwd.com/business-news",
			MaxPages:    2,
			SnapshotDir: filepath.Join(dir, "snapshots"),
		},
		Storage: config.StorageConfig{Driver: config.DriverSQLite, DSN: filepath.Join(dir, "news.db")},
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunOnceEndToEnd(t *testing.T) {
	cfg := newRunnerConfig(t)
	logger := observability.Discard()

	repo, err := OpenRepository(cfg, logger)
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()
	_, isSQLite := repo.(*sqlite.Repository)
	assert.True(t, isSQLite)

	session := &htmlSession{pages: map[string]string{
		"https://wwd.com/business-news/":        listingPage1,
		"https://wwd.com/business-news/page/2/": listingPage2,
	}}
	sessions := func(context.Context) (scraper.Session, error) { return session, nil }

	runner, err := BuildRunner(cfg, repo, sessions, logger)
	require.NoError(t, err)
	runner.orchestrator.sleep = func(context.Context, time.Duration) {}

	summary, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, session.closed)

	assert.Equal(t, 2, summary.Crawl.Pages)
	assert.Equal(t, 5, summary.Crawl.Articles, "no cross-page dedup in the crawl")
	assert.Equal(t, 4, summary.Publish.Attempted, "repeated URL is published once")
	assert.Equal(t, 4, summary.Publish.Succeeded)
	assert.Zero(t, summary.Publish.Failed)

	got, err := repo.GetByURL(context.Background(), "https://wwd.com/business-news/retail/retailer-record-quarter-1/")
	require.NoError(t, err)
	require.NotNil(t, got.Category)
	assert.Equal(t, "Retail", *got.Category)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, got.PublishedAt.Equal(time.Date(2025, 12, 19, 11, 39, 0, 0, time.UTC)))

	require.NotEmpty(t, summary.SnapshotPath)
	exp, err := ingest.Load(summary.SnapshotPath)
	require.NoError(t, err)
	assert.Equal(t, 5, exp.Total)
	assert.Equal(t, "WWD Business News", exp.Source)

	second, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Publish.Attempted, "second run finds nothing new")
	assert.Equal(t, 5, second.Publish.Known)
}

func TestRunOnceSurfacesSessionFailure(t *testing.T) {
	cfg := newRunnerConfig(t)
	cfg.Crawl.SnapshotDir = ""
	logger := observability.Discard()

	repo, err := OpenRepository(cfg, logger)
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()

	sessions := func(context.Context) (scraper.Session, error) { return nil, errors.New("chrome crashed") }
	runner, err := BuildRunner(cfg, repo, sessions, logger)
	require.NoError(t, err)

	summary, err := runner.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSessionSetup)
	assert.Equal(t, StateAborted, summary.Crawl.State)
	assert.Zero(t, summary.Publish.Attempted)
}

func TestNewSessionFactoryStatic(t *testing.T) {
	cfg := newRunnerConfig(t)
	logger := observability.Discard()

	session, err := NewSessionFactory(cfg, NewGuard(cfg, logger), logger)(context.Background())
	require.NoError(t, err)
	assert.NoError(t, session.Close())
}
