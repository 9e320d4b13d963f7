package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"business-news-scraper/internal/observability"
	"business-news-scraper/internal/scraper"
)

// ErrSessionSetup - браузер (или HTTP-сессию) не удалось поднять, прогон прерван
var ErrSessionSetup = errors.New("session setup failed")

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateFinished
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// SessionFactory открывает сессию на один прогон
type SessionFactory func(ctx context.Context) (scraper.Session, error)

// PageScanner - сканер одной страницы листинга
type PageScanner interface {
	ScanPage(ctx context.Context, session scraper.Session, url string, pageNum int) ([]scraper.RawArticle, error)
}

type CrawlOptions struct {
	BaseURL  string
	MaxPages int
	DelayMin time.Duration
	DelayMax time.Duration
}

type Orchestrator struct {
	opts       CrawlOptions
	newSession SessionFactory
	scanner    PageScanner
	logger     *observability.Logger
	sleep      func(ctx context.Context, d time.Duration)
	state      atomic.Int32
}

func NewOrchestrator(opts CrawlOptions, newSession SessionFactory, scanner PageScanner, logger *observability.Logger) *Orchestrator {
	return &Orchestrator{
		opts:       opts,
		newSession: newSession,
		scanner:    scanner,
		logger:     logger,
		sleep:      scraper.Sleep,
	}
}

type CrawlStats struct {
	RunID       string
	Pages       int
	FailedPages int
	Articles    int
	State       State
	Duration    time.Duration
}

func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// Run обходит страницы 1..MaxPages одной сессией и собирает статьи в порядке обхода.
// Ошибка страницы не останавливает обход; ошибка сессии и отмена контекста прерывают его.
// Сессия закрывается на любом пути выхода
func (o *Orchestrator) Run(ctx context.Context) ([]scraper.RawArticle, *CrawlStats, error) {
	stats := &CrawlStats{RunID: uuid.NewString()}
	logger := o.logger.With("run_id", stats.RunID)
	started := time.Now()
	defer func() { stats.Duration = time.Since(started) }()

	o.setState(StateRunning)
	logger.Info("Starting crawl",
		"base_url", o.opts.BaseURL,
		"max_pages", o.opts.MaxPages,
	)

	session, err := o.newSession(ctx)
	if err != nil {
		o.setState(StateAborted)
		stats.State = StateAborted
		logger.Error("Session setup failed", "error", err.Error())
		return nil, stats, fmt.Errorf("%w: %w", ErrSessionSetup, err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			logger.Warn("Failed to close session", "error", closeErr.Error())
		}
		logger.Debug("Session closed")
	}()

	var all []scraper.RawArticle
	for pageNum := 1; pageNum <= o.opts.MaxPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			o.setState(StateAborted)
			stats.State = StateAborted
			logger.Warn("Crawl cancelled", "page", pageNum, "collected", len(all))
			return all, stats, err
		}

		url := PageURL(o.opts.BaseURL, pageNum)
		logger.Info("Processing page", "page", pageNum, "url", url)

		articles, err := o.scanner.ScanPage(ctx, session, url, pageNum)
		if err != nil {
			stats.FailedPages++
			logger.Error("Page failed",
				"page", pageNum,
				"url", url,
				"error", err.Error(),
			)
		} else {
			stats.Pages++
			all = append(all, articles...)
			logger.Info("Page scanned", "page", pageNum, "articles", len(articles))
		}

		if pageNum < o.opts.MaxPages {
			o.sleep(ctx, scraper.Jitter(o.opts.DelayMin, o.opts.DelayMax))
		}
	}

	stats.Articles = len(all)
	stats.State = StateFinished
	o.setState(StateFinished)

	logger.Info("Crawl completed",
		"pages", stats.Pages,
		"failed_pages", stats.FailedPages,
		"articles", stats.Articles,
	)
	return all, stats, nil
}

// PageURL: первая страница - base/, остальные - base/page/k/
func PageURL(base string, pageNum int) string {
	base = strings.TrimRight(base, "/")
	if pageNum <= 1 {
		return base + "/"
	}
	return base + "/page/" + strconv.Itoa(pageNum) + "/"
}
