package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"business-news-scraper/internal/config"
	"business-news-scraper/internal/dom"
	"business-news-scraper/internal/observability"
)

// ErrNotNavigated - Snapshot до успешного Navigate
var ErrNotNavigated = errors.New("no page loaded")

// Fetcher - статическая сессия: обычный HTTP GET без JavaScript.
// Используется, когда rod выключен.
type Fetcher struct {
	client    *http.Client
	cfg       *config.Config
	logger    *observability.Logger
	guard     *Guard
	userAgent string
	current   *FetchResponse
}

type FetchResponse struct {
	StatusCode int
	Body       []byte
	URL        string
	Headers    http.Header
}

func NewFetcher(cfg *config.Config, guard *Guard, logger *observability.Logger) *Fetcher {
	client := &http.Client{
		Timeout: cfg.GetTotalTimeout(),
		Transport: &http.Transport{
			DialContext:         (&net.Dialer{Timeout: cfg.GetConnectTimeout()}).DialContext,
			MaxIdleConns:        cfg.HTTP.MaxIdleConnections,
			MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConnectionsPerHost,
			IdleConnTimeout:     cfg.GetIdleConnectionTimeout(),
		},
	}

	userAgent := cfg.HTTP.UserAgent
	if userAgent == "" {
		userAgent = PickUserAgent(cfg.Rod.UserAgents)
	}

	return &Fetcher{
		client:    client,
		cfg:       cfg,
		logger:    logger,
		guard:     guard,
		userAgent: userAgent,
	}
}

func (f *Fetcher) Navigate(ctx context.Context, urlStr string) error {
	resp, err := f.Fetch(ctx, urlStr)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, urlStr)
	}
	f.current = resp
	return nil
}

// WaitVisible ничего не ждёт: статический HTML уже получен целиком
func (f *Fetcher) WaitVisible(context.Context, string, time.Duration) error {
	return nil
}

func (f *Fetcher) ScrollTo(context.Context, float64) error {
	return nil
}

func (f *Fetcher) Snapshot(context.Context) (dom.Page, error) {
	if f.current == nil {
		return nil, ErrNotNavigated
	}
	doc, err := dom.Parse(string(f.current.Body), f.current.URL)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	f.current = nil
	return nil
}

// Fetch скачивает страницу с учётом robots.txt, лимита запросов и повторов
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*FetchResponse, error) {
	if _, err := url.Parse(urlStr); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if err := f.guard.Admit(ctx, urlStr, f.userAgent); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= f.cfg.HTTP.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := f.calculateBackoff(attempt)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := f.fetchOnce(ctx, urlStr)
		if err != nil {
			lastErr = err
			continue
		}

		// Повтор на 5xx и 429
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			if attempt < f.cfg.HTTP.MaxRetries {
				continue
			}
		}

		return resp, nil
	}

	return nil, fmt.Errorf("fetch failed after %d retries: %w", f.cfg.HTTP.MaxRetries, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, urlStr string) (*FetchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", f.cfg.HTTP.AcceptLanguage)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.logger.Warn("Failed to close response body", "error", err.Error())
		}
	}()

	reader := io.Reader(resp.Body)
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gzipReader.Close() }()
		reader = gzipReader
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("Page fetched",
		"url", urlStr,
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"bytes", len(body),
	)

	return &FetchResponse{
		StatusCode: resp.StatusCode,
		Body:       body,
		URL:        resp.Request.URL.String(),
		Headers:    resp.Header,
	}, nil
}

func (f *Fetcher) calculateBackoff(attempt int) time.Duration {
	minMS := f.cfg.Backoff.MinMS
	maxMS := f.cfg.Backoff.MaxMS
	jitterPct := f.cfg.Backoff.JitterPct

	// Экспонента: min * 2^(attempt-1)
	exponential := minMS * (1 << uint(attempt-1))
	if exponential > maxMS {
		exponential = maxMS
	}

	// Джиттер ±jitterPct%
	jitterRange := float64(exponential) * float64(jitterPct) / 100
	jitter := (rand.Float64() - 0.5) * 2 * jitterRange
	finalMS := float64(exponential) + jitter

	if finalMS < float64(minMS) {
		finalMS = float64(minMS)
	}

	return time.Duration(math.Max(finalMS, 0)) * time.Millisecond
}
