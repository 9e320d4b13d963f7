package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"business-news-scraper/internal/observability"
)

type RobotsCache struct {
	cache  map[string]*robotsEntry
	ttl    time.Duration
	client *http.Client
	mu     sync.RWMutex
	logger *observability.Logger
	now    func() time.Time
}

type robotsEntry struct {
	data      *robotstxt.RobotsData
	expiresAt time.Time
}

func NewRobotsCache(ttl time.Duration, client *http.Client, logger *observability.Logger) *RobotsCache {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsCache{
		cache:  make(map[string]*robotsEntry),
		ttl:    ttl,
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// IsAllowed проверяет путь по robots.txt хоста. Если robots.txt недоступен,
// считаем, что всё разрешено
func (rc *RobotsCache) IsAllowed(ctx context.Context, urlStr, userAgent string) (bool, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return false, fmt.Errorf("invalid URL: %w", err)
	}

	origin := u.Scheme + "://" + u.Host

	rc.mu.RLock()
	cached, exists := rc.cache[origin]
	rc.mu.RUnlock()

	if !exists || !rc.now().Before(cached.expiresAt) {
		cached = &robotsEntry{
			data:      rc.fetch(ctx, origin),
			expiresAt: rc.now().Add(rc.ttl),
		}
		rc.mu.Lock()
		rc.cache[origin] = cached
		rc.mu.Unlock()
	}

	if cached.data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return cached.data.TestAgent(path, userAgent), nil
}

func (rc *RobotsCache) fetch(ctx context.Context, origin string) *robotstxt.RobotsData {
	robotsURL := origin + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}

	resp, err := rc.client.Do(req)
	if err != nil {
		rc.logger.Warn("Robots.txt unavailable, assuming allowed", "url", robotsURL, "error", err.Error())
		return nil
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			rc.logger.Warn("Failed to close response body", "error", err.Error())
		}
	}()

	// FromResponse сам трактует 4xx как «разрешено всё», 5xx как «запрещено всё»
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		rc.logger.Warn("Failed to parse robots.txt", "url", robotsURL, "error", err.Error())
		return nil
	}
	return data
}
