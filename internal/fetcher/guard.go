package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// ErrDisallowed - путь закрыт robots.txt
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Guard пропускает навигацию: сначала robots.txt, потом лимит запросов.
// Общий для браузерной и статической сессии
type Guard struct {
	robots  *RobotsCache
	limiter *RateLimiter
}

// NewGuard: robots может быть nil, тогда robots.txt не проверяется
func NewGuard(robots *RobotsCache, limiter *RateLimiter) *Guard {
	return &Guard{robots: robots, limiter: limiter}
}

func (g *Guard) Admit(ctx context.Context, urlStr, userAgent string) error {
	if g == nil {
		return nil
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if g.robots != nil {
		allowed, err := g.robots.IsAllowed(ctx, urlStr, userAgent)
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("%s: %w", urlStr, ErrDisallowed)
		}
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, u.Host); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}
	return nil
}
