package fetcher

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter - токен-бакет на каждый хост
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

// NewRateLimiter ограничивает число запросов в минуту к одному хосту
func NewRateLimiter(rpm, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(float64(rpm) / 60),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	return rl.forHost(host).Wait(ctx)
}

func (rl *RateLimiter) forHost(host string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[host]
	if !exists {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[host] = limiter
	}
	return limiter
}
