package app

import (
	"context"
	"fmt"

	"business-news-scraper/internal/config"
	"business-news-scraper/internal/fetcher"
	"business-news-scraper/internal/observability"
	"business-news-scraper/internal/scraper"
	"business-news-scraper/internal/storage"
	"business-news-scraper/internal/storage/mongodb"
	"business-news-scraper/internal/storage/mssql"
	"business-news-scraper/internal/storage/postgrest"
	"business-news-scraper/internal/storage/sqlite"
)

// OpenRepository открывает хранилище по storage.driver
func OpenRepository(cfg *config.Config, logger *observability.Logger) (storage.Repository, error) {
	s := cfg.Storage
	timeout := cfg.GetCommandTimeout()
	logger = logger.With("driver", s.Driver)

	switch s.Driver {
	case config.DriverMSSQL:
		return mssql.NewRepository(s.DSN, s.Table, timeout, logger)
	case config.DriverSQLite:
		return sqlite.NewRepository(s.DSN, s.Table, timeout, logger)
	case config.DriverMongo:
		return mongodb.NewRepository(s.DSN, s.Database, s.Table, timeout, logger)
	case config.DriverPostgREST:
		return postgrest.NewRepository(s.Endpoint, s.Credential, s.Table, timeout, logger)
	}
	return nil, fmt.Errorf("unknown storage driver %q", s.Driver)
}

// NewGuard собирает проверку robots.txt и лимит запросов из конфига
func NewGuard(cfg *config.Config, logger *observability.Logger) *fetcher.Guard {
	var robots *fetcher.RobotsCache
	if cfg.Crawl.RespectRobots {
		robots = fetcher.NewRobotsCache(cfg.GetRobotsCacheTTL(), nil, logger)
	}
	return fetcher.NewGuard(robots, fetcher.NewRateLimiter(cfg.RateLimit.RPM, cfg.RateLimit.Burst))
}

// NewSessionFactory: rod.enabled - headless Chrome, иначе статический HTTP
func NewSessionFactory(cfg *config.Config, guard *fetcher.Guard, logger *observability.Logger) SessionFactory {
	if cfg.Rod.Enabled {
		return func(ctx context.Context) (scraper.Session, error) {
			b, err := fetcher.NewBrowser(ctx, cfg, guard, logger.With("session", "rod"))
			if err != nil {
				return nil, err
			}
			return b, nil
		}
	}
	return func(ctx context.Context) (scraper.Session, error) {
		return fetcher.NewFetcher(cfg, guard, logger.With("session", "http")), nil
	}
}
