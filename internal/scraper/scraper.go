package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"business-news-scraper/internal/dom"
	"business-news-scraper/internal/observability"
)

// Pacing - паузы при загрузке страницы. Нулевые значения отключают ожидание.
type Pacing struct {
	WaitTimeout time.Duration
	SettleMin   time.Duration
	SettleMax   time.Duration
	// Пауза после прокрутки до середины и после прокрутки до низа
	ScrollPauses [2]time.Duration
}

type Scraper struct {
	selectors Selectors
	extractor *Extractor
	pacing    Pacing
	source    string
	logger    *observability.Logger
	sleep     func(ctx context.Context, d time.Duration)
}

func NewScraper(selectors Selectors, rules Rules, pacing Pacing, source string, logger *observability.Logger) *Scraper {
	return &Scraper{
		selectors: selectors,
		extractor: NewExtractor(selectors, rules, NewDateParser()),
		pacing:    pacing,
		source:    source,
		logger:    logger,
		sleep:     Sleep,
	}
}

// WithExtractor подменяет экстрактор (фиксированные часы в тестах)
func (s *Scraper) WithExtractor(e *Extractor) *Scraper {
	s.extractor = e
	return s
}

// ScanPage загружает страницу листинга и возвращает статьи в порядке документа,
// без повторов URL. Ошибка - только если страницу не удалось открыть или прочитать.
func (s *Scraper) ScanPage(ctx context.Context, session Session, url string, pageNum int) ([]RawArticle, error) {
	if err := session.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}

	if s.selectors.ContentRegion != "" && s.pacing.WaitTimeout > 0 {
		if err := session.WaitVisible(ctx, s.selectors.ContentRegion, s.pacing.WaitTimeout); err != nil {
			// Таймаут не фатален: разбираем то, что успело отрисоваться
			s.logger.Warn("Content region wait failed, proceeding",
				"page", pageNum,
				"selector", s.selectors.ContentRegion,
				"error", err.Error(),
			)
		}
	}

	s.sleep(ctx, Jitter(s.pacing.SettleMin, s.pacing.SettleMax))
	s.scroll(ctx, session, pageNum)

	page, err := session.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", url, err)
	}

	containers, strategy := s.findContainers(page)
	s.logger.Info("Containers located",
		"page", pageNum,
		"count", len(containers),
		"strategy", strategy,
	)

	articles := s.ParseContainers(containers, pageNum)

	s.logger.Info("Page scanned",
		"page", pageNum,
		"url", url,
		"articles", len(articles),
	)
	return articles, nil
}

// ParseContainers разбирает контейнеры по порядку; повтор URL отбрасывается,
// сохраняется первое вхождение
func (s *Scraper) ParseContainers(containers []dom.Element, pageNum int) []RawArticle {
	seen := make(map[string]struct{})
	var articles []RawArticle

	for i, container := range containers {
		fields, ok := s.extractSafe(container, pageNum, i)
		if !ok {
			continue
		}
		if _, dup := seen[fields.URL]; dup {
			continue
		}
		seen[fields.URL] = struct{}{}

		articles = append(articles, RawArticle{
			Headline:    fields.Headline,
			URL:         fields.URL,
			Page:        pageNum,
			Author:      fields.Author,
			PublishDate: fields.PublishDate,
			Category:    fields.Category,
			Source:      s.source,
		})
	}
	return articles
}

// extractSafe: падение на одном контейнере не должно прерывать страницу
func (s *Scraper) extractSafe(container dom.Element, pageNum, index int) (fields Fields, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Container skipped after panic",
				"page", pageNum,
				"index", index,
				"panic", fmt.Sprint(r),
			)
			fields, ok = Fields{}, false
		}
	}()
	return s.extractor.Extract(container)
}

// findContainers: первая стратегия с числом совпадений больше MinContainers,
// иначе прямой поиск ссылок-заголовков
func (s *Scraper) findContainers(page dom.Page) ([]dom.Element, string) {
	for _, selector := range s.selectors.ContainerSelectors {
		if containers := page.FindAll(selector); len(containers) > MinContainers {
			return containers, selector
		}
	}

	if s.selectors.FallbackLinks == "" {
		return nil, ""
	}
	return page.FindAll(s.selectors.FallbackLinks), s.selectors.FallbackLinks
}

func (s *Scraper) scroll(ctx context.Context, session Session, pageNum int) {
	steps := []struct {
		fraction float64
		pause    time.Duration
	}{
		{0.5, s.pacing.ScrollPauses[0]},
		{1.0, s.pacing.ScrollPauses[1]},
		{0, 0},
	}

	for _, step := range steps {
		if err := session.ScrollTo(ctx, step.fraction); err != nil {
			s.logger.Debug("Scroll failed",
				"page", pageNum,
				"fraction", step.fraction,
				"error", err.Error(),
			)
			return
		}
		s.sleep(ctx, step.pause)
	}
}

// Sleep ждёт d или отмены контекста
func Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Jitter - случайная длительность в [lo, hi]
func Jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)+1))
}
