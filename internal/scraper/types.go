package scraper

import (
	"context"
	"time"

	"business-news-scraper/internal/dom"
)

// RawArticle - статья, извлечённая из одного контейнера листинга.
// Необязательные поля равны nil, если ничего не нашлось.
type RawArticle struct {
	Headline    string
	URL         string
	Page        int
	Author      *string
	PublishDate *time.Time
	Category    *string
	Source      string
}

// Session - открытая вкладка браузера (или её статический аналог).
// Сессия принадлежит одному прогону и не используется конкурентно.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// WaitVisible ждёт появления селектора не дольше timeout
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// ScrollTo прокручивает страницу на долю её высоты (0 - верх, 1 - низ)
	ScrollTo(ctx context.Context, fraction float64) error
	Snapshot(ctx context.Context) (dom.Page, error)
	Close() error
}

type Selectors struct {
	// Контейнеры: первая стратегия, давшая больше MinContainers совпадений
	ContainerSelectors []string `yaml:"container_selectors"`
	// Если ни одна стратегия не сработала - ссылки-заголовки напрямую
	FallbackLinks     string   `yaml:"fallback_links"`
	HeadlineSelectors []string `yaml:"headline_selectors"`
	AuthorSelectors   []string `yaml:"author_selectors"`
	DateSelectors     []string `yaml:"date_selectors"`
	CategorySelectors []string `yaml:"category_selectors"`
	// Основная область контента, которой ждём после загрузки
	ContentRegion string `yaml:"content_region"`
}

// Rules - фильтры валидности статьи.
type Rules struct {
	MinHeadlineLength int      `yaml:"min_headline_length"`
	BoilerplateTerms  []string `yaml:"boilerplate_terms"`
	// Термины «бренда» сайта, которые не считаются категорией
	ExcludedCategories []string `yaml:"excluded_categories"`
}

const MinContainers = 2

// DefaultSelectors - цепочки, настроенные под листинг WWD Business News
func DefaultSelectors() Selectors {
	return Selectors{
		ContainerSelectors: []string{
			"section div.river-items-wrapper > div",
			"div[class*='river-items'] > div",
			"section > div > div",
		},
		FallbackLinks:     "h3 a[href*='/business-news/'], h2 a[href*='/business-news/']",
		HeadlineSelectors: []string{"h3 a", "h2 a", "a.c-title"},
		AuthorSelectors: []string{
			".c-tagline__author-name",
			".c-tagline a span",
			"div[class*='byline'] a span",
			"div[class*='author'] a span",
			".article-byline a span",
			"span[class*='author']",
		},
		DateSelectors: []string{
			"time.c-timestamp",
			"time",
			"div[class*='timestamp'] time",
			".article-timestamp time",
		},
		CategorySelectors: []string{
			".c-card__meta a:nth-child(2)",
			".c-card__meta a[rel='category']",
			"[class*='category'] a",
			"[class*='meta'] a:last-child",
		},
		ContentRegion: "main",
	}
}

func DefaultRules() Rules {
	return Rules{
		MinHeadlineLength:  5,
		BoilerplateTerms:   []string{"subscribe", "sign up", "log in", "newsletter"},
		ExcludedCategories: []string{"wwd", "news"},
	}
}
