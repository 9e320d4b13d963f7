package scraper

import (
	"time"

	"business-news-scraper/internal/dom"
	"business-news-scraper/internal/normalize"
)

// Fields - результат разбора одного контейнера.
type Fields struct {
	Headline    string
	URL         string
	Author      *string
	PublishDate *time.Time
	Category    *string
}

// Extractor применяет цепочки селекторов к одному контейнеру.
type Extractor struct {
	selectors  Selectors
	rules      Rules
	dateParser *DateParser
}

func NewExtractor(selectors Selectors, rules Rules, dp *DateParser) *Extractor {
	return &Extractor{selectors: selectors, rules: rules, dateParser: dp}
}

// Extract возвращает поля статьи или ok=false, если контейнер - не статья
func (e *Extractor) Extract(container dom.Element) (Fields, bool) {
	headline, url := e.headlineAndURL(container)
	if headline == "" || url == "" {
		return Fields{}, false
	}
	if normalize.Length(headline) < e.rules.MinHeadlineLength {
		return Fields{}, false
	}
	if normalize.ContainsAny(headline, e.rules.BoilerplateTerms) {
		return Fields{}, false
	}

	return Fields{
		Headline:    headline,
		URL:         url,
		Author:      e.author(container),
		PublishDate: e.publishDate(container),
		Category:    e.category(container),
	}, true
}

func (e *Extractor) headlineAndURL(container dom.Element) (string, string) {
	link := findFirstOf(container, e.selectors.HeadlineSelectors)
	if link == nil && container.TagName() == "a" {
		link = container
	}
	if link == nil {
		return "", ""
	}

	headline := normalize.Text(link.Text())
	href, _ := link.Attribute("href")
	url := normalize.URL(href)

	// Текст бывает вложен иначе - берём первую строку контейнера
	if headline == "" {
		headline = normalize.FirstLine(container.Text())
	}
	return headline, url
}

func (e *Extractor) author(container dom.Element) *string {
	for _, selector := range e.selectors.AuthorSelectors {
		el, ok := container.FindFirst(selector)
		if !ok {
			continue
		}
		if text := normalize.Text(el.Text()); normalize.Length(text) > 1 {
			return &text
		}
	}
	return nil
}

// publishDate: aria-label -> видимый текст -> datetime; первый распознанный
// источник побеждает, перебор останавливается на первом удачном элементе
func (e *Extractor) publishDate(container dom.Element) *time.Time {
	for _, selector := range e.selectors.DateSelectors {
		el, ok := container.FindFirst(selector)
		if !ok {
			continue
		}

		if label, ok := el.Attribute("aria-label"); ok {
			if t, ok := e.dateParser.Parse(label); ok {
				return &t
			}
		}
		if t, ok := e.dateParser.Parse(normalize.Text(el.Text())); ok {
			return &t
		}
		if machine, ok := el.Attribute("datetime"); ok {
			if t, ok := e.dateParser.ParseMachine(machine); ok {
				return &t
			}
		}
	}
	return nil
}

func (e *Extractor) category(container dom.Element) *string {
	for _, selector := range e.selectors.CategorySelectors {
		el, ok := container.FindFirst(selector)
		if !ok {
			continue
		}
		text := normalize.Text(el.Text())
		if normalize.Length(text) > 1 && !normalize.EqualsAny(text, e.rules.ExcludedCategories) {
			return &text
		}
	}
	return nil
}

func findFirstOf(container dom.Element, selectors []string) dom.Element {
	for _, selector := range selectors {
		if el, ok := container.FindFirst(selector); ok {
			return el
		}
	}
	return nil
}
