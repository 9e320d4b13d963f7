package scraper

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	// Абсолютные форматы в порядке приоритета
	absoluteLayouts = []string{
		"Jan 2, 2006, 3:04pm",
		"Jan 2, 2006, 3:04PM",
		"January 2, 2006, 3:04pm",
		"January 2, 2006, 3:04PM",
		"Jan 2, 2006",
		"January 2, 2006",
		"1/2/2006",
		"2006-1-2",
	}

	// Машиночитаемый datetime-атрибут
	isoLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	}

	nowWords       = []string{"hr", "hour", "min", "minute"}
	todayWords     = []string{"today", "just now"}
	yesterdayWords = []string{"yesterday"}
)

// Месяц считается за 30 дней: "2 months ago" даёт now-60d, а не календарный сдвиг.
// Потребители уже живут с этой погрешностью.
const daysPerMonth = 30

type DateParser struct {
	now func() time.Time
}

func NewDateParser() *DateParser {
	return &DateParser{now: func() time.Time { return time.Now().UTC() }}
}

// NewDateParserWithClock - для тестов относительных дат
func NewDateParserWithClock(now func() time.Time) *DateParser {
	return &DateParser{now: now}
}

// Parse приводит текст даты к UTC-времени. ok=false - дата не распознана,
// это не ошибка.
func (dp *DateParser) Parse(dateStr string) (time.Time, bool) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, false
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t.UTC(), true
		}
	}

	return dp.parseRelative(strings.ToLower(dateStr))
}

func (dp *DateParser) parseRelative(lower string) (time.Time, bool) {
	now := dp.now()
	count, hasCount := digits(lower)

	switch {
	case containsAny(lower, nowWords):
		return now, true
	case strings.Contains(lower, "day") && hasCount:
		return now.AddDate(0, 0, -count), true
	case strings.Contains(lower, "week") && hasCount:
		return now.AddDate(0, 0, -7*count), true
	case strings.Contains(lower, "month") && hasCount:
		return now.AddDate(0, 0, -daysPerMonth*count), true
	case containsAny(lower, yesterdayWords):
		return now.AddDate(0, 0, -1), true
	case containsAny(lower, todayWords):
		return now, true
	}

	return time.Time{}, false
}

// ParseMachine разбирает datetime-атрибут: ISO-8601, если есть разделитель
// времени "T", иначе простая дата YYYY-MM-DD
func (dp *DateParser) ParseMachine(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if !strings.Contains(value, "T") {
		t, err := time.Parse("2006-01-02", value)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// digits склеивает все цифры строки в одно число: "3 days ago" -> 3
func digits(s string) (int, bool) {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}

	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0, false
	}
	return n, true
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
