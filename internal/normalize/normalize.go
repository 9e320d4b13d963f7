package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var spaces = regexp.MustCompile(`\s+`)

// Text заменяет NBSP на пробел, схлопывает пробельные символы и обрезает края
func Text(s string) string {
	s = strings.ReplaceAll(s, "\u00A0", " ")
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// FirstLine возвращает первую непустую строку текста (уже нормализованную)
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = Text(line); line != "" {
			return line
		}
	}
	return ""
}

// Length считает символы, а не байты
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

// TruncatePreview обрезает текст до maxChars символов по границе слова
func TruncatePreview(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	runes := []rune(text)
	truncated := string(runes[:maxChars-1])
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > 0 {
		return truncated[:lastSpace] + "…"
	}
	return truncated + "…"
}

// URL нормализует URL (убирает якорь и пробелы по краям)
func URL(urlStr string) string {
	urlStr = strings.TrimSpace(urlStr)
	if idx := strings.Index(urlStr, "#"); idx > -1 {
		urlStr = urlStr[:idx]
	}
	return urlStr
}

// ContainsAny - регистронезависимый поиск любой из подстрок
func ContainsAny(s string, terms []string) bool {
	lower := strings.ToLower(s)
	for _, term := range terms {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// EqualsAny - регистронезависимое точное совпадение с любым из значений
func EqualsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.EqualFold(s, term) {
			return true
		}
	}
	return false
}
