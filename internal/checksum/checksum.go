package checksum

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"business-news-scraper/internal/normalize"
)

// URLKey - SHA256(url) в hex. SQL Server не индексирует NVARCHAR длиннее 900 байт,
// поэтому уникальность по URL держится на этом ключе.
func URLKey(url string) string {
	hash := sha256.Sum256([]byte(normalize.URL(url)))
	return fmt.Sprintf("%x", hash)
}

// RecordHash - хеш содержимого записи: SHA256(url|headline|category|source|date_iso).
// Меняется, если при повторном upsert поменялся заголовок или категория.
func RecordHash(url, headline, category, source string, createdAt time.Time) string {
	dateISO := createdAt.UTC().Format("2006-01-02")
	content := strings.Join([]string{normalize.URL(url), headline, category, source, dateISO}, "|")
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}

// VerifyRecordHash проверяет соответствие хеша
func VerifyRecordHash(expectedHash, url, headline, category, source string, createdAt time.Time) bool {
	return RecordHash(url, headline, category, source, createdAt) == expectedHash
}
