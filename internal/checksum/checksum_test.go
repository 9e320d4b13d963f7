package checksum

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestURLKey(t *testing.T) {
	key1 := URLKey("https://wwd.com/business-news/retail/macys-q3-1238000001/")
	key2 := URLKey("  https://wwd.com/business-news/retail/macys-q3-1238000001/#comments")

	// Якорь и пробелы не влияют на ключ
	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 64)
	assert.NotEqual(t, key1, URLKey("https://wwd.com/business-news/retail/other-1238000002/"))
}

func TestRecordHash(t *testing.T) {
	url := "https://wwd.com/business-news/financial/kering-results-1238000003/"
	date := time.Date(2025, 12, 19, 11, 39, 0, 0, time.UTC)

	hash1 := RecordHash(url, "Kering Results Slide", "Financial", "WWD Business News", date)
	hash2 := RecordHash(url, "Kering Results Slide", "Financial", "WWD Business News", date)

	assert.Equal(t, hash1, hash2, "hash must be deterministic")
	assert.Len(t, hash1, 64)
	assert.NotEqual(t, hash1, RecordHash(url, "Kering Results Rebound", "Financial", "WWD Business News", date))
}

func TestVerifyRecordHash(t *testing.T) {
	url := "https://wwd.com/business-news/legal/lawsuit-1238000004/"
	date := time.Date(2025, 10, 18, 0, 0, 0, 0, time.UTC)

	hash := RecordHash(url, "Lawsuit Filed Against Retailer", "", "WWD Business News", date)

	assert.True(t, VerifyRecordHash(hash, url, "Lawsuit Filed Against Retailer", "", "WWD Business News", date))
	assert.False(t, VerifyRecordHash(hash, url, "Another Headline", "", "WWD Business News", date))
}
