package storage

import (
	"encoding/json"
	"fmt"
	"regexp"

	"business-news-scraper/internal/checksum"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateTableName - имя таблицы подставляется в SQL как идентификатор
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// Checksum - хеш содержимого для колонки CheckSum
func (r ArticleRecord) Checksum() string {
	return checksum.RecordHash(r.URL, r.Headline, deref(r.Category), r.Source, r.CreatedAt)
}

// VerifyChecksum сверяет сохранённый хеш с содержимым записи
func (r ArticleRecord) VerifyChecksum(stored string) bool {
	return checksum.VerifyRecordHash(stored, r.URL, r.Headline, deref(r.Category), r.Source, r.CreatedAt)
}

// EncodeCompanies хранит список компаний JSON-массивом; nil пишется как []
func EncodeCompanies(companies []string) (string, error) {
	if companies == nil {
		companies = []string{}
	}
	data, err := json.Marshal(companies)
	if err != nil {
		return "", fmt.Errorf("encode companies: %w", err)
	}
	return string(data), nil
}

func DecodeCompanies(raw string) ([]string, error) {
	companies := []string{}
	if raw == "" {
		return companies, nil
	}
	if err := json.Unmarshal([]byte(raw), &companies); err != nil {
		return nil, fmt.Errorf("decode companies: %w", err)
	}
	return companies, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
