package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Переменные окружения перекрывают файл; секреты живут только здесь или в .env
const (
	EnvStorageEndpoint   = "NEWS_STORAGE_ENDPOINT"
	EnvStorageCredential = "NEWS_STORAGE_CREDENTIAL"
	EnvStorageDSN        = "NEWS_STORAGE_DSN"
	EnvMaxPages          = "NEWS_MAX_PAGES"
	EnvBatchSize         = "NEWS_BATCH_SIZE"
)

func LoadConfig(filePath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("Warning: failed to close config file: %v", closeErr)
		}
	}()

	cfg := Default()
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return cfg, nil
}

// ApplyEnv перекрывает значения из окружения; lookup подменяется в тестах
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvStorageEndpoint); ok && v != "" {
		c.Storage.Endpoint = v
	}
	if v, ok := lookup(EnvStorageCredential); ok && v != "" {
		c.Storage.Credential = v
	}
	if v, ok := lookup(EnvStorageDSN); ok && v != "" {
		c.Storage.DSN = v
	}
	if v, ok := lookup(EnvMaxPages); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %q: %w", EnvMaxPages, v, err)
		}
		c.Crawl.MaxPages = n
	}
	if v, ok := lookup(EnvBatchSize); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %q: %w", EnvBatchSize, v, err)
		}
		c.Publish.BatchSize = n
	}
	return nil
}
