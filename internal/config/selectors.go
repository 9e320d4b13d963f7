package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"business-news-scraper/internal/scraper"
)

// LoadSelectors загружает селекторы из YAML файла поверх встроенных значений:
// ключи, которых нет в файле, остаются по умолчанию
func LoadSelectors(filePath string) (*scraper.Selectors, error) {
	if filePath == "" {
		return nil, fmt.Errorf("selectors file path is empty")
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open selectors file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close selectors file: %v\n", closeErr)
		}
	}()

	selectors := scraper.DefaultSelectors()
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&selectors); err != nil {
		return nil, fmt.Errorf("failed to parse selectors YAML: %w", err)
	}

	if err := validateSelectors(&selectors); err != nil {
		return nil, err
	}

	return &selectors, nil
}

// Selectors возвращает селекторы из файла или встроенные
func (c *Config) Selectors() (*scraper.Selectors, error) {
	if c.Extraction.SelectorsFile == "" {
		defaults := scraper.DefaultSelectors()
		return &defaults, nil
	}
	return LoadSelectors(c.Extraction.SelectorsFile)
}

func (c *Config) Rules() scraper.Rules {
	return scraper.Rules{
		MinHeadlineLength:  c.Extraction.MinHeadlineLength,
		BoilerplateTerms:   c.Extraction.BoilerplateTerms,
		ExcludedCategories: c.Extraction.ExcludedCategories,
	}
}

// ScanPacing: без браузера ждать нечего - статический HTML не догружается
func (c *Config) ScanPacing() scraper.Pacing {
	if !c.Rod.Enabled {
		return scraper.Pacing{}
	}
	return scraper.Pacing{
		WaitTimeout: c.GetRodWaitLoadTimeout(),
		SettleMin:   ms(c.Rod.SettleMinMS),
		SettleMax:   ms(c.Rod.SettleMaxMS),
		ScrollPauses: [2]time.Duration{
			ms(c.Rod.ScrollPauseMidMS),
			ms(c.Rod.ScrollPauseBottomMS),
		},
	}
}

// validateSelectors проверяет минимальный набор селекторов
func validateSelectors(s *scraper.Selectors) error {
	if len(s.ContainerSelectors) == 0 && s.FallbackLinks == "" {
		return fmt.Errorf("container_selectors or fallback_links is required")
	}
	if len(s.HeadlineSelectors) == 0 {
		return fmt.Errorf("headline_selectors is required")
	}
	return nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
