package config

import (
	"fmt"
	"time"
)

type Config struct {
	Rod                 RodConfig           `yaml:"rod"`
	HTTP                HttpConfig          `yaml:"http"`
	Backoff             BackoffConfig       `yaml:"backoff"`
	RateLimit           RateLimitConfig     `yaml:"rate_limit"`
	RobotsCacheTTLHours int                 `yaml:"robots_cache_ttl_hours"`
	Crawl               CrawlConfig         `yaml:"crawl"`
	Extraction          ExtractionConfig    `yaml:"extraction"`
	Storage             StorageConfig       `yaml:"storage"`
	Publish             PublishConfig       `yaml:"publish"`
	Scheduler           SchedulerConfig     `yaml:"scheduler"`
	Observability       ObservabilityConfig `yaml:"observability"`
}

type RodConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ChromePath string `yaml:"chrome_path"`
	// По умолчанию браузер без окна; headed - для отладки селекторов
	Headed              bool     `yaml:"headed"`
	NoSandbox           bool     `yaml:"no_sandbox"`
	WindowWidth         int      `yaml:"window_width"`
	WindowHeight        int      `yaml:"window_height"`
	PageTimeoutS        int      `yaml:"page_timeout_s"`
	WaitLoadTimeoutS    int      `yaml:"wait_load_timeout_s"`
	SettleMinMS         int      `yaml:"settle_min_ms"`
	SettleMaxMS         int      `yaml:"settle_max_ms"`
	ScrollPauseMidMS    int      `yaml:"scroll_pause_mid_ms"`
	ScrollPauseBottomMS int      `yaml:"scroll_pause_bottom_ms"`
	UserAgents          []string `yaml:"user_agents"`
}

type HttpConfig struct {
	UserAgent                 string `yaml:"user_agent"`
	ConnectTimeoutMS          int    `yaml:"connect_timeout_ms"`
	TotalTimeoutMS            int    `yaml:"total_timeout_ms"`
	MaxRetries                int    `yaml:"max_retries"`
	MaxIdleConnections        int    `yaml:"max_idle_connections"`
	MaxIdleConnectionsPerHost int    `yaml:"max_idle_connections_per_host"`
	IdleConnectionTimeoutS    int    `yaml:"idle_connection_timeout_s"`
	AcceptLanguage            string `yaml:"accept_language"`
}

type BackoffConfig struct {
	MinMS     int `yaml:"min_ms"`
	MaxMS     int `yaml:"max_ms"`
	JitterPct int `yaml:"jitter_pct"`
}

type RateLimitConfig struct {
	RPM   int `yaml:"rpm"`
	Burst int `yaml:"burst"`
}

type CrawlConfig struct {
	BaseURL        string `yaml:"base_url"`
	Source         string `yaml:"source"`
	MaxPages       int    `yaml:"max_pages"`
	PageDelayMinMS int    `yaml:"page_delay_min_ms"`
	PageDelayMaxMS int    `yaml:"page_delay_max_ms"`
	RespectRobots  bool   `yaml:"respect_robots"`
	SnapshotDir    string `yaml:"snapshot_dir"`
}

type ExtractionConfig struct {
	SelectorsFile      string   `yaml:"selectors_file"`
	MinHeadlineLength  int      `yaml:"min_headline_length"`
	BoilerplateTerms   []string `yaml:"boilerplate_terms"`
	ExcludedCategories []string `yaml:"excluded_categories"`
}

type StorageConfig struct {
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	Endpoint   string `yaml:"endpoint"`
	Credential string `yaml:"credential"`
	Table      string `yaml:"table"`
	Database   string `yaml:"database"`
	// Таймаут одной команды к хранилищу
	CommandTimeoutMS int `yaml:"command_timeout_ms"`
}

type PublishConfig struct {
	BatchSize int  `yaml:"batch_size"`
	DryRun    bool `yaml:"dry_run"`
}

type SchedulerConfig struct {
	Mode      string `yaml:"mode"`
	IntervalS int    `yaml:"interval_s"`
	CronExpr  string `yaml:"cron_expr"`
}

type ObservabilityConfig struct {
	LogPath    string `yaml:"log_path"`
	LogLevel   string `yaml:"log_level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

const (
	DriverMSSQL     = "mssql"
	DriverSQLite    = "sqlite"
	DriverMongo     = "mongo"
	DriverPostgREST = "postgrest"
)

// Default - конфигурация со значениями по умолчанию. Файл декодируется поверх неё,
// поэтому явный 0 в YAML остаётся нулём
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults заполняет незаданные значения
func (c *Config) ApplyDefaults() {
	setInt(&c.Rod.WindowWidth, 1920)
	setInt(&c.Rod.WindowHeight, 1080)
	setInt(&c.Rod.PageTimeoutS, 60)
	setInt(&c.Rod.WaitLoadTimeoutS, 15)
	setInt(&c.Rod.SettleMinMS, 3000)
	setInt(&c.Rod.SettleMaxMS, 5000)
	setInt(&c.Rod.ScrollPauseMidMS, 1000)
	setInt(&c.Rod.ScrollPauseBottomMS, 2000)

	setInt(&c.HTTP.ConnectTimeoutMS, 10000)
	setInt(&c.HTTP.TotalTimeoutMS, 30000)
	setInt(&c.HTTP.MaxIdleConnections, 100)
	setInt(&c.HTTP.MaxIdleConnectionsPerHost, 10)
	setInt(&c.HTTP.IdleConnectionTimeoutS, 90)
	setString(&c.HTTP.AcceptLanguage, "en-US,en;q=0.9")

	setInt(&c.Backoff.MinMS, 250)
	setInt(&c.Backoff.MaxMS, 4000)
	setInt(&c.RateLimit.RPM, 30)
	setInt(&c.RateLimit.Burst, 1)
	setInt(&c.RobotsCacheTTLHours, 12)

	setString(&c.Crawl.Source, "WWD Business News")
	setInt(&c.Crawl.MaxPages, 1)
	setInt(&c.Crawl.PageDelayMinMS, 2000)
	setInt(&c.Crawl.PageDelayMaxMS, 4000)

	setInt(&c.Extraction.MinHeadlineLength, 5)
	if c.Extraction.BoilerplateTerms == nil {
		c.Extraction.BoilerplateTerms = []string{"subscribe", "sign up", "log in", "newsletter"}
	}
	if c.Extraction.ExcludedCategories == nil {
		c.Extraction.ExcludedCategories = []string{"wwd", "news"}
	}

	setString(&c.Storage.Table, "articles")
	setString(&c.Storage.Database, "news")
	setInt(&c.Storage.CommandTimeoutMS, 15000)

	setInt(&c.Publish.BatchSize, 50)
	setString(&c.Scheduler.Mode, "oneshot")
	setString(&c.Observability.LogLevel, "info")
}

// Validation
func (c *Config) Validate() error {
	if c.Crawl.BaseURL == "" {
		return fmt.Errorf("crawl.base_url is required")
	}
	if c.Crawl.Source == "" {
		return fmt.Errorf("crawl.source is required")
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0")
	}
	if c.Crawl.PageDelayMinMS < 0 || c.Crawl.PageDelayMinMS > c.Crawl.PageDelayMaxMS {
		return fmt.Errorf("crawl.page_delay_min_ms must be between 0 and crawl.page_delay_max_ms")
	}
	if c.Extraction.MinHeadlineLength <= 0 {
		return fmt.Errorf("extraction.min_headline_length must be > 0")
	}
	if c.HTTP.ConnectTimeoutMS <= 0 {
		return fmt.Errorf("http.connect_timeout_ms must be > 0")
	}
	if c.HTTP.TotalTimeoutMS <= 0 {
		return fmt.Errorf("http.total_timeout_ms must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.RateLimit.RPM <= 0 {
		return fmt.Errorf("rate_limit.rpm must be > 0")
	}
	if c.RobotsCacheTTLHours <= 0 {
		return fmt.Errorf("robots_cache_ttl_hours must be > 0")
	}
	if c.Backoff.MinMS <= 0 {
		return fmt.Errorf("backoff.min_ms must be > 0")
	}
	if c.Backoff.MinMS > c.Backoff.MaxMS {
		return fmt.Errorf("backoff.min_ms must be <= backoff.max_ms")
	}
	if c.Backoff.JitterPct < 0 || c.Backoff.JitterPct > 100 {
		return fmt.Errorf("backoff.jitter_pct must be between 0 and 100")
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if c.Publish.BatchSize <= 0 {
		return fmt.Errorf("publish.batch_size must be > 0")
	}
	if c.Scheduler.Mode != "interval" && c.Scheduler.Mode != "cron" && c.Scheduler.Mode != "oneshot" {
		return fmt.Errorf("scheduler.mode must be 'interval', 'cron' or 'oneshot'")
	}
	if c.Scheduler.Mode == "interval" && c.Scheduler.IntervalS <= 0 {
		return fmt.Errorf("scheduler.interval_s must be > 0 when mode is 'interval'")
	}
	if c.Scheduler.Mode == "cron" && c.Scheduler.CronExpr == "" {
		return fmt.Errorf("scheduler.cron_expr must be set when mode is 'cron'")
	}
	if c.Rod.Enabled {
		if c.Rod.PageTimeoutS <= 0 {
			return fmt.Errorf("rod.page_timeout_s must be > 0")
		}
		if c.Rod.WaitLoadTimeoutS <= 0 {
			return fmt.Errorf("rod.wait_load_timeout_s must be > 0")
		}
		if c.Rod.SettleMinMS > c.Rod.SettleMaxMS {
			return fmt.Errorf("rod.settle_min_ms must be <= rod.settle_max_ms")
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case DriverMSSQL, DriverSQLite, DriverMongo:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver)
		}
	case DriverPostgREST:
		if c.Storage.Endpoint == "" {
			return fmt.Errorf("storage.endpoint is required for driver %q", c.Storage.Driver)
		}
		if c.Storage.Credential == "" {
			return fmt.Errorf("storage.credential is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage.driver must be one of 'mssql', 'sqlite', 'mongo', 'postgrest'")
	}
	if c.Storage.CommandTimeoutMS <= 0 {
		return fmt.Errorf("storage.command_timeout_ms must be > 0")
	}
	return nil
}

// Getters
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutMS) * time.Millisecond
}

func (c *Config) GetTotalTimeout() time.Duration {
	return time.Duration(c.HTTP.TotalTimeoutMS) * time.Millisecond
}

func (c *Config) GetIdleConnectionTimeout() time.Duration {
	return time.Duration(c.HTTP.IdleConnectionTimeoutS) * time.Second
}

func (c *Config) GetBackoffMin() time.Duration {
	return time.Duration(c.Backoff.MinMS) * time.Millisecond
}

func (c *Config) GetBackoffMax() time.Duration {
	return time.Duration(c.Backoff.MaxMS) * time.Millisecond
}

func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Storage.CommandTimeoutMS) * time.Millisecond
}

func (c *Config) GetSchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalS) * time.Second
}

func (c *Config) GetRobotsCacheTTL() time.Duration {
	return time.Duration(c.RobotsCacheTTLHours) * time.Hour
}

func (c *Config) GetRodPageTimeout() time.Duration {
	return time.Duration(c.Rod.PageTimeoutS) * time.Second
}

func (c *Config) GetRodWaitLoadTimeout() time.Duration {
	return time.Duration(c.Rod.WaitLoadTimeoutS) * time.Second
}

func (c *Config) GetPageDelayRange() (time.Duration, time.Duration) {
	return time.Duration(c.Crawl.PageDelayMinMS) * time.Millisecond,
		time.Duration(c.Crawl.PageDelayMaxMS) * time.Millisecond
}

func setInt(field *int, def int) {
	if *field == 0 {
		*field = def
	}
}

func setString(field *string, def string) {
	if *field == "" {
		*field = def
	}
}
