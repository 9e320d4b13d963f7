package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"business-news-scraper/internal/config"
	"business-news-scraper/internal/observability"
)

// Job - один прогон; ошибка логируется планировщиком и не останавливает его
type Job func(ctx context.Context) error

// Scheduler запускает Job однократно, с интервалом или по cron.
// Два прогона никогда не идут одновременно
type Scheduler struct {
	cfg    config.SchedulerConfig
	job    Job
	logger *observability.Logger
}

func NewScheduler(cfg config.SchedulerConfig, job Job, logger *observability.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, job: job, logger: logger}
}

// Run блокирует до завершения oneshot-прогона или отмены ctx
func (s *Scheduler) Run(ctx context.Context) error {
	switch s.cfg.Mode {
	case "", "oneshot":
		return s.job(ctx)
	case "interval":
		return s.runInterval(ctx, time.Duration(s.cfg.IntervalS)*time.Second)
	case "cron":
		return s.runCron(ctx)
	}
	return fmt.Errorf("unknown scheduler mode %q", s.cfg.Mode)
}

func (s *Scheduler) runInterval(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler interval must be > 0")
	}

	s.logger.Info("Interval scheduler started", "interval", interval.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.runJob(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("Interval scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runCron(ctx context.Context) error {
	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(s.cfg.CronExpr, func() { s.runJob(ctx) }); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	c.Start()
	s.logger.Info("Cron scheduler started", "schedule", s.cfg.CronExpr)

	<-ctx.Done()
	// Stop ждёт завершения текущего прогона
	<-c.Stop().Done()
	s.logger.Info("Cron scheduler stopped")
	return nil
}

func (s *Scheduler) runJob(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.job(ctx); err != nil {
		s.logger.Error("Scheduled run failed", "error", err.Error())
	}
}

// cronLogger - адаптер observability.Logger под cron.Logger
type cronLogger struct {
	logger *observability.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
