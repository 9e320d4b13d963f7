package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"business-news-scraper/internal/observability"
)

// GracefulShutdown возвращает context, который отменяется по SIGINT/SIGTERM.
// Второй сигнал завершает процесс сразу
func GracefulShutdown(parent context.Context, logger *observability.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	// Канал для сигналов ОС
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
			signal.Stop(sigChan)
			return
		}

		sig := <-sigChan
		logger.Warn("Second signal received, exiting", "signal", sig.String())
		os.Exit(1)
	}()

	return ctx, cancel
}
