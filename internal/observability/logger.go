package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger - структурный логгер с API ключ/значение поверх slog.
type Logger struct {
	internal *slog.Logger
	closer   io.Closer
}

// Options задаёт ротацию файла логов. Пустой Path - только stdout.
type Options struct {
	Path       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func NewLogger(logPath, logLevel string) *Logger {
	return New(Options{Path: logPath, Level: logLevel})
}

// New создаёт логгер, пишущий JSON в stdout и (если задан путь) в файл с ротацией
func New(opts Options) *Logger {
	var out io.Writer = os.Stdout
	var closer io.Closer

	if opts.Path != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 14),
			Compress:   opts.Compress,
		}
		out = io.MultiWriter(os.Stdout, rotating)
		closer = rotating
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parseLevel(opts.Level)})
	return &Logger{internal: slog.New(handler), closer: closer}
}

// Discard возвращает логгер, который ничего не пишет (для тестов)
func Discard() *Logger {
	return &Logger{internal: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (l *Logger) With(fields ...interface{}) *Logger {
	return &Logger{internal: l.internal.With(fields...), closer: l.closer}
}

func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.internal.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	l.internal.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.internal.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...interface{}) {
	l.internal.Error(msg, fields...)
}

// Close закрывает файл ротации, если он открыт
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
