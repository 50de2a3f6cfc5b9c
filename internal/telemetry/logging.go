package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Форматы вывода логов.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// LogConfig — параметры логгера.
type LogConfig struct {
	Level   string    // DEBUG, INFO, WARN, ERROR (default: INFO)
	Format  string    // json | text (default: json)
	Service string    // добавляется атрибутом service, если задан
	Output  io.Writer // default: os.Stdout
}

// ParseLevel разбирает уровень логирования без учёта регистра.
// Пустая строка — INFO.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "INFO":
		return slog.LevelInfo, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// NewLogger создаёт логгер по конфигурации.
// Неизвестный уровень трактуется как INFO, неизвестный формат как json.
func NewLogger(cfg LogConfig) *slog.Logger {
	level, _ := ParseLevel(cfg.Level)

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, FormatText) {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	return logger
}

// SetupLogger создаёт логгер и делает его глобальным.
func SetupLogger(cfg LogConfig) *slog.Logger {
	logger := NewLogger(cfg)
	slog.SetDefault(logger)
	return logger
}

type loggerKey struct{}

// WithLogger кладёт логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext достаёт логгер из контекста или возвращает глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithRunID — логгер с атрибутом run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithBlock — логгер с атрибутами block_id и block_type.
func WithBlock(logger *slog.Logger, blockID, blockType string) *slog.Logger {
	return logger.With("block_id", blockID, "block_type", blockType)
}

// Discard — логгер, который ничего не пишет.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
