// Package logging builds the application logger: structured slog output
// with size-based rotation of the log file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"pagebeacon/internal/config"
)

// NewLogger creates a slog.Logger according to the application config.
// Logs are written as JSON to a rotating file; in development and test
// they are mirrored to stdout as text.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.GetLogLevel())

	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogsDirectory, cfg.AppName+".log"),
		MaxSize:    cfg.LogsMaxSizeInMb,
		MaxBackups: cfg.LogsMaxBackups,
		MaxAge:     cfg.LogsMaxAgeInDays,
		Compress:   true,
	}

	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(rotating, &slog.HandlerOptions{Level: level})
	} else {
		writer := io.MultiWriter(rotating, os.Stdout)
		handler = slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch level {
	case string(config.LogLevelDebug):
		return slog.LevelDebug
	case string(config.LogLevelWarn):
		return slog.LevelWarn
	case string(config.LogLevelError):
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
