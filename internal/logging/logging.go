// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"pagetally/internal/config"
)

// NewLogger returns a JSON logger writing to stdout and, outside of tests,
// to a size-rotated file under the configured logs directory.
func NewLogger(cfg *config.Config) *slog.Logger {
	var out io.Writer = os.Stdout
	if !cfg.IsTest() && cfg.LogsDirectory != "" {
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogsDirectory, cfg.AppName+".log"),
			MaxSize:    cfg.LogsMaxSizeInMb,
			MaxBackups: cfg.LogsMaxBackups,
			MaxAge:     cfg.LogsMaxAgeInDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: ParseLevel(string(cfg.LogLevel))})
	return slog.New(handler).With(slog.String("app", cfg.AppName))
}

// ParseLevel maps a configured level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
