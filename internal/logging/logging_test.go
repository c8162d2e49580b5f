package logging_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"pagetally/internal/config"
	"pagetally/internal/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, logging.ParseLevel(tt.in))
		})
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	cfg := &config.Config{AppName: "pagetally", Environment: config.Test, LogLevel: config.LogLevelWarn}
	logger := logging.NewLogger(cfg)

	assert.False(t, logger.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, logger.Enabled(t.Context(), slog.LevelWarn))
}
