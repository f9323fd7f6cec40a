package app

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerHonorsLevel(t *testing.T) {
	logger := NewLogger(&Config{LogLevel: "warn"})

	require.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}

func TestNewLoggerUnknownLevelFallsBackToInfo(t *testing.T) {
	logger := NewLogger(&Config{LogLevel: "verbose"})

	require.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	require.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}
