package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func Test_newLoggerConfig(t *testing.T) {
	lcfg := newLoggerConfig("", zapcore.InfoLevel)
	assert.Equal(t, zapcore.InfoLevel, lcfg.Level.Level())
	assert.Equal(t, []string{"stderr"}, lcfg.OutputPaths)

	lcfg = newLoggerConfig("node.log", zapcore.DebugLevel)
	assert.Equal(t, zapcore.DebugLevel, lcfg.Level.Level())
	assert.Equal(t, []string{"stderr", "node.log"}, lcfg.OutputPaths)
}

func Test_slogFrom(t *testing.T) {
	logger, err := newLoggerConfig("", zapcore.WarnLevel).Build()
	require.NoError(t, err)

	slogger := slogFrom(logger)
	assert.False(t, slogger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, slogger.Enabled(context.Background(), slog.LevelError))
}
