package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "verbose"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInit_ReplacesGlobal(t *testing.T) {
	require.NoError(t, Init(Config{Level: "debug", Encoding: "console"}))
	assert.True(t, Get().Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, Init(Config{Level: "warn"}))
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))
}

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	mu.Lock()
	globalLogger = zap.New(core)
	mu.Unlock()

	ctx := context.WithValue(context.Background(), RunIDKey, "run-42")
	ctx = context.WithValue(ctx, ConnectorKey, "mongodb")
	WithContext(ctx).Info("page fetched")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "run-42", fields["run_id"])
	assert.Equal(t, "mongodb", fields["connector"])
}

func TestLogServerNotice(t *testing.T) {
	tests := []struct {
		severity int
		level    zapcore.Level
	}{
		{severity: 0, level: zapcore.InfoLevel},
		{severity: 1, level: zapcore.WarnLevel},
		{severity: 9, level: zapcore.WarnLevel},
		{severity: 10, level: zapcore.InfoLevel},
		{severity: 16, level: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		core, logs := observer.New(zapcore.DebugLevel)
		LogServerNotice(zap.New(core), ServerNotice{Number: 50000, Severity: tt.severity, Message: "notice"})

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, tt.level, logs.All()[0].Level, "severity %d", tt.severity)
	}
}
