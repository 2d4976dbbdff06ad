package logging

import (
	"context"
	"errors"
	"testing"

	"leverage_planner/pkg/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{" warn ", zapcore.WarnLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	l, err := New(Options{})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestConvertToZapFields(t *testing.T) {
	l := NewNop()
	fields := l.convertToZapFields([]interface{}{"a", 1, 2, "b", "err", errors.New("boom"), "dangling"})
	require.Len(t, fields, 3)
	assert.Equal(t, "a", fields[0].Key)
	assert.Equal(t, "2", fields[1].Key)
	assert.Equal(t, "err", fields[2].Key)
	assert.Equal(t, zapcore.ErrorType, fields[2].Type)
}

func TestZapLogger_OTelBridge(t *testing.T) {
	tel, err := telemetry.Setup("test-logger")
	require.NoError(t, err)
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()

	logger, err := NewZapLogger("DEBUG")
	require.NoError(t, err)

	scoped := logger.WithField("component", "test").WithFields(map[string]interface{}{"protocol": "aave_v3"})
	scoped.Info("bridged entry", "key", "value")
	scoped.Debug("debug entry", "status", "testing")

	_ = logger.Sync()
}

func TestGlobalLogger(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	l := NewNop()
	SetGlobalLogger(l)
	assert.Same(t, l, GetGlobalLogger())
}
