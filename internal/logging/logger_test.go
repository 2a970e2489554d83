// Package logging includes tests for the zap logger helpers.
package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

func TestCronLoggerLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	cl := NewCronLogger(zap.New(core))

	cl.Info("wake", "now", "12:00")
	cl.Error(errors.New("boom"), "panic", "job", 1)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	require.Equal(t, zapcore.DebugLevel, entries[0].Level)
	require.Equal(t, "wake", entries[0].Message)
	require.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	require.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestNewCronLoggerNil(t *testing.T) {
	t.Parallel()

	require.NotPanics(t, func() {
		NewCronLogger(nil).Info("noop")
	})
}
