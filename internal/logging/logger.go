// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

// CronLogger adapts zap to the cron.Logger interface. cron's Info lines are
// chatty (one per schedule tick), so they are emitted at debug level.
type CronLogger struct {
	sugar *zap.SugaredLogger
}

var _ cron.Logger = CronLogger{}

// NewCronLogger wraps logger for use with cron.WithLogger.
func NewCronLogger(logger *zap.Logger) CronLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return CronLogger{sugar: logger.Sugar()}
}

// Info logs routine scheduler messages.
func (l CronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Error logs scheduler errors, including recovered job panics.
func (l CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
