// Package logging builds the zap loggers used by the quip-export command and
// adapts them to the client's RequestLogger interface.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	quip "github.com/JimmyFromTheEarth/quip-export"
)

// New returns a console logger writing to stderr at the given level
// ("debug", "info", "warn", "error").
func New(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	cfg.Sampling = nil

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

// RequestLogger forwards client log lines to a zap logger.
type RequestLogger struct {
	sugar *zap.SugaredLogger
}

var _ quip.RequestLogger = (*RequestLogger)(nil)

func NewRequestLogger(logger *zap.Logger) *RequestLogger {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RequestLogger{
		sugar: logger.Named("quip").WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
}

func (l *RequestLogger) Errorf(format string, v ...any) {
	l.sugar.Errorf(format, v...)
}

func (l *RequestLogger) Warnf(format string, v ...any) {
	l.sugar.Warnf(format, v...)
}

func (l *RequestLogger) Infof(format string, v ...any) {
	l.sugar.Infof(format, v...)
}

func (l *RequestLogger) Debugf(format string, v ...any) {
	l.sugar.Debugf(format, v...)
}
