// Package logging provides the structured logger threaded through every
// worker, coordinator, and fetcher constructor as an explicit dependency:
// there is no package-global logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-profile zap logger; level controls the minimum
// emitted severity ("debug", "info", "warn", "error").
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// Noop returns a logger that discards everything, for tests that don't want
// log noise but still need a non-nil *zap.Logger dependency.
func Noop() *zap.Logger { return zap.NewNop() }
