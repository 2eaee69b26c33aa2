package common

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel is the subset of zap levels the engine's config surface
// exposes; keeping it narrow avoids leaking zap's full level set into
// callers that only ever set "debug", "info", "warn", or "error".
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// NewLogger builds the process-wide *zap.Logger. Development mode
// (human-readable console encoding, debug level) is used when
// development is true; otherwise a production JSON encoder matching the
// teacher's config.InitLogger convention is used, at the given level.
func NewLogger(development bool, level LogLevel) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}

	zapLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	return cfg.Build()
}

func parseLevel(level LogLevel) (zapcore.Level, error) {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel, nil
	case LevelInfo, "":
		return zapcore.InfoLevel, nil
	case LevelWarn:
		return zapcore.WarnLevel, nil
	case LevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("common: unknown log level %q", level)
	}
}

// NewNop returns a logger that discards everything, for tests and
// components that are not wired to a real sink.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// Named returns a child logger scoped to component, the teacher's
// convention for per-subsystem log prefixes (order_book, repository,
// router, ...).
func Named(base *zap.Logger, component string) *zap.Logger {
	return base.Named(component)
}
