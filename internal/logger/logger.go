// Package logger exposes a zap logger with log levels.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LevelInfo  = "info"
	LevelDebug = "debug"

	// LevelNone disables logging.
	LevelNone = "none"
)

// Get returns a zap logger writing to stderr at the given level.
func Get(level string) (*zap.Logger, error) {
	if level == "" || level == LevelNone {
		return zap.NewNop(), nil
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// MustGet is Get that panics on an unknown level.
func MustGet(level string) *zap.Logger {
	l, err := Get(level)
	if err != nil {
		panic(err)
	}
	return l
}
