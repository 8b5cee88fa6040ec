// Package buildlog wires the core's structured logging. The teacher CLI
// logs ad hoc with log.Fatal/fmt.Fprintf for a single-shot invocation; this
// core is a long-lived, highly concurrent scheduler instead, so it adopts
// the pack's idiomatic choice for that shape of service — go.uber.org/zap,
// as seen throughout the service_layer and codenerd example repos.
package buildlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors the --log-level CLI flag.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// New constructs a zap.Logger configured for the given level. Development
// mode (human-readable, colorized) is used for LevelDebug; every other
// level gets the production JSON encoder, since build-core output is meant
// to be consumed by CI logs and reporter plugins as much as by a human
// terminal.
func New(level Level) (*zap.Logger, error) {
	var cfg zap.Config
	if level == LevelDebug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(level))
	return cfg.Build()
}

func toZapLevel(l Level) zapcore.Level {
	switch l {
	case LevelError:
		return zapcore.ErrorLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
