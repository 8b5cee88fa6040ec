package buildapi

import (
	"go.uber.org/zap"

	"github.com/please-build/js-build-core/internal/buildlog"
)

func buildLogger(level string) (*zap.Logger, error) {
	return buildlog.New(levelFromString(level))
}

func levelFromString(level string) buildlog.Level {
	switch level {
	case "debug":
		return buildlog.LevelDebug
	case "warn":
		return buildlog.LevelWarn
	case "error":
		return buildlog.LevelError
	default:
		return buildlog.LevelInfo
	}
}
