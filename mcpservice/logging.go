package mcpservice

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ggoodman/aem-mcp-server-go/mcp"
)

// ErrInvalidLoggingLevel indicates the provided level is not one of the
// protocol-defined LoggingLevel values.
var ErrInvalidLoggingLevel = errors.New("invalid logging level")

// NewSlogLevelVarLogging returns a LoggingCapability that maps protocol
// logging levels onto lv. Handlers built from the same LevelVar pick up the
// change immediately.
func NewSlogLevelVarLogging(lv *slog.LevelVar) LoggingCapability {
	return &slogLevelVarLogging{lv: lv}
}

type slogLevelVarLogging struct{ lv *slog.LevelVar }

func (l *slogLevelVarLogging) SetLevel(ctx context.Context, level mcp.LoggingLevel) error {
	if !mcp.IsValidLoggingLevel(level) {
		return ErrInvalidLoggingLevel
	}
	if l == nil || l.lv == nil {
		return nil
	}
	l.lv.Set(SlogLevel(level))
	return nil
}

// SlogLevel maps a protocol level to the nearest slog level. Notice folds
// into info; everything above error folds into error.
func SlogLevel(level mcp.LoggingLevel) slog.Level {
	switch level {
	case mcp.LoggingLevelDebug:
		return slog.LevelDebug
	case mcp.LoggingLevelWarning:
		return slog.LevelWarn
	case mcp.LoggingLevelError, mcp.LoggingLevelCritical, mcp.LoggingLevelAlert, mcp.LoggingLevelEmergency:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
