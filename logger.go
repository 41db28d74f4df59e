package trustedproxy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

// Supported log level names for Config.LogLevel.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type PluginLogger struct {
	logger     *slog.Logger
	pluginName string
}

func NewPluginLogger(ctx context.Context, pluginName, logLevel string) *PluginLogger {
	level := &slog.LevelVar{}

	switch strings.ToLower(logLevel) {
	case LogLevelDebug:
		level.Set(slog.LevelDebug)
	case LogLevelInfo, "":
		level.Set(slog.LevelInfo)
	case LogLevelWarn:
		level.Set(slog.LevelWarn)
	case LogLevelError:
		level.Set(slog.LevelError)
	default:
		slog.WarnContext(ctx, "Invalid log level, using info", slog.String("level", logLevel))
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{
		AddSource:   false,
		Level:       level,
		ReplaceAttr: replaceAttr,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)

	return &PluginLogger{
		logger:     slog.New(handler),
		pluginName: pluginName,
	}
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case error:
			return ErrorAttr(v)
		}
	default:
		return a
	}

	return a
}

func ErrorAttr(val any) slog.Attr {
	errMsg := fmt.Sprintf("%v", val)
	if err, ok := val.(error); ok {
		errMsg = err.Error()
	}

	stack := make([]byte, 4096)
	n := runtime.Stack(stack, false)

	return slog.Group("error",
		slog.String("exception.message", errMsg),
		slog.String("exception.stacktrace", fmt.Sprintf("%s", stack[:n])),
	)
}

func ErrorAttrWithoutStack(val any) slog.Attr {
	errMsg := fmt.Sprintf("%v", val)
	if err, ok := val.(error); ok {
		errMsg = err.Error()
	}

	return slog.Group("error",
		slog.String("exception.message", errMsg),
	)
}

// Log emits a log record with the current time and the given level and
// message, tagging every record with the instance name.
func (l *PluginLogger) Log(ctx context.Context, level slog.Level, msg string, args ...any) {
	args = append(args, slog.String("plugin", l.pluginName))
	l.logger.Log(ctx, level, msg, args...)
}

// Debug logs at [slog.LevelDebug].
func (l *PluginLogger) Debug(msg string, attrs ...any) {
	l.Log(context.Background(), slog.LevelDebug, msg, attrs...)
}

// Info logs at [slog.LevelInfo].
func (l *PluginLogger) Info(msg string, attrs ...any) {
	l.Log(context.Background(), slog.LevelInfo, msg, attrs...)
}

// Warn logs at [slog.LevelWarn].
func (l *PluginLogger) Warn(msg string, attrs ...any) {
	l.Log(context.Background(), slog.LevelWarn, msg, attrs...)
}

// Error logs at [slog.LevelError].
func (l *PluginLogger) Error(msg string, attrs ...any) {
	l.Log(context.Background(), slog.LevelError, msg, attrs...)
}

// DebugContext logs at [slog.LevelDebug] with the given context.
func (l *PluginLogger) DebugContext(ctx context.Context, msg string, attrs ...any) {
	l.Log(ctx, slog.LevelDebug, msg, attrs...)
}

// InfoContext logs at [slog.LevelInfo] with the given context.
func (l *PluginLogger) InfoContext(ctx context.Context, msg string, attrs ...any) {
	l.Log(ctx, slog.LevelInfo, msg, attrs...)
}

// WarnContext logs at [slog.LevelWarn] with the given context.
func (l *PluginLogger) WarnContext(ctx context.Context, msg string, attrs ...any) {
	l.Log(ctx, slog.LevelWarn, msg, attrs...)
}

// ErrorContext logs at [slog.LevelError] with the given context.
func (l *PluginLogger) ErrorContext(ctx context.Context, msg string, attrs ...any) {
	l.Log(ctx, slog.LevelError, msg, attrs...)
}
