package logger_i

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/akolanti/PageIndexAPI/internal/config"
)

type Logger struct {
	inner *slog.Logger
}

// Init installs the process-wide slog handler. JSON in production, text otherwise.
func Init(settings config.Settings) {
	InitWithWriter(os.Stdout, settings.LogLevel, settings.IsProd())
}

func InitWithWriter(w io.Writer, level slog.Level, json bool) {
	options := &slog.HandlerOptions{
		Level:     level,
		AddSource: json,
	}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, options)
	} else {
		handler = slog.NewTextHandler(w, options)
	}
	slog.SetDefault(slog.New(handler))
}

func NewLogger(section string) *Logger {
	return &Logger{
		inner: slog.Default().With("component", section),
	}
}

func (l *Logger) Info(msg string, args ...any) {
	l.inner.Info(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.inner.Error(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.inner.Warn(msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.inner.Debug(msg, args...)
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		inner: l.inner.With(args...),
	}
}

// WithContext attaches the request trace id when the context carries one.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if trace := TraceID(ctx); trace != "" {
		return l.With(config.TRACE_ID_KEY, trace)
	}
	return l
}

func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	trace, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return trace
}
