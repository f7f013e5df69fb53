// Package observability carries the structured logger and tracer shared by
// respview components.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/term"
)

// Logger is a structured logger for respview components
type Logger struct {
	*slog.Logger
}

// Options control logger construction.
type Options struct {
	Level  slog.Level
	Format string // json, text or auto
	Output io.Writer
}

// NewLogger creates a new structured logger
func NewLogger(component string, opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if resolveFormat(opts.Format, out) == "text" {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	logger := slog.New(handler).With(
		slog.String("component", component),
		slog.String("system", "respview"),
	)
	return &Logger{Logger: logger}
}

// NewNop returns a logger that drops everything.
func NewNop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func resolveFormat(format string, out io.Writer) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return "json"
	case "text":
		return "text"
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "text"
	}
	return "json"
}

// ParseLevel maps a config string onto a slog level. Unknown values are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component returns a child logger with a different component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("component", name))}
}

// WithContext returns a logger carrying the trace and span ids of ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return l
	}
	return &Logger{
		Logger: l.Logger.With(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		),
	}
}

// WithSession returns a logger with session-specific fields
func (l *Logger) WithSession(sessionID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(
			slog.String("session_id", sessionID),
		),
	}
}

// WithDevice returns a logger with device-specific fields
func (l *Logger) WithDevice(deviceID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(
			slog.String("device_id", deviceID),
		),
	}
}

// WithConn returns a logger tagged with a UI connection id
func (l *Logger) WithConn(connID, channel string) *Logger {
	return &Logger{
		Logger: l.Logger.With(
			slog.String("conn_id", connID),
			slog.String("channel", channel),
		),
	}
}

// SessionStarted logs a successful session start
func (l *Logger) SessionStarted(sessionID, url string, devices []string) {
	l.Info("session started",
		slog.String("session_id", sessionID),
		slog.String("url", url),
		slog.Any("devices", devices),
	)
}

// SessionStopped logs the end of a session teardown
func (l *Logger) SessionStopped(sessionID string, elapsed time.Duration, err error) {
	attrs := []any{
		slog.String("session_id", sessionID),
		slog.Duration("elapsed", elapsed),
	}
	if err != nil {
		l.Warn("session stopped with errors", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	l.Info("session stopped", attrs...)
}

// ProvisionFailed logs a session that could not be started
func (l *Logger) ProvisionFailed(sessionID string, err error) {
	l.Error("session provisioning failed",
		slog.String("session_id", sessionID),
		slog.String("error", err.Error()),
	)
}

// CaptureFailed logs a failed capture for one device
func (l *Logger) CaptureFailed(deviceID string, err error) {
	l.Warn("capture failed",
		slog.String("device_id", deviceID),
		slog.String("error", err.Error()),
	)
}

// TeardownStep logs the outcome of one teardown step
func (l *Logger) TeardownStep(step string, err error) {
	if err != nil {
		l.Warn("teardown step failed",
			slog.String("step", step),
			slog.String("error", err.Error()),
		)
		return
	}
	l.Debug("teardown step done", slog.String("step", step))
}

// MessageFailed logs a failure caught at the message router boundary
func (l *Logger) MessageFailed(messageType string, err error) {
	l.Error("message handling failed",
		slog.String("message_type", messageType),
		slog.String("error", err.Error()),
	)
}

// TickSkipped logs a capture tick dropped because one was still in flight
func (l *Logger) TickSkipped(sessionID string) {
	l.Debug("capture tick skipped",
		slog.String("session_id", sessionID),
	)
}
