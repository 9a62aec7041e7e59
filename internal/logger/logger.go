// Package logger provides structured JSON logging using slog.
package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for request ID.
	RequestIDKey contextKey = "request_id"
)

// RequestLog contains structured fields for request logging.
type RequestLog struct {
	Status         int     `json:"status"`
	Outcome        string  `json:"outcome"` // ok, invalid_input, method_not_allowed, misconfigured, upstream_error, internal_error
	Mode           string  `json:"mode,omitempty"`
	TagCount       int     `json:"tag_count,omitempty"`
	CacheStatus    string  `json:"cache_status,omitempty"` // hit, miss
	Fallback       bool    `json:"fallback,omitempty"`
	TotalLatencyMs float64 `json:"total_latency_ms"`
	UpstreamMs     float64 `json:"upstream_latency_ms,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// Logger wraps slog.Logger with additional functionality.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger with JSON output to stdout.
func New() *Logger {
	return NewWithLevel(slog.LevelInfo)
}

// NewWithLevel creates a new Logger with the specified log level.
func NewWithLevel(level slog.Level) *Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter creates a new Logger writing JSON lines to w.
func NewWithWriter(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a Logger that drops everything. Useful in tests.
func Discard() *Logger {
	return NewWithWriter(io.Discard, slog.LevelError+1)
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// WithRequestID returns a new Logger with the request ID attached.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With("request_id", requestID)
}

// GenerateRequestID creates a new unique request ID.
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "req-fallback"
	}
	return "req-" + hex.EncodeToString(bytes)
}

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// LogRequest logs a complete request with all fields from RequestLog.
// Server-side failures are logged at error level.
func (l *Logger) LogRequest(log RequestLog) {
	attrs := []any{
		"status", log.Status,
		"outcome", log.Outcome,
		"total_latency_ms", log.TotalLatencyMs,
	}
	if log.Mode != "" {
		attrs = append(attrs, "mode", log.Mode)
	}
	if log.TagCount > 0 {
		attrs = append(attrs, "tag_count", log.TagCount)
	}
	if log.CacheStatus != "" {
		attrs = append(attrs, "cache_status", log.CacheStatus)
	}
	if log.Fallback {
		attrs = append(attrs, "fallback", true)
	}
	if log.UpstreamMs > 0 {
		attrs = append(attrs, "upstream_latency_ms", log.UpstreamMs)
	}
	if log.Error != "" {
		attrs = append(attrs, "error", log.Error)
	}

	if log.Status >= 500 {
		l.Error("request completed", attrs...)
		return
	}
	l.Info("request completed", attrs...)
}

// LogUpstreamLatency logs how long the completion call took.
func (l *Logger) LogUpstreamLatency(statusCode int, latencyMs float64) {
	l.Debug("completion call finished",
		"upstream_status", statusCode,
		"upstream_latency_ms", latencyMs,
	)
}
