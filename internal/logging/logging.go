// Package logging provides structured logging for the edge gateway.
package logging

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for the request correlation id
	RequestIDKey contextKey = "request_id"
	// RoleKey is the context key for the session role
	RoleKey contextKey = "role"
	// ClientIPKey is the context key for the client network identity
	ClientIPKey contextKey = "client_ip"
)

// Logger wraps logrus with gateway-specific helpers
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a new logger for the given service
func New(service, level, format string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	return &Logger{Logger: l, service: service}
}

// WithContext returns an entry annotated with request id, role and client IP
// from the context, when present.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.WithField("service", l.service)
	if ctx == nil {
		return entry
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}
	if role := GetRole(ctx); role != "" {
		entry = entry.WithField("role", role)
	}
	if clientIP := GetClientIP(ctx); clientIP != "" {
		entry = entry.WithField("client_ip", clientIP)
	}
	return entry
}

// LogRequest logs a completed HTTP request
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	}).Info("HTTP request")
}

// LogSecurityEvent logs a security-relevant event such as a rate limit
// rejection or a role-gate denial.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, fields map[string]interface{}) {
	l.WithContext(ctx).WithField("event", event).WithFields(fields).Warn("Security event")
}

// fallbackCounter backs NewRequestID when the entropy source is unavailable
var fallbackCounter uint64

// NewRequestID generates a new request correlation id. It never fails: when
// the entropy source is unavailable it falls back to a time+counter composite.
func NewRequestID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		n := atomic.AddUint64(&fallbackCounter, 1)
		return fmt.Sprintf("fallback-%d-%d", time.Now().UnixNano(), n)
	}
	return id.String()
}

// WithRequestID returns a context carrying the request correlation id
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID extracts the request correlation id from context
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRole returns a context carrying the session role
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, RoleKey, role)
}

// GetRole extracts the session role from context
func GetRole(ctx context.Context) string {
	if v, ok := ctx.Value(RoleKey).(string); ok {
		return v
	}
	return ""
}

// WithClientIP returns a context carrying the client network identity
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}

// GetClientIP extracts the client network identity from context
func GetClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(ClientIPKey).(string); ok {
		return v
	}
	return ""
}
