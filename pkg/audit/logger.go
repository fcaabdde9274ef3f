package audit

import (
	"context"
	"time"

	"github.com/cairnhq/cairn/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log writes one audit event
	Log(ctx context.Context, event *Event) error

	// LogDenial records an access-control denial with its reason code
	LogDenial(ctx context.Context, actorID int64, family string, entityID int64, capability, reason string) error

	// LogMembershipChange records a membership mutation
	LogMembershipChange(ctx context.Context, eventType EventType, actorID, targetUserID int64, family string, entityID int64, message string) error

	// Close flushes and releases the logger
	Close() error
}

// contextKey is the type for context keys
type contextKey string

// loggerKey is the context key for the audit logger
const loggerKey contextKey = "audit_logger"

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the audit logger from context, or a no-op
// logger when none is set.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey).(Logger); ok {
		return logger
	}
	return &noOpLogger{}
}

// newEvent builds an event with the shared fields populated
func newEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.RequestID(ctx),
	}
}

// noOpLogger is used when no audit logger is configured
type noOpLogger struct{}

func (l *noOpLogger) Log(ctx context.Context, event *Event) error { return nil }

func (l *noOpLogger) LogDenial(ctx context.Context, actorID int64, family string, entityID int64, capability, reason string) error {
	return nil
}

func (l *noOpLogger) LogMembershipChange(ctx context.Context, eventType EventType, actorID, targetUserID int64, family string, entityID int64, message string) error {
	return nil
}

func (l *noOpLogger) Close() error { return nil }
