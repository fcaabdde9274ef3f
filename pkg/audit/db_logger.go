package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// DBLogger implements audit logging to PostgreSQL
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger and ensures the
// access_audit_logs table exists.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure access_audit_logs table: %w", err)
	}
	return logger, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS access_audit_logs (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		actor_id BIGINT,
		target_user_id BIGINT,
		family VARCHAR(50),
		entity_id BIGINT,
		capability VARCHAR(50),
		reason VARCHAR(50),
		request_id VARCHAR(100),
		message TEXT,
		metadata JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_access_audit_logs_timestamp ON access_audit_logs(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_access_audit_logs_actor_id ON access_audit_logs(actor_id);
	CREATE INDEX IF NOT EXISTS idx_access_audit_logs_entity ON access_audit_logs(family, entity_id);
	CREATE INDEX IF NOT EXISTS idx_access_audit_logs_event_type ON access_audit_logs(event_type);
	`

	_, err := l.db.Exec(query)
	return err
}

// Log writes one audit event to the database
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadataJSON []byte
	var err error
	if event.Metadata != nil {
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO access_audit_logs (
			timestamp, event_type, status,
			actor_id, target_user_id,
			family, entity_id, capability, reason,
			request_id, message, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = l.db.ExecContext(ctx, query,
		event.Timestamp, event.EventType, event.Status,
		event.ActorID, event.TargetUserID,
		event.Family, event.EntityID, event.Capability, event.Reason,
		event.RequestID, event.Message, nullableJSON(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// LogDenial records an access-control denial
func (l *DBLogger) LogDenial(ctx context.Context, actorID int64, family string, entityID int64, capability, reason string) error {
	event := newEvent(ctx, EventAccessDenied, EventStatusDenied)
	event.ActorID = &actorID
	event.Family = family
	event.EntityID = entityID
	event.Capability = capability
	event.Reason = reason
	event.Message = "access denied"
	return l.Log(ctx, event)
}

// LogMembershipChange records a membership mutation
func (l *DBLogger) LogMembershipChange(ctx context.Context, eventType EventType, actorID, targetUserID int64, family string, entityID int64, message string) error {
	event := newEvent(ctx, eventType, EventStatusSuccess)
	event.ActorID = &actorID
	event.TargetUserID = &targetUserID
	event.Family = family
	event.EntityID = entityID
	event.Message = message
	return l.Log(ctx, event)
}

// Close is a no-op for the database logger; the pool is owned elsewhere.
func (l *DBLogger) Close() error { return nil }

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
