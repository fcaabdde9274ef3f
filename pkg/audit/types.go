package audit

import "time"

// EventType categorizes an audit event
type EventType string

const (
	// Access decisions
	EventAccessDenied EventType = "access.denied"

	// Membership mutations
	EventMemberAdded       EventType = "member.added"
	EventMemberRoleChanged EventType = "member.role_changed"
	EventMemberRemoved     EventType = "member.removed"
	EventMemberCommentSet  EventType = "member.comment_set"
)

// EventStatus is the outcome of the audited operation
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is one audit trail record. ActorID is nil for system-initiated
// events. Reason carries the resolver's reason code; it is never put in
// client-visible messages.
type Event struct {
	ID        int64       `json:"id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	ActorID      *int64 `json:"actor_id,omitempty"`
	TargetUserID *int64 `json:"target_user_id,omitempty"`

	Family     string `json:"family,omitempty"`
	EntityID   int64  `json:"entity_id,omitempty"`
	Capability string `json:"capability,omitempty"`
	Reason     string `json:"reason,omitempty"`

	RequestID string                 `json:"request_id,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
