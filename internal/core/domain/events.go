package domain

import "time"

type EventType string

const (
	EventSessionCreated       EventType = "session.created"
	EventSessionMatched       EventType = "session.matched"
	EventSessionStatusChanged EventType = "session.status_changed"
	EventSessionDeleted       EventType = "session.deleted"
)

type SessionEvent struct {
	Type       EventType     `json:"type"`
	InstanceID string        `json:"instance_id,omitempty"`
	SessionID  SessionID     `json:"session_id"`
	From       SessionStatus `json:"from,omitempty"`
	To         SessionStatus `json:"to,omitempty"`
	Trigger    Trigger       `json:"trigger,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}
