package events

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/SAP-F-2025/randomized-assessment/internal/mapping"
	"github.com/SAP-F-2025/randomized-assessment/internal/models"
)

// EventType represents different types of session events
type EventType string

const (
	EventMappingsEstablished EventType = "session.mappings_established"
	EventAnswersChanged      EventType = "session.answers_changed"
	EventSessionSubmitted    EventType = "session.submitted"
	EventSessionAbandoned    EventType = "session.abandoned"
)

const (
	eventSource  = "randomized-assessment"
	eventVersion = "1.0"
)

// SessionEvent is the envelope for events leaving the process
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	SessionID string                 `json:"session_id"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// MappingsEstablishedEvent carries the ordering of one exam session.
type MappingsEstablishedEvent struct {
	SessionID string           `json:"session_id"`
	Mappings  mapping.Snapshot `json:"mappings"`
}

// AnswersChangedEvent carries the canonical answers after a genuine change.
// Sequence increases with every emission of a session; receivers drop
// anything older than what they already applied.
type AnswersChangedEvent struct {
	SessionID string                 `json:"session_id"`
	Sequence  uint64                 `json:"sequence"`
	Answers   models.FormattedAnswer `json:"answers"`
	Answered  int                    `json:"answered"`
	Total     int                    `json:"total"`
}

type SessionClosedEvent struct {
	SessionID    string                 `json:"session_id"`
	AssessmentID string                 `json:"assessment_id"`
	Answers      models.FormattedAnswer `json:"answers,omitempty"`
	ClosedAt     time.Time              `json:"closed_at"`
}

// Event factory functions

func NewAnswersChangedEvent(ev AnswersChangedEvent) *SessionEvent {
	return newSessionEvent(EventAnswersChanged, ev.SessionID, ev)
}

func NewSessionSubmittedEvent(sessionID, assessmentID string, answers models.FormattedAnswer) *SessionEvent {
	return newSessionEvent(EventSessionSubmitted, sessionID, SessionClosedEvent{
		SessionID:    sessionID,
		AssessmentID: assessmentID,
		Answers:      answers,
		ClosedAt:     time.Now(),
	})
}

func NewSessionAbandonedEvent(sessionID, assessmentID string) *SessionEvent {
	return newSessionEvent(EventSessionAbandoned, sessionID, SessionClosedEvent{
		SessionID:    sessionID,
		AssessmentID: assessmentID,
		ClosedAt:     time.Now(),
	})
}

func newSessionEvent(t EventType, sessionID string, data interface{}) *SessionEvent {
	return &SessionEvent{
		ID:        watermill.NewUUID(),
		Type:      t,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   eventVersion,
		SessionID: sessionID,
		Data:      data,
	}
}
