package eventbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EventSchemaVersion is the current session event version.
const EventSchemaVersion = 1

// EventType names a session state change.
type EventType string

const (
	EventPhaseChanged      EventType = "phase.changed"
	EventComposing         EventType = "composing"
	EventMessageAppended   EventType = "message.appended"
	EventNodesUpdated      EventType = "nodes.updated"
	EventGateChanged       EventType = "gate.changed"
	EventReviewOpened      EventType = "review.opened"
	EventSummaryStored     EventType = "summary.stored"
	EventSystemOperational EventType = "system.operational"
	EventSessionClosed     EventType = "session.closed"
)

// Event is a notification published by a war room session. Subscribers
// treat it as a hint to re-read the session snapshot; Detail carries a short
// human-readable description for logs.
type Event struct {
	Version   int             `json:"version"`
	EventID   string          `json:"event_id"`
	Sequence  int64           `json:"sequence"`
	Type      EventType       `json:"type"`
	SessionID string          `json:"session_id"`
	Phase     string          `json:"phase"`
	Time      time.Time       `json:"time"`
	Detail    string          `json:"detail,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Normalize applies defaults and canonical formatting before validation.
func (e *Event) Normalize() {
	if e == nil {
		return
	}
	if e.Version == 0 {
		e.Version = EventSchemaVersion
	}
	e.EventID = strings.TrimSpace(e.EventID)
	e.Type = EventType(strings.TrimSpace(string(e.Type)))
	e.SessionID = strings.TrimSpace(e.SessionID)
	if !e.Time.IsZero() {
		e.Time = e.Time.UTC()
	}
}

// Validate enforces the fields the router depends on.
func (e Event) Validate() error {
	if e.Version != EventSchemaVersion {
		return fmt.Errorf("version %d not supported", e.Version)
	}
	if e.EventID == "" {
		return errors.New("event_id is required")
	}
	if e.Type == "" {
		return errors.New("type is required")
	}
	if e.SessionID == "" {
		return errors.New("session_id is required")
	}
	return nil
}

// Publisher accepts session events.
type Publisher interface {
	Publish(Event)
}

// PublisherFunc adapts a function into a Publisher.
type PublisherFunc func(Event)

// Publish executes f(e).
func (f PublisherFunc) Publish(e Event) {
	if f != nil {
		f(e)
	}
}

// Discard drops every event.
var Discard Publisher = PublisherFunc(nil)
