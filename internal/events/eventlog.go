// Package events provides the event log for the detention lifecycle engine.
// Every custody transition is recorded here as an immutable event; the
// websocket hub and the persistence layer both consume the same log.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventTypeTimeTick        EventType = "TIME_TICK"
	EventTypeArrestReported  EventType = "ARREST_REPORTED"
	EventTypeSentenceIssued  EventType = "SENTENCE_ISSUED"
	EventTypeFinePaid        EventType = "FINE_PAID"
	EventTypeBailOffered     EventType = "BAIL_OFFERED"
	EventTypeBailPaid        EventType = "BAIL_PAID"
	EventTypeCellAssigned    EventType = "CELL_ASSIGNED"
	EventTypeCellReleased    EventType = "CELL_RELEASED"
	EventTypeBookingStage    EventType = "BOOKING_STAGE"
	EventTypeBookingAborted  EventType = "BOOKING_ABORTED"
	EventTypeItemsStored     EventType = "ITEMS_STORED"
	EventTypeItemsIssued     EventType = "ITEMS_ISSUED"
	EventTypeItemsReturned   EventType = "ITEMS_RETURNED"
	EventTypeSentenceServed  EventType = "SENTENCE_SERVED"
	EventTypeReleaseStage    EventType = "RELEASE_STAGE"
	EventTypeReleaseStuck    EventType = "RELEASE_STUCK"
	EventTypeReleaseDone     EventType = "RELEASE_DONE"
	EventTypeParoleStarted   EventType = "PAROLE_STARTED"
	EventTypeParoleSearch    EventType = "PAROLE_SEARCH"
	EventTypeParoleViolation EventType = "PAROLE_VIOLATION"
	EventTypeParoleComplete  EventType = "PAROLE_COMPLETE"
	EventTypeParoleRevoked   EventType = "PAROLE_REVOKED"
	EventTypePresenceSpawn   EventType = "PRESENCE_SPAWN"
	EventTypePresenceDespawn EventType = "PRESENCE_DESPAWN"
	EventTypeUINotice        EventType = "UI_NOTICE"
)

// GameEvent represents an immutable record of a custody transition.
type GameEvent struct {
	ID          string      `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	Type        EventType   `json:"type"`
	ActorID     string      `json:"actor_id"`   // Officer or system component that acted
	SubjectID   string      `json:"subject_id"` // Detainee affected (optional)
	Payload     interface{} `json:"payload"`    // Event-specific data
	GameMinutes float64     `json:"game_minutes"`
}

// UINoticePayload carries fire-and-forget display requests to the
// presentation layer. The engine never consumes a reply.
type UINoticePayload struct {
	Kind    string      `json:"kind"` // JAIL_INFO, BAIL_PROMPT, PAROLE_STATUS, RELEASE_NOTICE, VIOLATION
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// EventLog is the in-memory append-only log of lifecycle events.
type EventLog struct {
	mu        sync.RWMutex
	events    []GameEvent
	persister EventPersister
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
	}
}

// Append adds a new event to the log. Events are immutable once appended.
func (el *EventLog) Append(event GameEvent) {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	persister := el.persister
	el.mu.Unlock()

	if persister != nil {
		// Write through to persistent storage off the hot path.
		go func(e GameEvent) {
			_ = persister.Append(e)
		}(event)
	}
}

// GetBySubject returns all events affecting a specific subject.
func (el *EventLog) GetBySubject(subjectID string) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.SubjectID == subjectID {
			result = append(result, e)
		}
	}
	return result
}

// GetByType returns all events of a given type.
func (el *EventLog) GetByType(t EventType) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns the full history of events for state reconstruction.
func (el *EventLog) Replay() []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.events
}

// Len returns the number of appended events.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
