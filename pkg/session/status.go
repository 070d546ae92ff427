package session

import "time"

// SaveState is the outcome of the latest persist attempt.
type SaveState string

const (
	SaveIdle   SaveState = "idle"
	SaveSaving SaveState = "saving"
	SaveSaved  SaveState = "saved"
	SaveError  SaveState = "error"
)

// Status reports the latest persist attempt of a session.
type Status struct {
	State   SaveState `json:"state"`
	Version string    `json:"version,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at,omitzero"`
}

// EventType names a session notification.
type EventType string

const (
	EventChanged   EventType = "changed"
	EventSaved     EventType = "saved"
	EventFailed    EventType = "failed"
	EventPublished EventType = "published"
)

// Event is delivered to observers after mutations and persist attempts.
type Event struct {
	Type      EventType `json:"type"`
	ProjectID string    `json:"project_id"`
	Version   string    `json:"version,omitempty"`
	ChangeLog []string  `json:"change_log,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Observer receives events synchronously; it must not block.
type Observer func(Event)
