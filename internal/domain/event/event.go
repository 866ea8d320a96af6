package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event about one service request
type Event struct {
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	RequestID string      `json:"request_id"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	// Origin names the process that produced the event; empty for local events
	Origin string `json:"origin,omitempty"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, requestID string, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		RequestID: requestID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// WithOrigin returns a copy of the event stamped with origin
func (e *Event) WithOrigin(origin string) *Event {
	cp := *e
	cp.Origin = origin
	return &cp
}

// IsRemote reports whether the event arrived from another process
func (e *Event) IsRemote() bool {
	return e.Origin != ""
}

// HandledPayload is the data of a request_handled event
type HandledPayload struct {
	Request       interface{} `json:"request"`
	Handling      interface{} `json:"handling"`
	RequiresHuman bool        `json:"requiresHuman"`
}

// AbortedPayload is the data of a request_aborted event
type AbortedPayload struct {
	Request interface{} `json:"request"`
	Reason  string      `json:"reason"`
}
