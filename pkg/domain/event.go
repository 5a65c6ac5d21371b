package domain

import "time"

// EventType names an event mirrored to external observers
type EventType string

const (
	EventTypeSourcesChanged   EventType = "sources.changed"
	EventTypeSessionsChanged  EventType = "sessions.changed"
	EventTypeHostConnected    EventType = "host.connected"
	EventTypeHostDisconnected EventType = "host.disconnected"
)

// Event is a host state change published on the event bus
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Host      string                 `json:"host"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
