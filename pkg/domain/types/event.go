package types

import "fmt"

// EventAuthor identifies which side of the connection produced a push event
type EventAuthor string

const (
	EventAuthorServer EventAuthor = "server"
	EventAuthorClient EventAuthor = "client"
)

// IsValid checks if the event author is valid
func (a EventAuthor) IsValid() bool {
	switch a {
	case EventAuthorServer, EventAuthorClient:
		return true
	default:
		return false
	}
}

// String returns the string representation of the event author
func (a EventAuthor) String() string {
	return string(a)
}

// EventType classifies a push event envelope
type EventType string

const (
	EventTypeStatus     EventType = "status"
	EventTypeMessage    EventType = "message"
	EventTypeReaction   EventType = "reaction"
	EventTypeWelcome    EventType = "welcome"
	EventTypeUserJoined EventType = "user-joined"
)

// AllEventTypes returns all valid event types
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeStatus,
		EventTypeMessage,
		EventTypeReaction,
		EventTypeWelcome,
		EventTypeUserJoined,
	}
}

// IsValid checks if the event type is valid
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeStatus,
		EventTypeMessage,
		EventTypeReaction,
		EventTypeWelcome,
		EventTypeUserJoined:
		return true
	default:
		return false
	}
}

// String returns the string representation of the event type
func (t EventType) String() string {
	return string(t)
}

// ParseEventType parses a string into an EventType
func ParseEventType(s string) (EventType, error) {
	eventType := EventType(s)
	if !eventType.IsValid() {
		return "", fmt.Errorf("invalid event type: %s", s)
	}
	return eventType, nil
}
