package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventPipelineTransition EventType = "pipeline_transition"
	EventMainTabTransition  EventType = "maintab_transition"
	EventChatbotTransition  EventType = "chatbot_transition"
	EventSlotUpdated        EventType = "slot_updated"
	EventChatMessage        EventType = "chat_message"
	EventSessionCreated     EventType = "session_created"
	EventSessionExpired     EventType = "session_expired"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	// Subscribe registers a handler and returns its subscription id.
	Subscribe(eventType EventType, handler EventHandler) (string, error)

	// Unsubscribe removes the subscription with the given id.
	Unsubscribe(eventType EventType, subscriptionID string) error

	// Publish an event to all subscribers
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
