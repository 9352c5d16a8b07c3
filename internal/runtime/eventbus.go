package runtime

import (
	"sync"
	"time"
)

// EventType represents the type of runtime event.
type EventType string

const (
	EventScenarioStart    EventType = "scenario_start"
	EventTurnStart        EventType = "turn_start"
	EventTurnEnd          EventType = "turn_end"
	EventToolCallStart    EventType = "tool_call_start"
	EventToolCallEnd      EventType = "tool_call_end"
	EventGuardViolation   EventType = "guard_violation"
	EventSnapshotLoaded   EventType = "snapshot_loaded"
	EventSnapshotFlushed  EventType = "snapshot_flushed"
	EventScenarioComplete EventType = "scenario_complete"
	EventScenarioError    EventType = "scenario_error"
)

// Event represents a runtime event with associated data.
type Event struct {
	Type       EventType
	Timestamp  time.Time
	ScenarioID string
	Data       map[string]interface{}
}

// EventHandler is a function that handles events.
type EventHandler func(Event)

// EventBus manages event publication and subscription. Handlers run
// synchronously on the publishing goroutine.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[EventType][]EventHandler
	allHandlers []EventHandler
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type.
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types.
func (eb *EventBus) SubscribeAll(handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allHandlers = append(eb.allHandlers, handler)
}

// Publish sends an event to all registered handlers.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, handler := range eb.handlers[event.Type] {
		handler(event)
	}

	for _, handler := range eb.allHandlers {
		handler(event)
	}
}

// PublishSimple is a convenience method for publishing events without additional data.
func (eb *EventBus) PublishSimple(eventType EventType, scenarioID string) {
	eb.Publish(Event{
		Type:       eventType,
		ScenarioID: scenarioID,
	})
}

// PublishWithData publishes an event with associated data.
func (eb *EventBus) PublishWithData(eventType EventType, scenarioID string, data map[string]interface{}) {
	eb.Publish(Event{
		Type:       eventType,
		ScenarioID: scenarioID,
		Data:       data,
	})
}
