package service

import (
	"sync"

	"meshscope/internal/devscan"
	"meshscope/internal/transport"
)

// EventType defines the type of event
type EventType string

const (
	EventDevscanStarted       EventType = devscan.EventStarted
	EventDevscanRequest       EventType = devscan.EventRequest
	EventDevscanResponse      EventType = devscan.EventResponse
	EventDevscanFailed        EventType = devscan.EventFailed
	EventDevscanUnresolvedHop EventType = devscan.EventUnresolvedHop
	EventDevscanHopCycle      EventType = devscan.EventHopCycle
	EventDevscanComplete      EventType = devscan.EventComplete
	EventDevscanError         EventType = "devscan-error"
	EventGraphUpdated         EventType = "graph-updated"
	EventTransportSent        EventType = transport.EventRequestSent
	EventTransportResponse    EventType = transport.EventResponse
	EventTransportFailed      EventType = transport.EventRequestFailed
	EventTransportTimeout     EventType = transport.EventRequestTimedOut
)

// Event represents an event that occurred in the system
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Unsubscribe removes a subscriber. The channel is not closed.
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}

// PublishDiscoveryEvent adapts the bus to the engine and transport publishers
func (eb *EventBus) PublishDiscoveryEvent(eventType string, payload interface{}) {
	eb.Publish(Event{Type: EventType(eventType), Payload: payload})
}

var (
	_ devscan.EventPublisher   = (*EventBus)(nil)
	_ transport.EventPublisher = (*EventBus)(nil)
)
