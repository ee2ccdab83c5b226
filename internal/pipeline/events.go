package pipeline

import (
	"encoding/json"
	"sync"
	"time"
)

// EventType represents the type of published event.
type EventType string

const (
	// EventSnapshot means a snapshot with a new version was published.
	EventSnapshot EventType = "snapshot"
	// EventChecked means a run finished but the data was unchanged.
	EventChecked EventType = "checked"
)

// Event is sent to page subscribers after every run.
type Event struct {
	Type      EventType `json:"type"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Outcome   string    `json:"outcome"`
	Message   string    `json:"message,omitempty"`
}

// EventBus fans run events out to SSE consumers. A new subscriber first
// receives the most recent event, so a page that (re)connects after a run
// still learns the current version.
type EventBus struct {
	events      chan Event
	subscribers map[chan Event]struct{}
	last        *Event
	mu          sync.RWMutex
	shutdown    chan struct{}
	once        sync.Once
}

// NewEventBus creates a new event bus with the specified buffer size.
func NewEventBus(bufferSize int) *EventBus {
	eb := &EventBus{
		events:      make(chan Event, bufferSize),
		subscribers: make(map[chan Event]struct{}),
		shutdown:    make(chan struct{}),
	}

	go eb.forward()

	return eb
}

func (eb *EventBus) forward() {
	for {
		select {
		case event, ok := <-eb.events:
			if !ok {
				return
			}
			eb.deliver(event)
		case <-eb.shutdown:
			return
		}
	}
}

// deliver records event as the latest and hands it to every subscriber.
// Sends happen under the lock so Unsubscribe never closes a channel mid-send.
// Slow subscribers miss events rather than stall the bus.
func (eb *EventBus) deliver(event Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ev := event
	eb.last = &ev
	for ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Publish publishes an event. It never blocks and drops events if the buffer is full.
func (eb *EventBus) Publish(event Event) {
	select {
	case <-eb.shutdown:
		return
	default:
	}
	select {
	case eb.events <- event:
	default:
	}
}

// Subscribe creates a new subscription channel, primed with the latest
// event if there is one.
func (eb *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 10)
	eb.mu.Lock()
	defer eb.mu.Unlock()

	select {
	case <-eb.shutdown:
		close(ch)
		return ch
	default:
	}
	if eb.last != nil {
		ch <- *eb.last
	}
	eb.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription channel and closes it.
func (eb *EventBus) Unsubscribe(ch chan Event) {
	eb.mu.Lock()
	if _, exists := eb.subscribers[ch]; exists {
		delete(eb.subscribers, ch)
		close(ch)
	}
	eb.mu.Unlock()
}

// Shutdown stops forwarding and closes all subscriber channels.
func (eb *EventBus) Shutdown() {
	eb.once.Do(func() {
		close(eb.shutdown)

		eb.mu.Lock()
		for ch := range eb.subscribers {
			close(ch)
		}
		eb.subscribers = make(map[chan Event]struct{})
		eb.mu.Unlock()
	})
}

// FormatSSEEvent formats an event as Server-Sent Events format.
func FormatSSEEvent(event Event) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return "event: " + string(event.Type) + "\ndata: " + string(data) + "\n\n", nil
}
