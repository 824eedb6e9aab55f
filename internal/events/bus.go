// Package events provides the in-process event bus that feeds the live
// dashboard stream.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	ScanStarted       EventType = "SCAN_STARTED"
	ScanCompleted     EventType = "SCAN_COMPLETED"
	FindingRecorded   EventType = "FINDING_RECORDED"
	AssessmentUpdated EventType = "ASSESSMENT_UPDATED"
	BackupCompleted   EventType = "BACKUP_COMPLETED"
	ErrorOccurred     EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Module    string                 `json:"module"`
	Data      map[string]interface{} `json:"data"`
}

// Bus fans events out to subscribers. Slow subscribers never block
// publishers: events are dropped when a subscriber's buffer is full.
type Bus struct {
	log         zerolog.Logger
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		log:         log.With().Str("service", "events").Logger(),
		subscribers: make(map[int]chan Event),
	}
}

// Publish emits an event to all subscribers
func (b *Bus) Publish(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Module:    module,
		Data:      data,
	}

	b.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		Msg("Event published")

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber buffer full, drop rather than block the publisher
		}
	}
}

// PublishError emits an error event
func (b *Bus) PublishError(module string, err error) {
	b.Publish(ErrorOccurred, module, map[string]interface{}{"error": err.Error()})
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The unsubscribe function closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subscribers[id] = ch
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(existing)
		}
	}

	return ch, unsubscribe
}

// SubscriberCount returns the number of active subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
