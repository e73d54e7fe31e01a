// Package bus carries run events from the orchestrator to whoever renders
// them (the CLI progress line, metrics, tests).
package bus

import (
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Event is one notification emitted during a run.
type Event struct {
	Type      string    // one of the Event* constants
	RunID     string    // run that produced the event
	Payload   any       // event-specific value, see the constants below
	Timestamp time.Time // set on Emit when zero
}

// EventHandler is a callback for events.
type EventHandler func(Event)

// EventBus is a synchronous topic-based publish/subscribe bus. Handlers run
// in registration order on the emitting goroutine, so a subscriber sees
// events in exactly the order the run produced them.
type EventBus struct {
	handlers map[string][]namedHandler
	mu       sync.Mutex
	logger   *slog.Logger
	nextID   int
}

type namedHandler struct {
	ID      string
	Handler EventHandler
}

func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{
		handlers: make(map[string][]namedHandler),
		logger:   logger,
	}
}

// On registers a handler for the given event type.
// Use "*" to listen to all events. Returns the handler ID for unsubscription.
func (eb *EventBus) On(eventType string, handler EventHandler) string {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	id := eventType + "-" + strconv.Itoa(eb.nextID)
	eb.handlers[eventType] = append(eb.handlers[eventType], namedHandler{ID: id, Handler: handler})
	return id
}

// Off removes a handler by its ID.
func (eb *EventBus) Off(eventType, handlerID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	handlers := eb.handlers[eventType]
	for i, h := range handlers {
		if h.ID == handlerID {
			eb.handlers[eventType] = append(handlers[:i], handlers[i+1:]...)
			return
		}
	}
}

// Emit publishes an event to all registered handlers. A panicking handler
// is logged and does not stop the others.
func (eb *EventBus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.Lock()
	handlers := make([]namedHandler, 0, len(eb.handlers[event.Type])+len(eb.handlers["*"]))
	handlers = append(handlers, eb.handlers[event.Type]...)
	handlers = append(handlers, eb.handlers["*"]...)
	eb.mu.Unlock()

	for _, h := range handlers {
		func(nh namedHandler) {
			defer func() {
				if r := recover(); r != nil {
					eb.logger.Error("event handler panic", "event", event.Type, "handler", nh.ID, "panic", r)
				}
			}()
			nh.Handler(event)
		}(h)
	}
}

// --- Run event types and their payloads ---
const (
	EventRunState            = "run.state"            // string state name
	EventAttachmentValidated = "attachment.validated" // domain.Attachment
	EventDeliveryOutcome     = "delivery.outcome"     // domain.DeliveryOutcome
	EventDeliveryProgress    = "delivery.progress"    // domain.RunProgress
	EventResourceWarning     = "resource.warning"     // error
	EventRunCompleted        = "run.completed"        // domain.Summary
)
