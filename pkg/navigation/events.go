package navigation

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
	"github.com/varunjain2021/guido-1-sub002/pkg/util"
)

type EventKind string

const (
	EventStarted           EventKind = "started"
	EventInitialDirections EventKind = "initial_directions"
	EventApproachingTurn   EventKind = "approaching_turn"
	EventRerouting         EventKind = "rerouting"
	EventArrived           EventKind = "arrived"
	EventCancelled         EventKind = "cancelled"
	EventError             EventKind = "error"
	EventWarning           EventKind = "warning"
)

// Event is published to the UI layer. The concrete types are the Event suffixed
// structs in this file.
type Event interface {
	Kind() EventKind
	SpokenText() string
}

// StepDescriptor is a step together with the distance left to reach it
type StepDescriptor struct {
	Index          int                `json:"index"`
	Instruction    string             `json:"instruction"`
	RoadName       string             `json:"road_name,omitempty"`
	Maneuver       string             `json:"maneuver,omitempty"`
	Coordinate     journey.Coordinate `json:"coordinate"`
	DistanceMeters int                `json:"distance_meters"`
}

func newStepDescriptor(step Step, distanceMeters int) StepDescriptor {
	return StepDescriptor{
		Index:          step.Index,
		Instruction:    step.Instruction,
		RoadName:       step.RoadName,
		Maneuver:       step.Maneuver,
		Coordinate:     step.Coordinate,
		DistanceMeters: distanceMeters,
	}
}

type StartedEvent struct {
	Journey *journey.Journey `json:"journey"`
}

func (StartedEvent) Kind() EventKind { return EventStarted }

func (e StartedEvent) SpokenText() string {
	destination := e.Journey.Destination.DisplayName()
	if e.Journey.RouteSummary == nil {
		return fmt.Sprintf("Starting navigation to %s.", destination)
	}

	return fmt.Sprintf("Starting navigation to %s. %s, about %s.", destination,
		journey.FormatDistance(e.Journey.RouteSummary.DistanceMeters),
		journey.FormatDuration(e.Journey.RouteSummary.DurationSeconds))
}

type InitialDirectionsEvent struct {
	Current StepDescriptor  `json:"current"`
	Next    *StepDescriptor `json:"next,omitempty"`
}

func (InitialDirectionsEvent) Kind() EventKind { return EventInitialDirections }

func (e InitialDirectionsEvent) SpokenText() string {
	text := SpokenInstruction(e.Current.Instruction, e.Current.DistanceMeters)
	if e.Next == nil || e.Next.Instruction == "" {
		return text
	}

	return fmt.Sprintf("%s, then %s", text, util.LowerFirst(e.Next.Instruction))
}

type ApproachingTurnEvent struct {
	Step           StepDescriptor `json:"step"`
	DistanceMeters int            `json:"distance_meters"`
}

func (ApproachingTurnEvent) Kind() EventKind { return EventApproachingTurn }

func (e ApproachingTurnEvent) SpokenText() string {
	return SpokenInstruction(e.Step.Instruction, e.DistanceMeters)
}

type ReroutingEvent struct {
	Reason string `json:"reason"`
}

func (ReroutingEvent) Kind() EventKind { return EventRerouting }

func (e ReroutingEvent) SpokenText() string {
	return "Rerouting."
}

type ArrivedEvent struct {
	Journey *journey.Journey `json:"journey"`
}

func (ArrivedEvent) Kind() EventKind { return EventArrived }

func (e ArrivedEvent) SpokenText() string {
	return fmt.Sprintf("You have arrived at %s.", e.Journey.Destination.DisplayName())
}

type CancelledEvent struct {
	Journey *journey.Journey `json:"journey"`
}

func (CancelledEvent) Kind() EventKind { return EventCancelled }

func (e CancelledEvent) SpokenText() string {
	return "Navigation cancelled."
}

type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) Kind() EventKind { return EventError }

func (e ErrorEvent) SpokenText() string {
	return e.Message
}

// WarningEvent reports a failure that does not interrupt navigation
type WarningEvent struct {
	JourneyID string `json:"journey_id"`
	Operation string `json:"operation"`
	Message   string `json:"message"`
}

func (WarningEvent) Kind() EventKind { return EventWarning }

// Warnings are shown, never spoken
func (WarningEvent) SpokenText() string {
	return ""
}

// EventHub fans events out to subscribers. Publishing never blocks, a
// subscriber whose buffer is full misses the event.
type EventHub struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	closed      bool
}

func NewEventHub() *EventHub {
	return &EventHub{
		subscribers: map[int]chan Event{},
	}
}

// Subscribe returns the event stream and a function that ends the subscription
func (h *EventHub) Subscribe(buffer int) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	events := make(chan Event, buffer)
	if h.closed {
		close(events)
		return events, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subscribers[id] = events

	var once sync.Once
	return events, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			if subscriber, ok := h.subscribers[id]; ok {
				delete(h.subscribers, id)
				close(subscriber)
			}
		})
	}
}

func (h *EventHub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, subscriber := range h.subscribers {
		select {
		case subscriber <- event:
		default:
			log.Warn().Int("subscriber", id).Str("event", string(event.Kind())).Msg("Event subscriber is full, dropping event")
		}
	}
}

func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers)
}

func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, subscriber := range h.subscribers {
		delete(h.subscribers, id)
		close(subscriber)
	}
}

// ArchivedEvent is the flattened form of an event for storage and transport
type ArchivedEvent struct {
	Kind       EventKind `json:"kind"`
	JourneyID  string    `json:"journey_id,omitempty"`
	SpokenText string    `json:"spoken_text,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    Event     `json:"payload"`
}

func NewArchivedEvent(event Event, journeyID string, at time.Time) ArchivedEvent {
	return ArchivedEvent{
		Kind:       event.Kind(),
		JourneyID:  journeyID,
		SpokenText: event.SpokenText(),
		Timestamp:  at,
		Payload:    event,
	}
}

// JourneyTracker attributes events to the journey they belong to. Events
// must be fed in publication order.
type JourneyTracker struct {
	journeyID string
}

func (t *JourneyTracker) Track(event Event) string {
	switch e := event.(type) {
	case StartedEvent:
		t.journeyID = e.Journey.ID
	case ArrivedEvent:
		t.journeyID = ""
		return e.Journey.ID
	case CancelledEvent:
		t.journeyID = ""
		return e.Journey.ID
	case WarningEvent:
		return e.JourneyID
	}

	return t.journeyID
}
