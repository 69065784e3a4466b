package routingengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
	"github.com/varunjain2021/guido-1-sub002/pkg/navigation"
)

var ErrTermsDeclined = errors.New("terms declined")

// ReplayEngine plays a recorded trace back as if it were a live routing engine.
// Trace time runs on its own clock, so a coordinator built with Clock() sees
// the recorded gaps between events however fast they are replayed.
type ReplayEngine struct {
	trace *Trace
	clock *navigation.ManualClock
	// scales the real gaps between events, 0 delivers them back to back
	speed float64

	mu        sync.Mutex
	listeners []navigation.TelemetryListener
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewReplayEngine(trace *Trace, speed float64) *ReplayEngine {
	done := make(chan struct{})
	close(done)

	return &ReplayEngine{
		trace: trace,
		clock: navigation.NewManualClock(time.Now()),
		speed: speed,
		done:  done,
	}
}

func (e *ReplayEngine) Clock() navigation.Clock {
	return e.clock
}

func (e *ReplayEngine) AddListener(listener navigation.TelemetryListener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners = append(e.listeners, listener)
}

func (e *ReplayEngine) RemoveListener(listener navigation.TelemetryListener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, l := range e.listeners {
		if l == listener {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

func (e *ReplayEngine) AcceptTerms(ctx context.Context) error {
	if e.trace.DeclineTerms {
		return ErrTermsDeclined
	}

	return nil
}

func (e *ReplayEngine) CalculateRoute(ctx context.Context, request navigation.RouteRequest) (*navigation.Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e.trace.Failure != "" {
		return nil, failures[e.trace.Failure]
	}
	if len(e.trace.Route.Steps) == 0 {
		return nil, navigation.ErrNoRouteFound
	}

	return e.trace.route(), nil
}

func (e *ReplayEngine) StartGuidance(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.replay(runCtx, e.done)

	return nil
}

func (e *ReplayEngine) StopGuidance() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// Done is closed once the current replay has delivered its last event or been stopped
func (e *ReplayEngine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.done
}

func (e *ReplayEngine) replay(ctx context.Context, done chan struct{}) {
	defer close(done)

	steps := e.trace.steps()

	for i, event := range e.trace.Events {
		if delay := e.delay(event.After); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return
		}

		e.clock.Advance(event.After)
		if ctx.Err() != nil {
			return
		}

		log.Debug().Str("trace", e.trace.Name).Int("event", i).Msg("Replaying trace event")

		e.deliver(event, steps)
	}
}

func (e *ReplayEngine) delay(after time.Duration) time.Duration {
	if e.speed <= 0 {
		return 0
	}

	return time.Duration(float64(after) / e.speed)
}

func (e *ReplayEngine) deliver(event TraceEvent, steps []navigation.Step) {
	e.mu.Lock()
	listeners := append([]navigation.TelemetryListener(nil), e.listeners...)
	e.mu.Unlock()

	for _, listener := range listeners {
		if event.RemainingDistance != nil {
			listener.RemainingDistanceUpdated(*event.RemainingDistance)
		}
		if event.RemainingTime != nil {
			listener.RemainingTimeUpdated(*event.RemainingTime)
		}
		if event.RouteChanged {
			listener.RouteChanged()
		}

		if event.NavInfo != nil {
			listener.NavInfoUpdated(navInfo(*event.NavInfo, steps))
		}

		if event.Location != nil {
			if locationListener, ok := listener.(navigation.LocationListener); ok {
				locationListener.LocationUpdated(navigation.LocationSample{
					Coordinate: journey.Coordinate{Latitude: event.Location.Latitude, Longitude: event.Location.Longitude},
					Timestamp:  e.clock.Now(),
					SpeedMps:   event.Location.SpeedMps,
					AccuracyM:  event.Location.AccuracyM,
					Heading:    event.Location.Heading,
				})
			}
		}

		if event.Arrived != nil {
			listener.Arrived(navigation.Waypoint{
				Title:      event.Arrived.Title,
				Coordinate: journey.Coordinate{Latitude: event.Arrived.Latitude, Longitude: event.Arrived.Longitude},
			})
		}
	}
}

func navInfo(event TraceNavInfo, steps []navigation.Step) navigation.NavInfo {
	state := navigation.GuidanceState(event.State)
	if state == "" {
		state = navigation.GuidanceEnRoute
	}

	current := steps[event.Step]

	return navigation.NavInfo{
		State:                state,
		CurrentStep:          &current,
		DistanceToStepMeters: event.DistanceToStepMeters,
		TimeToStepSeconds:    event.TimeToStepSeconds,
		RemainingSteps:       steps[event.Step+1:],
	}
}
