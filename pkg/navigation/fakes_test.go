package navigation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
	"github.com/varunjain2021/guido-1-sub002/pkg/journeysink"
)

type fakeEngine struct {
	mu        sync.Mutex
	listeners []TelemetryListener

	termsErr    error
	routeErr    error
	guidanceErr error
	route       *Route

	requests        []RouteRequest
	guidanceStarted int
	guidanceStopped int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		route: &Route{
			DistanceMeters:  1200,
			DurationSeconds: 420,
			Steps:           testSteps(),
		},
	}
}

func testSteps() []Step {
	return []Step{
		{Index: 0, Instruction: "Head north on 5th Ave", RoadName: "5th Ave", Maneuver: "depart", Coordinate: journey.Coordinate{Latitude: 40.7410, Longitude: -73.9897}, DistanceMeters: 500},
		{Index: 1, Instruction: "Turn right onto W 34th St", RoadName: "W 34th St", Maneuver: "turn-right", Coordinate: journey.Coordinate{Latitude: 40.7455, Longitude: -73.9868}, DistanceMeters: 600},
		{Index: 2, Instruction: "Arrive at Empire State Building", Maneuver: "arrive", Coordinate: journey.Coordinate{Latitude: 40.7484, Longitude: -73.9857}},
	}
}

func (e *fakeEngine) AddListener(listener TelemetryListener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners = append(e.listeners, listener)
}

func (e *fakeEngine) RemoveListener(listener TelemetryListener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, l := range e.listeners {
		if l == listener {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

func (e *fakeEngine) AcceptTerms(ctx context.Context) error {
	return e.termsErr
}

func (e *fakeEngine) CalculateRoute(ctx context.Context, request RouteRequest) (*Route, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.requests = append(e.requests, request)
	if e.routeErr != nil {
		return nil, e.routeErr
	}

	return e.route, nil
}

func (e *fakeEngine) StartGuidance(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.guidanceStarted++
	return e.guidanceErr
}

func (e *fakeEngine) StopGuidance() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.guidanceStopped++
}

func (e *fakeEngine) listener(t *testing.T) TelemetryListener {
	t.Helper()

	e.mu.Lock()
	defer e.mu.Unlock()

	require.Len(t, e.listeners, 1)
	return e.listeners[0]
}

func (e *fakeEngine) listenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.listeners)
}

// recordingSink keeps every call in order and can be told to fail
type recordingSink struct {
	mu sync.Mutex

	calls             []string
	created           []*journey.Journey
	updated           []*journey.Journey
	breadcrumbBatches [][]journey.Breadcrumb
	checkpoints       []journey.Checkpoint

	createErr  error
	updateErr  error
	appendErrs []error

	// when set, CreateJourney signals createEntered and waits for createGate
	createEntered chan struct{}
	createGate    chan struct{}
}

func (s *recordingSink) CreateJourney(ctx context.Context, j *journey.Journey) (*journey.Journey, error) {
	if s.createGate != nil {
		s.createEntered <- struct{}{}
		<-s.createGate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, "create_journey")
	if s.createErr != nil {
		return nil, s.createErr
	}

	s.created = append(s.created, j.Snapshot())
	return j, nil
}

func (s *recordingSink) UpdateJourney(ctx context.Context, j *journey.Journey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, "update_journey")
	if s.updateErr != nil {
		return s.updateErr
	}

	s.updated = append(s.updated, j.Snapshot())
	return nil
}

func (s *recordingSink) AppendBreadcrumbs(ctx context.Context, journeyID string, batch []journey.Breadcrumb) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, "append_breadcrumbs")
	if len(s.appendErrs) > 0 {
		err := s.appendErrs[0]
		s.appendErrs = s.appendErrs[1:]
		if err != nil {
			return err
		}
	}

	s.breadcrumbBatches = append(s.breadcrumbBatches, append([]journey.Breadcrumb(nil), batch...))
	return nil
}

func (s *recordingSink) AppendCheckpoint(ctx context.Context, journeyID string, checkpoint journey.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, "append_checkpoint")
	s.checkpoints = append(s.checkpoints, checkpoint)
	return nil
}

func (s *recordingSink) FetchJourney(ctx context.Context, journeyID string) (*journey.Journey, error) {
	return nil, journeysink.ErrNotFound
}

func (s *recordingSink) batchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sizes []int
	for _, batch := range s.breadcrumbBatches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

func (s *recordingSink) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.calls...)
}

func (s *recordingSink) lastUpdate(t *testing.T) *journey.Journey {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()

	require.NotEmpty(t, s.updated)
	return s.updated[len(s.updated)-1]
}

type harness struct {
	coordinator *Coordinator
	engine      *fakeEngine
	sink        *recordingSink
	clock       *ManualClock
	events      <-chan Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		engine: newFakeEngine(),
		sink:   &recordingSink{},
		clock:  NewManualClock(time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC)),
	}
	h.coordinator = NewCoordinator(h.engine, h.sink, WithClock(h.clock), WithConfig(DefaultConfig()))

	events, unsubscribe := h.coordinator.Events().Subscribe(128)
	t.Cleanup(unsubscribe)
	h.events = events

	return h
}

func testRequest() StartRequest {
	return StartRequest{
		UserID: "user-1",
		Origin: &journey.Place{
			Address:    "Flatiron Building, New York",
			Coordinate: journey.Coordinate{Latitude: 40.7411, Longitude: -73.9897},
		},
		Destination: journey.Place{
			Address:    "350 5th Ave, New York",
			Name:       "Empire State Building",
			Coordinate: journey.Coordinate{Latitude: 40.7484, Longitude: -73.9857},
		},
		Mode: journey.TravelModeDriving,
	}
}

func (h *harness) start(t *testing.T) *journey.Journey {
	t.Helper()

	started, err := h.coordinator.Start(context.Background(), testRequest())
	require.NoError(t, err)
	h.drain()

	return started
}

// drain returns every event published so far
func (h *harness) drain() []Event {
	var events []Event
	for {
		select {
		case event := <-h.events:
			events = append(events, event)
		default:
			return events
		}
	}
}

func eventsOfKind(events []Event, kind EventKind) []Event {
	var matching []Event
	for _, event := range events {
		if event.Kind() == kind {
			matching = append(matching, event)
		}
	}
	return matching
}

func floatPtr(f float64) *float64 {
	return &f
}

func (h *harness) sample(lat float64, speed *float64) LocationSample {
	return LocationSample{
		Coordinate: journey.Coordinate{Latitude: lat, Longitude: -73.98},
		Timestamp:  h.clock.Now(),
		SpeedMps:   speed,
	}
}
