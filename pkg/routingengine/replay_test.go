package routingengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
	"github.com/varunjain2021/guido-1-sub002/pkg/journeysink"
	"github.com/varunjain2021/guido-1-sub002/pkg/navigation"
)

func loadTestTraces(t *testing.T) []*Trace {
	t.Helper()

	traces, err := LoadTraces("testdata/empire_state.yaml")
	require.NoError(t, err)
	require.Len(t, traces, 2)

	return traces
}

func testRequest() navigation.StartRequest {
	return navigation.StartRequest{
		Destination: journey.Place{
			Address:    "350 5th Ave, New York",
			Name:       "Empire State Building",
			Coordinate: journey.Coordinate{Latitude: 40.7484, Longitude: -73.9857},
		},
		Mode: journey.TravelModeDriving,
	}
}

func TestParseTraces(t *testing.T) {
	traces := loadTestTraces(t)

	trace := traces[0]
	assert.Equal(t, "flatiron-to-empire-state", trace.Name)
	assert.Len(t, trace.Route.Steps, 3)
	assert.Equal(t, 10*time.Second, trace.Events[2].After)
	require.NotNil(t, trace.Events[1].Location.SpeedMps)
	assert.Equal(t, 6.2, *trace.Events[1].Location.SpeedMps)

	assert.Equal(t, "quota_exceeded", traces[1].Failure)
}

func TestParseTracesRejectsBadTraces(t *testing.T) {
	_, err := ParseTraces([]byte("name: broken\nfailure: meteor_strike\n"))
	assert.Error(t, err)

	_, err = ParseTraces([]byte("name: broken\nevents:\n  - nav_info: {step: 3}\n"))
	assert.Error(t, err)

	_, err = ParseTraces([]byte(""))
	assert.Error(t, err)
}

func TestTraceStartRequest(t *testing.T) {
	traces := loadTestTraces(t)

	request := traces[0].StartRequest()
	assert.Equal(t, testRequest().Destination, request.Destination)
	assert.Equal(t, journey.TravelModeDriving, request.Mode)
	assert.Equal(t, "flatiron-to-empire-state", request.SessionID)
	require.NotNil(t, request.Origin)
	assert.Equal(t, "Flatiron Building", request.Origin.Name)

	fallback := (&Trace{
		Name: "unnamed-drive",
		Route: TraceRoute{Steps: []TraceStep{
			{Instruction: "Head east", Latitude: 40.70, Longitude: -74.01},
			{Instruction: "Arrive", Latitude: 40.71, Longitude: -74.00},
		}},
	}).StartRequest()
	assert.Nil(t, fallback.Origin)
	assert.Equal(t, "unnamed-drive", fallback.Destination.Address)
	assert.Equal(t, 40.71, fallback.Destination.Coordinate.Latitude)

	_, err := ParseTraces([]byte("name: hovercraft\nmode: hover\n"))
	assert.Error(t, err)
}

func TestCalculateRoute(t *testing.T) {
	traces := loadTestTraces(t)

	route, err := NewReplayEngine(traces[0], 0).CalculateRoute(context.Background(), navigation.RouteRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1200.0, route.DistanceMeters)
	assert.Equal(t, 2, route.Steps[2].Index)
	assert.Equal(t, "turn-right", route.Steps[1].Maneuver)

	_, err = NewReplayEngine(traces[1], 0).CalculateRoute(context.Background(), navigation.RouteRequest{})
	assert.ErrorIs(t, err, navigation.ErrQuotaExceeded)
}

func TestReplayDrivesCoordinator(t *testing.T) {
	trace := loadTestTraces(t)[0]
	engine := NewReplayEngine(trace, 0)
	sink := journeysink.NewMemorySink()
	coordinator := navigation.NewCoordinator(engine, sink, navigation.WithClock(engine.Clock()))

	events, unsubscribe := coordinator.Events().Subscribe(64)
	defer unsubscribe()

	started, err := coordinator.Start(context.Background(), trace.StartRequest())
	require.NoError(t, err)

	select {
	case <-engine.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("replay did not finish")
	}
	coordinator.Wait()

	var kinds []navigation.EventKind
	for len(events) > 0 {
		kinds = append(kinds, (<-events).Kind())
	}

	assert.Equal(t, []navigation.EventKind{
		navigation.EventStarted,
		navigation.EventInitialDirections,
		navigation.EventApproachingTurn,
		navigation.EventApproachingTurn,
		navigation.EventRerouting,
		navigation.EventApproachingTurn,
		navigation.EventArrived,
	}, kinds)

	stored, err := sink.FetchJourney(context.Background(), started.ID)
	require.NoError(t, err)
	assert.True(t, stored.Completed)
	assert.Equal(t, 1, stored.RerouteCount)
	assert.Len(t, stored.Breadcrumbs, 4)
	assert.Len(t, stored.Checkpoints, 2)
	assert.Equal(t, navigation.StateIdle, coordinator.State())
}

func TestReplayFailure(t *testing.T) {
	trace := loadTestTraces(t)[1]
	coordinator := navigation.NewCoordinator(NewReplayEngine(trace, 0), journeysink.NewMemorySink())

	_, err := coordinator.Start(context.Background(), testRequest())
	assert.ErrorIs(t, err, navigation.ErrQuotaExceeded)
	assert.Equal(t, navigation.StateError, coordinator.State())
}

func TestFindTrace(t *testing.T) {
	first, err := FindTrace("testdata/empire_state.yaml", "")
	require.NoError(t, err)
	assert.Equal(t, "flatiron-to-empire-state", first.Name)

	named, err := FindTrace("testdata/empire_state.yaml", "quota-exceeded")
	require.NoError(t, err)
	assert.Equal(t, "quota_exceeded", named.Failure)

	_, err = FindTrace("testdata/empire_state.yaml", "moon-landing")
	assert.Error(t, err)

	_, err = FindTrace("testdata/missing.yaml", "")
	assert.Error(t, err)
}
