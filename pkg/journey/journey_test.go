package journey

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDestination() Place {
	return Place{
		Address:    "1 Infinite Loop, Cupertino",
		Name:       "Office",
		Coordinate: Coordinate{Latitude: 37.3318, Longitude: -122.0312},
	}
}

func TestNewJourney(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	j, err := New(NewJourneyOptions{
		Destination:  testDestination(),
		Mode:         TravelModeWalking,
		RouteSummary: &RouteSummary{DistanceMeters: 1200, DurationSeconds: 900, StepCount: 6},
		StartedAt:    started,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, j.ID)
	assert.Equal(t, TravelModeWalking, j.Mode)
	assert.Equal(t, started, j.StartedAt)
	assert.Equal(t, StatusActive, j.Status())
	assert.Nil(t, j.EndedAt)
	assert.Equal(t, 1200, j.RouteSummary.DistanceMeters)
}

func TestNewJourneyRejectsIncompleteDestination(t *testing.T) {
	_, err := New(NewJourneyOptions{Destination: Place{Coordinate: Coordinate{Latitude: 1, Longitude: 1}}})
	assert.ErrorIs(t, err, ErrDestinationIncomplete)

	_, err = New(NewJourneyOptions{Destination: Place{Address: "Somewhere", Coordinate: Coordinate{Latitude: 91}}})
	assert.ErrorIs(t, err, ErrDestinationIncomplete)
}

func TestTerminalFlagsAreExclusive(t *testing.T) {
	j, err := New(NewJourneyOptions{Destination: testDestination()})
	require.NoError(t, err)

	end := j.StartedAt.Add(10 * time.Minute)
	require.NoError(t, j.Complete(end))

	assert.True(t, j.Completed)
	assert.False(t, j.Cancelled)
	assert.Equal(t, end, *j.EndedAt)
	assert.ErrorIs(t, j.Cancel(end), ErrAlreadyTerminal)
	assert.False(t, j.Cancelled)
	assert.Equal(t, 10*time.Minute, j.Elapsed(end.Add(time.Hour)))
}

func TestAppendOrdering(t *testing.T) {
	j, err := New(NewJourneyOptions{Destination: testDestination()})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, j.AppendCheckpoint(Checkpoint{StepIndex: 1}))
	require.NoError(t, j.AppendCheckpoint(Checkpoint{StepIndex: 1}))
	assert.ErrorIs(t, j.AppendCheckpoint(Checkpoint{StepIndex: 0}), ErrCheckpointOutOfOrder)
	assert.Len(t, j.Checkpoints, 2)

	require.NoError(t, j.AppendBreadcrumb(Breadcrumb{Timestamp: now}))
	require.NoError(t, j.AppendBreadcrumb(Breadcrumb{Timestamp: now}))
	assert.ErrorIs(t, j.AppendBreadcrumb(Breadcrumb{Timestamp: now.Add(-time.Second)}), ErrBreadcrumbOutOfOrder)
	assert.Len(t, j.Breadcrumbs, 2)
}

func TestSnapshotSharesNoMemory(t *testing.T) {
	j, err := New(NewJourneyOptions{
		Origin:      &Place{Address: "Home", Coordinate: Coordinate{Latitude: 37.33, Longitude: -122.01}},
		Destination: testDestination(),
	})
	require.NoError(t, err)

	speed := 4.2
	distance := 120
	require.NoError(t, j.AppendBreadcrumb(NewBreadcrumb(Coordinate{Latitude: 37.33, Longitude: -122.02}, j.StartedAt, &speed, nil, nil)))
	require.NoError(t, j.AppendCheckpoint(Checkpoint{StepIndex: 2, Instruction: "Turn left", ArrivedAt: j.StartedAt, DistanceFromPreviousMeters: &distance}))
	j.RecordReroute(j.StartedAt.Add(time.Minute))

	snapshot := j.Snapshot()

	assert.Equal(t, j.ID, snapshot.ID)
	assert.Equal(t, j.StartedAt, snapshot.StartedAt)
	assert.Equal(t, *j.LastRerouteAt, *snapshot.LastRerouteAt)
	assert.Equal(t, 1, snapshot.RerouteCount)
	require.Len(t, snapshot.Breadcrumbs, 1)
	require.Len(t, snapshot.Checkpoints, 1)
	assert.Equal(t, j.Breadcrumbs[0].Timestamp, snapshot.Breadcrumbs[0].Timestamp)
	assert.Equal(t, "Home", snapshot.Origin.Address)

	*j.Breadcrumbs[0].SpeedMps = 99
	*j.Checkpoints[0].DistanceFromPreviousMeters = 1
	j.Origin.Address = "Elsewhere"
	require.NoError(t, j.AppendBreadcrumb(Breadcrumb{Timestamp: j.StartedAt.Add(time.Second)}))

	assert.Equal(t, 4.2, *snapshot.Breadcrumbs[0].SpeedMps)
	assert.Equal(t, 120, *snapshot.Checkpoints[0].DistanceFromPreviousMeters)
	assert.Equal(t, "Home", snapshot.Origin.Address)
	assert.Len(t, snapshot.Breadcrumbs, 1)
}

func TestNewBreadcrumbNormalisesReadings(t *testing.T) {
	negative := -1.0
	heading := 400.0
	accuracy := 5.0

	b := NewBreadcrumb(Coordinate{}, time.Now(), &negative, &accuracy, &heading)

	assert.Nil(t, b.SpeedMps)
	assert.Nil(t, b.Heading)
	require.NotNil(t, b.AccuracyM)
	assert.Equal(t, 5.0, *b.AccuracyM)
}

func TestParseTravelMode(t *testing.T) {
	mode, err := ParseTravelMode("Cycling")
	require.NoError(t, err)
	assert.Equal(t, TravelModeCycling, mode)

	mode, err = ParseTravelMode("")
	require.NoError(t, err)
	assert.Equal(t, TravelModeDriving, mode)

	_, err = ParseTravelMode("teleport")
	assert.Error(t, err)
}

func TestSnapshotWhenDeepCopyFails(t *testing.T) {
	original := deepCopy
	deepCopy = func(to *Journey, from *Journey) error {
		return errors.New("copy failed")
	}
	t.Cleanup(func() { deepCopy = original })

	j, err := New(NewJourneyOptions{
		Origin:       &Place{Address: "Home", Coordinate: Coordinate{Latitude: 37.33, Longitude: -122.01}},
		Destination:  testDestination(),
		RouteSummary: &RouteSummary{DistanceMeters: 1200, DurationSeconds: 420, StepCount: 3},
	})
	require.NoError(t, err)
	require.NoError(t, j.AppendBreadcrumb(NewBreadcrumb(Coordinate{Latitude: 37.33, Longitude: -122.02}, j.StartedAt, nil, nil, nil)))

	snapshot := j.Snapshot()

	require.NotNil(t, snapshot.Origin)
	require.NotNil(t, snapshot.RouteSummary)
	assert.Equal(t, j.ID, snapshot.ID)
	assert.Equal(t, 1200, snapshot.RouteSummary.DistanceMeters)
	require.Len(t, snapshot.Breadcrumbs, 1)

	j.Origin.Address = "Elsewhere"
	j.RouteSummary.DistanceMeters = 5
	j.Breadcrumbs[0].Coordinate.Latitude = 0

	assert.Equal(t, "Home", snapshot.Origin.Address)
	assert.Equal(t, 1200, snapshot.RouteSummary.DistanceMeters)
	assert.Equal(t, 37.33, snapshot.Breadcrumbs[0].Coordinate.Latitude)
}
