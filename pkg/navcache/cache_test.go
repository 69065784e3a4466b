package navcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
	"github.com/varunjain2021/guido-1-sub002/pkg/navigation"
)

func newTestCache(t *testing.T) (*SnapshotCache, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewSnapshotCache(client, time.Minute), server
}

func enRouteSnapshot() navigation.Snapshot {
	return navigation.Snapshot{
		State:     navigation.StateEnRoute,
		JourneyID: "6f1c2a9e-1111-4c4b-9a57-0d7d1c0f3a11",
		Destination: &journey.Place{
			Name:       "Empire State Building",
			Coordinate: journey.Coordinate{Latitude: 40.7484, Longitude: -73.9857},
		},
		CurrentStepIndex:        1,
		CurrentInstruction:      "Turn right onto W 34th St",
		RemainingDistanceMeters: 640,
		UpdatedAt:               time.Date(2026, 5, 4, 8, 32, 0, 0, time.UTC),
	}
}

func TestSnapshotCacheSetAndGet(t *testing.T) {
	snapshots, server := newTestCache(t)
	ctx := context.Background()

	_, err := snapshots.Current(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, snapshots.Set(ctx, enRouteSnapshot()))

	current, err := snapshots.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, navigation.StateEnRoute, current.State)
	assert.Equal(t, "Turn right onto W 34th St", current.CurrentInstruction)
	assert.Equal(t, 640, current.RemainingDistanceMeters)

	byJourney, err := snapshots.Journey(ctx, "6f1c2a9e-1111-4c4b-9a57-0d7d1c0f3a11")
	require.NoError(t, err)
	assert.Equal(t, current, byJourney)

	assert.True(t, server.Exists(currentKey))
	assert.Equal(t, time.Minute, server.TTL(currentKey))

	server.FastForward(2 * time.Minute)

	_, err = snapshots.Current(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSnapshotCacheIdleSkipsJourneyKey(t *testing.T) {
	snapshots, server := newTestCache(t)

	require.NoError(t, snapshots.Set(context.Background(), navigation.Snapshot{State: navigation.StateIdle, CurrentStepIndex: -1}))

	assert.Equal(t, []string{currentKey}, server.Keys())
}

type fixedSource struct {
	snapshot navigation.Snapshot
}

func (s *fixedSource) Snapshot() navigation.Snapshot {
	return s.snapshot
}

func TestPublisherWritesOnlyChanges(t *testing.T) {
	snapshots, _ := newTestCache(t)
	ctx := context.Background()

	source := &fixedSource{snapshot: enRouteSnapshot()}
	publisher := NewPublisher(source, snapshots, time.Second)

	assert.True(t, publisher.PublishOnce(ctx))

	source.snapshot.UpdatedAt = source.snapshot.UpdatedAt.Add(time.Second)
	assert.False(t, publisher.PublishOnce(ctx))

	source.snapshot.State = navigation.StateRerouting
	assert.True(t, publisher.PublishOnce(ctx))

	current, err := snapshots.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, navigation.StateRerouting, current.State)
}

func TestPublisherRunPublishesOnShutdown(t *testing.T) {
	snapshots, _ := newTestCache(t)

	source := &fixedSource{snapshot: enRouteSnapshot()}
	publisher := NewPublisher(source, snapshots, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		publisher.Run(ctx)
		close(done)
	}()

	cancel()
	<-done

	current, err := snapshots.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "6f1c2a9e-1111-4c4b-9a57-0d7d1c0f3a11", current.JourneyID)
}
