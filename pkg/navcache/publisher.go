package navcache

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/varunjain2021/guido-1-sub002/pkg/navigation"
)

const DefaultPublishInterval = time.Second

type snapshotSource interface {
	Snapshot() navigation.Snapshot
}

// Publisher copies coordinator snapshots into the cache whenever they change
type Publisher struct {
	source   snapshotSource
	cache    *SnapshotCache
	interval time.Duration

	last []byte
}

func NewPublisher(source snapshotSource, cache *SnapshotCache, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = DefaultPublishInterval
	}

	return &Publisher{
		source:   source,
		cache:    cache,
		interval: interval,
	}
}

// Run publishes until ctx is done, then publishes the final snapshot once more
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			p.publish(finalCtx)
			cancel()
			return
		case <-ticker.C:
			p.publish(ctx)
		}
	}
}

// PublishOnce writes the current snapshot if it differs from the last one
// written. It reports whether a write happened.
func (p *Publisher) PublishOnce(ctx context.Context) bool {
	return p.publish(ctx)
}

func (p *Publisher) publish(ctx context.Context) bool {
	snapshot := p.source.Snapshot()

	current, err := fingerprint(snapshot)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode navigation snapshot")
		return false
	}
	if bytes.Equal(p.last, current) {
		return false
	}

	if err := p.cache.Set(ctx, snapshot); err != nil {
		log.Error().Err(err).Str("journey", snapshot.JourneyID).Msg("Failed to publish navigation snapshot")
		return false
	}

	p.last = current

	return true
}

// fingerprint ignores UpdatedAt, which moves on every read
func fingerprint(snapshot navigation.Snapshot) ([]byte, error) {
	snapshot.UpdatedAt = time.Time{}
	return json.Marshal(snapshot)
}
