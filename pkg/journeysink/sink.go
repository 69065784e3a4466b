package journeysink

import (
	"context"

	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
)

// Sink persists journeys to a remote record store. Implementations must treat
// the journeys they are given as read-only snapshots.
type Sink interface {
	// CreateJourney stores the initial journey and returns the canonical
	// record echoed by the backend, or the input when nothing was echoed
	CreateJourney(ctx context.Context, j *journey.Journey) (*journey.Journey, error)
	// UpdateJourney replaces the mutable fields of the stored record,
	// including the full checkpoint and breadcrumb arrays
	UpdateJourney(ctx context.Context, j *journey.Journey) error
	AppendBreadcrumbs(ctx context.Context, journeyID string, batch []journey.Breadcrumb) error
	AppendCheckpoint(ctx context.Context, journeyID string, checkpoint journey.Checkpoint) error
	FetchJourney(ctx context.Context, journeyID string) (*journey.Journey, error)
}
