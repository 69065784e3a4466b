package journeysink

import (
	"context"
	"sync"

	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
)

// MemorySink keeps journeys in process. It backs dry runs and tests.
type MemorySink struct {
	mu       sync.Mutex
	journeys map[string]*journey.Journey
}

func NewMemorySink() *MemorySink {
	return &MemorySink{journeys: map[string]*journey.Journey{}}
}

func (s *MemorySink) CreateJourney(ctx context.Context, j *journey.Journey) (*journey.Journey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journeys[j.ID] = j.Snapshot()

	return j, nil
}

func (s *MemorySink) UpdateJourney(ctx context.Context, j *journey.Journey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.journeys[j.ID]; !ok {
		return ErrNotFound
	}

	s.journeys[j.ID] = j.Snapshot()

	return nil
}

func (s *MemorySink) AppendBreadcrumbs(ctx context.Context, journeyID string, batch []journey.Breadcrumb) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.journeys[journeyID]
	if !ok {
		return ErrNotFound
	}

	stored.Breadcrumbs = append(stored.Breadcrumbs, batch...)

	return nil
}

func (s *MemorySink) AppendCheckpoint(ctx context.Context, journeyID string, checkpoint journey.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.journeys[journeyID]
	if !ok {
		return ErrNotFound
	}

	stored.Checkpoints = append(stored.Checkpoints, checkpoint)

	return nil
}

func (s *MemorySink) FetchJourney(ctx context.Context, journeyID string) (*journey.Journey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.journeys[journeyID]
	if !ok {
		return nil, ErrNotFound
	}

	return stored.Snapshot(), nil
}
