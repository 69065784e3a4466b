package journey

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyTerminal       = errors.New("journey has already ended")
	ErrCheckpointOutOfOrder  = errors.New("checkpoint step index is lower than the previous checkpoint")
	ErrBreadcrumbOutOfOrder  = errors.New("breadcrumb timestamp is earlier than the previous breadcrumb")
	ErrDestinationIncomplete = errors.New("destination needs an address and a valid coordinate")
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Journey struct {
	ID        string `groups:"basic"`
	UserID    string `groups:"detailed"`
	SessionID string `groups:"detailed"`

	Origin      *Place     `groups:"basic"`
	Destination Place      `groups:"basic"`
	Mode        TravelMode `groups:"basic"`

	StartedAt time.Time  `groups:"basic"`
	EndedAt   *time.Time `groups:"basic"`
	Completed bool       `groups:"basic"`
	Cancelled bool       `groups:"basic"`

	RouteSummary *RouteSummary `groups:"basic"`

	Checkpoints []Checkpoint `groups:"detailed"`
	Breadcrumbs []Breadcrumb `groups:"detailed"`

	RerouteCount  int        `groups:"basic"`
	LastRerouteAt *time.Time `groups:"basic"`
}

type RouteSummary struct {
	DistanceMeters  int `groups:"basic"`
	DurationSeconds int `groups:"basic"`
	StepCount       int `groups:"basic"`
}

type NewJourneyOptions struct {
	UserID    string
	SessionID string

	Origin      *Place
	Destination Place
	Mode        TravelMode

	RouteSummary *RouteSummary

	StartedAt time.Time
}

func New(opts NewJourneyOptions) (*Journey, error) {
	if opts.Destination.Address == "" || !opts.Destination.Coordinate.Valid() {
		return nil, ErrDestinationIncomplete
	}

	mode := opts.Mode
	if mode == "" {
		mode = TravelModeDriving
	}

	startedAt := opts.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	j := &Journey{
		ID:          uuid.NewString(),
		UserID:      opts.UserID,
		SessionID:   opts.SessionID,
		Origin:      opts.Origin,
		Destination: opts.Destination,
		Mode:        mode,
		StartedAt:   startedAt,
		Checkpoints: []Checkpoint{},
		Breadcrumbs: []Breadcrumb{},
	}

	if opts.RouteSummary != nil {
		summary := *opts.RouteSummary
		j.RouteSummary = &summary
	}

	return j, nil
}

func (j *Journey) Terminal() bool {
	return j.Completed || j.Cancelled
}

func (j *Journey) Status() Status {
	switch {
	case j.Completed:
		return StatusCompleted
	case j.Cancelled:
		return StatusCancelled
	}

	return StatusActive
}

func (j *Journey) Complete(at time.Time) error {
	if j.Terminal() {
		return ErrAlreadyTerminal
	}

	j.Completed = true
	j.EndedAt = &at

	return nil
}

func (j *Journey) Cancel(at time.Time) error {
	if j.Terminal() {
		return ErrAlreadyTerminal
	}

	j.Cancelled = true
	j.EndedAt = &at

	return nil
}

func (j *Journey) AppendCheckpoint(checkpoint Checkpoint) error {
	if n := len(j.Checkpoints); n > 0 && checkpoint.StepIndex < j.Checkpoints[n-1].StepIndex {
		return fmt.Errorf("%w: step %d after %d", ErrCheckpointOutOfOrder, checkpoint.StepIndex, j.Checkpoints[n-1].StepIndex)
	}

	j.Checkpoints = append(j.Checkpoints, checkpoint)

	return nil
}

func (j *Journey) AppendBreadcrumb(breadcrumb Breadcrumb) error {
	if n := len(j.Breadcrumbs); n > 0 && breadcrumb.Timestamp.Before(j.Breadcrumbs[n-1].Timestamp) {
		return ErrBreadcrumbOutOfOrder
	}

	j.Breadcrumbs = append(j.Breadcrumbs, breadcrumb)

	return nil
}

func (j *Journey) RecordReroute(at time.Time) {
	j.RerouteCount++
	j.LastRerouteAt = &at
}

// Elapsed is measured up to EndedAt for finished journeys
func (j *Journey) Elapsed(now time.Time) time.Duration {
	if j.EndedAt != nil {
		return j.EndedAt.Sub(j.StartedAt)
	}

	return now.Sub(j.StartedAt)
}

// Snapshot returns a deep copy that shares no memory with the live journey
func (j *Journey) Snapshot() *Journey {
	snapshot := &Journey{}
	if err := deepCopy(snapshot, j); err != nil {
		log.Error().Err(err).Str("journey", j.ID).Msg("Failed to deep copy journey, copying fields directly")

		*snapshot = *j
		if j.Origin != nil {
			origin := *j.Origin
			snapshot.Origin = &origin
		}
		if j.RouteSummary != nil {
			summary := *j.RouteSummary
			snapshot.RouteSummary = &summary
		}
	}

	// copier cannot see inside time.Time so the timestamps are carried over explicitly
	snapshot.StartedAt = j.StartedAt
	snapshot.EndedAt = cloneTime(j.EndedAt)
	snapshot.LastRerouteAt = cloneTime(j.LastRerouteAt)

	snapshot.Checkpoints = make([]Checkpoint, len(j.Checkpoints))
	for i, checkpoint := range j.Checkpoints {
		snapshot.Checkpoints[i] = checkpoint.clone()
	}
	snapshot.Breadcrumbs = make([]Breadcrumb, len(j.Breadcrumbs))
	for i, breadcrumb := range j.Breadcrumbs {
		snapshot.Breadcrumbs[i] = breadcrumb.clone()
	}

	return snapshot
}

var deepCopy = func(to *Journey, from *Journey) error {
	return copier.CopyWithOption(to, from, copier.Option{DeepCopy: true})
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	c := *t
	return &c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}

	c := *f
	return &c
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}

	c := *i
	return &c
}
