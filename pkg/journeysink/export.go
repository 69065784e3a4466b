package journeysink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/sourcegraph/conc/pool"
	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
)

const defaultFetchConcurrency = 8

type BreadcrumbRow struct {
	JourneyID string `csv:"journey_id"`
	journey.BreadcrumbRecord
}

type CheckpointRow struct {
	JourneyID string `csv:"journey_id"`
	journey.CheckpointRecord
}

type fetched struct {
	index   int
	journey *journey.Journey
}

// FetchJourneys fetches the journeys concurrently and returns them in the
// order of journeyIDs. The first failure cancels the remaining fetches.
func FetchJourneys(ctx context.Context, sink Sink, journeyIDs []string, concurrency int) ([]*journey.Journey, error) {
	if concurrency < 1 {
		concurrency = defaultFetchConcurrency
	}

	p := pool.NewWithResults[fetched]().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(concurrency)

	for i, journeyID := range journeyIDs {
		p.Go(func(ctx context.Context) (fetched, error) {
			found, err := sink.FetchJourney(ctx, journeyID)
			if err != nil {
				return fetched{}, fmt.Errorf("journey %s: %w", journeyID, err)
			}

			return fetched{index: i, journey: found}, nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	journeys := make([]*journey.Journey, len(journeyIDs))
	for _, result := range results {
		journeys[result.index] = result.journey
	}

	return journeys, nil
}

func WriteBreadcrumbsCSV(w io.Writer, journeys []*journey.Journey) error {
	rows := []*BreadcrumbRow{}
	for _, j := range journeys {
		for _, record := range journey.BreadcrumbRecords(j.Breadcrumbs) {
			rows = append(rows, &BreadcrumbRow{JourneyID: j.ID, BreadcrumbRecord: record})
		}
	}

	return gocsv.Marshal(rows, w)
}

func WriteCheckpointsCSV(w io.Writer, journeys []*journey.Journey) error {
	rows := []*CheckpointRow{}
	for _, j := range journeys {
		for _, record := range journey.CheckpointRecords(j.Checkpoints) {
			rows = append(rows, &CheckpointRow{JourneyID: j.ID, CheckpointRecord: record})
		}
	}

	return gocsv.Marshal(rows, w)
}

// WriteJSON writes the stored record form of each journey, one per line
func WriteJSON(w io.Writer, journeys []*journey.Journey) error {
	encoder := json.NewEncoder(w)
	for _, j := range journeys {
		if err := encoder.Encode(journey.ToRecord(j)); err != nil {
			return err
		}
	}

	return nil
}
