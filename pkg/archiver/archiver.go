package archiver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/varunjain2021/guido-1-sub002/pkg/elastic_client"
	"github.com/varunjain2021/guido-1-sub002/pkg/navigation"
)

const defaultIndexPrefix = "navigation-events"

type IndexFunc func(indexName string, document io.ReadSeeker)

// Archiver writes every navigation event it sees into a weekly Elasticsearch
// index, tagged with the journey the event belongs to.
type Archiver struct {
	IndexPrefix string

	index IndexFunc
	now   func() time.Time

	journeys navigation.JourneyTracker
	archived int
}

type Option func(*Archiver)

func WithIndexFunc(index IndexFunc) Option {
	return func(a *Archiver) {
		a.index = index
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Archiver) {
		a.now = now
	}
}

func New(options ...Option) *Archiver {
	a := &Archiver{
		IndexPrefix: defaultIndexPrefix,
		index:       elastic_client.IndexRequest,
		now:         time.Now,
	}

	for _, option := range options {
		option(a)
	}

	return a
}

// Run archives events until the channel is closed
func (a *Archiver) Run(events <-chan navigation.Event) {
	for event := range events {
		a.Archive(event)
	}

	log.Info().Int("archived", a.archived).Msg("Navigation event archiver stopped")
}

// Archive must be called in publication order
func (a *Archiver) Archive(event navigation.Event) {
	journeyID := a.journeys.Track(event)
	timestamp := a.now()

	document, err := json.Marshal(navigation.NewArchivedEvent(event, journeyID, timestamp))
	if err != nil {
		log.Error().Err(err).Str("event", string(event.Kind())).Msg("Failed to encode navigation event")
		return
	}

	a.index(a.IndexName(timestamp), bytes.NewReader(document))
	a.archived++
}

func (a *Archiver) IndexName(at time.Time) string {
	yearNumber, weekNumber := at.ISOWeek()
	return fmt.Sprintf("%s-%d-%d", a.IndexPrefix, yearNumber, weekNumber)
}
