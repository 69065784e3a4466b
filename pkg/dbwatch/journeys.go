package dbwatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const JourneyEventsQueueName = "journey-events"

const restartDelay = 5 * time.Second

// JourneyEndedEvent is queued once a stored journey is marked completed or cancelled
type JourneyEndedEvent struct {
	JourneyID string    `json:"journey_id"`
	UserID    string    `json:"user_id,omitempty"`
	Completed bool      `json:"completed"`
	Cancelled bool      `json:"cancelled"`
	EndedAt   time.Time `json:"ended_at"`

	ElapsedSeconds int `json:"elapsed_seconds"`
	Checkpoints    int `json:"checkpoints"`
	Breadcrumbs    int `json:"breadcrumbs"`
	RerouteCount   int `json:"reroute_count"`
}

type journeyChange struct {
	OperationType     string `bson:"operationType"`
	UpdateDescription struct {
		UpdatedFields bson.M `bson:"updatedFields"`
	} `bson:"updateDescription"`
	FullDocument *journey.Record `bson:"fullDocument"`
}

type JourneysWatch struct {
	Collection *mongo.Collection
	EventQueue rmq.Queue
}

func NewJourneysWatch(collection *mongo.Collection, eventQueue rmq.Queue) *JourneysWatch {
	return &JourneysWatch{
		Collection: collection,
		EventQueue: eventQueue,
	}
}

func journeysPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{
			{Key: "$match", Value: bson.D{
				{Key: "operationType", Value: "update"},
				{Key: "updateDescription.updatedFields.ended_at", Value: bson.D{{Key: "$exists", Value: true}}},
			}},
		},
		{
			{Key: "$project", Value: bson.D{
				{Key: "fullDocument.breadcrumbs", Value: 0},
			}},
		},
	}
}

// Run watches until ctx is done, reopening the change stream when it fails
func (w *JourneysWatch) Run(ctx context.Context) {
	for ctx.Err() == nil {
		err := w.watch(ctx)
		if ctx.Err() != nil {
			return
		}

		log.Error().Err(err).Msg("Journey watch fell over, restarting")

		select {
		case <-ctx.Done():
		case <-time.After(restartDelay):
		}
	}
}

func (w *JourneysWatch) watch(ctx context.Context) error {
	log.Info().Str("collection", w.Collection.Name()).Msg("Starting dbwatch on journeys")

	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := w.Collection.Watch(ctx, journeysPipeline(), opts)
	if err != nil {
		return err
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var change journeyChange
		if err := stream.Decode(&change); err != nil {
			log.Error().Err(err).Msg("Failed to decode journey change")
			continue
		}

		w.handleChange(change)
	}

	return stream.Err()
}

func (w *JourneysWatch) handleChange(change journeyChange) bool {
	event, ok := journeyEnded(change)
	if !ok {
		return false
	}

	log.Info().
		Str("journey", event.JourneyID).
		Bool("completed", event.Completed).
		Bool("cancelled", event.Cancelled).
		Msg("Journey ended")

	eventBytes, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("journey", event.JourneyID).Msg("Failed to encode journey event")
		return false
	}

	if err := w.EventQueue.PublishBytes(eventBytes); err != nil {
		log.Error().Err(err).Str("journey", event.JourneyID).Msg("Failed to publish journey event")
		return false
	}

	return true
}

func journeyEnded(change journeyChange) (JourneyEndedEvent, bool) {
	record := change.FullDocument
	if record == nil || record.EndedAt == nil || !(record.Completed || record.Cancelled) {
		return JourneyEndedEvent{}, false
	}

	event := JourneyEndedEvent{
		JourneyID:    record.ID,
		Completed:    record.Completed,
		Cancelled:    record.Cancelled,
		EndedAt:      *record.EndedAt,
		Checkpoints:  len(record.Checkpoints),
		Breadcrumbs:  len(record.Breadcrumbs),
		RerouteCount: record.RerouteCount,
	}
	if record.UserID != nil {
		event.UserID = *record.UserID
	}
	if !record.StartedAt.IsZero() {
		event.ElapsedSeconds = int(record.EndedAt.Sub(record.StartedAt).Seconds())
	}

	return event, true
}
