package journeysink

import (
	"context"
	"errors"

	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoSink stores journeys as documents. $push gives it a native atomic
// append so it never needs the merge fallback.
type MongoSink struct {
	collection *mongo.Collection
}

func NewMongoSink(collection *mongo.Collection) *MongoSink {
	return &MongoSink{collection: collection}
}

func (s *MongoSink) CreateJourney(ctx context.Context, j *journey.Journey) (*journey.Journey, error) {
	if _, err := s.collection.InsertOne(ctx, journey.ToRecord(j)); err != nil {
		return nil, err
	}

	return j, nil
}

func (s *MongoSink) UpdateJourney(ctx context.Context, j *journey.Journey) error {
	record := journey.ToRecord(j)

	updateMap := bson.M{
		"ended_at":               record.EndedAt,
		"completed":              record.Completed,
		"cancelled":              record.Cancelled,
		"total_distance_meters":  record.TotalDistanceMeters,
		"total_duration_seconds": record.TotalDurationSeconds,
		"total_steps":            record.TotalSteps,
		"checkpoints":            record.Checkpoints,
		"breadcrumbs":            record.Breadcrumbs,
		"reroute_count":          record.RerouteCount,
		"last_reroute_at":        record.LastRerouteAt,
	}

	return s.updateOne(ctx, j.ID, bson.M{"$set": updateMap})
}

func (s *MongoSink) AppendBreadcrumbs(ctx context.Context, journeyID string, batch []journey.Breadcrumb) error {
	if len(batch) == 0 {
		return nil
	}

	return s.updateOne(ctx, journeyID, bson.M{
		"$push": bson.M{"breadcrumbs": bson.M{"$each": journey.BreadcrumbRecords(batch)}},
	})
}

func (s *MongoSink) AppendCheckpoint(ctx context.Context, journeyID string, checkpoint journey.Checkpoint) error {
	return s.updateOne(ctx, journeyID, bson.M{
		"$push": bson.M{"checkpoints": journey.NewCheckpointRecord(checkpoint)},
	})
}

func (s *MongoSink) FetchJourney(ctx context.Context, journeyID string) (*journey.Journey, error) {
	var record journey.Record

	err := s.collection.FindOne(ctx, bson.M{"_id": journeyID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return record.ToJourney(), nil
}

func (s *MongoSink) updateOne(ctx context.Context, journeyID string, update bson.M) error {
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": journeyID}, update)
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}
