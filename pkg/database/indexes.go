package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func createIndexes() {
	createJourneysIndexes()
}

func createJourneysIndexes() {
	journeysCollection := GetCollection(JourneysCollection)

	userStartedIndexName := "UserStartedAt"
	_, err := journeysCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Options: &options.IndexOptions{
				Name: &userStartedIndexName,
			},
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "started_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "session_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "completed", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "breadcrumbs.timestamp", Value: 1}},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}
