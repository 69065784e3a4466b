package journeysink

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/varunjain2021/guido-1-sub002/pkg/database"
)

// NewFromEnvironment picks the sink named by GUIDO_SINK, defaulting to the REST store
func NewFromEnvironment() (Sink, error) {
	switch kind := os.Getenv("GUIDO_SINK"); kind {
	case "", "rest":
		config := GetRESTConfig()
		sink, err := NewRESTSink(config, nil)
		if err != nil {
			return nil, err
		}

		log.Info().
			Str("endpoint", config.BaseURL).
			Str("table", config.Table).
			Bool("optimisticconcurrency", config.OptimisticConcurrency).
			Msg("Using REST journey sink")

		return sink, nil
	case "mongo":
		if err := database.Connect(); err != nil {
			return nil, err
		}

		log.Info().Str("collection", database.JourneysCollection).Msg("Using MongoDB journey sink")

		return NewMongoSink(database.GetCollection(database.JourneysCollection)), nil
	case "memory":
		log.Warn().Msg("Using in-memory journey sink, nothing will be kept after exit")

		return NewMemorySink(), nil
	default:
		return nil, fmt.Errorf("unknown journey sink %q", kind)
	}
}
