package navigation

import (
	"encoding/json"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
	"golang.org/x/exp/slices"
)

const LocationQueueName = "navigation-locations"

// LocationMessage is the queue payload for a single device location fix
type LocationMessage struct {
	JourneyID string `json:"journey_id,omitempty"`

	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`

	SpeedMps  *float64 `json:"speed_mps,omitempty"`
	AccuracyM *float64 `json:"accuracy_m,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
}

func NewLocationMessage(journeyID string, sample LocationSample) LocationMessage {
	return LocationMessage{
		JourneyID: journeyID,
		Latitude:  sample.Coordinate.Latitude,
		Longitude: sample.Coordinate.Longitude,
		Timestamp: sample.Timestamp,
		SpeedMps:  sample.SpeedMps,
		AccuracyM: sample.AccuracyM,
		Heading:   sample.Heading,
	}
}

func (m LocationMessage) Sample() LocationSample {
	return LocationSample{
		Coordinate: journey.Coordinate{Latitude: m.Latitude, Longitude: m.Longitude},
		Timestamp:  m.Timestamp,
		SpeedMps:   m.SpeedMps,
		AccuracyM:  m.AccuracyM,
		Heading:    m.Heading,
	}
}

func (m LocationMessage) MarshalBinary() ([]byte, error) {
	return json.Marshal(m)
}

// LocationQueueConsumer feeds queued location fixes into a coordinator. Fixes
// tagged with another journey's id are acknowledged and dropped.
type LocationQueueConsumer struct {
	coordinator *Coordinator
}

func NewLocationQueueConsumer(coordinator *Coordinator) *LocationQueueConsumer {
	return &LocationQueueConsumer{coordinator: coordinator}
}

func (consumer *LocationQueueConsumer) Consume(batch rmq.Deliveries) {
	var messages []LocationMessage

	for _, delivery := range batch {
		var message LocationMessage
		if err := json.Unmarshal([]byte(delivery.Payload()), &message); err != nil {
			log.Error().Err(err).Msg("Failed to decode location message")

			if err := delivery.Reject(); err != nil {
				log.Error().Err(err).Msg("Failed to reject location message")
			}
			continue
		}

		messages = append(messages, message)

		if err := delivery.Ack(); err != nil {
			log.Error().Err(err).Msg("Failed to ack location message")
		}
	}

	slices.SortStableFunc(messages, func(a, b LocationMessage) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	activeJourney := consumer.coordinator.Snapshot().JourneyID

	for _, message := range messages {
		if message.JourneyID != "" && message.JourneyID != activeJourney {
			log.Debug().Str("journey", message.JourneyID).Msg("Dropping location for inactive journey")
			continue
		}

		consumer.coordinator.OnLocation(message.Sample())
	}
}
