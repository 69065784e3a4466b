package navigation

import (
	"time"

	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
)

// Snapshot is an immutable copy of what the coordinator knows right now
type Snapshot struct {
	State     State  `json:"state"`
	LastError string `json:"last_error,omitempty"`

	JourneyID   string             `json:"journey_id,omitempty"`
	Destination *journey.Place     `json:"destination,omitempty"`
	Mode        journey.TravelMode `json:"mode,omitempty"`

	CurrentStepIndex   int    `json:"current_step_index"`
	CurrentInstruction string `json:"current_instruction,omitempty"`
	CurrentRoadName    string `json:"current_road_name,omitempty"`
	CurrentManeuver    string `json:"current_maneuver,omitempty"`
	NextInstruction    string `json:"next_instruction,omitempty"`

	DistanceToNextTurnMeters int `json:"distance_to_next_turn_meters"`
	TimeToNextTurnSeconds    int `json:"time_to_next_turn_seconds"`
	StepsRemaining           int `json:"steps_remaining"`

	RemainingDistanceMeters int `json:"remaining_distance_meters"`
	RemainingTimeSeconds    int `json:"remaining_time_seconds"`

	RerouteCount       int                 `json:"reroute_count"`
	PendingBreadcrumbs int                 `json:"pending_breadcrumbs"`
	LastLocation       *journey.Coordinate `json:"last_location,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// guidanceFields are the observable values refreshed from telemetry
type guidanceFields struct {
	currentStep       *Step
	nextInstruction   string
	distanceToStep    int
	timeToStep        int
	stepsRemaining    int
	remainingDistance int
	remainingTime     int
	lastSpeedMps      *float64
	lastLocation      *journey.Coordinate
	lastTelemetryAt   time.Time
}
