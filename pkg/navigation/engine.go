package navigation

import (
	"context"
	"time"

	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
)

type GuidanceState string

const (
	GuidanceUnknown   GuidanceState = "unknown"
	GuidanceEnRoute   GuidanceState = "enroute"
	GuidanceRerouting GuidanceState = "rerouting"
	GuidanceStopped   GuidanceState = "stopped"
)

// Step is one maneuver of a route as reported by the routing engine
type Step struct {
	Index       int
	Instruction string
	RoadName    string
	Maneuver    string
	Coordinate  journey.Coordinate

	// Length from this maneuver to the following one
	DistanceMeters float64
}

type NavInfo struct {
	State                GuidanceState
	CurrentStep          *Step
	DistanceToStepMeters float64
	TimeToStepSeconds    float64
	RemainingSteps       []Step
}

type Waypoint struct {
	Title      string
	Coordinate journey.Coordinate
}

type LocationSample struct {
	Coordinate journey.Coordinate
	Timestamp  time.Time

	SpeedMps  *float64
	AccuracyM *float64
	Heading   *float64
}

type RouteRequest struct {
	Origin      *journey.Place
	Destination journey.Place
	Mode        journey.TravelMode
}

type Route struct {
	DistanceMeters  float64
	DurationSeconds float64
	Steps           []Step
}

// TelemetryListener receives the routing engine's navigation feed. Callbacks
// may arrive on any goroutine.
type TelemetryListener interface {
	Arrived(waypoint Waypoint)
	RouteChanged()
	RemainingTimeUpdated(seconds float64)
	RemainingDistanceUpdated(meters float64)
	NavInfoUpdated(info NavInfo)
}

type NavTelemetrySource interface {
	AddListener(listener TelemetryListener)
	RemoveListener(listener TelemetryListener)
}

// RoutingEngine is the turn by turn engine that computes routes and drives guidance.
// Route failures should be one of the route errors in this package; anything
// else is reported as ErrRouteCalculationFailed. Listeners must not be called
// from inside StartGuidance, and StopGuidance must not wait for a listener
// callback to return.
type RoutingEngine interface {
	NavTelemetrySource

	AcceptTerms(ctx context.Context) error
	CalculateRoute(ctx context.Context, request RouteRequest) (*Route, error)
	StartGuidance(ctx context.Context) error
	StopGuidance()
}

// LocationListener is implemented by listeners that also take raw position
// samples. Engines that report positions should check for it.
type LocationListener interface {
	LocationUpdated(sample LocationSample)
}
