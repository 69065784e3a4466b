package routingengine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
	"github.com/varunjain2021/guido-1-sub002/pkg/navigation"
	"gopkg.in/yaml.v3"
)

// Trace is a recorded navigation session: the route the engine would have
// calculated and the telemetry it emitted while guiding
type Trace struct {
	Name string `yaml:"name"`

	Origin      *TracePlace `yaml:"origin"`
	Destination *TracePlace `yaml:"destination"`
	Mode        string      `yaml:"mode"`

	DeclineTerms bool   `yaml:"decline_terms"`
	Failure      string `yaml:"failure"`

	Route  TraceRoute   `yaml:"route"`
	Events []TraceEvent `yaml:"events"`
}

type TracePlace struct {
	Address   string  `yaml:"address"`
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"lat"`
	Longitude float64 `yaml:"lng"`
}

func (p TracePlace) place() journey.Place {
	return journey.Place{
		Address:    p.Address,
		Name:       p.Name,
		Coordinate: journey.Coordinate{Latitude: p.Latitude, Longitude: p.Longitude},
	}
}

type TraceRoute struct {
	DistanceMeters  float64     `yaml:"distance_meters"`
	DurationSeconds float64     `yaml:"duration_seconds"`
	Steps           []TraceStep `yaml:"steps"`
}

type TraceStep struct {
	Instruction    string  `yaml:"instruction"`
	RoadName       string  `yaml:"road_name"`
	Maneuver       string  `yaml:"maneuver"`
	Latitude       float64 `yaml:"lat"`
	Longitude      float64 `yaml:"lng"`
	DistanceMeters float64 `yaml:"distance_meters"`
}

// TraceEvent is one telemetry callback, delivered After the previous one
type TraceEvent struct {
	After time.Duration `yaml:"after"`

	NavInfo           *TraceNavInfo  `yaml:"nav_info"`
	Location          *TraceLocation `yaml:"location"`
	RemainingDistance *float64       `yaml:"remaining_distance_meters"`
	RemainingTime     *float64       `yaml:"remaining_time_seconds"`
	RouteChanged      bool           `yaml:"route_changed"`
	Arrived           *TraceWaypoint `yaml:"arrived"`
}

type TraceNavInfo struct {
	Step                 int     `yaml:"step"`
	DistanceToStepMeters float64 `yaml:"distance_to_step_meters"`
	TimeToStepSeconds    float64 `yaml:"time_to_step_seconds"`
	State                string  `yaml:"state"`
}

type TraceLocation struct {
	Latitude  float64  `yaml:"lat"`
	Longitude float64  `yaml:"lng"`
	SpeedMps  *float64 `yaml:"speed_mps"`
	AccuracyM *float64 `yaml:"accuracy_m"`
	Heading   *float64 `yaml:"heading"`
}

type TraceWaypoint struct {
	Title     string  `yaml:"title"`
	Latitude  float64 `yaml:"lat"`
	Longitude float64 `yaml:"lng"`
}

var failures = map[string]error{
	"no_route":             navigation.ErrNoRouteFound,
	"network":              navigation.ErrNetwork,
	"quota_exceeded":       navigation.ErrQuotaExceeded,
	"api_key":              navigation.ErrAPIKeyNotAuthorized,
	"location_unavailable": navigation.ErrLocationUnavailable,
}

// LoadTraces reads every YAML document in the file as a trace
func LoadTraces(path string) ([]*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseTraces(data)
}

// FindTrace loads the trace called name from path, or the first one when name is empty
func FindTrace(path string, name string) (*Trace, error) {
	traces, err := LoadTraces(path)
	if err != nil {
		return nil, err
	}

	if name == "" {
		return traces[0], nil
	}

	for _, trace := range traces {
		if trace.Name == name {
			return trace, nil
		}
	}

	return nil, fmt.Errorf("no trace named %q in %s", name, path)
}

func ParseTraces(data []byte) ([]*Trace, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))

	var traces []*Trace
	for {
		var trace Trace
		err := decoder.Decode(&trace)
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, err
		}

		if err := trace.validate(); err != nil {
			return nil, fmt.Errorf("trace %q: %w", trace.Name, err)
		}

		traces = append(traces, &trace)
	}

	if len(traces) == 0 {
		return nil, errors.New("no traces found")
	}

	return traces, nil
}

func (t *Trace) validate() error {
	if t.Failure != "" {
		if _, ok := failures[t.Failure]; !ok {
			return fmt.Errorf("unknown failure %q", t.Failure)
		}
	}

	if _, err := journey.ParseTravelMode(t.Mode); err != nil {
		return err
	}

	for i, event := range t.Events {
		if event.NavInfo != nil && (event.NavInfo.Step < 0 || event.NavInfo.Step >= len(t.Route.Steps)) {
			return fmt.Errorf("event %d references step %d of %d", i, event.NavInfo.Step, len(t.Route.Steps))
		}
	}

	return nil
}

func (t *Trace) steps() []navigation.Step {
	steps := make([]navigation.Step, len(t.Route.Steps))
	for i, step := range t.Route.Steps {
		steps[i] = navigation.Step{
			Index:          i,
			Instruction:    step.Instruction,
			RoadName:       step.RoadName,
			Maneuver:       step.Maneuver,
			Coordinate:     journey.Coordinate{Latitude: step.Latitude, Longitude: step.Longitude},
			DistanceMeters: step.DistanceMeters,
		}
	}

	return steps
}

func (t *Trace) route() *navigation.Route {
	return &navigation.Route{
		DistanceMeters:  t.Route.DistanceMeters,
		DurationSeconds: t.Route.DurationSeconds,
		Steps:           t.steps(),
	}
}

// StartRequest is the session request the trace was recorded for. Without an
// explicit destination the final step of the route stands in for it.
func (t *Trace) StartRequest() navigation.StartRequest {
	mode, _ := journey.ParseTravelMode(t.Mode)

	request := navigation.StartRequest{
		SessionID: t.Name,
		Mode:      mode,
	}

	if t.Origin != nil {
		origin := t.Origin.place()
		request.Origin = &origin
	}

	if t.Destination != nil {
		request.Destination = t.Destination.place()
	} else if n := len(t.Route.Steps); n > 0 {
		last := t.Route.Steps[n-1]
		request.Destination = journey.Place{
			Address:    t.Name,
			Coordinate: journey.Coordinate{Latitude: last.Latitude, Longitude: last.Longitude},
		}
	}

	return request
}
