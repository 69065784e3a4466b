package journey

import "time"

// Record is the persisted representation of a Journey, one row/document per journey
type Record struct {
	ID        string  `json:"id" bson:"_id"`
	UserID    *string `json:"user_id,omitempty" bson:"user_id,omitempty"`
	SessionID *string `json:"session_id,omitempty" bson:"session_id,omitempty"`

	OriginAddress *string  `json:"origin_address" bson:"origin_address"`
	OriginLat     *float64 `json:"origin_lat" bson:"origin_lat"`
	OriginLng     *float64 `json:"origin_lng" bson:"origin_lng"`

	DestinationAddress string  `json:"destination_address" bson:"destination_address"`
	DestinationLat     float64 `json:"destination_lat" bson:"destination_lat"`
	DestinationLng     float64 `json:"destination_lng" bson:"destination_lng"`
	DestinationName    *string `json:"destination_name" bson:"destination_name"`

	TravelMode string `json:"travel_mode" bson:"travel_mode"`

	StartedAt time.Time  `json:"started_at" bson:"started_at"`
	EndedAt   *time.Time `json:"ended_at" bson:"ended_at"`
	Completed bool       `json:"completed" bson:"completed"`
	Cancelled bool       `json:"cancelled" bson:"cancelled"`

	TotalDistanceMeters  *int `json:"total_distance_meters" bson:"total_distance_meters"`
	TotalDurationSeconds *int `json:"total_duration_seconds" bson:"total_duration_seconds"`
	TotalSteps           *int `json:"total_steps" bson:"total_steps"`

	Checkpoints []CheckpointRecord `json:"checkpoints" bson:"checkpoints"`
	Breadcrumbs []BreadcrumbRecord `json:"breadcrumbs" bson:"breadcrumbs"`

	RerouteCount  int        `json:"reroute_count" bson:"reroute_count"`
	LastRerouteAt *time.Time `json:"last_reroute_at" bson:"last_reroute_at"`
}

type CheckpointRecord struct {
	StepIndex                  int       `json:"step_index" bson:"step_index" csv:"step_index"`
	Instruction                string    `json:"instruction" bson:"instruction" csv:"instruction"`
	RoadName                   *string   `json:"road_name" bson:"road_name" csv:"road_name"`
	Maneuver                   string    `json:"maneuver" bson:"maneuver" csv:"maneuver"`
	ArrivedAt                  time.Time `json:"arrived_at" bson:"arrived_at" csv:"arrived_at"`
	Lat                        float64   `json:"lat" bson:"lat" csv:"lat"`
	Lng                        float64   `json:"lng" bson:"lng" csv:"lng"`
	DistanceFromPreviousMeters *int      `json:"distance_from_previous_meters" bson:"distance_from_previous_meters" csv:"distance_from_previous_meters"`
}

type BreadcrumbRecord struct {
	Lat       float64   `json:"lat" bson:"lat" csv:"lat"`
	Lng       float64   `json:"lng" bson:"lng" csv:"lng"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp" csv:"timestamp"`
	SpeedMps  *float64  `json:"speed_mps" bson:"speed_mps" csv:"speed_mps"`
	AccuracyM *float64  `json:"accuracy_m" bson:"accuracy_m" csv:"accuracy_m"`
	Heading   *float64  `json:"heading" bson:"heading" csv:"heading"`
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func valueOf(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func ToRecord(j *Journey) Record {
	record := Record{
		ID:        j.ID,
		UserID:    optionalString(j.UserID),
		SessionID: optionalString(j.SessionID),

		DestinationAddress: j.Destination.Address,
		DestinationLat:     j.Destination.Coordinate.Latitude,
		DestinationLng:     j.Destination.Coordinate.Longitude,
		DestinationName:    optionalString(j.Destination.Name),

		TravelMode: string(j.Mode),

		StartedAt: j.StartedAt,
		EndedAt:   cloneTime(j.EndedAt),
		Completed: j.Completed,
		Cancelled: j.Cancelled,

		Checkpoints: CheckpointRecords(j.Checkpoints),
		Breadcrumbs: BreadcrumbRecords(j.Breadcrumbs),

		RerouteCount:  j.RerouteCount,
		LastRerouteAt: cloneTime(j.LastRerouteAt),
	}

	if j.Origin != nil {
		lat := j.Origin.Coordinate.Latitude
		lng := j.Origin.Coordinate.Longitude

		record.OriginAddress = optionalString(j.Origin.Address)
		record.OriginLat = &lat
		record.OriginLng = &lng
	}

	if j.RouteSummary != nil {
		distance := j.RouteSummary.DistanceMeters
		duration := j.RouteSummary.DurationSeconds
		steps := j.RouteSummary.StepCount

		record.TotalDistanceMeters = &distance
		record.TotalDurationSeconds = &duration
		record.TotalSteps = &steps
	}

	return record
}

func (r Record) ToJourney() *Journey {
	j := &Journey{
		ID:        r.ID,
		UserID:    valueOf(r.UserID),
		SessionID: valueOf(r.SessionID),
		Destination: Place{
			Address:    r.DestinationAddress,
			Name:       valueOf(r.DestinationName),
			Coordinate: Coordinate{Latitude: r.DestinationLat, Longitude: r.DestinationLng},
		},
		Mode:          TravelMode(r.TravelMode),
		StartedAt:     r.StartedAt,
		EndedAt:       cloneTime(r.EndedAt),
		Completed:     r.Completed,
		Cancelled:     r.Cancelled,
		Checkpoints:   make([]Checkpoint, 0, len(r.Checkpoints)),
		Breadcrumbs:   make([]Breadcrumb, 0, len(r.Breadcrumbs)),
		RerouteCount:  r.RerouteCount,
		LastRerouteAt: cloneTime(r.LastRerouteAt),
	}

	if r.OriginLat != nil && r.OriginLng != nil {
		j.Origin = &Place{
			Address:    valueOf(r.OriginAddress),
			Coordinate: Coordinate{Latitude: *r.OriginLat, Longitude: *r.OriginLng},
		}
	}

	if r.TotalDistanceMeters != nil || r.TotalDurationSeconds != nil || r.TotalSteps != nil {
		j.RouteSummary = &RouteSummary{}
		if r.TotalDistanceMeters != nil {
			j.RouteSummary.DistanceMeters = *r.TotalDistanceMeters
		}
		if r.TotalDurationSeconds != nil {
			j.RouteSummary.DurationSeconds = *r.TotalDurationSeconds
		}
		if r.TotalSteps != nil {
			j.RouteSummary.StepCount = *r.TotalSteps
		}
	}

	for _, c := range r.Checkpoints {
		j.Checkpoints = append(j.Checkpoints, c.ToCheckpoint())
	}
	for _, b := range r.Breadcrumbs {
		j.Breadcrumbs = append(j.Breadcrumbs, b.ToBreadcrumb())
	}

	return j
}

func CheckpointRecords(checkpoints []Checkpoint) []CheckpointRecord {
	records := make([]CheckpointRecord, 0, len(checkpoints))
	for _, c := range checkpoints {
		records = append(records, NewCheckpointRecord(c))
	}

	return records
}

func NewCheckpointRecord(c Checkpoint) CheckpointRecord {
	return CheckpointRecord{
		StepIndex:                  c.StepIndex,
		Instruction:                c.Instruction,
		RoadName:                   optionalString(c.RoadName),
		Maneuver:                   c.Maneuver,
		ArrivedAt:                  c.ArrivedAt,
		Lat:                        c.Coordinate.Latitude,
		Lng:                        c.Coordinate.Longitude,
		DistanceFromPreviousMeters: cloneInt(c.DistanceFromPreviousMeters),
	}
}

func (c CheckpointRecord) ToCheckpoint() Checkpoint {
	return Checkpoint{
		StepIndex:                  c.StepIndex,
		Instruction:                c.Instruction,
		RoadName:                   valueOf(c.RoadName),
		Maneuver:                   c.Maneuver,
		ArrivedAt:                  c.ArrivedAt,
		Coordinate:                 Coordinate{Latitude: c.Lat, Longitude: c.Lng},
		DistanceFromPreviousMeters: cloneInt(c.DistanceFromPreviousMeters),
	}
}

func BreadcrumbRecords(breadcrumbs []Breadcrumb) []BreadcrumbRecord {
	records := make([]BreadcrumbRecord, 0, len(breadcrumbs))
	for _, b := range breadcrumbs {
		records = append(records, NewBreadcrumbRecord(b))
	}

	return records
}

func NewBreadcrumbRecord(b Breadcrumb) BreadcrumbRecord {
	return BreadcrumbRecord{
		Lat:       b.Coordinate.Latitude,
		Lng:       b.Coordinate.Longitude,
		Timestamp: b.Timestamp,
		SpeedMps:  cloneFloat(b.SpeedMps),
		AccuracyM: cloneFloat(b.AccuracyM),
		Heading:   cloneFloat(b.Heading),
	}
}

func (b BreadcrumbRecord) ToBreadcrumb() Breadcrumb {
	return Breadcrumb{
		Coordinate: Coordinate{Latitude: b.Lat, Longitude: b.Lng},
		Timestamp:  b.Timestamp,
		SpeedMps:   cloneFloat(b.SpeedMps),
		AccuracyM:  cloneFloat(b.AccuracyM),
		Heading:    cloneFloat(b.Heading),
	}
}
