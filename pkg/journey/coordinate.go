package journey

import "math"

const earthRadiusMeters = 6371008.8

type Coordinate struct {
	Latitude  float64 `json:"lat" bson:"lat" groups:"basic" csv:"lat"`
	Longitude float64 `json:"lng" bson:"lng" groups:"basic" csv:"lng"`
}

func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}

	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// DistanceTo returns the great circle distance in metres
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	lat1 := c.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (other.Longitude - c.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

type Place struct {
	Address    string     `groups:"basic"`
	Name       string     `groups:"basic"`
	Coordinate Coordinate `groups:"basic"`
}
