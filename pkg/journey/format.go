package journey

import (
	"fmt"
	"math"
)

const (
	FeetPerMeter = 3.28084
	FeetPerMile  = 5280.0
)

func MetersToFeet(meters float64) float64 {
	return meters * FeetPerMeter
}

// FormatDistance renders metres in imperial units, switching to miles from a tenth of a mile
func FormatDistance(meters int) string {
	feet := MetersToFeet(float64(meters))
	miles := feet / FeetPerMile

	if miles >= 0.1 {
		return fmt.Sprintf("%.1f miles", miles)
	}

	return fmt.Sprintf("%d feet", int(math.Round(feet)))
}

func FormatDuration(seconds int) string {
	if seconds < 60 {
		return "< 1 min"
	}

	minutes := seconds / 60
	hours := minutes / 60
	minutes = minutes % 60

	switch {
	case hours == 0:
		return fmt.Sprintf("%d min", minutes)
	case minutes == 0:
		return fmt.Sprintf("%d hr", hours)
	}

	return fmt.Sprintf("%d hr %d min", hours, minutes)
}

func (s RouteSummary) String() string {
	return fmt.Sprintf("%s, %s, %d steps", FormatDistance(s.DistanceMeters), FormatDuration(s.DurationSeconds), s.StepCount)
}

// DisplayName prefers the friendly name over the street address
func (p Place) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}

	return p.Address
}
