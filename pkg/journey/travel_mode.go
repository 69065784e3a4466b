package journey

import (
	"fmt"
	"strings"
)

type TravelMode string

const (
	TravelModeDriving TravelMode = "driving"
	TravelModeWalking TravelMode = "walking"
	TravelModeTransit TravelMode = "transit"
	TravelModeCycling TravelMode = "cycling"
)

func ParseTravelMode(s string) (TravelMode, error) {
	mode := TravelMode(strings.ToLower(strings.TrimSpace(s)))

	switch mode {
	case TravelModeDriving, TravelModeWalking, TravelModeTransit, TravelModeCycling:
		return mode, nil
	case "":
		return TravelModeDriving, nil
	}

	return "", fmt.Errorf("unknown travel mode %q", s)
}
