package navigation

import (
	"fmt"
	"time"

	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
	"github.com/varunjain2021/guido-1-sub002/pkg/util"
)

// RouteSnapshot is the remaining distance and time at one instant
type RouteSnapshot struct {
	DistanceMeters  int
	DurationSeconds int
}

type rerouteDetector struct {
	config Config

	startedAt           time.Time
	handledInitialRoute bool
	last                RouteSnapshot
}

func newRerouteDetector(config Config, startedAt time.Time, initial RouteSnapshot) *rerouteDetector {
	return &rerouteDetector{
		config:    config,
		startedAt: startedAt,
		last:      initial,
	}
}

// Evaluate reports whether a route change is worth telling the user about. The
// stored snapshot is replaced on every call, suppressed or not.
func (d *rerouteDetector) Evaluate(now time.Time, current RouteSnapshot, speedMps *float64) (bool, string) {
	previous := d.last
	d.last = current

	if !d.handledInitialRoute {
		d.handledInitialRoute = true
		return false, "initial route"
	}

	if now.Sub(d.startedAt) < d.config.InitialRouteGrace {
		return false, "initial route refinement"
	}

	distanceDelta := util.AbsDiff(current.DistanceMeters, previous.DistanceMeters)
	timeDelta := util.AbsDiff(current.DurationSeconds, previous.DurationSeconds)

	if distanceDelta < d.config.RerouteMinDistanceMeters && timeDelta < d.config.RerouteMinTimeSeconds {
		return false, "insignificant change"
	}

	if speedMps != nil && *speedMps < d.config.StationarySpeedMps {
		return false, "stationary"
	}

	return true, fmt.Sprintf("New route is %s, about %s", journey.FormatDistance(current.DistanceMeters), journey.FormatDuration(current.DurationSeconds))
}
