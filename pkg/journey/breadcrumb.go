package journey

import (
	"time"

	"github.com/varunjain2021/guido-1-sub002/pkg/util"
)

type Breadcrumb struct {
	Coordinate Coordinate `groups:"basic"`
	Timestamp  time.Time  `groups:"basic"`

	SpeedMps  *float64 `groups:"basic"`
	AccuracyM *float64 `groups:"detailed"`
	Heading   *float64 `groups:"detailed"`
}

// NewBreadcrumb normalises sensor readings. Negative or non-finite speed and
// accuracy are stored as absent, as is any heading outside [0, 360).
func NewBreadcrumb(coordinate Coordinate, timestamp time.Time, speed, accuracy, heading *float64) Breadcrumb {
	breadcrumb := Breadcrumb{
		Coordinate: coordinate,
		Timestamp:  timestamp,
		SpeedMps:   util.SafeFloat(speed),
		AccuracyM:  util.SafeFloat(accuracy),
		Heading:    util.SafeFloat(heading),
	}

	if breadcrumb.Heading != nil && *breadcrumb.Heading >= 360 {
		breadcrumb.Heading = nil
	}

	return breadcrumb
}

func (b Breadcrumb) clone() Breadcrumb {
	b.SpeedMps = cloneFloat(b.SpeedMps)
	b.AccuracyM = cloneFloat(b.AccuracyM)
	b.Heading = cloneFloat(b.Heading)
	return b
}
