package journey

import (
	"fmt"
	"time"
)

type Checkpoint struct {
	StepIndex   int    `groups:"basic"`
	Instruction string `groups:"basic"`
	RoadName    string `groups:"basic"`
	Maneuver    string `groups:"basic"`

	ArrivedAt  time.Time  `groups:"basic"`
	Coordinate Coordinate `groups:"basic"`

	DistanceFromPreviousMeters *int `groups:"detailed"`
}

func (c Checkpoint) clone() Checkpoint {
	c.DistanceFromPreviousMeters = cloneInt(c.DistanceFromPreviousMeters)
	return c
}

func (c Checkpoint) String() string {
	if c.RoadName == "" {
		return fmt.Sprintf("#%d %s", c.StepIndex, c.Instruction)
	}

	return fmt.Sprintf("#%d %s (%s)", c.StepIndex, c.Instruction, c.RoadName)
}
