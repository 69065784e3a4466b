package navigation

import (
	"fmt"
	"math"
	"time"

	"github.com/varunjain2021/guido-1-sub002/pkg/journey"
	"github.com/varunjain2021/guido-1-sub002/pkg/util"
)

// Stage buckets the distance to the next maneuver, lower is closer
type Stage int

const (
	StageImmediate Stage = iota
	StageNear
	StageFar
	StageDistant
)

const (
	immediateStageMeters = 30
	nearStageMeters      = 150
	farStageMeters       = 800
)

func StageFor(distanceMeters int) Stage {
	switch {
	case distanceMeters <= immediateStageMeters:
		return StageImmediate
	case distanceMeters <= nearStageMeters:
		return StageNear
	case distanceMeters <= farStageMeters:
		return StageFar
	}

	return StageDistant
}

func (s Stage) String() string {
	switch s {
	case StageImmediate:
		return "immediate"
	case StageNear:
		return "near"
	case StageFar:
		return "far"
	}

	return "distant"
}

// AnnouncementPolicy decides when the approaching maneuver is spoken again.
// Evaluating never mutates the policy, MarkAnnounced records what was spoken.
type AnnouncementPolicy struct {
	debounce time.Duration
	reminder time.Duration

	announced       bool
	lastStepIndex   int
	lastStage       Stage
	lastAnnouncedAt time.Time
}

func NewAnnouncementPolicy(config Config) *AnnouncementPolicy {
	return &AnnouncementPolicy{
		debounce:      config.DebounceInterval,
		reminder:      config.ReminderInterval,
		lastStepIndex: -1,
	}
}

func (p *AnnouncementPolicy) ShouldAnnounce(stepIndex int, distanceMeters int, now time.Time) bool {
	if !p.announced || stepIndex != p.lastStepIndex {
		return true
	}

	elapsed := now.Sub(p.lastAnnouncedAt)
	if elapsed < p.debounce {
		return false
	}
	if elapsed >= p.reminder {
		return true
	}

	return StageFor(distanceMeters) < p.lastStage
}

func (p *AnnouncementPolicy) MarkAnnounced(stepIndex int, distanceMeters int, now time.Time) {
	p.announced = true
	p.lastStepIndex = stepIndex
	p.lastStage = StageFor(distanceMeters)
	p.lastAnnouncedAt = now
}

// LastStepIndex is -1 until something has been announced
func (p *AnnouncementPolicy) LastStepIndex() int {
	return p.lastStepIndex
}

const (
	verbatimMaxFeet   = 100
	feetPhraseMaxFeet = 500
)

// SpokenInstruction prefixes the instruction with the distance left to reach it
func SpokenInstruction(instruction string, distanceMeters int) string {
	feet := journey.MetersToFeet(float64(distanceMeters))
	miles := feet / journey.FeetPerMile

	switch {
	case feet <= verbatimMaxFeet:
		return instruction
	case feet > feetPhraseMaxFeet && miles >= 0.1:
		return fmt.Sprintf("In %.1f miles, %s", miles, util.LowerFirst(instruction))
	}

	return fmt.Sprintf("In %d feet, %s", int(math.Round(feet)), util.LowerFirst(instruction))
}
