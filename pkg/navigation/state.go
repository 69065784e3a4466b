package navigation

import "fmt"

type State int

const (
	StateIdle State = iota
	StateCalculating
	StateEnRoute
	StateRerouting
	StateArrived
	StateStopped
	StateError
)

var stateNames = map[State]string{
	StateIdle:        "idle",
	StateCalculating: "calculating",
	StateEnRoute:     "en_route",
	StateRerouting:   "rerouting",
	StateArrived:     "arrived",
	StateStopped:     "stopped",
	StateError:       "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}

	return fmt.Errorf("unknown navigation state %q", text)
}

// Navigating is true while a session owns the coordinator
func (s State) Navigating() bool {
	switch s {
	case StateCalculating, StateEnRoute, StateRerouting, StateArrived, StateStopped:
		return true
	}

	return false
}

// Guiding is true while telemetry is flowing for an established route
func (s State) Guiding() bool {
	return s == StateEnRoute || s == StateRerouting
}
