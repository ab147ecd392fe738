package levelwise

import "encoding/json"

// State is a phase of the level loop.
type State int

const (
	StateIdle State = iota
	StateTraining
	StateEvaluating
	StateRelabeling
	StateDone
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTraining:
		return "training"
	case StateEvaluating:
		return "evaluating"
	case StateRelabeling:
		return "relabeling"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Transition is a state change of a run. Level is the level the new
// state belongs to, 0 for Idle and Done.
type Transition struct {
	From  State `json:"from"`
	To    State `json:"to"`
	Level int   `json:"level"`
}
