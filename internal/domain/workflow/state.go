package workflow

import "github.com/garyjia/smt-log-parser/internal/models"

// State represents a stage in the lifecycle of a trace run
type State string

const (
	StateRunning   State = models.RunStatusRunning
	StateCompleted State = models.RunStatusCompleted
	StateTruncated State = models.RunStatusTruncated
	StateFailed    State = models.RunStatusFailed
)

var terminalStates = map[State]bool{
	StateCompleted: true,
	StateTruncated: true,
	StateFailed:    true,
}

// IsTerminal returns true if no further transitions leave the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsValid returns true if the state is a known run state
func (s State) IsValid() bool {
	return s == StateRunning || terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}
