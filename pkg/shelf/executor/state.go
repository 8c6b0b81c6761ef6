package executor

import "fmt"

// State is the lifecycle state of one operation.
type State int

// Operation states. COMMITTED and FAILED are terminal.
const (
	StateRequested State = iota
	StateInProgress
	StateCommitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "REQUESTED"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateCommitted:
		return "COMMITTED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateFailed
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateRequested:
		// Validation and lock failures fail before any work starts.
		return to == StateInProgress || to == StateFailed
	case StateInProgress:
		return to == StateCommitted || to == StateFailed
	default:
		return false
	}
}

// transition moves *cur from `from` to `to`, refusing unexpected or
// disallowed changes.
func transition(cur *State, from, to State) error {
	if *cur != from {
		return fmt.Errorf("invalid transition: expected %s, got %s", from, *cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition: %s -> %s", from, to)
	}
	*cur = to
	return nil
}
