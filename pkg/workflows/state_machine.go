package workflows

// StateMachine enforces allowed status transitions. The transition table is
// fixed at construction; unknown states have no outgoing transitions.
type StateMachine struct {
	allowed map[string][]string
}

// NewStateMachine creates a state machine from a transition table.
func NewStateMachine(allowed map[string][]string) *StateMachine {
	return &StateMachine{allowed: allowed}
}

// CanTransition checks if a status transition is allowed.
func (sm *StateMachine) CanTransition(from, to string) bool {
	for _, next := range sm.allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedFrom returns the allowed next statuses for a given status.
func (sm *StateMachine) AllowedFrom(from string) []string {
	allowed, exists := sm.allowed[from]
	if !exists {
		return []string{}
	}
	return allowed
}
