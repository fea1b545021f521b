package workflows

// StateMachine enforces request status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewRequestStateMachine returns the life-cycle of a portal request.
// Under Review may be approved or denied; an approved request is either
// processed to completion or denied before processing. Denied and
// Complete are terminal.
func NewRequestStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"Under Review": {"Approved", "Denied"},
			"Approved":     {"Complete", "Denied"},
			"Denied":       {},
			"Complete":     {},
		},
	}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}

// IsTerminal reports whether no further transitions exist from the
// given status.
func (sm *StateMachine) IsTerminal(from string) bool {
	return len(sm.allowedTransitions[from]) == 0
}
