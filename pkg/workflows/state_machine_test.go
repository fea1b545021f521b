package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestStateMachineTransitions(t *testing.T) {
	sm := NewRequestStateMachine()

	assert.True(t, sm.CanTransition("Under Review", "Approved"))
	assert.True(t, sm.CanTransition("Under Review", "Denied"))
	assert.True(t, sm.CanTransition("Approved", "Complete"))
	assert.True(t, sm.CanTransition("Approved", "Denied"))

	assert.False(t, sm.CanTransition("Under Review", "Complete"))
	assert.False(t, sm.CanTransition("Denied", "Approved"))
	assert.False(t, sm.CanTransition("Complete", "Denied"))
	assert.False(t, sm.CanTransition("Nonexistent", "Approved"))
}

func TestRequestStateMachineTerminalStates(t *testing.T) {
	sm := NewRequestStateMachine()

	assert.False(t, sm.IsTerminal("Under Review"))
	assert.False(t, sm.IsTerminal("Approved"))
	assert.True(t, sm.IsTerminal("Denied"))
	assert.True(t, sm.IsTerminal("Complete"))

	assert.ElementsMatch(t, []string{"Complete", "Denied"}, sm.GetAllowedTransitions("Approved"))
	assert.Empty(t, sm.GetAllowedTransitions("Complete"))
	assert.Empty(t, sm.GetAllowedTransitions("Nonexistent"))
}
