package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	sm := NewStateMachine(map[string][]string{
		"idle":   {"saving"},
		"saving": {"saved", "error"},
	})

	assert.True(t, sm.CanTransition("idle", "saving"))
	assert.True(t, sm.CanTransition("saving", "error"))
	assert.False(t, sm.CanTransition("idle", "saved"))
	assert.False(t, sm.CanTransition("saved", "idle"))
	assert.False(t, sm.CanTransition("unknown", "saving"))
}

func TestAllowedFrom(t *testing.T) {
	sm := NewStateMachine(map[string][]string{
		"saving": {"saved", "error"},
	})

	assert.Equal(t, []string{"saved", "error"}, sm.AllowedFrom("saving"))
	assert.Empty(t, sm.AllowedFrom("unknown"))
}
