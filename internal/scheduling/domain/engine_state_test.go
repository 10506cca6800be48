package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineState_Transition(t *testing.T) {
	tests := []struct {
		from    EngineState
		to      EngineState
		allowed bool
	}{
		{StateIdle, StatePlanning, true},
		{StateIdle, StateAutonomous, false},
		{StatePlanning, StateAutonomous, true},
		{StatePlanning, StateIdle, true},
		{StateAutonomous, StateReplanning, true},
		{StateAutonomous, StatePaused, true},
		{StateAutonomous, StateIdle, true},
		{StateReplanning, StateAutonomous, true},
		{StateReplanning, StatePaused, false},
		{StatePaused, StateAutonomous, true},
		{StatePaused, StateReplanning, false},
		{StatePaused, StateIdle, true},
		{StateIdle, StatePaused, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			next, err := tt.from.Transition(tt.to)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, next)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, tt.from, next)
		})
	}
}

func TestEngineState_IsRunning(t *testing.T) {
	assert.True(t, StateAutonomous.IsRunning())
	assert.True(t, StateReplanning.IsRunning())
	assert.True(t, StatePlanning.IsRunning())
	assert.False(t, StateIdle.IsRunning())
	assert.False(t, StatePaused.IsRunning())
}
