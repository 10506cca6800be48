package domain

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid engine state transition")

// EngineState is the lifecycle state of the autonomous engine for one
// session. Paused is only reachable from Autonomous; a paused engine keeps
// its session state and resumes into an immediate evaluation pass.
type EngineState string

const (
	StateIdle       EngineState = "idle"
	StatePlanning   EngineState = "planning"
	StateAutonomous EngineState = "autonomous"
	StateReplanning EngineState = "replanning"
	StatePaused     EngineState = "paused"
)

// CanTransitionTo reports whether the move between states is legal.
func (s EngineState) CanTransitionTo(next EngineState) bool {
	switch s {
	case StateIdle:
		return next == StatePlanning
	case StatePlanning:
		return next == StateAutonomous || next == StateIdle
	case StateAutonomous:
		return next == StateReplanning || next == StatePaused || next == StateIdle
	case StateReplanning:
		return next == StateAutonomous || next == StateIdle
	case StatePaused:
		return next == StateAutonomous || next == StateIdle
	}
	return false
}

// Transition validates and returns the next state.
func (s EngineState) Transition(next EngineState) (EngineState, error) {
	if !s.CanTransitionTo(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}

// IsRunning reports whether the engine is actively watching the calendar.
func (s EngineState) IsRunning() bool {
	return s == StateAutonomous || s == StateReplanning || s == StatePlanning
}
