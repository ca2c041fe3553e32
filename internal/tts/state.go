package tts

// PlaybackState is the lifecycle state of a SpeechJob.
type PlaybackState int

const (
	// StateIdle indicates the job has been created but not started.
	StateIdle PlaybackState = iota
	// StateSynthesizing indicates the engine is producing audio.
	StateSynthesizing
	// StatePlaying indicates audio and spans are being emitted.
	StatePlaying
	// StateCompleted indicates the job finished normally.
	StateCompleted
	// StateCancelled indicates the job was stopped or superseded.
	StateCancelled
	// StateFailed indicates initialization, synthesis or playback failed.
	StateFailed
)

// String returns the string representation of the state.
func (s PlaybackState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSynthesizing:
		return "synthesizing"
	case StatePlaying:
		return "playing"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal returns true if no further transitions are possible.
func (s PlaybackState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// StateMachine manages state transitions for one speech job. It is not
// safe for concurrent use; the coordinator guards it with its mutex.
type StateMachine struct {
	current     PlaybackState
	transitions map[PlaybackState][]PlaybackState
}

// NewStateMachine creates a new state machine with valid transitions.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[PlaybackState][]PlaybackState{
			StateIdle:         {StateSynthesizing, StateCompleted, StateCancelled, StateFailed},
			StateSynthesizing: {StatePlaying, StateCancelled, StateFailed},
			StatePlaying:      {StateCompleted, StateCancelled, StateFailed},
		},
	}
}

// CanTransition reports whether moving to the given state is allowed.
func (sm *StateMachine) CanTransition(to PlaybackState) bool {
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			return true
		}
	}
	return false
}

// Transition attempts to transition to the specified state.
func (sm *StateMachine) Transition(to PlaybackState) bool {
	if !sm.CanTransition(to) {
		return false
	}
	sm.current = to
	return true
}

// Current returns the current state.
func (sm *StateMachine) Current() PlaybackState {
	return sm.current
}
