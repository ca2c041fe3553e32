package tts

import "testing"

func TestStateMachineTransitions(t *testing.T) {
	tests := []struct {
		name  string
		path  []PlaybackState
		valid bool
	}{
		{"system job", []PlaybackState{StateSynthesizing, StatePlaying, StateCompleted}, true},
		{"empty input", []PlaybackState{StateCompleted}, true},
		{"cancel before start", []PlaybackState{StateCancelled}, true},
		{"fail during synthesis", []PlaybackState{StateSynthesizing, StateFailed}, true},
		{"cancel while playing", []PlaybackState{StateSynthesizing, StatePlaying, StateCancelled}, true},
		{"skip synthesis", []PlaybackState{StatePlaying}, false},
		{"complete during synthesis", []PlaybackState{StateSynthesizing, StateCompleted}, false},
		{"leave terminal state", []PlaybackState{StateCancelled, StatePlaying}, false},
		{"end twice", []PlaybackState{StateSynthesizing, StateFailed, StateCancelled}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewStateMachine()
			ok := true
			for _, to := range tt.path {
				if !sm.Transition(to) {
					ok = false
					break
				}
			}
			if ok != tt.valid {
				t.Errorf("path %v valid = %v, want %v", tt.path, ok, tt.valid)
			}
		})
	}
}

func TestStateMachineRejectedTransitionKeepsState(t *testing.T) {
	sm := NewStateMachine()
	if sm.Transition(StatePlaying) {
		t.Fatal("idle -> playing should be rejected")
	}
	if sm.Current() != StateIdle {
		t.Errorf("Current() = %v, want idle", sm.Current())
	}
}

func TestPlaybackStateTerminal(t *testing.T) {
	tests := []struct {
		state    PlaybackState
		name     string
		terminal bool
	}{
		{StateIdle, "idle", false},
		{StateSynthesizing, "synthesizing", false},
		{StatePlaying, "playing", false},
		{StateCompleted, "completed", true},
		{StateCancelled, "cancelled", true},
		{StateFailed, "failed", true},
		{PlaybackState(42), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.state.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}
