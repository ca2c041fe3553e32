package tts

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTTSErrorIsMatchesCode(t *testing.T) {
	stopped := NewTTSError(ErrorCodeCancelledByUser, "stopped from the keyboard", nil)
	if !errors.Is(stopped, ErrCancelledByUser) {
		t.Error("errors.Is should match errors carrying the same code")
	}
	if errors.Is(stopped, ErrCancelledBySupersession) {
		t.Error("errors.Is should not match a different code")
	}

	wrapped := fmt.Errorf("speak: %w", ErrCancelledBySupersession)
	if !errors.Is(wrapped, ErrCancelledBySupersession) {
		t.Error("errors.Is should see through wrapping")
	}
}

func TestTTSErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewSynthesisError(Cloud(ProviderGoogle), cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if got := err.Context["engine"]; got != "google" {
		t.Errorf("Context[engine] = %v, want google", got)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q, want the cause included", err.Error())
	}
}

func TestTTSErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *TTSError
		want string
	}{
		{
			name: "without cause",
			err:  NewTTSError(ErrorCodeEmptyInput, "nothing to speak", nil),
			want: "EMPTY_INPUT: nothing to speak",
		},
		{
			name: "with cause",
			err:  NewInitError(System, errors.New("espeak-ng not found")),
			want: "INIT_FAILURE: cannot initialize system engine: espeak-ng not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), ""},
		{"init", NewInitError(System, nil), ErrorCodeInit},
		{"wrapped synthesis", fmt.Errorf("job 3: %w", NewSynthesisError(System, nil)), ErrorCodeSynthesis},
		{"joined", errors.Join(errors.New("first"), ErrCancelledByUser), ErrorCodeCancelledByUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTTSErrorClassification(t *testing.T) {
	if !ErrCancelledByUser.IsCancellation() || !ErrCancelledBySupersession.IsCancellation() {
		t.Error("cancellation errors should report IsCancellation")
	}
	if ErrEmptyInput.IsCancellation() {
		t.Error("empty input is not a cancellation")
	}
	if !NewInitError(Cloud(ProviderEdge), nil).IsRecoverable() {
		t.Error("init failures should be recoverable")
	}
	if NewSynthesisError(Cloud(ProviderEdge), nil).IsRecoverable() {
		t.Error("synthesis failures should not be recoverable")
	}
}
