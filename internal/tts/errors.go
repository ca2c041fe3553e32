package tts

import (
	"errors"
	"fmt"
)

// Common TTS errors
var (
	// ErrInvalidEngine indicates an unknown engine was specified
	ErrInvalidEngine = errors.New("invalid TTS engine specified")

	// ErrEngineNotAvailable indicates the selected engine is not available
	ErrEngineNotAvailable = errors.New("selected TTS engine is not available")

	// ErrMissingCredentials indicates a cloud engine has no usable credentials
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrCoordinatorClosed indicates Speak was called after Close
	ErrCoordinatorClosed = errors.New("coordinator is closed")

	// ErrEmptyInput reports a speak request with nothing to say. The job
	// still completes normally.
	ErrEmptyInput = NewTTSError(ErrorCodeEmptyInput, "nothing to speak", nil)

	// ErrCancelledByUser ends a job stopped explicitly.
	ErrCancelledByUser = NewTTSError(ErrorCodeCancelledByUser, "stopped by user", nil)

	// ErrCancelledBySupersession ends a job replaced by a newer one.
	ErrCancelledBySupersession = NewTTSError(ErrorCodeCancelledBySupersession, "superseded by a newer request", nil)
)

// TTSError represents a TTS-specific error with additional context
type TTSError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *TTSError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *TTSError) Unwrap() error {
	return e.Cause
}

// Is matches any TTSError carrying the same code, so callers can test
// errors.Is(err, ErrCancelledByUser).
func (e *TTSError) Is(target error) bool {
	var t *TTSError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// ErrorCode identifies specific error types
type ErrorCode string

const (
	// Engine errors
	ErrorCodeInit      ErrorCode = "INIT_FAILURE"
	ErrorCodeSynthesis ErrorCode = "SYNTHESIS_FAILURE"

	// Audio errors
	ErrorCodeAudioFailure ErrorCode = "AUDIO_FAILURE"

	// Session outcomes that are not failures
	ErrorCodeCancelledByUser         ErrorCode = "CANCELLED_BY_USER"
	ErrorCodeCancelledBySupersession ErrorCode = "CANCELLED_BY_SUPERSESSION"
	ErrorCodeEmptyInput              ErrorCode = "EMPTY_INPUT"
)

// NewTTSError creates a new TTS error with context
func NewTTSError(code ErrorCode, message string, cause error) *TTSError {
	return &TTSError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewInitError reports that an engine could not be initialized.
func NewInitError(engine EngineKind, cause error) *TTSError {
	return NewTTSError(ErrorCodeInit, "cannot initialize "+engine.String()+" engine", cause).
		WithContext("engine", engine.String())
}

// NewSynthesisError reports a backend failure while producing audio.
func NewSynthesisError(engine EngineKind, cause error) *TTSError {
	return NewTTSError(ErrorCodeSynthesis, engine.String()+" synthesis failed", cause).
		WithContext("engine", engine.String())
}

// WithContext adds context to the error
func (e *TTSError) WithContext(key string, value interface{}) *TTSError {
	e.Context[key] = value
	return e
}

// IsCancellation returns true for the two cancellation outcomes.
func (e *TTSError) IsCancellation() bool {
	return e.Code == ErrorCodeCancelledByUser || e.Code == ErrorCodeCancelledBySupersession
}

// IsRecoverable returns true if the coordinator may retry with another
// engine.
func (e *TTSError) IsRecoverable() bool {
	return e.Code == ErrorCodeInit
}

// CodeOf returns the ErrorCode of err, or "" if err is not a TTSError.
func CodeOf(err error) ErrorCode {
	var e *TTSError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
