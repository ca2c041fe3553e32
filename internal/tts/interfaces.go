package tts

import (
	"context"
	"time"
)

// Engine is the contract every synthesis backend satisfies. An Engine
// instance belongs to a single SpeechJob.
type Engine interface {
	// Kind identifies the backend.
	Kind() EngineKind

	// Initialize prepares the engine for one voice and rate. It returns a
	// TTSError with ErrorCodeInit when the credentials or the voice are
	// unusable.
	Initialize(ctx context.Context, voice Voice, rate int, creds Credentials) error

	// Synthesize starts speaking text. System engines return a
	// *NativeTimedStream, Cloud engines a *RawAudioBuffer.
	Synthesize(ctx context.Context, text string) (Synthesis, error)

	// Cancel stops synthesis and playback promptly. No events are emitted
	// after it returns. Calling it more than once, or after completion, is
	// harmless.
	Cancel()
}

// Synthesis is the result of Engine.Synthesize: either a
// *NativeTimedStream or a *RawAudioBuffer.
type Synthesis interface {
	synthesis()
}

// StreamEvent is one word boundary reported by an engine that plays its own
// audio. The final event has Done set, optionally with Err.
type StreamEvent struct {
	Word  string
	Start int
	End   int
	Done  bool
	Err   error
}

// NativeTimedStream delivers word events in order while the engine speaks.
// The channel is closed after the Done event.
type NativeTimedStream struct {
	Events <-chan StreamEvent
}

func (*NativeTimedStream) synthesis() {}

// WordTiming is side-channel timing metadata returned alongside a finished
// buffer: the word's rune range and when it starts in the audio.
type WordTiming struct {
	Start int
	End   int
	At    time.Duration
}

// RawAudioBuffer is finished 16-bit little-endian mono PCM.
type RawAudioBuffer struct {
	PCM        []byte
	SampleRate int
	Timings    []WordTiming
}

func (*RawAudioBuffer) synthesis() {}

// Duration returns the playback length of the buffer.
func (b *RawAudioBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	samples := len(b.PCM) / 2
	return time.Duration(samples) * time.Second / time.Duration(b.SampleRate)
}

// EngineFactory creates a fresh, uninitialized engine for a kind.
type EngineFactory interface {
	New(kind EngineKind) (Engine, error)
}

// EngineFactoryFunc adapts a function to EngineFactory.
type EngineFactoryFunc func(kind EngineKind) (Engine, error)

// New implements EngineFactory.
func (f EngineFactoryFunc) New(kind EngineKind) (Engine, error) {
	return f(kind)
}

// HighlightSink receives word spans and session outcomes. Calls arrive on
// the coordinator's dispatcher goroutine, one at a time and in order.
// Implementations must not call back into the Coordinator synchronously.
type HighlightSink interface {
	OnSpan(token uint64, span WordSpan, color string)
	OnSessionEnded(token uint64, state PlaybackState, err error)
}

// AudioSink plays a finished PCM buffer. Write blocks until the buffer has
// drained or ctx is done.
type AudioSink interface {
	Write(ctx context.Context, pcm []byte, sampleRate int) error
}

// ConfigStore reads and persists user settings.
type ConfigStore interface {
	Get() (Settings, error)
	Set(Settings) error
}

// CredentialStore returns the credential bundle for an engine. A missing
// bundle is an empty map, not an error.
type CredentialStore interface {
	Get(engine string) (Credentials, error)
}

// VoiceCatalog lists the voices of an engine. A missing catalog yields an
// empty list.
type VoiceCatalog interface {
	List(ctx context.Context, kind EngineKind) ([]Voice, error)
}
