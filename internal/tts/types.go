package tts

import (
	"fmt"
	"strings"
	"time"
)

// EngineKind selects a synthesis backend. The zero value is the System
// engine; any non-empty Provider names a Cloud engine.
type EngineKind struct {
	Provider string
}

// System is the local engine that speaks through the platform synthesizer.
var System = EngineKind{}

// Cloud returns the engine kind for a cloud provider.
func Cloud(provider string) EngineKind {
	return EngineKind{Provider: strings.ToLower(provider)}
}

// IsSystem reports whether k is the local System engine.
func (k EngineKind) IsSystem() bool {
	return k.Provider == ""
}

// String returns the name used in configuration files.
func (k EngineKind) String() string {
	if k.IsSystem() {
		return "system"
	}
	return k.Provider
}

// Known cloud providers.
const (
	ProviderGoogle     = "google"
	ProviderEdge       = "edge"
	ProviderTencent    = "tencent"
	ProviderElevenLabs = "elevenlabs"
)

// ParseEngineKind parses an engine name such as "system" or "google".
func ParseEngineKind(s string) (EngineKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "", "system":
		return System, nil
	case ProviderGoogle, ProviderEdge, ProviderTencent, ProviderElevenLabs:
		return Cloud(name), nil
	default:
		return System, fmt.Errorf("%w: %q", ErrInvalidEngine, s)
	}
}

// Gender of a voice as reported by its engine.
type Gender int

const (
	// GenderUnknown is used whenever a backend reports no gender.
	GenderUnknown Gender = iota
	GenderMale
	GenderFemale
	GenderNeutral
)

// String returns the string representation of the gender.
func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	case GenderNeutral:
		return "neutral"
	default:
		return "unknown"
	}
}

// ParseGender maps the many spellings backends use onto a Gender.
func ParseGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male", "man":
		return GenderMale
	case "f", "female", "woman":
		return GenderFemale
	case "n", "neutral", "neuter":
		return GenderNeutral
	default:
		return GenderUnknown
	}
}

// Voice describes one voice offered by an engine.
type Voice struct {
	ID          string
	DisplayName string
	LanguageTag string
	Gender      Gender
	Origin      EngineKind
}

// String returns a human readable description of the voice.
func (v Voice) String() string {
	name := v.DisplayName
	if name == "" {
		name = v.ID
	}
	if v.LanguageTag == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, v.LanguageTag)
}

// SpanOrigin tells whether a span came from the engine or was estimated.
type SpanOrigin int

const (
	// OriginNative spans were reported by the synthesis engine.
	OriginNative SpanOrigin = iota
	// OriginEstimated spans were computed from word lengths.
	OriginEstimated
)

// String returns the string representation of the origin.
func (o SpanOrigin) String() string {
	if o == OriginEstimated {
		return "estimated"
	}
	return "native"
}

// WordSpan is a half-open rune range [Start, End) of a job's text.
type WordSpan struct {
	Start  int
	End    int
	Origin SpanOrigin
}

// Valid reports whether the span lies within a text of n runes and starts
// at or after prevEnd.
func (s WordSpan) Valid(n, prevEnd int) bool {
	return s.Start >= 0 && s.Start < s.End && s.End <= n && s.Start >= prevEnd
}

// Credentials is the opaque bundle a CredentialStore hands to an engine.
type Credentials map[string]string

// Credential keys understood by the cloud engines.
const (
	CredAPIKey          = "api_key"
	CredCredentialsFile = "credentials_file"
	CredSecretID        = "secret_id"
	CredSecretKey       = "secret_key"
	CredRegion          = "region"
)

// Settings is the subset of user configuration the core reads.
type Settings struct {
	Engine         string
	VoiceID        string
	LanguageTag    string
	Rate           int
	HighlightColor string
}

// Speech rate bounds in words per minute.
const (
	MinRate     = 50
	MaxRate     = 400
	DefaultRate = 200
)

// DefaultHighlightColor is used when no color is configured.
const DefaultHighlightColor = "#FFFF00"

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Engine:         "system",
		LanguageTag:    "en-US",
		Rate:           DefaultRate,
		HighlightColor: DefaultHighlightColor,
	}
}

// ClampRate limits a rate to the supported range, mapping zero to the
// default.
func ClampRate(rate int) int {
	switch {
	case rate == 0:
		return DefaultRate
	case rate < MinRate:
		return MinRate
	case rate > MaxRate:
		return MaxRate
	}
	return rate
}

// SpeechJob is one request to speak a fixed snapshot of text.
type SpeechJob struct {
	Token   uint64
	Text    string
	Voice   Voice
	Rate    int
	Engine  EngineKind
	Created time.Time

	runes  []rune
	state  *StateMachine
	engine Engine
	cancel func()
}

func newSpeechJob(token uint64, text string, voice Voice, rate int, kind EngineKind) *SpeechJob {
	// strings.Clone detaches the snapshot from the caller's buffer
	snapshot := strings.Clone(text)
	return &SpeechJob{
		Token:   token,
		Text:    snapshot,
		Voice:   voice,
		Rate:    rate,
		Engine:  kind,
		Created: time.Now(),
		runes:   []rune(snapshot),
		state:   NewStateMachine(),
		cancel:  func() {},
	}
}

// Len returns the length of the job text in runes.
func (j *SpeechJob) Len() int {
	return len(j.runes)
}

// State returns the job's current playback state.
func (j *SpeechJob) State() PlaybackState {
	return j.state.Current()
}
