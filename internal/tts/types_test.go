package tts

import (
	"errors"
	"testing"
)

func TestParseEngineKind(t *testing.T) {
	tests := []struct {
		input   string
		want    EngineKind
		wantErr bool
	}{
		{"", System, false},
		{"system", System, false},
		{" System ", System, false},
		{"google", Cloud(ProviderGoogle), false},
		{"EDGE", Cloud(ProviderEdge), false},
		{"tencent", Cloud(ProviderTencent), false},
		{"elevenlabs", Cloud(ProviderElevenLabs), false},
		{"sapi5", System, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseEngineKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEngineKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEngine) {
				t.Errorf("error %v should wrap ErrInvalidEngine", err)
			}
			if got != tt.want {
				t.Errorf("ParseEngineKind(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEngineKind(t *testing.T) {
	if !System.IsSystem() || System.String() != "system" {
		t.Errorf("System = %q, IsSystem %v", System.String(), System.IsSystem())
	}
	google := Cloud("Google")
	if google.IsSystem() || google.String() != "google" {
		t.Errorf("Cloud(Google) = %q, IsSystem %v", google.String(), google.IsSystem())
	}
	if google != Cloud(ProviderGoogle) {
		t.Error("engine kinds should compare by provider")
	}
}

func TestParseGender(t *testing.T) {
	tests := map[string]Gender{
		"male":    GenderMale,
		"M":       GenderMale,
		"Female":  GenderFemale,
		"f":       GenderFemale,
		"neutral": GenderNeutral,
		"":        GenderUnknown,
		"unknown": GenderUnknown,
		"SSML_VOICE_GENDER_UNSPECIFIED": GenderUnknown,
	}

	for input, want := range tests {
		if got := ParseGender(input); got != want {
			t.Errorf("ParseGender(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestClampRate(t *testing.T) {
	tests := []struct {
		rate, want int
	}{
		{0, DefaultRate},
		{10, MinRate},
		{50, 50},
		{175, 175},
		{400, 400},
		{900, MaxRate},
	}

	for _, tt := range tests {
		if got := ClampRate(tt.rate); got != tt.want {
			t.Errorf("ClampRate(%d) = %d, want %d", tt.rate, got, tt.want)
		}
	}
}

func TestWordSpanValid(t *testing.T) {
	tests := []struct {
		name    string
		span    WordSpan
		n       int
		prevEnd int
		want    bool
	}{
		{"first word", WordSpan{Start: 0, End: 5}, 11, 0, true},
		{"after previous", WordSpan{Start: 6, End: 11}, 11, 5, true},
		{"empty", WordSpan{Start: 3, End: 3}, 11, 0, false},
		{"reversed", WordSpan{Start: 5, End: 2}, 11, 0, false},
		{"past end", WordSpan{Start: 6, End: 12}, 11, 0, false},
		{"negative", WordSpan{Start: -1, End: 2}, 11, 0, false},
		{"overlaps previous", WordSpan{Start: 4, End: 8}, 11, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.span.Valid(tt.n, tt.prevEnd); got != tt.want {
				t.Errorf("Valid(%d, %d) = %v, want %v", tt.n, tt.prevEnd, got, tt.want)
			}
		})
	}
}

func TestVoiceString(t *testing.T) {
	tests := []struct {
		voice Voice
		want  string
	}{
		{Voice{ID: "en-us"}, "en-us"},
		{Voice{ID: "en-US-Wavenet-D", DisplayName: "Wavenet D", LanguageTag: "en-US"}, "Wavenet D (en-US)"},
		{Voice{ID: "101001", LanguageTag: "zh-CN"}, "101001 (zh-CN)"},
	}

	for _, tt := range tests {
		if got := tt.voice.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestNewSpeechJobCountsRunes(t *testing.T) {
	job := newSpeechJob(7, "héllo wörld", Voice{}, DefaultRate, System)
	if job.Len() != 11 {
		t.Errorf("Len() = %d, want 11", job.Len())
	}
	if job.State() != StateIdle {
		t.Errorf("State() = %v, want idle", job.State())
	}
}
