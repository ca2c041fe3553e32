package engines

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

const (
	// ElevenLabsURL is the public API endpoint.
	ElevenLabsURL = "https://api.elevenlabs.io"

	defaultElevenLabsVoice = "21m00Tcm4TlvDq8ikWAM" // Rachel
	defaultElevenLabsModel = "eleven_multilingual_v2"

	// credential key selecting the model
	credModel = "model"
)

type elevenLabsRequest struct {
	Text          string                `json:"text"`
	ModelID       string                `json:"model_id"`
	VoiceSettings elevenLabsVoiceConfig `json:"voice_settings"`
}

type elevenLabsVoiceConfig struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed"`
}

type elevenLabsResponse struct {
	AudioBase64 string               `json:"audio_base64"`
	Alignment   *elevenLabsAlignment `json:"alignment"`
}

type elevenLabsAlignment struct {
	Characters []string  `json:"characters"`
	StartTimes []float64 `json:"character_start_times_seconds"`
	EndTimes   []float64 `json:"character_end_times_seconds"`
}

type elevenLabsVoices struct {
	Voices []struct {
		VoiceID string            `json:"voice_id"`
		Name    string            `json:"name"`
		Labels  map[string]string `json:"labels"`
	} `json:"voices"`
}

// ElevenLabs synthesizes through the ElevenLabs REST API. It requests raw
// 22050 Hz PCM with character alignment, which becomes word timings.
type ElevenLabs struct {
	cloud
	baseURL string
	client  *http.Client

	apiKey string
	model  string
}

// NewElevenLabs returns an uninitialized ElevenLabs engine talking to
// baseURL. A nil client uses one with a 60 second timeout.
func NewElevenLabs(baseURL string, client *http.Client, limiter *rate.Limiter, logger *log.Logger) *ElevenLabs {
	if baseURL == "" {
		baseURL = ElevenLabsURL
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &ElevenLabs{
		cloud:   newCloud(tts.ProviderElevenLabs, limiter, logger),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

// Initialize implements tts.Engine. It needs an api_key credential.
func (e *ElevenLabs) Initialize(_ context.Context, voice tts.Voice, rate int, creds tts.Credentials) error {
	if creds[tts.CredAPIKey] == "" {
		return tts.NewInitError(e.kind, fmt.Errorf("%w: set api_key", tts.ErrMissingCredentials))
	}
	if voice.ID == "" {
		voice.ID = defaultElevenLabsVoice
	}
	model := creds[credModel]
	if model == "" {
		model = defaultElevenLabsModel
	}

	e.mu.Lock()
	e.apiKey = creds[tts.CredAPIKey]
	e.model = model
	e.mu.Unlock()
	e.configure(voice, rate)
	return nil
}

func (e *ElevenLabs) credentials() (string, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.apiKey, e.model
}

// Synthesize implements tts.Engine.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (tts.Synthesis, error) {
	apiKey, model := e.credentials()
	if apiKey == "" {
		return nil, tts.NewSynthesisError(e.kind, errors.New("engine not initialized"))
	}
	ctx, cancel, err := e.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	voice, rate := e.settings()
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s/with-timestamps?output_format=pcm_%d",
		e.baseURL, url.PathEscape(voice.ID), SampleRate)
	body := elevenLabsRequest{
		Text:    text,
		ModelID: model,
		VoiceSettings: elevenLabsVoiceConfig{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           ElevenLabsSpeed(rate),
		},
	}

	var resp elevenLabsResponse
	if err := e.do(ctx, http.MethodPost, endpoint, apiKey, body, &resp); err != nil {
		return nil, tts.NewSynthesisError(e.kind, err)
	}

	pcm, err := base64.StdEncoding.DecodeString(resp.AudioBase64)
	if err != nil {
		return nil, tts.NewSynthesisError(e.kind, fmt.Errorf("decode audio: %w", err))
	}
	if len(pcm) == 0 {
		return nil, tts.NewSynthesisError(e.kind, errors.New("no audio returned"))
	}

	timings := elevenLabsTimings(text, resp.Alignment)
	e.logger.Debug("Synthesized", "voice", voice.ID, "size", humanize.Bytes(uint64(len(pcm))), "timings", len(timings))
	return newBuffer(pcm, SampleRate, timings), nil
}

// elevenLabsTimings rebuilds the aligned text from its characters, takes
// the start time of every word in it and locates those words in text.
func elevenLabsTimings(text string, a *elevenLabsAlignment) []tts.WordTiming {
	if a == nil || len(a.Characters) == 0 || len(a.Characters) != len(a.StartTimes) {
		return nil
	}

	var (
		aligned strings.Builder
		starts  []time.Duration
	)
	for i, c := range a.Characters {
		aligned.WriteString(c)
		at := time.Duration(a.StartTimes[i] * float64(time.Second))
		for range []rune(c) {
			starts = append(starts, at)
		}
	}

	var boundaries []boundary
	for _, w := range splitWords(aligned.String()) {
		if w.Start < len(starts) {
			boundaries = append(boundaries, boundary{Text: w.Text, At: starts[w.Start]})
		}
	}
	return alignBoundaries(text, boundaries)
}

// ListVoices returns the voices available to the account. The engine must
// be initialized.
func (e *ElevenLabs) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	apiKey, _ := e.credentials()
	if apiKey == "" {
		return nil, errors.New("elevenlabs engine not initialized")
	}

	var resp elevenLabsVoices
	if err := e.do(ctx, http.MethodGet, e.baseURL+"/v1/voices", apiKey, nil, &resp); err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}

	voices := make([]tts.Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		lang := v.Labels["language"]
		if lang == "" {
			lang = "en"
		}
		voices = append(voices, tts.Voice{
			ID:          v.VoiceID,
			DisplayName: v.Name,
			LanguageTag: lang,
			Gender:      tts.ParseGender(v.Labels["gender"]),
			Origin:      e.kind,
		})
	}
	return voices, nil
}

// do sends a JSON request and decodes the JSON response into dest.
func (e *ElevenLabs) do(ctx context.Context, method, endpoint, apiKey string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
