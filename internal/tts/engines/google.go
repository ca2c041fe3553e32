package engines

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

const (
	defaultGoogleVoice    = "en-US-Standard-C"
	defaultGoogleLanguage = "en-US"

	// the API rejects requests over 5000 bytes
	googleChunkSize = 4800
)

// googleAPI is the part of the Cloud Text-to-Speech client Google uses.
type googleAPI interface {
	synthesize(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error)
	listVoices(ctx context.Context, req *texttospeechpb.ListVoicesRequest) (*texttospeechpb.ListVoicesResponse, error)
	Close() error
}

type googleClient struct {
	*texttospeech.Client
}

func (c googleClient) synthesize(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	return c.SynthesizeSpeech(ctx, req)
}

func (c googleClient) listVoices(ctx context.Context, req *texttospeechpb.ListVoicesRequest) (*texttospeechpb.ListVoicesResponse, error) {
	return c.ListVoices(ctx, req)
}

func dialGoogle(ctx context.Context, creds tts.Credentials) (googleAPI, error) {
	var opts []option.ClientOption
	switch {
	case creds[tts.CredCredentialsFile] != "":
		opts = append(opts, option.WithCredentialsFile(creds[tts.CredCredentialsFile]))
	case creds[tts.CredAPIKey] != "":
		opts = append(opts, option.WithAPIKey(creds[tts.CredAPIKey]))
	default:
		return nil, fmt.Errorf("%w: set credentials_file or api_key", tts.ErrMissingCredentials)
	}

	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}
	return googleClient{client}, nil
}

// Google synthesizes through Google Cloud Text-to-Speech. It returns
// LINEAR16 audio without word timings.
type Google struct {
	cloud
	dial func(ctx context.Context, creds tts.Credentials) (googleAPI, error)

	clientMu sync.Mutex
	client   googleAPI
}

// NewGoogle returns an uninitialized Google engine.
func NewGoogle(limiter *rate.Limiter, logger *log.Logger) *Google {
	return &Google{
		cloud: newCloud(tts.ProviderGoogle, limiter, logger),
		dial:  dialGoogle,
	}
}

// Initialize creates the API client from a service account file or an API
// key.
func (g *Google) Initialize(ctx context.Context, voice tts.Voice, rate int, creds tts.Credentials) error {
	client, err := g.dial(ctx, creds)
	if err != nil {
		return tts.NewInitError(g.kind, err)
	}
	if voice.ID == "" {
		voice.ID = defaultGoogleVoice
	}
	if voice.LanguageTag == "" {
		voice.LanguageTag = googleLanguage(voice.ID)
	}
	g.configure(voice, rate)

	g.clientMu.Lock()
	defer g.clientMu.Unlock()
	if g.client != nil {
		_ = g.client.Close()
	}
	g.client = client
	return nil
}

// googleLanguage extracts the language from a voice name such as
// en-US-Wavenet-D.
func googleLanguage(name string) string {
	parts := strings.SplitN(name, "-", 3)
	if len(parts) < 3 {
		return defaultGoogleLanguage
	}
	return parts[0] + "-" + parts[1]
}

func (g *Google) api() googleAPI {
	g.clientMu.Lock()
	defer g.clientMu.Unlock()
	return g.client
}

// Synthesize implements tts.Engine. Long texts are sent in chunks and the
// audio is concatenated.
func (g *Google) Synthesize(ctx context.Context, text string) (tts.Synthesis, error) {
	client := g.api()
	if client == nil {
		return nil, tts.NewSynthesisError(g.kind, errors.New("engine not initialized"))
	}
	ctx, cancel, err := g.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	voice, rate := g.settings()
	var pcm []byte
	for i, chunk := range chunkText(text, googleChunkSize) {
		resp, err := client.synthesize(ctx, &texttospeechpb.SynthesizeSpeechRequest{
			Input: &texttospeechpb.SynthesisInput{
				InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
			},
			Voice: &texttospeechpb.VoiceSelectionParams{
				LanguageCode: voice.LanguageTag,
				Name:         voice.ID,
			},
			AudioConfig: &texttospeechpb.AudioConfig{
				AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
				SampleRateHertz: SampleRate,
				SpeakingRate:    GoogleSpeakingRate(rate),
			},
		})
		if err != nil {
			return nil, tts.NewSynthesisError(g.kind, fmt.Errorf("chunk %d: %w", i, err))
		}

		data, sampleRate, err := audio.StripWAV(resp.AudioContent)
		switch {
		case errors.Is(err, audio.ErrNotWAV):
			data = resp.AudioContent
		case err != nil:
			return nil, tts.NewSynthesisError(g.kind, err)
		case sampleRate != SampleRate:
			data = audio.Resample(data, sampleRate, SampleRate)
		}
		pcm = append(pcm, data...)
	}

	g.logger.Debug("Synthesized", "voice", voice.ID, "size", humanize.Bytes(uint64(len(pcm))))
	return newBuffer(pcm, SampleRate, nil), nil
}

// ListVoices returns every voice the API offers. The engine must be
// initialized.
func (g *Google) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	client := g.api()
	if client == nil {
		return nil, errors.New("google engine not initialized")
	}

	resp, err := client.listVoices(ctx, &texttospeechpb.ListVoicesRequest{})
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}

	voices := make([]tts.Voice, 0, len(resp.GetVoices()))
	for _, v := range resp.GetVoices() {
		lang := ""
		if codes := v.GetLanguageCodes(); len(codes) > 0 {
			lang = codes[0]
		}
		voices = append(voices, tts.Voice{
			ID:          v.GetName(),
			DisplayName: v.GetName(),
			LanguageTag: lang,
			Gender:      googleGender(v.GetSsmlGender()),
			Origin:      g.kind,
		})
	}
	return voices, nil
}

func googleGender(g texttospeechpb.SsmlVoiceGender) tts.Gender {
	switch g {
	case texttospeechpb.SsmlVoiceGender_MALE:
		return tts.GenderMale
	case texttospeechpb.SsmlVoiceGender_FEMALE:
		return tts.GenderFemale
	case texttospeechpb.SsmlVoiceGender_NEUTRAL:
		return tts.GenderNeutral
	default:
		return tts.GenderUnknown
	}
}

// Cancel aborts the request in flight and releases the API client. The
// client serves every Synthesize and ListVoices call until then.
func (g *Google) Cancel() {
	g.cloud.Cancel()
	if err := g.Close(); err != nil {
		g.logger.Debug("Closing client", "err", err)
	}
}

// Close releases the API client.
func (g *Google) Close() error {
	g.clientMu.Lock()
	defer g.clientMu.Unlock()
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}
