package engines

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	ttsapi "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

const (
	defaultTencentVoice  = 1001
	defaultTencentRegion = "ap-guangzhou"
	tencentEndpoint      = "tts.tencentcloudapi.com"
)

// tencentAPI is the part of the Tencent Cloud TTS client Tencent uses.
type tencentAPI interface {
	TextToVoiceWithContext(ctx context.Context, req *ttsapi.TextToVoiceRequest) (*ttsapi.TextToVoiceResponse, error)
}

func dialTencent(creds tts.Credentials) (tencentAPI, error) {
	id, key := creds[tts.CredSecretID], creds[tts.CredSecretKey]
	if id == "" || key == "" {
		return nil, fmt.Errorf("%w: set secret_id and secret_key", tts.ErrMissingCredentials)
	}
	region := creds[tts.CredRegion]
	if region == "" {
		region = defaultTencentRegion
	}

	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = tencentEndpoint
	client, err := ttsapi.NewClient(common.NewCredential(id, key), region, cpf)
	if err != nil {
		return nil, fmt.Errorf("create tencent client: %w", err)
	}
	return client, nil
}

// Tencent synthesizes through Tencent Cloud TTS. Voices are numeric voice
// types; subtitles in the response become timings.
type Tencent struct {
	cloud
	dial   func(creds tts.Credentials) (tencentAPI, error)
	decode func(data []byte) ([]byte, int, error)

	client    tencentAPI
	voiceType int64
}

// NewTencent returns an uninitialized Tencent engine.
func NewTencent(limiter *rate.Limiter, logger *log.Logger) *Tencent {
	return &Tencent{
		cloud:  newCloud(tts.ProviderTencent, limiter, logger),
		dial:   dialTencent,
		decode: audio.DecodeMP3,
	}
}

// Initialize implements tts.Engine.
func (t *Tencent) Initialize(_ context.Context, voice tts.Voice, rate int, creds tts.Credentials) error {
	voiceType := int64(defaultTencentVoice)
	if voice.ID != "" {
		v, err := strconv.ParseInt(voice.ID, 10, 64)
		if err != nil {
			return tts.NewInitError(t.kind, fmt.Errorf("voice %q is not a voice type number", voice.ID))
		}
		voiceType = v
	}

	client, err := t.dial(creds)
	if err != nil {
		return tts.NewInitError(t.kind, err)
	}

	t.mu.Lock()
	t.client = client
	t.voiceType = voiceType
	t.mu.Unlock()
	t.configure(voice, rate)
	return nil
}

// Synthesize implements tts.Engine.
func (t *Tencent) Synthesize(ctx context.Context, text string) (tts.Synthesis, error) {
	t.mu.Lock()
	client, voiceType := t.client, t.voiceType
	t.mu.Unlock()
	if client == nil {
		return nil, tts.NewSynthesisError(t.kind, errors.New("engine not initialized"))
	}

	ctx, cancel, err := t.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	_, rate := t.settings()
	req := ttsapi.NewTextToVoiceRequest()
	req.Text = common.StringPtr(text)
	req.SessionId = common.StringPtr(uuid.NewString())
	req.VoiceType = common.Int64Ptr(voiceType)
	req.Codec = common.StringPtr("mp3")
	req.Speed = common.Float64Ptr(TencentSpeed(rate))
	req.Volume = common.Float64Ptr(5.0)
	req.EnableSubtitle = common.BoolPtr(true)

	resp, err := client.TextToVoiceWithContext(ctx, req)
	if err != nil {
		return nil, tts.NewSynthesisError(t.kind, err)
	}
	if resp.Response == nil || resp.Response.Audio == nil {
		return nil, tts.NewSynthesisError(t.kind, errors.New("no audio returned"))
	}

	mp3, err := base64.StdEncoding.DecodeString(*resp.Response.Audio)
	if err != nil {
		return nil, tts.NewSynthesisError(t.kind, fmt.Errorf("decode audio: %w", err))
	}
	pcm, sampleRate, err := t.decode(mp3)
	if err != nil {
		return nil, tts.NewSynthesisError(t.kind, err)
	}

	timings := tencentTimings(len([]rune(text)), resp.Response.Subtitles)
	t.logger.Debug("Synthesized",
		"voice_type", voiceType,
		"mp3", humanize.Bytes(uint64(len(mp3))),
		"subtitles", len(timings),
	)
	return newBuffer(pcm, sampleRate, timings), nil
}

// tencentTimings converts subtitles into timings. Indexes are character
// offsets into the request text; EndIndex is exclusive.
func tencentTimings(n int, subtitles []*ttsapi.Subtitle) []tts.WordTiming {
	var timings []tts.WordTiming
	for _, s := range subtitles {
		if s == nil || s.BeginIndex == nil || s.EndIndex == nil || s.BeginTime == nil {
			continue
		}
		start, end := int(*s.BeginIndex), int(*s.EndIndex)
		if start < 0 || end <= start || end > n {
			continue
		}
		timings = append(timings, tts.WordTiming{
			Start: start,
			End:   end,
			At:    time.Duration(*s.BeginTime) * time.Millisecond,
		})
	}
	return timings
}
