package engines

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// SampleRate is the rate of every buffer a cloud engine returns.
const SampleRate = 22050

// DefaultRequestsPerMinute limits calls to each provider.
const DefaultRequestsPerMinute = 60

// NewLimiter returns a limiter allowing requestsPerMinute calls.
func NewLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
}

// cloud holds what every cloud engine shares: the selected voice and rate,
// the provider's rate limiter and cancellation of the request in flight.
type cloud struct {
	kind    tts.EngineKind
	limiter *rate.Limiter
	logger  *log.Logger

	mu        sync.Mutex
	voice     tts.Voice
	rate      int
	cancel    context.CancelFunc
	cancelled bool
}

func newCloud(provider string, limiter *rate.Limiter, logger *log.Logger) cloud {
	if logger == nil {
		logger = log.Default().WithPrefix(provider)
	}
	return cloud{kind: tts.Cloud(provider), limiter: limiter, logger: logger}
}

// Kind implements tts.Engine.
func (c *cloud) Kind() tts.EngineKind {
	return c.kind
}

func (c *cloud) configure(voice tts.Voice, rate int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voice = voice
	c.rate = rate
}

func (c *cloud) settings() (tts.Voice, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voice, c.rate
}

// begin returns the context of one request, after waiting for the rate
// limiter. Cancel aborts it.
func (c *cloud) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		return nil, nil, context.Canceled
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			cancel()
			return nil, nil, fmt.Errorf("rate limit wait cancelled: %w", err)
		}
	}
	return ctx, cancel, nil
}

// Cancel aborts the request in flight. Later calls to Synthesize fail.
func (c *cloud) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
	if c.cancel != nil {
		c.cancel()
	}
}

// newBuffer resamples mono PCM to SampleRate.
func newBuffer(pcm []byte, sampleRate int, timings []tts.WordTiming) *tts.RawAudioBuffer {
	if sampleRate > 0 && sampleRate != SampleRate {
		pcm = audio.Resample(pcm, sampleRate, SampleRate)
	}
	return &tts.RawAudioBuffer{PCM: pcm, SampleRate: SampleRate, Timings: timings}
}
