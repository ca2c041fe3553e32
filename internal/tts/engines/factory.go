package engines

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// FactoryConfig configures a Factory. Every field is optional.
type FactoryConfig struct {
	// Runner runs the System engine's synthesizer.
	Runner Runner

	// Cache stores cloud audio. Nil disables caching.
	Cache cache.Cache

	// RequestsPerMinute limits calls to each cloud provider.
	RequestsPerMinute int

	// ElevenLabsURL overrides the ElevenLabs endpoint.
	ElevenLabsURL string

	// HTTPClient is used for REST providers.
	HTTPClient *http.Client

	Logger *log.Logger
}

// Factory creates a fresh engine for every job. Engines of one provider
// share a rate limiter.
type Factory struct {
	config FactoryConfig
	logger *log.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFactory returns a tts.EngineFactory for all known engines.
func NewFactory(config FactoryConfig) *Factory {
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}
	if config.Runner == nil {
		config.Runner = NewSubprocess(0)
	}
	return &Factory{
		config:   config,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// New implements tts.EngineFactory.
func (f *Factory) New(kind tts.EngineKind) (tts.Engine, error) {
	engine, err := f.newEngine(kind)
	if err != nil {
		return nil, err
	}
	if f.config.Cache != nil && !kind.IsSystem() {
		return NewCached(engine, f.config.Cache, f.logger.WithPrefix(kind.String())), nil
	}
	return engine, nil
}

// Lister returns an uncached engine of kind that can list its voices.
// Cloud engines must be initialized before listing.
func (f *Factory) Lister(kind tts.EngineKind) (VoiceLister, error) {
	engine, err := f.newEngine(kind)
	if err != nil {
		return nil, err
	}
	lister, ok := engine.(VoiceLister)
	if !ok {
		return nil, fmt.Errorf("%s engine cannot list voices", kind)
	}
	return lister, nil
}

func (f *Factory) newEngine(kind tts.EngineKind) (tts.Engine, error) {
	if kind.IsSystem() {
		return NewSystem(f.config.Runner, f.logger.WithPrefix("system")), nil
	}

	provider := kind.Provider
	logger := f.logger.WithPrefix(provider)
	limiter := f.limiter(provider)

	switch provider {
	case tts.ProviderGoogle:
		return NewGoogle(limiter, logger), nil
	case tts.ProviderEdge:
		return NewEdge(limiter, logger), nil
	case tts.ProviderTencent:
		return NewTencent(limiter, logger), nil
	case tts.ProviderElevenLabs:
		return NewElevenLabs(f.config.ElevenLabsURL, f.config.HTTPClient, limiter, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", tts.ErrInvalidEngine, provider)
	}
}

func (f *Factory) limiter(provider string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[provider]
	if !ok {
		l = NewLimiter(f.config.RequestsPerMinute)
		f.limiters[provider] = l
	}
	return l
}

// VoiceLister is implemented by engines that can list voices live.
type VoiceLister interface {
	tts.Engine
	ListVoices(ctx context.Context) ([]tts.Voice, error)
}
