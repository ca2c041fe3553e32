package engines

import (
	"bytes"
	"context"
	"encoding/gob"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// cachedAudio is the gob payload stored per synthesis.
type cachedAudio struct {
	PCM        []byte
	SampleRate int
	Timings    []tts.WordTiming
}

// Cached serves repeated syntheses of a cloud engine from an audio cache.
// Entries are keyed by engine, voice, rate and text.
type Cached struct {
	tts.Engine
	store  cache.Cache
	logger *log.Logger

	mu    sync.Mutex
	voice string
	rate  int
}

// NewCached wraps engine with store.
func NewCached(engine tts.Engine, store cache.Cache, logger *log.Logger) *Cached {
	if logger == nil {
		logger = log.Default().WithPrefix("cache")
	}
	return &Cached{Engine: engine, store: store, logger: logger}
}

// Initialize records the voice and rate, then initializes the engine.
func (c *Cached) Initialize(ctx context.Context, voice tts.Voice, rate int, creds tts.Credentials) error {
	c.mu.Lock()
	c.voice = voice.ID
	c.rate = rate
	c.mu.Unlock()
	return c.Engine.Initialize(ctx, voice, rate, creds)
}

func (c *Cached) key(text string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cache.Key{
		Engine: c.Kind().String(),
		Voice:  c.voice,
		Rate:   c.rate,
		Text:   text,
	}.String()
}

// Synthesize returns the cached buffer for text, or synthesizes and stores
// it.
func (c *Cached) Synthesize(ctx context.Context, text string) (tts.Synthesis, error) {
	key := c.key(text)
	if data, ok := c.store.Get(key); ok {
		var entry cachedAudio
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err == nil {
			c.logger.Debug("Cache hit", "engine", c.Kind(), "key", key[:12])
			return &tts.RawAudioBuffer{PCM: entry.PCM, SampleRate: entry.SampleRate, Timings: entry.Timings}, nil
		}
		c.logger.Warn("Dropping unreadable cache entry", "key", key[:12])
		_ = c.store.Delete(key)
	}

	syn, err := c.Engine.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	if buf, ok := syn.(*tts.RawAudioBuffer); ok {
		var data bytes.Buffer
		entry := cachedAudio{PCM: buf.PCM, SampleRate: buf.SampleRate, Timings: buf.Timings}
		if err := gob.NewEncoder(&data).Encode(entry); err == nil {
			if err := c.store.Put(key, data.Bytes()); err != nil {
				c.logger.Debug("Not cached", "engine", c.Kind(), "err", err)
			}
		}
	}
	return syn, nil
}
