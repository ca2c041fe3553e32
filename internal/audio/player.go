package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// pollInterval is how often Write checks for the end of playback.
const pollInterval = 10 * time.Millisecond

// Player plays PCM buffers on the default output device. It implements
// tts.AudioSink. The oto context is created on the first Write and reused
// for the life of the process.
type Player struct {
	config PlayerConfig
	volume atomic.Uint64 // math.Float64bits

	initOnce sync.Once
	context  *oto.Context
	initErr  error

	// mu serializes playback; oto players share one device.
	mu sync.Mutex
}

// AudioStream keeps the bytes of one buffer alive while oto reads them.
type AudioStream struct {
	data     []byte
	reader   io.ReadSeeker
	duration time.Duration

	closeOnce sync.Once
}

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate int // 44100 or 48000 Hz only
	Channels   int // 1 = mono, 2 = stereo
	BitDepth   int // 16 bits per sample
	BufferSize int // Buffer size for streaming
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 44100,
		Channels:   1,
		BitDepth:   16,
		BufferSize: 4096,
	}
}

// NewPlayer validates config and returns a player. The audio device is not
// opened until the first Write.
func NewPlayer(config PlayerConfig) (*Player, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	p := &Player{config: config}
	_ = p.SetVolume(1.0)
	return p, nil
}

// validateConfig validates the player configuration.
func validateConfig(config PlayerConfig) error {
	// OTO only supports specific sample rates reliably
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}

	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}

	if config.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got %d", config.BitDepth)
	}

	if config.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}

	return nil
}

func (p *Player) open() error {
	p.initOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   p.config.SampleRate,
			ChannelCount: p.config.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   time.Duration(p.config.BufferSize) * time.Second / time.Duration(p.config.SampleRate*p.config.Channels*2),
		}

		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			p.initErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		p.context = ctx
	})
	return p.initErr
}

// Write plays 16-bit mono PCM recorded at sampleRate and blocks until it
// has finished or ctx is done. A cancelled Write silences the device
// before returning.
func (p *Player) Write(ctx context.Context, pcm []byte, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}
	if err := p.open(); err != nil {
		return err
	}

	stream := p.newAudioStream(pcm, sampleRate)
	defer stream.Close()

	p.mu.Lock()
	defer p.mu.Unlock()

	player := p.context.NewPlayer(stream.reader)
	defer player.Close()

	player.SetVolume(p.Volume())
	player.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return player.Err()
}

// newAudioStream converts pcm to the device format.
func (p *Player) newAudioStream(pcm []byte, sampleRate int) *AudioStream {
	data := Resample(pcm, sampleRate, p.config.SampleRate)
	if p.config.Channels == 2 {
		data = Upmix(data)
	}

	frameSize := p.config.Channels * p.config.BitDepth / 8
	samples := len(data) / frameSize
	return &AudioStream{
		data:     data,
		reader:   bytes.NewReader(data),
		duration: time.Duration(samples) * time.Second / time.Duration(p.config.SampleRate),
	}
}

// SetVolume sets the playback volume (0.0 to 1.0) for subsequent writes.
func (p *Player) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}
	p.volume.Store(math.Float64bits(volume))
	return nil
}

// Volume returns the current volume.
func (p *Player) Volume() float64 {
	return math.Float64frombits(p.volume.Load())
}

// Close releases the stream's data.
func (s *AudioStream) Close() {
	s.closeOnce.Do(func() {
		s.data = nil
		s.reader = nil
	})
}

// Duration returns the stream duration.
func (s *AudioStream) Duration() time.Duration {
	return s.duration
}
