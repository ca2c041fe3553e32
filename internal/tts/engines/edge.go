package engines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

const defaultEdgeVoice = "en-US-AriaNeural"

// edgeStream starts an Edge synthesis and returns its message stream.
type edgeStream func(text, voice string) (<-chan map[string]interface{}, error)

func streamEdge(text, voice string) (<-chan map[string]interface{}, error) {
	comm, err := edge.NewCommunicate(text, edge.WithVoice(voice))
	if err != nil {
		return nil, fmt.Errorf("create communicate: %w", err)
	}
	return comm.Stream()
}

// Edge synthesizes through the Microsoft Edge read-aloud service, which
// serves the Azure neural voices without an account. Word boundary
// messages become timings. The service offers no rate control.
type Edge struct {
	cloud
	stream edgeStream
	decode func(data []byte) ([]byte, int, error)
}

// NewEdge returns an uninitialized Edge engine.
func NewEdge(limiter *rate.Limiter, logger *log.Logger) *Edge {
	return &Edge{
		cloud:  newCloud(tts.ProviderEdge, limiter, logger),
		stream: streamEdge,
		decode: audio.DecodeMP3,
	}
}

// Initialize implements tts.Engine. Edge needs no credentials.
func (e *Edge) Initialize(_ context.Context, voice tts.Voice, rate int, _ tts.Credentials) error {
	if voice.ID == "" {
		voice.ID = defaultEdgeVoice
	}
	e.configure(voice, rate)
	return nil
}

// Synthesize implements tts.Engine.
func (e *Edge) Synthesize(ctx context.Context, text string) (tts.Synthesis, error) {
	ctx, cancel, err := e.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	voice, _ := e.settings()
	ch, err := e.stream(text, voice.ID)
	if err != nil {
		return nil, tts.NewSynthesisError(e.kind, err)
	}

	var (
		mp3        bytes.Buffer
		boundaries []boundary
	)
	for {
		select {
		case <-ctx.Done():
			// let the client finish writing into a channel nobody reads
			go func() {
				for range ch {
				}
			}()
			return nil, ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return e.finish(mp3.Bytes(), text, boundaries)
			}
			switch msg["type"] {
			case "audio":
				if data, ok := msg["data"].([]byte); ok {
					mp3.Write(data)
				}
			case "WordBoundary":
				if b, ok := edgeBoundary(msg); ok {
					boundaries = append(boundaries, b)
				}
			}
		}
	}
}

func (e *Edge) finish(mp3 []byte, text string, boundaries []boundary) (tts.Synthesis, error) {
	if len(mp3) == 0 {
		return nil, tts.NewSynthesisError(e.kind, errors.New("no audio received"))
	}
	pcm, sampleRate, err := e.decode(mp3)
	if err != nil {
		return nil, tts.NewSynthesisError(e.kind, err)
	}
	e.logger.Debug("Synthesized", "mp3", humanize.Bytes(uint64(len(mp3))), "boundaries", len(boundaries))
	return newBuffer(pcm, sampleRate, alignBoundaries(text, boundaries)), nil
}

// edgeBoundary reads a WordBoundary message. Offsets are in 100ns ticks.
func edgeBoundary(msg map[string]interface{}) (boundary, bool) {
	text, ok := msg["text"].(string)
	if !ok {
		return boundary{}, false
	}
	offset, ok := number(msg["offset"])
	if !ok {
		return boundary{}, false
	}
	return boundary{Text: text, At: time.Duration(offset) * 100}, true
}

func number(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}
