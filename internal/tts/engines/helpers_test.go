package engines

import (
	"context"
	"encoding/binary"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

type runCall struct {
	input string
	name  string
	args  []string
}

// fakeRunner pretends a set of programs is installed.
type fakeRunner struct {
	installed map[string]bool
	output    []byte
	err       error
	block     bool

	mu    sync.Mutex
	calls []runCall
}

func newFakeRunner(programs ...string) *fakeRunner {
	r := &fakeRunner{installed: make(map[string]bool)}
	for _, p := range programs {
		r.installed[p] = true
	}
	return r
}

func (r *fakeRunner) LookPath(file string) (string, error) {
	if r.installed[file] {
		return "/usr/bin/" + file, nil
	}
	return "", exec.ErrNotFound
}

func (r *fakeRunner) Run(ctx context.Context, input string, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, runCall{input: input, name: name, args: args})
	r.mu.Unlock()

	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.output, nil
}

func (r *fakeRunner) recorded() []runCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]runCall(nil), r.calls...)
}

// collect reads a stream until it closes or timeout passes.
func collect(t *testing.T, s *tts.NativeTimedStream) []tts.StreamEvent {
	t.Helper()
	var events []tts.StreamEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

// wavFile wraps mono 16-bit PCM in a minimal RIFF/WAVE header.
func wavFile(pcm []byte, sampleRate int) []byte {
	le := binary.LittleEndian
	b := []byte("RIFF")
	b = le.AppendUint32(b, uint32(36+len(pcm)))
	b = append(b, "WAVEfmt "...)
	b = le.AppendUint32(b, 16)
	b = le.AppendUint16(b, 1) // PCM
	b = le.AppendUint16(b, 1) // mono
	b = le.AppendUint32(b, uint32(sampleRate))
	b = le.AppendUint32(b, uint32(sampleRate*2))
	b = le.AppendUint16(b, 2)
	b = le.AppendUint16(b, 16)
	b = append(b, "data"...)
	b = le.AppendUint32(b, uint32(len(pcm)))
	return append(b, pcm...)
}

func pcmOf(samples int) []byte {
	pcm := make([]byte, samples*2)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	return pcm
}
