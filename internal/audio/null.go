package audio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// NullSink discards audio but blocks for as long as the audio would have
// played, so highlights keep their pace with sound muted. It is also handy
// in tests.
type NullSink struct {
	// Speed scales the simulated duration; 0 means real time. Tests use a
	// large value to finish quickly.
	Speed float64

	// Err, when set, is returned by every Write.
	Err error

	writes atomic.Int64
	mu     sync.Mutex
	played time.Duration
}

// Write implements tts.AudioSink.
func (s *NullSink) Write(ctx context.Context, pcm []byte, sampleRate int) error {
	s.writes.Add(1)
	if s.Err != nil {
		return s.Err
	}
	if len(pcm) == 0 || sampleRate <= 0 {
		return nil
	}

	duration := time.Duration(len(pcm)/2) * time.Second / time.Duration(sampleRate)
	if s.Speed > 0 {
		duration = time.Duration(float64(duration) / s.Speed)
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()
	start := time.Now()
	select {
	case <-ctx.Done():
		s.addPlayed(time.Since(start))
		return ctx.Err()
	case <-timer.C:
		s.addPlayed(duration)
		return nil
	}
}

func (s *NullSink) addPlayed(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played += d
}

// Writes returns the number of Write calls.
func (s *NullSink) Writes() int {
	return int(s.writes.Load())
}

// Played returns the total simulated playback time.
func (s *NullSink) Played() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.played
}
