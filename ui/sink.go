package ui

import (
	"context"
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

// Sender delivers messages to a running program. *tea.Program satisfies
// it.
type Sender interface {
	Send(msg tea.Msg)
}

// Sink forwards coordinator callbacks to a Bubble Tea program.
type Sink struct {
	sender Sender
}

// NewSink returns a tts.HighlightSink that sends SpanMsg and EndedMsg.
func NewSink(sender Sender) *Sink {
	return &Sink{sender: sender}
}

// OnSpan implements tts.HighlightSink.
func (s *Sink) OnSpan(token uint64, span tts.WordSpan, color string) {
	s.sender.Send(SpanMsg{Token: token, Span: span, Color: color})
}

// OnSessionEnded implements tts.HighlightSink.
func (s *Sink) OnSessionEnded(token uint64, state tts.PlaybackState, err error) {
	s.sender.Send(EndedMsg{Token: token, State: state, Err: err})
}

// Ended is the outcome of one session seen by a PlainSink.
type Ended struct {
	Token uint64
	State tts.PlaybackState
	Err   error
}

// PlainSink writes the text to a terminal or pipe as it is spoken. On a
// color terminal the current word is highlighted and restored when the
// next one starts.
type PlainSink struct {
	mu      sync.Mutex
	out     *termenv.Output
	runes   []rune
	printed int
	last    string // highlighted word still on screen
	ended   chan Ended
}

// NewPlainSink writes to w with the color profile termenv detects for it.
func NewPlainSink(w io.Writer, opts ...termenv.OutputOption) *PlainSink {
	return &PlainSink{
		out:   termenv.NewOutput(w, opts...),
		ended: make(chan Ended, 16),
	}
}

// SetText sets the text of the next session. Call it before Speak.
func (s *PlainSink) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runes = []rune(text)
	s.printed = 0
	s.last = ""
}

// OnSpan implements tts.HighlightSink.
func (s *PlainSink) OnSpan(_ uint64, span tts.WordSpan, color string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !span.Valid(len(s.runes), s.printed) {
		return
	}
	s.restore()
	s.write(string(s.runes[s.printed:span.Start]))

	word := string(s.runes[span.Start:span.End])
	if s.out.Profile == termenv.Ascii {
		s.write(word)
	} else {
		s.write(s.out.String(word).
			Background(s.out.Color(color)).
			Foreground(s.out.Color("#000000")).
			String())
		s.last = word
	}
	s.printed = span.End
}

// OnSessionEnded implements tts.HighlightSink. A completed session prints
// whatever text followed the last word.
func (s *PlainSink) OnSessionEnded(token uint64, state tts.PlaybackState, err error) {
	s.mu.Lock()
	s.restore()
	if state == tts.StateCompleted && s.printed < len(s.runes) {
		s.write(string(s.runes[s.printed:]))
		s.printed = len(s.runes)
	}
	if s.printed > 0 {
		s.write("\n")
	}
	s.mu.Unlock()

	select {
	case s.ended <- Ended{Token: token, State: state, Err: err}:
	default:
	}
}

// Wait blocks until the session identified by token ends or ctx is done.
func (s *PlainSink) Wait(ctx context.Context, token uint64) (Ended, error) {
	for {
		select {
		case e := <-s.ended:
			if e.Token == token {
				return e, nil
			}
		case <-ctx.Done():
			return Ended{}, ctx.Err()
		}
	}
}

// restore rewrites the highlighted word without styling.
func (s *PlainSink) restore() {
	if s.last == "" {
		return
	}
	s.out.CursorBack(runewidth.StringWidth(s.last))
	s.write(s.last)
	s.last = ""
}

func (s *PlainSink) write(str string) {
	fmt.Fprint(s.out, str)
}
