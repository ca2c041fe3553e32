package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

type recordingSender struct {
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.msgs = append(r.msgs, msg)
}

func TestSinkSendsMessages(t *testing.T) {
	sender := &recordingSender{}
	sink := NewSink(sender)

	span := tts.WordSpan{Start: 0, End: 5}
	sink.OnSpan(3, span, "#FFFF00")
	sink.OnSessionEnded(3, tts.StateCompleted, nil)

	if len(sender.msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(sender.msgs))
	}
	if got, ok := sender.msgs[0].(SpanMsg); !ok || got.Token != 3 || got.Span != span || got.Color != "#FFFF00" {
		t.Errorf("first message = %#v", sender.msgs[0])
	}
	if got, ok := sender.msgs[1].(EndedMsg); !ok || got.Token != 3 || got.State != tts.StateCompleted {
		t.Errorf("second message = %#v", sender.msgs[1])
	}
}

func TestPlainSinkASCII(t *testing.T) {
	var buf bytes.Buffer
	sink := NewPlainSink(&buf, termenv.WithProfile(termenv.Ascii))
	sink.SetText("Hello, brave world.")

	sink.OnSpan(1, tts.WordSpan{Start: 0, End: 5}, "#FFFF00")
	sink.OnSpan(1, tts.WordSpan{Start: 7, End: 12}, "#FFFF00")
	sink.OnSpan(1, tts.WordSpan{Start: 13, End: 18}, "#FFFF00")
	sink.OnSessionEnded(1, tts.StateCompleted, nil)

	if got, want := buf.String(), "Hello, brave world.\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestPlainSinkColorRestoresWord(t *testing.T) {
	var buf bytes.Buffer
	sink := NewPlainSink(&buf, termenv.WithProfile(termenv.TrueColor))
	sink.SetText("one two")

	sink.OnSpan(1, tts.WordSpan{Start: 0, End: 3}, "#FFFF00")
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("expected styled output, got %q", buf.String())
	}

	sink.OnSpan(1, tts.WordSpan{Start: 4, End: 7}, "#FFFF00")
	// the first word is redrawn after moving the cursor back over it
	if !strings.Contains(buf.String(), "\x1b[3Done") {
		t.Errorf("first word not restored: %q", buf.String())
	}
}

func TestPlainSinkCancelledStopsEarly(t *testing.T) {
	var buf bytes.Buffer
	sink := NewPlainSink(&buf, termenv.WithProfile(termenv.Ascii))
	sink.SetText("one two three")

	sink.OnSpan(1, tts.WordSpan{Start: 0, End: 3}, "#FFFF00")
	sink.OnSessionEnded(1, tts.StateCancelled, tts.ErrCancelledByUser)

	if got := buf.String(); got != "one\n" {
		t.Errorf("output = %q", got)
	}
}

func TestPlainSinkIgnoresOutOfOrderSpans(t *testing.T) {
	var buf bytes.Buffer
	sink := NewPlainSink(&buf, termenv.WithProfile(termenv.Ascii))
	sink.SetText("one two")

	sink.OnSpan(1, tts.WordSpan{Start: 4, End: 7}, "")
	sink.OnSpan(1, tts.WordSpan{Start: 0, End: 3}, "")

	if got := buf.String(); got != "one two" {
		t.Errorf("output = %q", got)
	}
}

func TestPlainSinkWait(t *testing.T) {
	sink := NewPlainSink(&bytes.Buffer{}, termenv.WithProfile(termenv.Ascii))

	sink.OnSessionEnded(1, tts.StateCancelled, tts.ErrCancelledBySupersession)
	sink.OnSessionEnded(2, tts.StateCompleted, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ended, err := sink.Wait(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if ended.State != tts.StateCompleted {
		t.Errorf("state = %v, want completed", ended.State)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := sink.Wait(ctx, 3); err == nil {
		t.Error("Wait() should time out")
	}
}
