package engines

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

func TestSystemSpeaksSentenceWithWordEvents(t *testing.T) {
	runner := newFakeRunner("espeak-ng", "espeak")
	s := NewSystem(runner, nil)

	voice := tts.Voice{LanguageTag: "en-US"}
	if err := s.Initialize(context.Background(), voice, 200, nil); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	syn, err := s.Synthesize(context.Background(), "hello big world")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	stream, ok := syn.(*tts.NativeTimedStream)
	if !ok {
		t.Fatalf("Synthesize() returned %T, want *tts.NativeTimedStream", syn)
	}

	events := collect(t, stream)
	want := []tts.StreamEvent{
		{Word: "hello", Start: 0, End: 5},
		{Word: "big", Start: 6, End: 9},
		{Word: "world", Start: 10, End: 15},
		{Done: true},
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %+v, want %+v", events, want)
	}

	calls := runner.recorded()
	if len(calls) != 1 {
		t.Fatalf("ran synthesizer %d times, want 1", len(calls))
	}
	if calls[0].name != "/usr/bin/espeak-ng" {
		t.Errorf("ran %q, want espeak-ng", calls[0].name)
	}
	if wantArgs := []string{"-s", "200", "-v", "en-us"}; !reflect.DeepEqual(calls[0].args, wantArgs) {
		t.Errorf("args = %v, want %v", calls[0].args, wantArgs)
	}
	if calls[0].input != "hello big world" {
		t.Errorf("input = %q, want the whole sentence", calls[0].input)
	}
}

func TestSystemOneProcessPerSentence(t *testing.T) {
	runner := newFakeRunner("espeak-ng")
	s := NewSystem(runner, nil)
	_ = s.Initialize(context.Background(), tts.Voice{}, 200, nil)

	text := "First one. Then  the second!\nLast line"
	syn, err := s.Synthesize(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, syn.(*tts.NativeTimedStream))
	if len(events) != 8 || !events[7].Done || events[7].Err != nil {
		t.Fatalf("events = %+v, want 7 words and done", events)
	}
	runes := []rune(text)
	for _, ev := range events[:7] {
		if got := string(runes[ev.Start:ev.End]); got != ev.Word {
			t.Errorf("event %+v covers %q", ev, got)
		}
	}

	var inputs []string
	for _, c := range runner.recorded() {
		inputs = append(inputs, c.input)
	}
	want := []string{"First one.", "Then  the second!", "Last line"}
	if !reflect.DeepEqual(inputs, want) {
		t.Errorf("inputs = %q, want %q", inputs, want)
	}
}

func TestSplitSentencesCapsLength(t *testing.T) {
	text := []rune(strings.Repeat("w ", maxSentenceWords+5))
	sentences := splitSentences(text, splitWords(string(text)))
	if len(sentences) != 2 {
		t.Fatalf("got %d sentences, want 2", len(sentences))
	}
	if len(sentences[0]) != maxSentenceWords || len(sentences[1]) != 5 {
		t.Errorf("sentence sizes = %d, %d", len(sentences[0]), len(sentences[1]))
	}
}

func TestWordDurationFollowsRate(t *testing.T) {
	w := word{Text: "hello", Start: 0, End: 5}
	if got := wordDuration(w, 200); got != 300*time.Millisecond {
		t.Errorf("wordDuration(200 wpm) = %v, want 300ms", got)
	}
	if slow, fast := wordDuration(w, 100), wordDuration(w, 400); slow <= fast {
		t.Errorf("slow %v should exceed fast %v", slow, fast)
	}
}

func TestSystemSynthesizerSelection(t *testing.T) {
	tests := []struct {
		name     string
		programs []string
		voice    tts.Voice
		wantName string
		wantArgs []string
	}{
		{
			name:     "espeak fallback",
			programs: []string{"espeak"},
			voice:    tts.Voice{ID: "de"},
			wantName: "/usr/bin/espeak",
			wantArgs: []string{"-s", "250", "-v", "de"},
		},
		{
			name:     "say with voice",
			programs: []string{"say"},
			voice:    tts.Voice{ID: "Alex", LanguageTag: "en-US"},
			wantName: "/usr/bin/say",
			wantArgs: []string{"-r", "250", "-v", "Alex", "-f", "-"},
		},
		{
			name:     "say without voice ignores language",
			programs: []string{"say"},
			voice:    tts.Voice{LanguageTag: "en-US"},
			wantName: "/usr/bin/say",
			wantArgs: []string{"-r", "250", "-f", "-"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newFakeRunner(tt.programs...)
			s := NewSystem(runner, nil)
			if err := s.Initialize(context.Background(), tt.voice, 250, nil); err != nil {
				t.Fatal(err)
			}
			syn, err := s.Synthesize(context.Background(), "hi")
			if err != nil {
				t.Fatal(err)
			}
			collect(t, syn.(*tts.NativeTimedStream))

			calls := runner.recorded()
			if len(calls) != 1 {
				t.Fatalf("ran %d processes, want 1", len(calls))
			}
			if calls[0].name != tt.wantName || !reflect.DeepEqual(calls[0].args, tt.wantArgs) {
				t.Errorf("ran %s %v, want %s %v", calls[0].name, calls[0].args, tt.wantName, tt.wantArgs)
			}
		})
	}
}

func TestSystemNoSynthesizer(t *testing.T) {
	s := NewSystem(newFakeRunner(), nil)
	err := s.Initialize(context.Background(), tts.Voice{}, 200, nil)
	if tts.CodeOf(err) != tts.ErrorCodeInit {
		t.Errorf("Initialize() code = %v, want %v", tts.CodeOf(err), tts.ErrorCodeInit)
	}
	if !errors.Is(err, ErrNoSynthesizer) {
		t.Errorf("Initialize() error = %v, want ErrNoSynthesizer", err)
	}
}

func TestSystemSynthesizerFailure(t *testing.T) {
	runner := newFakeRunner("espeak-ng")
	runner.err = errors.New("boom")
	s := NewSystem(runner, nil)
	_ = s.Initialize(context.Background(), tts.Voice{}, 200, nil)

	syn, err := s.Synthesize(context.Background(), "one two")
	if err != nil {
		t.Fatal(err)
	}
	events := collect(t, syn.(*tts.NativeTimedStream))
	if len(events) != 2 {
		t.Fatalf("events = %+v, want the first word and a failed done", events)
	}
	last := events[1]
	if !last.Done || last.Err == nil {
		t.Errorf("last event = %+v, want done with error", last)
	}
}

func TestSystemCancel(t *testing.T) {
	runner := newFakeRunner("espeak-ng")
	runner.block = true
	s := NewSystem(runner, nil)
	_ = s.Initialize(context.Background(), tts.Voice{}, 200, nil)

	syn, err := s.Synthesize(context.Background(), "one two three")
	if err != nil {
		t.Fatal(err)
	}
	stream := syn.(*tts.NativeTimedStream)
	first := <-stream.Events
	if first.Word != "one" {
		t.Fatalf("first event = %+v", first)
	}

	cancelled := make(chan struct{})
	go func() {
		s.Cancel()
		close(cancelled)
	}()
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("Cancel() did not return")
	}

	if ev, ok := <-stream.Events; ok {
		t.Errorf("received %+v after Cancel returned", ev)
	}
	s.Cancel()

	if _, err := s.Synthesize(context.Background(), "again"); err == nil {
		t.Error("Synthesize() after Cancel should fail")
	}
}

func TestSystemCancelBeforeSynthesize(t *testing.T) {
	s := NewSystem(newFakeRunner("espeak-ng"), nil)
	s.Cancel()
	s.Cancel()
	_ = s.Initialize(context.Background(), tts.Voice{}, 200, nil)
	if _, err := s.Synthesize(context.Background(), "hi"); err == nil {
		t.Error("Synthesize() after Cancel should fail")
	}
}

func TestSystemSynthesizeUninitialized(t *testing.T) {
	s := NewSystem(newFakeRunner("espeak-ng"), nil)
	_, err := s.Synthesize(context.Background(), "hi")
	if tts.CodeOf(err) != tts.ErrorCodeSynthesis {
		t.Errorf("Synthesize() code = %v, want %v", tts.CodeOf(err), tts.ErrorCodeSynthesis)
	}
}

func TestSystemListVoices(t *testing.T) {
	espeak := newFakeRunner("espeak-ng")
	espeak.output = []byte(`Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 2  en-us           --/F      English_(America)  gmw/en-US            (en 3)
`)
	say := newFakeRunner("say")
	say.output = []byte(`Alex                en_US    # Most people recognize me by my voice.
Bad News            en_US    # The light you see at the end of the tunnel is the headlamp of a fast approaching train.
Thomas              fr_FR    # Bonjour, je m'appelle Thomas.
`)

	tests := []struct {
		name     string
		runner   *fakeRunner
		wantArgs []string
		want     []tts.Voice
	}{
		{
			name:     "espeak",
			runner:   espeak,
			wantArgs: []string{"--voices"},
			want: []tts.Voice{
				{ID: "af", DisplayName: "Afrikaans", LanguageTag: "af", Gender: tts.GenderMale},
				{ID: "en-us", DisplayName: "English (America)", LanguageTag: "en-US", Gender: tts.GenderFemale},
			},
		},
		{
			name:     "say",
			runner:   say,
			wantArgs: []string{"-v", "?"},
			want: []tts.Voice{
				{ID: "Alex", DisplayName: "Alex", LanguageTag: "en-US"},
				{ID: "Bad News", DisplayName: "Bad News", LanguageTag: "en-US"},
				{ID: "Thomas", DisplayName: "Thomas", LanguageTag: "fr-FR"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			voices, err := NewSystem(tt.runner, nil).ListVoices(context.Background())
			if err != nil {
				t.Fatalf("ListVoices() error = %v", err)
			}
			if got := tt.runner.recorded()[0].args; !reflect.DeepEqual(got, tt.wantArgs) {
				t.Errorf("args = %v, want %v", got, tt.wantArgs)
			}
			if len(voices) != len(tt.want) {
				t.Fatalf("ListVoices() = %+v, want %+v", voices, tt.want)
			}
			for i, want := range tt.want {
				want.Origin = tts.System
				if voices[i] != want {
					t.Errorf("voice %d = %+v, want %+v", i, voices[i], want)
				}
			}
		})
	}
}

func TestSystemListVoicesWithoutSynthesizer(t *testing.T) {
	if _, err := NewSystem(newFakeRunner(), nil).ListVoices(context.Background()); !errors.Is(err, ErrNoSynthesizer) {
		t.Errorf("ListVoices() error = %v, want ErrNoSynthesizer", err)
	}
}
