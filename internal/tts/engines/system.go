package engines

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/language"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

// ErrNoSynthesizer is returned when none of the supported synthesizers is
// installed.
var ErrNoSynthesizer = errors.New("no speech synthesizer found")

// synthesizer is a command-line program the System engine can drive.
type synthesizer struct {
	name string
	args func(voice string, rate int) []string
}

// Synthesizers in order of preference.
var synthesizers = []synthesizer{
	{name: "espeak-ng", args: espeakArgs},
	{name: "espeak", args: espeakArgs},
	{name: "say", args: sayArgs},
}

// espeak reads the text from stdin when none is given on the command line.
func espeakArgs(voice string, rate int) []string {
	args := []string{"-s", strconv.Itoa(EspeakRate(rate))}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	return args
}

func sayArgs(voice string, rate int) []string {
	args := []string{"-r", strconv.Itoa(tts.ClampRate(rate))}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	return append(args, "-f", "-")
}

func findSynthesizer(runner Runner) (synthesizer, string, error) {
	for _, s := range synthesizers {
		if path, err := runner.LookPath(s.name); err == nil {
			return s, path, nil
		}
	}
	return synthesizer{}, "", ErrNoSynthesizer
}

// System speaks through the local synthesizer, one process per sentence,
// and reports every word as it starts. Word starts inside a sentence are
// paced from the speech rate. It plays its own audio.
type System struct {
	runner Runner
	logger *log.Logger

	mu        sync.Mutex
	program   string
	args      []string
	rate      int
	cancel    context.CancelFunc
	done      chan struct{}
	cancelled bool
}

// NewSystem returns a System engine. A nil runner runs real processes.
func NewSystem(runner Runner, logger *log.Logger) *System {
	if runner == nil {
		runner = NewSubprocess(0)
	}
	if logger == nil {
		logger = log.Default().WithPrefix("system")
	}
	return &System{runner: runner, logger: logger}
}

// Kind implements tts.Engine.
func (s *System) Kind() tts.EngineKind {
	return tts.System
}

// Initialize picks the synthesizer and prepares its arguments. The System
// engine needs no credentials. Without a voice id the language tag selects
// the voice.
func (s *System) Initialize(_ context.Context, voice tts.Voice, rate int, _ tts.Credentials) error {
	synth, path, err := findSynthesizer(s.runner)
	if err != nil {
		return tts.NewInitError(tts.System, err)
	}

	id := voice.ID
	if id == "" && synth.name != "say" {
		id = strings.ToLower(voice.LanguageTag)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.program = path
	s.args = synth.args(id, rate)
	s.rate = tts.ClampRate(rate)
	s.logger.Debug("Using synthesizer", "program", path, "voice", id, "rate", rate)
	return nil
}

// Synthesize starts speaking text and returns the stream of word events.
func (s *System) Synthesize(ctx context.Context, text string) (tts.Synthesis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.cancelled:
		return nil, context.Canceled
	case s.program == "":
		return nil, tts.NewSynthesisError(tts.System, errors.New("engine not initialized"))
	case s.done != nil:
		return nil, tts.NewSynthesisError(tts.System, errors.New("already speaking"))
	}

	ctx, cancel := context.WithCancel(ctx)
	events := make(chan tts.StreamEvent)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.speak(ctx, []rune(text), s.program, s.args, s.rate, events, s.done)
	return &tts.NativeTimedStream{Events: events}, nil
}

func (s *System) speak(ctx context.Context, text []rune, program string, args []string, rate int, events chan<- tts.StreamEvent, done chan<- struct{}) {
	defer close(done)
	defer close(events)

	send := func(ev tts.StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for _, sentence := range splitSentences(text, splitWords(string(text))) {
		if err := s.speakSentence(ctx, text, sentence, program, args, rate, send); err != nil {
			if ctx.Err() != nil {
				return
			}
			send(tts.StreamEvent{Done: true, Err: err})
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
	send(tts.StreamEvent{Done: true})
}

// speakSentence runs one synthesizer process for words and sends a word
// event as each word is due. Words still pending when the process exits
// are sent at once.
func (s *System) speakSentence(ctx context.Context, text []rune, words []word, program string, args []string, rate int, send func(tts.StreamEvent) bool) error {
	input := string(text[words[0].Start:words[len(words)-1].End])

	exited := make(chan error, 1)
	started := false
	start := func() {
		started = true
		go func() {
			_, err := s.runner.Run(ctx, input, program, args...)
			exited <- err
		}()
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	var at time.Duration
	begin := time.Now()
	for i, w := range words {
		if i > 0 {
			timer.Reset(time.Until(begin.Add(at)))
			select {
			case err := <-exited:
				if err != nil {
					return err
				}
				for _, rest := range words[i:] {
					if !send(tts.StreamEvent{Word: rest.Text, Start: rest.Start, End: rest.End}) {
						return ctx.Err()
					}
				}
				return nil
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if !send(tts.StreamEvent{Word: w.Text, Start: w.Start, End: w.End}) {
			return ctx.Err()
		}
		if !started {
			start()
		}
		at += wordDuration(w, rate)
	}

	select {
	case err := <-exited:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wordDuration estimates how long w takes at rate words per minute,
// counting an average word as six characters with its trailing space.
func wordDuration(w word, rate int) time.Duration {
	chars := w.End - w.Start + 1
	return time.Duration(chars) * time.Minute / time.Duration(6*tts.ClampRate(rate))
}

// maxSentenceWords bounds a sentence so pacing drift stays small.
const maxSentenceWords = 40

// splitSentences groups words into sentences. A sentence ends at a word
// with closing punctuation, at a line break or after maxSentenceWords.
func splitSentences(text []rune, words []word) [][]word {
	var sentences [][]word
	begin := 0
	for i, w := range words {
		end := i == len(words)-1 || i-begin+1 >= maxSentenceWords
		if !end {
			switch text[w.End-1] {
			case '.', '!', '?', ';', ':':
				end = true
			}
		}
		if !end && strings.ContainsRune(string(text[w.End:words[i+1].Start]), '\n') {
			end = true
		}
		if end {
			sentences = append(sentences, words[begin:i+1])
			begin = i + 1
		}
	}
	return sentences
}

// Cancel stops the synthesizer and waits for the stream to close.
func (s *System) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// ListVoices asks the installed synthesizer for its voices.
func (s *System) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	synth, path, err := findSynthesizer(s.runner)
	if err != nil {
		return nil, err
	}

	if synth.name == "say" {
		out, err := s.runner.Run(ctx, "", path, "-v", "?")
		if err != nil {
			return nil, fmt.Errorf("list voices: %w", err)
		}
		return parseSayVoices(out), nil
	}

	out, err := s.runner.Run(ctx, "", path, "--voices")
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	return parseEspeakVoices(out), nil
}

// parseEspeakVoices reads the table printed by espeak --voices:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  af              --/M      Afrikaans          gmw/af
func parseEspeakVoices(out []byte) []tts.Voice {
	var voices []tts.Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}

		gender := tts.GenderUnknown
		if _, g, ok := strings.Cut(fields[2], "/"); ok {
			gender = tts.ParseGender(g)
		}
		voices = append(voices, tts.Voice{
			ID:          fields[1],
			DisplayName: strings.ReplaceAll(fields[3], "_", " "),
			LanguageTag: canonicalTag(fields[1]),
			Gender:      gender,
			Origin:      tts.System,
		})
	}
	return voices
}

var sayVoiceLine = regexp.MustCompile(`^(.+?)\s+([A-Za-z]{2,3}[_-][A-Za-z0-9]+)\s+#`)

// parseSayVoices reads the list printed by say -v '?':
//
//	Alex                en_US    # Most people recognize me by my voice.
func parseSayVoices(out []byte) []tts.Voice {
	var voices []tts.Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		m := sayVoiceLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		voices = append(voices, tts.Voice{
			ID:          name,
			DisplayName: name,
			LanguageTag: canonicalTag(m[2]),
			Origin:      tts.System,
		})
	}
	return voices
}

func canonicalTag(s string) string {
	tag, err := language.Parse(s)
	if err != nil {
		return s
	}
	return tag.String()
}
