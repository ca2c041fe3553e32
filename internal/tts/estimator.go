package tts

import (
	"context"
	"sort"
	"time"
	"unicode"
)

// DefaultCharsPerSecond is the speaking speed assumed when estimating word
// durations.
const DefaultCharsPerSecond = 5.0

// ScheduledSpan is a span and the offset into playback at which it should be
// highlighted.
type ScheduledSpan struct {
	Span WordSpan
	At   time.Duration
}

// Estimator manufactures word spans for engines that return audio without
// timing, and schedules their emission while the audio plays.
type Estimator struct {
	// CharsPerSecond sets the assumed speaking speed. Zero means
	// DefaultCharsPerSecond.
	CharsPerSecond float64

	// AlignToText places spans on the words' real offsets instead of
	// assuming one separator between consecutive words.
	AlignToText bool
}

// NewEstimator returns an estimator with the default speaking speed.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerSecond: DefaultCharsPerSecond}
}

func (e *Estimator) charsPerSecond() float64 {
	if e == nil || e.CharsPerSecond <= 0 {
		return DefaultCharsPerSecond
	}
	return e.CharsPerSecond
}

type word struct {
	start int
	size  int
}

// splitWords returns the rune offset and length of every whitespace
// separated word.
func splitWords(runes []rune) []word {
	var words []word
	start := -1
	for i, r := range runes {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, word{start: start, size: i - start})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, word{start: start, size: len(runes) - start})
	}
	return words
}

// Plan returns one estimated span per word of text. Word i starts at text
// offset sum(len(word_j)+1) for j<i and is emitted after the summed
// durations of the preceding words.
func (e *Estimator) Plan(text string) []ScheduledSpan {
	runes := []rune(text)
	words := splitWords(runes)
	if len(words) == 0 {
		return nil
	}

	cps := e.charsPerSecond()
	plan := make([]ScheduledSpan, 0, len(words))
	offset := 0
	var at time.Duration
	for _, w := range words {
		start := offset
		if e != nil && e.AlignToText {
			start = w.start
		}
		plan = append(plan, ScheduledSpan{
			Span: WordSpan{Start: start, End: start + w.size, Origin: OriginEstimated},
			At:   at,
		})
		offset += w.size + 1
		at += time.Duration(float64(w.size) / cps * float64(time.Second))
	}
	return plan
}

// FromTimings converts side-channel timings into a plan of native spans.
// Timings outside the text or overlapping an earlier span are dropped.
func FromTimings(text string, timings []WordTiming) []ScheduledSpan {
	n := len([]rune(text))
	sorted := make([]WordTiming, len(timings))
	copy(sorted, timings)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	plan := make([]ScheduledSpan, 0, len(sorted))
	prevEnd := 0
	var prevAt time.Duration
	for _, t := range sorted {
		span := WordSpan{Start: t.Start, End: t.End, Origin: OriginNative}
		if !span.Valid(n, prevEnd) {
			continue
		}
		at := t.At
		if at < prevAt {
			at = prevAt
		}
		plan = append(plan, ScheduledSpan{Span: span, At: at})
		prevEnd = span.End
		prevAt = at
	}
	return plan
}

// Run emits every span of plan at its scheduled offset from the moment Run
// is called. live is checked before each wait and each emission; Run
// returns as soon as it reports false or ctx is done.
func (e *Estimator) Run(ctx context.Context, plan []ScheduledSpan, live func() bool, emit func(WordSpan)) error {
	if len(plan) == 0 {
		return nil
	}

	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for i := 0; i < len(plan); i++ {
		if !live() {
			return context.Canceled
		}

		if wait := plan[i].At - time.Since(start); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
			if !live() {
				return context.Canceled
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		emit(plan[i].Span)
	}
	return nil
}
