package tts

import (
	"context"
	"sync"
	"testing"
	"time"
)

// TestEstimatorPlanInvariants checks ordering and bounds for assorted texts.
func TestEstimatorPlanInvariants(t *testing.T) {
	texts := []string{
		"hello world",
		"The quick brown fox jumps over the lazy dog.",
		"  leading and trailing  ",
		"tabs\tand\nnewlines\r\nmixed",
		"multiple     spaces     between",
		"ünïcödé wörds änd émojis 🎉 here",
		"single",
	}

	for _, aligned := range []bool{false, true} {
		est := &Estimator{CharsPerSecond: DefaultCharsPerSecond, AlignToText: aligned}
		for _, text := range texts {
			t.Run(text, func(t *testing.T) {
				plan := est.Plan(text)
				n := len([]rune(text))
				prevEnd := 0
				var prevAt time.Duration
				for i, s := range plan {
					if !s.Span.Valid(n, prevEnd) {
						t.Fatalf("span %d %+v invalid (len %d, prevEnd %d)", i, s.Span, n, prevEnd)
					}
					if s.Span.Origin != OriginEstimated {
						t.Errorf("span %d origin = %v, want estimated", i, s.Span.Origin)
					}
					if s.At < prevAt {
						t.Errorf("span %d scheduled at %v before previous %v", i, s.At, prevAt)
					}
					prevEnd = s.Span.End
					prevAt = s.At
				}
				if len(plan) > 0 && plan[len(plan)-1].Span.End > n {
					t.Errorf("last span ends at %d beyond text length %d", plan[len(plan)-1].Span.End, n)
				}
			})
		}
	}
}

func TestEstimatorPlanOffsets(t *testing.T) {
	est := NewEstimator()
	plan := est.Plan("hello big world")

	want := []ScheduledSpan{
		{Span: WordSpan{Start: 0, End: 5, Origin: OriginEstimated}, At: 0},
		{Span: WordSpan{Start: 6, End: 9, Origin: OriginEstimated}, At: time.Second},
		{Span: WordSpan{Start: 10, End: 15, Origin: OriginEstimated}, At: 1600 * time.Millisecond},
	}
	if len(plan) != len(want) {
		t.Fatalf("Plan() returned %d spans, want %d", len(plan), len(want))
	}
	for i := range want {
		if plan[i] != want[i] {
			t.Errorf("span %d = %+v, want %+v", i, plan[i], want[i])
		}
	}
}

func TestEstimatorPlanSeparatorRuns(t *testing.T) {
	tests := []struct {
		name    string
		aligned bool
		want    []WordSpan
	}{
		{
			name: "one separator assumed",
			want: []WordSpan{{Start: 0, End: 1}, {Start: 2, End: 3}},
		},
		{
			name:    "aligned to text",
			aligned: true,
			want:    []WordSpan{{Start: 0, End: 1}, {Start: 4, End: 5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := &Estimator{AlignToText: tt.aligned}
			plan := est.Plan("a   b")
			if len(plan) != len(tt.want) {
				t.Fatalf("Plan() returned %d spans, want %d", len(plan), len(tt.want))
			}
			for i, w := range tt.want {
				got := plan[i].Span
				if got.Start != w.Start || got.End != w.End {
					t.Errorf("span %d = [%d,%d), want [%d,%d)", i, got.Start, got.End, w.Start, w.End)
				}
			}
		})
	}
}

func TestEstimatorPlanEmpty(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		if plan := NewEstimator().Plan(text); len(plan) != 0 {
			t.Errorf("Plan(%q) = %v, want no spans", text, plan)
		}
	}
}

func TestEstimatorCharsPerSecond(t *testing.T) {
	est := &Estimator{CharsPerSecond: 10}
	plan := est.Plan("abcde fghij")
	if got := plan[1].At; got != 500*time.Millisecond {
		t.Errorf("second word scheduled at %v, want 500ms", got)
	}

	var zero *Estimator
	if got := zero.charsPerSecond(); got != DefaultCharsPerSecond {
		t.Errorf("nil estimator chars per second = %v, want %v", got, DefaultCharsPerSecond)
	}
}

func TestFromTimings(t *testing.T) {
	text := "one two three"
	timings := []WordTiming{
		{Start: 8, End: 13, At: 900 * time.Millisecond},
		{Start: 0, End: 3, At: 0},
		{Start: 4, End: 7, At: 400 * time.Millisecond},
		{Start: 5, End: 6, At: 500 * time.Millisecond},   // overlaps "two"
		{Start: 12, End: 40, At: time.Second},            // past the end
		{Start: 3, End: 3, At: 300 * time.Millisecond},   // empty
	}

	plan := FromTimings(text, timings)
	want := []WordSpan{
		{Start: 0, End: 3, Origin: OriginNative},
		{Start: 4, End: 7, Origin: OriginNative},
		{Start: 8, End: 13, Origin: OriginNative},
	}
	if len(plan) != len(want) {
		t.Fatalf("FromTimings() returned %d spans, want %d: %+v", len(plan), len(want), plan)
	}
	for i := range want {
		if plan[i].Span != want[i] {
			t.Errorf("span %d = %+v, want %+v", i, plan[i].Span, want[i])
		}
	}
	if plan[2].At != 900*time.Millisecond {
		t.Errorf("third span at %v, want 900ms", plan[2].At)
	}
}

func TestEstimatorRunEmitsInOrder(t *testing.T) {
	est := &Estimator{CharsPerSecond: 1000}
	plan := est.Plan("a quick run through several words")

	var got []WordSpan
	err := est.Run(context.Background(), plan,
		func() bool { return true },
		func(s WordSpan) { got = append(got, s) },
	)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got) != len(plan) {
		t.Fatalf("Run() emitted %d spans, want %d", len(got), len(plan))
	}
	for i := range plan {
		if got[i] != plan[i].Span {
			t.Errorf("emission %d = %+v, want %+v", i, got[i], plan[i].Span)
		}
	}
}

func TestEstimatorRunStopsWhenNotLive(t *testing.T) {
	est := &Estimator{CharsPerSecond: 1000}
	plan := est.Plan("one two three four five six")

	var (
		mu      sync.Mutex
		emitted int
	)
	live := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return emitted < 2
	}
	emit := func(WordSpan) {
		mu.Lock()
		emitted++
		mu.Unlock()
	}

	if err := est.Run(context.Background(), plan, live, emit); err == nil {
		t.Error("Run() should report cancellation when the session is no longer live")
	}
	if emitted != 2 {
		t.Errorf("emitted %d spans, want 2", emitted)
	}
}

func TestEstimatorRunHonorsContext(t *testing.T) {
	est := &Estimator{CharsPerSecond: 1}
	plan := est.Plan("slow words take a long time")

	ctx, cancel := context.WithCancel(context.Background())
	var emitted int
	done := make(chan error, 1)
	go func() {
		done <- est.Run(ctx, plan, func() bool { return true }, func(WordSpan) { emitted++ })
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Run() error = nil, want context error")
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
	if emitted != 1 {
		t.Errorf("emitted %d spans before cancellation, want 1", emitted)
	}
}

func TestEstimatorRunEmptyPlan(t *testing.T) {
	called := false
	err := NewEstimator().Run(context.Background(), nil,
		func() bool { called = true; return true },
		func(WordSpan) { t.Error("emit called for empty plan") },
	)
	if err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if called {
		t.Error("live() should not be consulted for an empty plan")
	}
}
