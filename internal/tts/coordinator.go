package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Options wires a Coordinator to its collaborators. Engines and Sink are
// required; the rest fall back to defaults when nil.
type Options struct {
	Engines     EngineFactory
	Config      ConfigStore
	Credentials CredentialStore
	Catalog     VoiceCatalog
	Sink        HighlightSink
	Audio       AudioSink
	Estimator   *Estimator
	Logger      *log.Logger

	// QueueSize is the capacity of the event queue between workers and
	// the sink. Defaults to 64.
	QueueSize int
}

type eventKind int

const (
	eventSpan eventKind = iota
	eventEnded
)

type event struct {
	kind  eventKind
	job   *SpeechJob
	span  WordSpan
	state PlaybackState
	err   error
}

// Coordinator owns the single active speech session. It starts a worker
// per job, funnels every span through one ordered queue to the
// HighlightSink and drops events of superseded or cancelled sessions.
type Coordinator struct {
	opts      Options
	estimator *Estimator
	logger    *log.Logger

	// mu guards the session token, the current job and job states.
	mu      sync.Mutex
	token   uint64
	current *SpeechJob
	closed  bool

	// deliver is held by the dispatcher while it calls the sink.
	deliver    sync.Mutex
	events     chan event
	quit       chan struct{}
	dispatched chan struct{}
	workers    sync.WaitGroup
}

// NewCoordinator creates a coordinator and starts its dispatcher.
func NewCoordinator(opts Options) *Coordinator {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("tts")
	}
	estimator := opts.Estimator
	if estimator == nil {
		estimator = NewEstimator()
	}

	c := &Coordinator{
		opts:       opts,
		estimator:  estimator,
		logger:     logger,
		events:     make(chan event, opts.QueueSize),
		quit:       make(chan struct{}),
		dispatched: make(chan struct{}),
	}
	go c.dispatch()
	return c
}

// Speak starts a new session for text, superseding any session in
// progress, and returns its token. Empty or whitespace-only text completes
// immediately with no spans. When Speak returns, no further span of the
// superseded session will reach the sink.
func (c *Coordinator) Speak(text string) (uint64, error) {
	settings := c.settings()
	kind, err := ParseEngineKind(settings.Engine)
	if err != nil {
		c.logger.Warn("Unknown engine in settings, using system", "engine", settings.Engine)
	}
	voice := Voice{ID: settings.VoiceID, LanguageTag: settings.LanguageTag, Origin: kind}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrCoordinatorClosed
	}

	c.token++
	var ended []event
	if prev := c.current; prev != nil {
		if ev, ok := c.endLocked(prev, StateCancelled, ErrCancelledBySupersession); ok {
			ended = append(ended, ev)
		}
	}

	job := newSpeechJob(c.token, text, voice, ClampRate(settings.Rate), kind)
	c.current = job

	var ctx context.Context
	empty := strings.TrimSpace(text) == ""
	if empty {
		if ev, ok := c.endLocked(job, StateCompleted, ErrEmptyInput); ok {
			ended = append(ended, ev)
		}
	} else {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(context.Background())
		job.cancel = cancel
		c.workers.Add(1)
	}
	c.mu.Unlock()

	// The superseded session's end notification is queued before the new
	// worker can queue any span.
	for _, ev := range ended {
		c.enqueue(ev)
	}
	if !empty {
		c.logger.Debug("Starting speech job", "token", job.Token, "engine", kind, "runes", job.Len())
		go c.run(ctx, job)
	}
	c.barrier()

	return job.Token, nil
}

// Stop cancels the current session, if any.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	var (
		ev event
		ok bool
	)
	if c.current != nil {
		ev, ok = c.endLocked(c.current, StateCancelled, ErrCancelledByUser)
	}
	c.mu.Unlock()

	if ok {
		c.enqueue(ev)
	}
	c.barrier()
}

// Current returns the token and state of the most recent session.
func (c *Coordinator) Current() (uint64, PlaybackState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return c.token, StateIdle
	}
	return c.current.Token, c.current.State()
}

// Close stops the current session, waits for workers to exit and drains
// the event queue. The coordinator cannot be used afterwards.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	var (
		ev event
		ok bool
	)
	if c.current != nil {
		ev, ok = c.endLocked(c.current, StateCancelled, ErrCancelledByUser)
	}
	c.mu.Unlock()

	if ok {
		c.enqueue(ev)
	}
	c.workers.Wait()
	close(c.quit)
	<-c.dispatched
	return nil
}

// endLocked moves job to a terminal state, cancels its context and engine
// and returns the session-ended event. It reports false if the job had
// already ended. c.mu must be held.
func (c *Coordinator) endLocked(job *SpeechJob, state PlaybackState, err error) (event, bool) {
	if job.State().Terminal() {
		return event{}, false
	}
	if !job.state.Transition(state) {
		c.logger.Error("Invalid playback transition", "token", job.Token, "from", job.State(), "to", state)
		return event{}, false
	}

	job.cancel()
	if job.engine != nil {
		job.engine.Cancel()
	}
	return event{kind: eventEnded, job: job, state: state, err: err}, true
}

// finish ends job and queues its session-ended event.
func (c *Coordinator) finish(job *SpeechJob, state PlaybackState, err error) {
	c.mu.Lock()
	ev, ok := c.endLocked(job, state, err)
	c.mu.Unlock()

	if ok {
		if err != nil && state == StateFailed {
			c.logger.Error("Speech job failed", "token", job.Token, "engine", job.Engine, "err", err)
		} else {
			c.logger.Debug("Speech job ended", "token", job.Token, "state", state)
		}
		c.enqueue(ev)
	}
}

// transition moves a live job to a non-terminal state.
func (c *Coordinator) transition(job *SpeechJob, to PlaybackState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.liveLocked(job) {
		return false
	}
	return job.state.Transition(to)
}

// live reports whether job is still the current, unfinished session.
func (c *Coordinator) live(job *SpeechJob) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(job)
}

func (c *Coordinator) liveLocked(job *SpeechJob) bool {
	return job.Token == c.token && !job.State().Terminal()
}

// deliverable reports whether queued spans of job may still reach the
// sink. Spans of a completed session are delivered ahead of its
// session-ended event; cancelled, failed and superseded ones are dropped.
func (c *Coordinator) deliverable(job *SpeechJob) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if job.Token != c.token {
		return false
	}
	switch job.State() {
	case StateCancelled, StateFailed:
		return false
	}
	return true
}

// attach records the engine serving job so that supersession can cancel
// it. It reports false if the job ended while the engine was starting.
func (c *Coordinator) attach(job *SpeechJob, engine Engine, voice Voice, kind EngineKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.liveLocked(job) {
		return false
	}
	job.engine = engine
	job.Voice = voice
	job.Engine = kind
	return true
}

// emit queues a span for delivery if the job is still live.
func (c *Coordinator) emit(job *SpeechJob, span WordSpan) bool {
	if !c.live(job) {
		return false
	}
	c.enqueue(event{kind: eventSpan, job: job, span: span})
	return true
}

func (c *Coordinator) enqueue(ev event) {
	select {
	case c.events <- ev:
	case <-c.quit:
	}
}

// barrier waits for any sink call in progress to return.
func (c *Coordinator) barrier() {
	c.deliver.Lock()
	defer c.deliver.Unlock()
}

func (c *Coordinator) dispatch() {
	defer close(c.dispatched)

	for {
		select {
		case ev := <-c.events:
			c.deliverEvent(ev)
		case <-c.quit:
			for {
				select {
				case ev := <-c.events:
					c.deliverEvent(ev)
				default:
					return
				}
			}
		}
	}
}

func (c *Coordinator) deliverEvent(ev event) {
	c.deliver.Lock()
	defer c.deliver.Unlock()

	switch ev.kind {
	case eventSpan:
		if !c.deliverable(ev.job) {
			// stale sessions are dropped without ceremony
			c.logger.Debug("Dropping stale span", "token", ev.job.Token)
			return
		}
		c.opts.Sink.OnSpan(ev.job.Token, ev.span, c.settings().HighlightColor)
	case eventEnded:
		c.opts.Sink.OnSessionEnded(ev.job.Token, ev.state, ev.err)
	}
}

func (c *Coordinator) settings() Settings {
	defaults := DefaultSettings()
	if c.opts.Config == nil {
		return defaults
	}
	s, err := c.opts.Config.Get()
	if err != nil {
		c.logger.Warn("Could not read settings, using defaults", "err", err)
		return defaults
	}
	if s.Engine == "" {
		s.Engine = defaults.Engine
	}
	if s.HighlightColor == "" {
		s.HighlightColor = defaults.HighlightColor
	}
	return s
}

// run executes one job on its own goroutine.
func (c *Coordinator) run(ctx context.Context, job *SpeechJob) {
	defer c.workers.Done()

	if !c.transition(job, StateSynthesizing) {
		return
	}

	engine, voice, kind, err := c.open(ctx, job)
	if err != nil {
		if ctx.Err() == nil {
			c.finish(job, StateFailed, err)
		}
		return
	}
	if !c.attach(job, engine, voice, kind) {
		engine.Cancel()
		return
	}

	syn, err := engine.Synthesize(ctx, job.Text)
	if err != nil {
		if ctx.Err() == nil {
			c.finish(job, StateFailed, asSynthesisError(kind, err))
		}
		return
	}

	if !c.transition(job, StatePlaying) {
		engine.Cancel()
		return
	}

	switch s := syn.(type) {
	case *NativeTimedStream:
		err = c.playStream(ctx, job, s)
	case *RawAudioBuffer:
		err = c.playBuffer(ctx, job, s)
	default:
		err = NewSynthesisError(kind, fmt.Errorf("unsupported synthesis result %T", syn))
	}

	if ctx.Err() != nil {
		return
	}
	if err != nil {
		c.finish(job, StateFailed, err)
		return
	}
	c.finish(job, StateCompleted, nil)
}

// open creates and initializes the engine for job. A cloud engine that
// fails to initialize is retried once as the System engine.
func (c *Coordinator) open(ctx context.Context, job *SpeechJob) (Engine, Voice, EngineKind, error) {
	engine, voice, err := c.initEngine(ctx, job.Engine, job.Voice, job.Rate)
	if err == nil {
		return engine, voice, job.Engine, nil
	}
	if job.Engine.IsSystem() || ctx.Err() != nil {
		return nil, Voice{}, job.Engine, err
	}

	c.logger.Warn("Engine initialization failed, falling back to system", "engine", job.Engine, "err", err)
	fallback := Voice{LanguageTag: job.Voice.LanguageTag, Origin: System}
	engine, voice, ferr := c.initEngine(ctx, System, fallback, job.Rate)
	if ferr != nil {
		return nil, Voice{}, System, NewInitError(System, errors.Join(err, ferr))
	}
	return engine, voice, System, nil
}

func (c *Coordinator) initEngine(ctx context.Context, kind EngineKind, voice Voice, rate int) (Engine, Voice, error) {
	engine, err := c.opts.Engines.New(kind)
	if err != nil {
		return nil, voice, NewInitError(kind, err)
	}

	creds := Credentials{}
	if c.opts.Credentials != nil {
		creds, err = c.opts.Credentials.Get(kind.String())
		if err != nil {
			return nil, voice, NewInitError(kind, err)
		}
	}

	voice = c.resolveVoice(ctx, kind, voice)
	if err := engine.Initialize(ctx, voice, rate, creds); err != nil {
		engine.Cancel()
		if CodeOf(err) == ErrorCodeInit {
			return nil, voice, err
		}
		return nil, voice, NewInitError(kind, err)
	}
	return engine, voice, nil
}

// resolveVoice fills in catalog details for the configured voice id.
func (c *Coordinator) resolveVoice(ctx context.Context, kind EngineKind, voice Voice) Voice {
	voice.Origin = kind
	if voice.ID == "" || c.opts.Catalog == nil {
		return voice
	}

	voices, err := c.opts.Catalog.List(ctx, kind)
	if err != nil {
		c.logger.Debug("Voice catalog unavailable", "engine", kind, "err", err)
		return voice
	}
	for _, v := range voices {
		if v.ID == voice.ID {
			if v.LanguageTag == "" {
				v.LanguageTag = voice.LanguageTag
			}
			return v
		}
	}
	return voice
}

func (c *Coordinator) playStream(ctx context.Context, job *SpeechJob, s *NativeTimedStream) error {
	prevEnd := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.Events:
			if !ok {
				return nil
			}
			if ev.Done {
				if ev.Err != nil {
					return asSynthesisError(job.Engine, ev.Err)
				}
				return nil
			}

			span := WordSpan{Start: ev.Start, End: ev.End, Origin: OriginNative}
			if !span.Valid(job.Len(), prevEnd) {
				c.logger.Debug("Ignoring out of order word event", "token", job.Token, "word", ev.Word, "start", ev.Start, "end", ev.End)
				continue
			}
			if !c.emit(job, span) {
				return context.Canceled
			}
			prevEnd = span.End
		}
	}
}

func (c *Coordinator) playBuffer(ctx context.Context, job *SpeechJob, buf *RawAudioBuffer) error {
	plan := FromTimings(job.Text, buf.Timings)
	if len(plan) == 0 {
		plan = c.estimator.Plan(job.Text)
	}
	c.logger.Debug("Playing synthesized audio",
		"token", job.Token,
		"size", humanize.Bytes(uint64(len(buf.PCM))),
		"duration", buf.Duration(),
		"spans", len(plan),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	scheduled := make(chan error, 1)
	go func() {
		scheduled <- c.estimator.Run(ctx, plan,
			func() bool { return c.live(job) },
			func(span WordSpan) { c.emit(job, span) },
		)
	}()

	if err := c.writeAudio(ctx, buf); err != nil {
		cancel()
		<-scheduled
		return NewTTSError(ErrorCodeAudioFailure, "audio playback failed", err)
	}
	<-scheduled
	return nil
}

// writeAudio plays the buffer through the audio sink, if one is wired.
func (c *Coordinator) writeAudio(ctx context.Context, buf *RawAudioBuffer) error {
	if c.opts.Audio == nil || len(buf.PCM) == 0 {
		return nil
	}
	return c.opts.Audio.Write(ctx, buf.PCM, buf.SampleRate)
}

func asSynthesisError(kind EngineKind, err error) error {
	if CodeOf(err) != "" {
		return err
	}
	return NewSynthesisError(kind, err)
}
