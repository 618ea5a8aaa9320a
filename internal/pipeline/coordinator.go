package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	ferrors "github.com/saorsa-labs/fae/internal/errors"
	"github.com/saorsa-labs/fae/internal/transcript"
	"github.com/saorsa-labs/fae/pkg/audio"
	"github.com/saorsa-labs/fae/pkg/provider/stt"
	"github.com/saorsa-labs/fae/pkg/provider/tts"
	"github.com/saorsa-labs/fae/pkg/provider/vad"
	"github.com/saorsa-labs/fae/pkg/types"
	"golang.org/x/sync/errgroup"
)

// errStreamEnded signals clean end-of-input (the capture device closed its
// stream). It cancels the errgroup so every stage unwinds, and Run reports
// it as a clean shutdown.
var errStreamEnded = errors.New("pipeline: input stream ended")

// Coordinator drives one pipeline run. Create with [New], start with
// [Coordinator.Run], stop by cancelling the run context or calling
// [Coordinator.Cancel].
type Coordinator struct {
	cfg       Config
	platform  audio.Platform
	sttP      stt.Provider
	ttsP      tts.Provider
	vadE      vad.Engine
	responder Responder
	capture   CaptureHook

	corrector transcript.Pipeline
	entities  []string

	events chan Event

	mu          sync.Mutex
	state       State
	cancelRun   context.CancelFunc
	speakCancel context.CancelFunc
}

// Option configures a Coordinator during construction.
type Option func(*Coordinator)

// WithVAD attaches a voice-activity engine gating STT input. Without one,
// every captured frame is forwarded to the transcriber.
func WithVAD(e vad.Engine) Option {
	return func(c *Coordinator) { c.vadE = e }
}

// WithResponder sets the stage that produces assistant replies. Required in
// conversation mode.
func WithResponder(r Responder) Option {
	return func(c *Coordinator) { c.responder = r }
}

// WithCaptureHook attaches the asynchronous memory-capture callback invoked
// after each completed turn.
func WithCaptureHook(hook CaptureHook) Option {
	return func(c *Coordinator) { c.capture = hook }
}

// WithCorrector attaches a transcript correction pipeline applied to final
// transcripts before gating, with entities as the known proper nouns.
func WithCorrector(p transcript.Pipeline, entities []string) Option {
	return func(c *Coordinator) {
		c.corrector = p
		c.entities = entities
	}
}

// New builds a Coordinator over the given device platform and providers.
func New(cfg Config, platform audio.Platform, sttP stt.Provider, ttsP tts.Provider, opts ...Option) *Coordinator {
	cfg.applyDefaults()
	c := &Coordinator{
		cfg:      cfg,
		platform: platform,
		sttP:     sttP,
		ttsP:     ttsP,
		events:   make(chan Event, 64),
		state:    StateIdle,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Events returns the coordinator's event stream. Events are dropped, not
// blocked on, when the consumer falls behind.
func (c *Coordinator) Events() <-chan Event { return c.events }

// State returns the coordinator's current stage.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cancel requests a cooperative stop of the current run. Safe to call at any
// time, from any goroutine.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	cancel := c.cancelRun
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes the pipeline until ctx is cancelled, [Coordinator.Cancel] is
// called, or a stage fails unrecoverably. Exactly one capture stream and (in
// conversation mode) one playback stream are open for the duration.
func (c *Coordinator) Run(ctx context.Context) error {
	const op = "pipeline.Coordinator.Run"

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	c.cancelRun = cancel
	c.mu.Unlock()

	if c.cfg.Mode == ModeConversation && c.responder == nil {
		return ferrors.New(ferrors.KindPipeline, op, "conversation mode requires a responder")
	}

	// ── Open owned resources ──────────────────────────────────────────────
	captureStream, err := c.platform.OpenCapture(runCtx, audio.DeviceConfig{
		Device:     c.cfg.InputDevice,
		SampleRate: c.cfg.SampleRate,
		Channels:   1,
		FrameMs:    c.cfg.FrameMs,
	})
	if err != nil {
		return ferrors.Wrap(ferrors.KindPipeline, op, "open capture device", err)
	}
	defer captureStream.Close()

	session, err := c.sttP.StartStream(runCtx, stt.StreamConfig{
		SampleRate: c.cfg.SampleRate,
		Channels:   1,
		Language:   c.cfg.Language,
	})
	if err != nil {
		return ferrors.Wrap(ferrors.KindPipeline, op, "start transcription session", err)
	}
	defer session.Close()

	var playback audio.PlaybackStream
	if c.cfg.Mode == ModeConversation {
		playback, err = c.platform.OpenPlayback(runCtx, audio.DeviceConfig{
			Device:     c.cfg.OutputDevice,
			SampleRate: c.cfg.SampleRate,
			Channels:   1,
			FrameMs:    c.cfg.FrameMs,
		})
		if err != nil {
			return ferrors.Wrap(ferrors.KindPipeline, op, "open playback device", err)
		}
		defer playback.Close()
	}

	c.setState(StateListening)

	// Bounded transcript→agent queue.
	turns := make(chan types.TranscriptSegment, c.cfg.QueueDepth)

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error { return c.captureLoop(gctx, captureStream, session) })
	g.Go(func() error { return c.transcribeLoop(gctx, session, turns) })
	if c.cfg.Mode == ModeConversation {
		g.Go(func() error { return c.converseLoop(gctx, turns, playback) })
		g.Go(func() error { return c.underrunLoop(gctx, playback) })
	} else {
		g.Go(func() error {
			// Transcribe-only: drain queued turns so the transcriber never
			// blocks; state stops at Transcribing.
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case _, ok := <-turns:
					if !ok {
						return errStreamEnded
					}
				}
			}
		})
	}

	err = g.Wait()
	c.setState(StateIdle)
	if err != nil && !errors.Is(err, errStreamEnded) && runCtx.Err() == nil {
		return err
	}
	return nil
}

// ── Stages ────────────────────────────────────────────────────────────────────

// captureLoop forwards microphone frames through the VAD gate into the STT
// session.
func (c *Coordinator) captureLoop(ctx context.Context, captureStream audio.CaptureStream, session stt.SessionHandle) error {
	var vadSession vad.SessionHandle
	if c.vadE != nil {
		var err error
		vadSession, err = c.vadE.NewSession(vad.Config{
			SampleRate:       c.cfg.SampleRate,
			FrameSizeMs:      c.cfg.FrameMs,
			SpeechThreshold:  0.5,
			SilenceThreshold: 0.35,
		})
		if err != nil {
			return ferrors.Wrap(ferrors.KindPipeline, "pipeline.captureLoop", "create vad session", err)
		}
		defer vadSession.Close()
	}

	inSpeech := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-captureStream.Frames():
			if !ok {
				return nil
			}
			if vadSession != nil {
				event, err := vadSession.ProcessFrame(frame.Data)
				if err != nil {
					c.emit(EventError, map[string]any{"stage": "vad", "message": err.Error()})
					continue
				}
				switch event.Type {
				case types.VADSpeechStart:
					inSpeech = true
					if c.State() == StateListening {
						c.setState(StateCapturing)
					}
				case types.VADSpeechEnd:
					inSpeech = false
					if c.State() == StateCapturing {
						c.setState(StateTranscribing)
					}
				case types.VADSilence:
					if !inSpeech {
						continue // gate silence away from the transcriber
					}
				}
			}
			if err := session.SendAudio(frame.Data); err != nil {
				c.emit(EventError, map[string]any{"stage": "stt", "message": err.Error()})
			}
		}
	}
}

// transcribeLoop consumes STT output, applies wake/stop gating, emits
// transcript events, and enqueues passed finals for the agent.
func (c *Coordinator) transcribeLoop(ctx context.Context, session stt.SessionHandle, turns chan<- types.TranscriptSegment) error {
	gate := newPhraseGate(c.cfg.GateEnabled, c.cfg.WakePhrase, c.cfg.StopPhrase)
	partials := session.Partials()
	finals := session.Finals()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case partial, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			c.emit(EventTranscriptInterm, map[string]any{"text": partial.Text})

		case final, ok := <-finals:
			if !ok {
				close(turns)
				return nil
			}
			if c.corrector != nil {
				if corrected, err := c.corrector.Correct(ctx, final, c.entities); err == nil && corrected != nil {
					final.Text = corrected.Corrected
				}
			}
			segment := segmentFor(final)
			c.emit(EventTranscriptFinal, map[string]any{
				"id":             segment.ID,
				"text":           segment.Text,
				"start_epoch_ms": segment.StartEpochMS,
				"end_epoch_ms":   segment.EndEpochMS,
			})

			switch gate.observe(final.Text) {
			case gateOpened:
				c.emit(EventWakeHeard, map[string]any{"phrase": c.cfg.WakePhrase})
				continue
			case gateClosed:
				c.emit(EventStopHeard, map[string]any{"phrase": c.cfg.StopPhrase})
				c.setState(StateListening)
				continue
			case gateDropped:
				continue
			}

			if c.cfg.Mode != ModeConversation {
				c.setState(StateTranscribing)
				continue
			}

			// Barge-in: fresh user speech cancels in-flight playback rather
			// than waiting behind it.
			if c.cfg.BargeIn {
				c.interruptSpeech()
			}

			if err := c.enqueueTurn(ctx, turns, segment); err != nil {
				return err
			}
		}
	}
}

// enqueueTurn pushes a segment into the bounded agent queue. If the queue
// stays full past the congestion threshold, a pipeline.congested event is
// emitted once and the send continues to block until space frees or the run
// is cancelled — back-pressure without deadlock.
func (c *Coordinator) enqueueTurn(ctx context.Context, turns chan<- types.TranscriptSegment, segment types.TranscriptSegment) error {
	select {
	case turns <- segment:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.cfg.CongestionAfter):
	}

	c.emit(EventCongested, map[string]any{"stage": "transcript→agent", "blocked_ms": c.cfg.CongestionAfter.Milliseconds()})

	select {
	case turns <- segment:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// converseLoop runs the agent and speech stages for each queued turn.
func (c *Coordinator) converseLoop(ctx context.Context, turns <-chan types.TranscriptSegment, playback audio.PlaybackStream) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case segment, ok := <-turns:
			if !ok {
				return errStreamEnded
			}

			c.setState(StateThinking)
			reply, err := c.responder.Respond(ctx, segment.Text)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.emit(EventError, map[string]any{"stage": "agent", "message": safeMessage(err)})
				c.setState(StateListening)
				continue
			}
			c.emit(EventAssistantText, map[string]any{"text": reply})

			if reply != "" {
				c.setState(StateSpeaking)
				if err := c.speak(ctx, reply, playback); err != nil && ctx.Err() == nil {
					c.emit(EventError, map[string]any{"stage": "tts", "message": safeMessage(err)})
				}
			}
			c.setState(StateListening)

			if c.capture != nil {
				turnID := segment.ID
				go c.capture(turnID, segment.Text, reply)
			}
		}
	}
}

// speak synthesises reply and streams the audio to the playback device. The
// per-utterance context is cancellable by barge-in.
func (c *Coordinator) speak(ctx context.Context, reply string, playback audio.PlaybackStream) error {
	speakCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.speakCancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.speakCancel = nil
		c.mu.Unlock()
	}()

	textCh := make(chan string, 1)
	textCh <- reply
	close(textCh)

	audioCh, err := c.ttsP.SynthesizeStream(speakCtx, textCh, c.cfg.Voice)
	if err != nil {
		return err
	}

	for {
		select {
		case <-speakCtx.Done():
			go audio.Drain(audioCh)
			return nil // barge-in or shutdown; not an error
		case chunk, ok := <-audioCh:
			if !ok {
				return nil
			}
			frame := audio.AudioFrame{
				Data:       chunk,
				SampleRate: c.cfg.SampleRate,
				Channels:   1,
			}
			select {
			case playback.Frames() <- frame:
			case <-speakCtx.Done():
				go audio.Drain(audioCh)
				return nil
			}
		}
	}
}

// interruptSpeech cancels the current speak call, if any.
func (c *Coordinator) interruptSpeech() {
	c.mu.Lock()
	cancel := c.speakCancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// underrunLoop surfaces playback buffer underruns as events.
func (c *Coordinator) underrunLoop(ctx context.Context, playback audio.PlaybackStream) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-playback.Underruns():
			if !ok {
				return nil
			}
			c.emit(EventUnderrun, nil)
		}
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed {
		c.emit(EventStateChanged, map[string]any{"state": string(s)})
	}
}

// emit delivers an event without ever blocking a pipeline stage: when the
// buffer is full the oldest pending event is dropped.
func (c *Coordinator) emit(name string, payload map[string]any) {
	event := Event{Name: name, Payload: payload, EmittedAt: time.Now().UnixMilli()}
	for {
		select {
		case c.events <- event:
			return
		default:
			select {
			case dropped := <-c.events:
				slog.Debug("pipeline event dropped", "event", dropped.Name)
			default:
			}
		}
	}
}

func segmentFor(final types.Transcript) types.TranscriptSegment {
	end := time.Now().UnixMilli()
	start := end - final.Duration.Milliseconds()
	return types.TranscriptSegment{
		ID:           uuid.NewString(),
		StartEpochMS: start,
		EndEpochMS:   end,
		Text:         final.Text,
		IsFinal:      true,
	}
}

func safeMessage(err error) string {
	if fe, ok := err.(*ferrors.Error); ok {
		return fe.Safe()
	}
	return err.Error()
}
