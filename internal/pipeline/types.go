// Package pipeline implements the real-time coordinator that wires
// microphone capture → VAD → STT → agent → TTS → playback, with cooperative
// cancellation, bounded back-pressure, and wake-phrase gating.
//
// Each stage runs as its own goroutine inside an errgroup; stages communicate
// over bounded channels and share one cancellation context. The coordinator
// exclusively owns the capture handle, the transcript buffer, and the
// playback handle while running.
package pipeline

import (
	"context"
	"time"

	"github.com/saorsa-labs/fae/pkg/types"
)

// Mode selects how far the pipeline advances per utterance.
type Mode string

const (
	// ModeConversation runs the full loop: transcript → agent → speech.
	ModeConversation Mode = "conversation"

	// ModeTranscribeOnly stops after transcription, emitting transcript
	// events without thinking or speaking.
	ModeTranscribeOnly Mode = "transcribe_only"
)

// State is the coordinator's current stage, one per run.
type State string

const (
	StateIdle         State = "idle"
	StateListening    State = "listening"
	StateCapturing    State = "capturing"
	StateTranscribing State = "transcribing"
	StateThinking     State = "thinking"
	StateSpeaking     State = "speaking"
)

// Event is an asynchronous notification emitted by the coordinator, carried
// to hosts through the command channel's event stream.
type Event struct {
	Name      string
	Payload   map[string]any
	EmittedAt int64
}

// Event names emitted by the coordinator.
const (
	EventStateChanged     = "pipeline.state"
	EventTranscriptFinal  = "transcript.final"
	EventTranscriptInterm = "transcript.partial"
	EventWakeHeard        = "pipeline.wake"
	EventStopHeard        = "pipeline.stop"
	EventAssistantText    = "assistant.text"
	EventCongested        = "pipeline.congested"
	EventUnderrun         = "pipeline.underrun"
	EventError            = "pipeline.error"
)

// Responder produces the assistant's reply for one final user utterance.
// The production implementation wraps the agent loop; tests substitute fakes.
type Responder interface {
	Respond(ctx context.Context, userText string) (string, error)
}

// CaptureHook receives each completed conversation turn for asynchronous
// memory extraction. Implementations must serialise captures themselves; the
// coordinator fires and forgets.
type CaptureHook func(turnID, userText, assistantText string)

// Config tunes one coordinator run.
type Config struct {
	Mode Mode

	// Gating.
	GateEnabled bool
	WakePhrase  string
	StopPhrase  string

	// BargeIn cancels in-flight speech when fresh user speech finalises.
	// Default false: new speech queues as the next turn.
	BargeIn bool

	// Audio format.
	SampleRate   int
	FrameMs      int
	InputDevice  string
	OutputDevice string

	// Language is the STT language hint.
	Language string

	// Voice is the TTS voice profile.
	Voice types.VoiceProfile

	// PlaybackBufferMs bounds the TTS→playback channel by audio duration.
	PlaybackBufferMs int

	// QueueDepth bounds the transcript→agent channel. When full, the
	// transcribing stage blocks and eventually reports congestion.
	QueueDepth int

	// CongestionAfter is how long a producer may block on a full channel
	// before a pipeline.congested event is emitted. Default 2s.
	CongestionAfter time.Duration

	// Grace bounds how long stages may take to release resources after
	// cancellation. Default 250ms.
	Grace time.Duration
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeConversation
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.FrameMs == 0 {
		c.FrameMs = 20
	}
	if c.PlaybackBufferMs == 0 {
		c.PlaybackBufferMs = 1000
	}
	if c.QueueDepth == 0 {
		c.QueueDepth = 8
	}
	if c.CongestionAfter == 0 {
		c.CongestionAfter = 2 * time.Second
	}
	if c.Grace == 0 {
		c.Grace = 250 * time.Millisecond
	}
}
