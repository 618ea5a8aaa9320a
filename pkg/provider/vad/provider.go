// Package vad defines the voice-activity detection interface that gates
// Fae's capture loop.
//
// A VAD engine wraps a frame-level speech detector (Silero, WebRTC VAD, or
// an energy heuristic) as a stateful per-stream session. The capture loop
// calls it synchronously on every microphone frame, so the contract is
// strict about latency: ProcessFrame must not block, ever — a stalled
// detector stalls the microphone.
//
// Detection state is what turns raw probabilities into the
// start/continue/end transitions the coordinator's state machine consumes:
// speech-start flips Listening to Capturing, speech-end marks the utterance
// boundary the transcriber finalises on, and sustained silence is dropped
// before it ever reaches the transcription backend.
//
// Implementations must be safe for concurrent use across sessions. A single
// SessionHandle is owned by one capture loop and is not shared unless the
// implementation documents otherwise.
package vad

// Config holds the parameters for a VAD session. Thresholds are
// probabilities in [0, 1]; see each Engine's documentation for recommended
// starting values.
type Config struct {
	// SampleRate is the audio sample rate in Hz, matching the PCM frames
	// passed to ProcessFrame. Fae's capture path runs at 16000.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds.
	// Most detectors operate on fixed frame sizes (10, 20, or 30 ms);
	// ProcessFrame returns an error for a frame of the wrong size.
	FrameSizeMs int

	// SpeechThreshold is the probability above which a frame is classified
	// as speech. Higher values cut false wake-ups at the cost of clipping
	// soft speech onsets. Typical: 0.5.
	SpeechThreshold float64

	// SilenceThreshold is the probability below which an active speech
	// segment is considered ended. Must be ≤ SpeechThreshold; the gap
	// between the two is the hysteresis that stops mid-word flicker.
	// Typical: 0.35.
	SilenceThreshold float64
}

// SessionHandle is an active VAD session for a single audio stream. It is
// an interface so tests can substitute scripted detectors. Each session
// keeps its own smoothing state; Reset clears it without closing.
type SessionHandle interface {
	// ProcessFrame classifies a single frame of raw little-endian PCM at
	// the configured SampleRate and FrameSizeMs. It is called inline from
	// the capture loop and must not block; returns an error for a
	// wrong-sized frame or an internal detector failure.
	ProcessFrame(frame []byte) (VADEvent, error)

	// Reset clears accumulated detection state (ring buffers, speech-start
	// counters) without closing the session. The coordinator resets after
	// a capture-device reopen so stale state from the dead stream cannot
	// bleed into the new one.
	Reset()

	// Close releases all session resources. After Close, ProcessFrame and
	// Reset must return errors or be no-ops. Calling Close more than once
	// is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions, implemented by each detector
// backend.
//
// Implementations must be safe for concurrent use: the pipeline and a
// diagnostics capture may create independent sessions simultaneously.
type Engine interface {
	// NewSession creates a session with the given configuration, ready to
	// accept frames immediately.
	//
	// Returns an error for an invalid configuration (unsupported sample
	// rate, frame size, or out-of-range thresholds) or if session
	// resources cannot be allocated.
	NewSession(cfg Config) (SessionHandle, error)
}
