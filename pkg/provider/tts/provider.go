// Package tts defines the speech synthesis interface the pipeline's
// speaking stage drives.
//
// The primary entry point is SynthesizeStream: it accepts a channel of text
// fragments and returns a channel of raw PCM as it is produced, so playback
// can begin while the tail of the reply is still being synthesised. For a
// voice assistant this pipelining is the difference between a conversation
// and a walkie-talkie — the first audible syllable should not wait for the
// last written one.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
)

// ErrNoSamples is returned by CloneVoice when no training samples are
// supplied.
var ErrNoSamples = errors.New("tts: voice cloning requires at least one sample")

// Provider is the abstraction over one synthesis backend.
//
// Implementations must be safe for concurrent use; the assistant's reply
// and a notification chime may synthesise in parallel.
type Provider interface {
	// SynthesizeStream consumes text fragments from the text channel and
	// returns a channel emitting raw PCM byte slices as they are
	// synthesised, letting the agent's streaming output feed straight into
	// playback.
	//
	// The returned audio channel is closed by the implementation when all
	// text has been synthesised or when ctx is cancelled — barge-in
	// cancels ctx mid-utterance and expects the channel to close promptly.
	// The caller must drain the audio channel to avoid blocking the
	// implementation's goroutines.
	//
	// voice selects the voice profile. Implementations should return an
	// error if the requested voice is not available.
	//
	// Returns a non-nil error only if the stream cannot be started. Errors
	// during synthesis are signalled by closing the audio channel early;
	// callers check ctx.Err() to distinguish cancellation from backend
	// failure.
	SynthesizeStream(ctx context.Context, text <-chan string, voice VoiceProfile) (<-chan []byte, error)

	// ListVoices returns the backend's current voice catalogue. The list
	// may change between calls as the backend adds or removes voices.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)

	// CloneVoice trains a new voice profile from the supplied audio
	// samples — the onboarding flow records a short reference clip and
	// clones the user's preferred voice from it. Each element of samples
	// must be raw PCM or a backend-supported container format.
	//
	// This is expensive and must stay off the conversation's hot path.
	// Returns the newly created profile (with a backend-assigned ID),
	// [ErrNoSamples] for a nil or empty samples slice, or another error if
	// cloning fails.
	CloneVoice(ctx context.Context, samples [][]byte) (*VoiceProfile, error)
}
