package vad

import "github.com/saorsa-labs/fae/pkg/types"

// Detection results are shared with the pipeline coordinator; they live in
// [types] and are aliased here for engine implementations.

// VADEvent represents a voice activity detection result for a single audio frame.
type VADEvent = types.VADEvent

// VADEventType enumerates VAD detection states.
type VADEventType = types.VADEventType

// Re-exported detection states.
const (
	VADSpeechStart    = types.VADSpeechStart
	VADSpeechContinue = types.VADSpeechContinue
	VADSpeechEnd      = types.VADSpeechEnd
	VADSilence        = types.VADSilence
)
