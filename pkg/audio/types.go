package audio

import "time"

// AudioFrame represents a single frame of audio data flowing through the pipeline.
// Frames are the atomic unit of audio transport — captured from the microphone,
// processed by VAD, encoded/decoded by codecs, and played through the output stream.
type AudioFrame struct {
	// PCM audio data. Sample rate and channel count are determined by the pipeline config.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for STT capture, 24000 for TTS output).
	SampleRate int

	// Channels: 1 for mono (microphone/STT), 2 for stereo playback.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}
