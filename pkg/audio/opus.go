package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// OpusConfig describes the Opus codec parameters for an encode/decode pair.
// The frame size must be one of the durations Opus supports (2.5, 5, 10, 20,
// 40, or 60 ms); Fae's playback path uses 20 ms frames.
type OpusConfig struct {
	SampleRate int
	Channels   int
	FrameMs    int
}

// samplesPerChannel returns the number of samples per channel in one frame.
func (c OpusConfig) samplesPerChannel() int {
	return c.SampleRate * c.FrameMs / 1000
}

// OpusEncoder wraps a gopus encoder for one output stream. Opus encoders are
// stateful across consecutive frames; create one per stream and do not share
// it between goroutines.
type OpusEncoder struct {
	enc *gopus.Encoder
	cfg OpusConfig
}

// NewOpusEncoder creates an encoder for cfg.
func NewOpusEncoder(cfg OpusConfig) (*OpusEncoder, error) {
	enc, err := gopus.NewEncoder(cfg.SampleRate, cfg.Channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus encoder: %w", err)
	}
	return &OpusEncoder{enc: enc, cfg: cfg}, nil
}

// Encode encodes one frame of interleaved little-endian int16 PCM bytes into
// an Opus packet.
func (e *OpusEncoder) Encode(pcmBytes []byte) ([]byte, error) {
	pcm := BytesToInt16s(pcmBytes)
	packet, err := e.enc.Encode(pcm, e.cfg.samplesPerChannel(), len(pcmBytes))
	if err != nil {
		return nil, fmt.Errorf("audio: opus encode: %w", err)
	}
	return packet, nil
}

// OpusDecoder wraps a gopus decoder for one input stream.
type OpusDecoder struct {
	dec *gopus.Decoder
	cfg OpusConfig
}

// NewOpusDecoder creates a decoder for cfg.
func NewOpusDecoder(cfg OpusConfig) (*OpusDecoder, error) {
	dec, err := gopus.NewDecoder(cfg.SampleRate, cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &OpusDecoder{dec: dec, cfg: cfg}, nil
}

// Decode decodes an Opus packet into interleaved little-endian int16 PCM
// bytes.
func (d *OpusDecoder) Decode(packet []byte) ([]byte, error) {
	pcm, err := d.dec.Decode(packet, d.cfg.samplesPerChannel(), false)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}
	return Int16sToBytes(pcm), nil
}

// Int16sToBytes converts a slice of int16 PCM samples to little-endian bytes.
func Int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// BytesToInt16s converts little-endian bytes to a slice of int16 PCM samples.
func BytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
