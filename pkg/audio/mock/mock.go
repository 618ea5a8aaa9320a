// Package mock provides in-memory mock implementations of the
// [audio.Platform], [audio.CaptureStream], and [audio.PlaybackStream]
// interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	capture := mock.NewCaptureStream(16)
//	playback := mock.NewPlaybackStream(16)
//	platform := &mock.Platform{CaptureResult: capture, PlaybackResult: playback}
//
//	capture.Push(audio.AudioFrame{Data: pcm})
//	capture.Finish()
package mock

import (
	"context"
	"sync"

	"github.com/saorsa-labs/fae/pkg/audio"
)

// ─── CaptureStream ────────────────────────────────────────────────────────────

// CaptureStream is a mock [audio.CaptureStream] fed by the test through
// [CaptureStream.Push].
type CaptureStream struct {
	frames chan audio.AudioFrame

	mu        sync.Mutex
	closed    bool
	CloseErr  error
	CloseCall int
}

// NewCaptureStream creates a mock capture stream with the given buffer depth.
func NewCaptureStream(buffer int) *CaptureStream {
	return &CaptureStream{frames: make(chan audio.AudioFrame, buffer)}
}

// Push delivers one frame to the consumer. Push after Finish or Close panics,
// mirroring a test bug rather than hiding it.
func (c *CaptureStream) Push(frame audio.AudioFrame) { c.frames <- frame }

// Finish closes the frame channel without marking the stream closed,
// simulating the device reaching end-of-stream.
func (c *CaptureStream) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.frames)
	}
}

// Frames implements [audio.CaptureStream].
func (c *CaptureStream) Frames() <-chan audio.AudioFrame { return c.frames }

// Close implements [audio.CaptureStream].
func (c *CaptureStream) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCall++
	if !c.closed {
		c.closed = true
		close(c.frames)
	}
	return c.CloseErr
}

// ─── PlaybackStream ───────────────────────────────────────────────────────────

// PlaybackStream is a mock [audio.PlaybackStream] that records every frame
// written to it.
type PlaybackStream struct {
	frames    chan audio.AudioFrame
	underruns chan struct{}

	mu        sync.Mutex
	written   []audio.AudioFrame
	closed    bool
	CloseErr  error
	CloseCall int
}

// NewPlaybackStream creates a mock playback stream with the given buffer depth.
// A background goroutine drains writes into the Written log.
func NewPlaybackStream(buffer int) *PlaybackStream {
	p := &PlaybackStream{
		frames:    make(chan audio.AudioFrame, buffer),
		underruns: make(chan struct{}, 1),
	}
	go func() {
		for f := range p.frames {
			p.mu.Lock()
			p.written = append(p.written, f)
			p.mu.Unlock()
		}
	}()
	return p
}

// Written returns a copy of every frame played so far.
func (p *PlaybackStream) Written() []audio.AudioFrame {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]audio.AudioFrame, len(p.written))
	copy(out, p.written)
	return out
}

// InjectUnderrun simulates the device buffer running dry.
func (p *PlaybackStream) InjectUnderrun() {
	select {
	case p.underruns <- struct{}{}:
	default:
	}
}

// Frames implements [audio.PlaybackStream].
func (p *PlaybackStream) Frames() chan<- audio.AudioFrame { return p.frames }

// Underruns implements [audio.PlaybackStream].
func (p *PlaybackStream) Underruns() <-chan struct{} { return p.underruns }

// Close implements [audio.PlaybackStream].
func (p *PlaybackStream) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCall++
	if !p.closed {
		p.closed = true
		close(p.frames)
	}
	return p.CloseErr
}

// ─── Platform ─────────────────────────────────────────────────────────────────

// Platform is a mock implementation of [audio.Platform].
type Platform struct {
	mu sync.Mutex

	// InputDevices / OutputDevices are returned by the List* methods.
	InputDevices  []string
	OutputDevices []string

	// CaptureResult is returned by OpenCapture; CaptureErr takes precedence.
	CaptureResult audio.CaptureStream
	CaptureErr    error

	// PlaybackResult is returned by OpenPlayback; PlaybackErr takes precedence.
	PlaybackResult audio.PlaybackStream
	PlaybackErr    error

	// OpenCaptureCalls / OpenPlaybackCalls record the configs passed in.
	OpenCaptureCalls  []audio.DeviceConfig
	OpenPlaybackCalls []audio.DeviceConfig
}

// ListInputDevices implements [audio.Platform].
func (p *Platform) ListInputDevices() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.InputDevices...), nil
}

// ListOutputDevices implements [audio.Platform].
func (p *Platform) ListOutputDevices() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.OutputDevices...), nil
}

// OpenCapture implements [audio.Platform].
func (p *Platform) OpenCapture(_ context.Context, cfg audio.DeviceConfig) (audio.CaptureStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.OpenCaptureCalls = append(p.OpenCaptureCalls, cfg)
	if p.CaptureErr != nil {
		return nil, p.CaptureErr
	}
	return p.CaptureResult, nil
}

// OpenPlayback implements [audio.Platform].
func (p *Platform) OpenPlayback(_ context.Context, cfg audio.DeviceConfig) (audio.PlaybackStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.OpenPlaybackCalls = append(p.OpenPlaybackCalls, cfg)
	if p.PlaybackErr != nil {
		return nil, p.PlaybackErr
	}
	return p.PlaybackResult, nil
}

// Compile-time interface assertions.
var (
	_ audio.Platform       = (*Platform)(nil)
	_ audio.CaptureStream  = (*CaptureStream)(nil)
	_ audio.PlaybackStream = (*PlaybackStream)(nil)
)
