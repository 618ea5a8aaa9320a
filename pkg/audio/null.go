package audio

import (
	"context"
	"sync"
	"time"
)

// NullPlatform is an [audio.Platform] with no real device behind it: capture
// delivers timed silence frames and playback discards everything. It keeps
// the pipeline runnable on machines without a device backend compiled in
// (CI, containers) and is the default when no platform is registered.
type NullPlatform struct{}

// ListInputDevices implements [Platform].
func (NullPlatform) ListInputDevices() ([]string, error) {
	return []string{"null"}, nil
}

// ListOutputDevices implements [Platform].
func (NullPlatform) ListOutputDevices() ([]string, error) {
	return []string{"null"}, nil
}

// OpenCapture implements [Platform]. Frames of silence are produced at the
// configured frame cadence until the stream is closed.
func (NullPlatform) OpenCapture(_ context.Context, cfg DeviceConfig) (CaptureStream, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.FrameMs == 0 {
		cfg.FrameMs = 20
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}

	s := &nullCapture{
		frames: make(chan AudioFrame),
		done:   make(chan struct{}),
	}
	frameBytes := cfg.SampleRate * cfg.FrameMs / 1000 * cfg.Channels * 2
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.FrameMs) * time.Millisecond)
		defer ticker.Stop()
		defer close(s.frames)
		start := time.Now()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				frame := AudioFrame{
					Data:       make([]byte, frameBytes),
					SampleRate: cfg.SampleRate,
					Channels:   cfg.Channels,
					Timestamp:  time.Since(start),
				}
				select {
				case s.frames <- frame:
				case <-s.done:
					return
				}
			}
		}
	}()
	return s, nil
}

// OpenPlayback implements [Platform]. Written frames are discarded.
func (NullPlatform) OpenPlayback(context.Context, DeviceConfig) (PlaybackStream, error) {
	p := &nullPlayback{
		frames:    make(chan AudioFrame, 64),
		underruns: make(chan struct{}),
	}
	go func() {
		for range p.frames {
		}
	}()
	return p, nil
}

type nullCapture struct {
	frames    chan AudioFrame
	done      chan struct{}
	closeOnce sync.Once
}

func (s *nullCapture) Frames() <-chan AudioFrame { return s.frames }

func (s *nullCapture) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

type nullPlayback struct {
	frames    chan AudioFrame
	underruns chan struct{}
	closeOnce sync.Once
}

func (p *nullPlayback) Frames() chan<- AudioFrame  { return p.frames }
func (p *nullPlayback) Underruns() <-chan struct{} { return p.underruns }

func (p *nullPlayback) Close() error {
	p.closeOnce.Do(func() { close(p.frames) })
	return nil
}

// Compile-time interface assertion.
var _ Platform = NullPlatform{}
