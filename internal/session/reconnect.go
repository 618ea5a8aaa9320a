package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saorsa-labs/fae/pkg/audio"
)

// Default reconnection parameters.
const (
	defaultMaxRetries = 10
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Reconnector monitors the capture device and automatically reopens the
// stream on loss (device unplugged, CoreAudio route change), preserving the
// running conversation.
//
// Callers obtain the initial stream via [Reconnector.Open], then call
// [Reconnector.Monitor] to start a background goroutine that watches for
// drops. When a drop is detected (via [Reconnector.NotifyLost]), the monitor
// attempts to reopen with exponential backoff and invokes the configured
// OnReopen callback on success.
//
// All methods are safe for concurrent use.
type Reconnector struct {
	platform   audio.Platform
	device     audio.DeviceConfig
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	onReopen   func(audio.CaptureStream)

	mu       sync.Mutex
	stream   audio.CaptureStream
	done     chan struct{}
	stopOnce sync.Once
	lost     chan struct{} // signalled when a device loss is detected
}

// ReconnectorConfig configures a [Reconnector].
type ReconnectorConfig struct {
	// Platform is the audio backend used to open capture streams.
	Platform audio.Platform

	// Device describes the capture device and format to reopen.
	Device audio.DeviceConfig

	// MaxRetries is the maximum number of reopen attempts before giving up.
	// Defaults to 10 if zero.
	MaxRetries int

	// Backoff is the initial backoff duration between retries. Doubles each
	// attempt up to MaxBackoff. Defaults to 1s if zero.
	Backoff time.Duration

	// MaxBackoff is the upper limit on backoff duration. Defaults to 30s if zero.
	MaxBackoff time.Duration

	// OnReopen is called after a successful reopen with the new stream.
	// May be nil.
	OnReopen func(audio.CaptureStream)
}

// NewReconnector creates a new [Reconnector] with the given configuration.
func NewReconnector(cfg ReconnectorConfig) *Reconnector {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	return &Reconnector{
		platform:   cfg.Platform,
		device:     cfg.Device,
		maxRetries: maxRetries,
		backoff:    backoff,
		maxBackoff: maxBackoff,
		onReopen:   cfg.OnReopen,
		done:       make(chan struct{}),
		lost:       make(chan struct{}, 1),
	}
}

// Open performs the initial capture open.
func (r *Reconnector) Open(ctx context.Context) (audio.CaptureStream, error) {
	stream, err := r.platform.OpenCapture(ctx, r.device)
	if err != nil {
		return nil, fmt.Errorf("reconnector initial open: %w", err)
	}

	r.mu.Lock()
	r.stream = stream
	r.mu.Unlock()

	return stream, nil
}

// Monitor starts monitoring in a background goroutine. If a loss is
// signalled via [Reconnector.NotifyLost], it attempts to reopen with
// exponential backoff.
func (r *Reconnector) Monitor(ctx context.Context) {
	go r.monitorLoop(ctx)
}

// NotifyLost signals the monitor that the capture stream has died and a
// reopen should be attempted. Safe to call multiple times; only the first
// call per reopen cycle has effect.
func (r *Reconnector) NotifyLost() {
	select {
	case r.lost <- struct{}{}:
	default:
		// Already signalled; avoid blocking.
	}
}

// Stop halts monitoring and closes the current stream.
// Safe to call multiple times.
func (r *Reconnector) Stop() error {
	r.stopOnce.Do(func() {
		close(r.done)
	})

	r.mu.Lock()
	stream := r.stream
	r.stream = nil
	r.mu.Unlock()

	if stream != nil {
		return stream.Close()
	}
	return nil
}

// Stream returns the current capture stream. May return nil during a reopen.
func (r *Reconnector) Stream() audio.CaptureStream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stream
}

// monitorLoop waits for loss notifications and attempts to reopen.
func (r *Reconnector) monitorLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-r.lost:
			r.attemptReopen(ctx)
		}
	}
}

// attemptReopen tries to reopen the capture stream with exponential backoff.
func (r *Reconnector) attemptReopen(ctx context.Context) {
	currentBackoff := r.backoff

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		default:
		}

		slog.Info("attempting capture reopen",
			"device", r.device.Device,
			"attempt", attempt,
			"max_retries", r.maxRetries,
			"backoff", currentBackoff,
		)

		stream, err := r.platform.OpenCapture(ctx, r.device)
		if err == nil {
			r.mu.Lock()
			oldStream := r.stream
			r.stream = stream
			r.mu.Unlock()

			// Close the old (dead) stream to release its device handle.
			if oldStream != nil {
				_ = oldStream.Close()
			}

			slog.Info("capture reopen successful",
				"device", r.device.Device,
				"attempt", attempt,
			)

			if r.onReopen != nil {
				r.onReopen(stream)
			}
			return
		}

		slog.Warn("capture reopen attempt failed",
			"device", r.device.Device,
			"attempt", attempt,
			"error", err,
		)

		// Wait before retrying.
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-time.After(currentBackoff):
		}

		// Exponential backoff.
		currentBackoff *= 2
		if currentBackoff > r.maxBackoff {
			currentBackoff = r.maxBackoff
		}
	}

	slog.Error("capture reopen failed after max retries",
		"device", r.device.Device,
		"max_retries", r.maxRetries,
	)
}
