// Package resilience keeps the voice loop alive when a provider backend
// misbehaves: per-backend circuit breakers, ordered failover groups for the
// STT, LLM, and TTS stages, and failure classification built on the error
// taxonomy in [ferrors].
//
// Classification is what makes the breakers conversation-aware. A user
// pressing stop (Cancelled) or a tool reporting a bad argument (ToolError)
// says nothing about a backend's health, so those outcomes never trip a
// breaker and never trigger failover; provider faults and timeouts do.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	ferrors "github.com/saorsa-labs/fae/internal/errors"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker is
// in the open state and the reset timeout has not yet elapsed. It carries
// Kind ProviderError so the host bridge renders it as a stable backend
// failure rather than an internal fault.
var ErrCircuitOpen error = ferrors.New(ferrors.KindProvider, "resilience.CircuitBreaker", "backend circuit is open")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed is the normal operating state — all calls are forwarded.
	StateClosed State = iota

	// StateOpen indicates the breaker has tripped due to consecutive
	// backend faults. Calls are rejected immediately with [ErrCircuitOpen]
	// until the reset timeout elapses.
	StateOpen

	// StateHalfOpen is the probe state entered after the reset timeout. A
	// limited number of calls are allowed through; if they succeed the
	// breaker closes, otherwise it re-opens.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BackendFault reports whether err says something about the health of the
// backend that produced it. It is the default breaker classifier:
//
//   - user cancellations (context.Canceled, Kind Cancelled) are the user's
//     doing, not the backend's;
//   - tool-reported errors (Kind ToolError) travelled through a healthy
//     backend and belong to the tool;
//   - everything else — transport failures, provider errors, timeouts —
//     counts against the backend.
func BackendFault(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch ferrors.KindOf(err) {
	case ferrors.KindCancelled, ferrors.KindTool:
		return false
	}
	return true
}

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels the backend in log messages (e.g. "llm/openai").
	Name string

	// MaxFailures is the number of consecutive backend faults in the closed
	// state before the breaker opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before transitioning to
	// half-open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the maximum number of probe calls allowed in the half-open
	// state before the breaker decides whether to close or re-open. Default: 3.
	HalfOpenMax int

	// IsFault classifies whether an error counts against the backend.
	// Default: [BackendFault].
	IsFault func(error) bool
}

// CircuitBreaker implements the three-state circuit breaker pattern over one
// provider backend. It is safe for concurrent use from multiple goroutines.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	isFault      func(error) bool

	mu              sync.Mutex
	state           State
	consecutiveFail int
	lastFailure     time.Time
	halfOpenCalls   int
	halfOpenFails   int
}

// NewCircuitBreaker creates a [CircuitBreaker] with the supplied configuration.
// Zero-value config fields are replaced with sensible defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.IsFault == nil {
		cfg.IsFault = BackendFault
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		isFault:      cfg.IsFault,
		state:        StateClosed,
	}
}

// Execute runs fn if the breaker allows it. In the open state it returns
// [ErrCircuitOpen] without calling fn. In the half-open state a limited
// number of probe calls are permitted.
//
// fn's error is always returned to the caller unchanged; only errors the
// configured classifier counts as backend faults move the breaker.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	done, err := cb.Begin()
	if err != nil {
		return err
	}
	err = fn()
	done(err)
	return err
}

// Begin reserves one call slot and returns a done callback the caller must
// invoke with the call's final outcome. It exists for calls whose outcome is
// not known when the call returns — a streaming turn succeeds only once its
// stream finishes cleanly, not when the stream opens.
//
// In the open state Begin returns [ErrCircuitOpen] and no callback. done is
// idempotent; classification follows the configured classifier.
func (cb *CircuitBreaker) Begin() (done func(error), err error) {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) >= cb.resetTimeout {
			cb.state = StateHalfOpen
			cb.halfOpenCalls = 0
			cb.halfOpenFails = 0
			slog.Info("circuit breaker transitioning to half-open",
				"backend", cb.name)
		} else {
			cb.mu.Unlock()
			return nil, ErrCircuitOpen
		}

	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMax {
			// Already exhausted the probe budget — stay open.
			cb.mu.Unlock()
			return nil, ErrCircuitOpen
		}
	}

	// Record that we're about to make a call (relevant for half-open accounting).
	inHalfOpen := cb.state == StateHalfOpen
	if inHalfOpen {
		cb.halfOpenCalls++
	}
	cb.mu.Unlock()

	var once sync.Once
	return func(callErr error) {
		once.Do(func() {
			switch {
			case callErr == nil:
				cb.mu.Lock()
				cb.recordSuccess(inHalfOpen)
				cb.mu.Unlock()
			case cb.isFault(callErr):
				cb.RecordFault()
			default:
				// Cancellation or tool-level error: the backend is fine;
				// the outcome moves no counters either way.
			}
		})
	}, nil
}

// RecordFault counts one backend fault against the breaker without running a
// call through it. The failover wrappers use this for faults observed after
// Execute returned — a stream that died mid-turn.
func (cb *CircuitBreaker) RecordFault() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = time.Now()

	if cb.state == StateHalfOpen {
		cb.halfOpenFails++
		// Any fault in half-open immediately re-opens.
		cb.state = StateOpen
		cb.consecutiveFail = cb.maxFailures
		slog.Warn("circuit breaker re-opened from half-open",
			"backend", cb.name)
		return
	}

	cb.consecutiveFail++
	if cb.state == StateClosed && cb.consecutiveFail >= cb.maxFailures {
		cb.state = StateOpen
		slog.Warn("circuit breaker opened",
			"backend", cb.name,
			"consecutive_faults", cb.consecutiveFail)
	}
}

// recordSuccess handles success accounting. Must be called with cb.mu held.
func (cb *CircuitBreaker) recordSuccess(inHalfOpen bool) {
	if inHalfOpen {
		// Check if we have enough successful probes to close.
		successes := cb.halfOpenCalls - cb.halfOpenFails
		if successes >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.consecutiveFail = 0
			cb.halfOpenCalls = 0
			cb.halfOpenFails = 0
			slog.Info("circuit breaker closed after successful probes",
				"backend", cb.name)
		}
		return
	}

	// Closed state — reset the consecutive fault counter on success.
	cb.consecutiveFail = 0
}

// State returns the current [State] of the breaker. If the breaker is open
// and the reset timeout has elapsed, the returned state is [StateHalfOpen]
// (the actual transition happens on the next [Execute] call).
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset manually forces the breaker back to [StateClosed], clearing all
// failure counters. The pipeline start path resets breakers so a fresh
// conversation never starts against stale verdicts.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.consecutiveFail = 0
	cb.halfOpenCalls = 0
	cb.halfOpenFails = 0
	slog.Info("circuit breaker manually reset", "backend", cb.name)
}
