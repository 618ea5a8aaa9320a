package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	ferrors "github.com/saorsa-labs/fae/internal/errors"
)

// ErrAllFailed is returned when every backend in a [FallbackGroup] fails or
// has an open circuit breaker. Like [ErrCircuitOpen] it carries Kind
// ProviderError, so a fully-dark stage surfaces to the host as one stable
// backend failure.
var ErrAllFailed error = ferrors.New(ferrors.KindProvider, "resilience.FallbackGroup", "every configured backend failed")

// FallbackConfig configures the per-backend circuit breaker created for each
// entry in a [FallbackGroup].
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// fallbackEntry pairs a backend with its dedicated circuit breaker.
type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup wraps a primary and zero or more fallback backends of the
// same provider type. When the primary faults (or its circuit breaker is
// open), the next healthy fallback is tried in registration order, so a
// flapping backend costs one conversation turn instead of the session.
//
// Failover follows the same classification as the breakers: a user
// cancellation aborts the whole attempt immediately — retrying a turn the
// user just killed against a second backend would speak over them.
//
// FallbackGroup is safe for concurrent use after registration; register all
// fallbacks before the pipeline starts.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a [FallbackGroup] with primary as the first entry.
// Additional backends are registered via [FallbackGroup.AddFallback].
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	cbCfg := cfg.CircuitBreaker
	cbCfg.Name = primaryName
	return &FallbackGroup[T]{
		entries: []fallbackEntry[T]{
			{
				name:    primaryName,
				value:   primary,
				breaker: NewCircuitBreaker(cbCfg),
			},
		},
		cfg: cfg,
	}
}

// AddFallback appends a fallback backend. Fallbacks are tried in the order
// they are added, after the primary.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// ResetBreakers forces every backend's breaker back to closed. Called when
// a fresh pipeline run starts, so old verdicts don't outlive the session
// that earned them.
func (fg *FallbackGroup[T]) ResetBreakers() {
	for i := range fg.entries {
		fg.entries[i].breaker.Reset()
	}
}

// Execute tries fn against each backend in order until one succeeds.
// Open-circuit backends are skipped; a non-fault error (cancellation,
// tool-level failure) stops the cascade and is returned as-is. Returns
// [ErrAllFailed] wrapped with the last error when every backend faults.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	var lastErr error
	for i := range fg.entries {
		entry := &fg.entries[i]
		err := entry.breaker.Execute(func() error {
			return fn(entry.value)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrCircuitOpen) && !BackendFault(err) {
			return err
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping backend (circuit open)", "backend", entry.name)
		} else {
			slog.Warn("backend faulted, trying next",
				"backend", entry.name, "error", err)
		}
	}
	return fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

// ExecuteWithResult tries fn against each backend in the group until one
// succeeds, returning both the result value and error. This is a
// package-level function because Go does not support method-level type
// parameters.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	result, _, err := executeWithEntry(fg, fn)
	return result, err
}

// executeWithEntry is ExecuteWithResult plus the winning entry, so wrappers
// can report faults observed after the call returned (mid-stream deaths)
// against the right breaker.
func executeWithEntry[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, *fallbackEntry[T], error) {
	var (
		lastErr error
		zero    R
	)
	for i := range fg.entries {
		entry := &fg.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			return result, entry, nil
		}
		if !errors.Is(err, ErrCircuitOpen) && !BackendFault(err) {
			return zero, nil, err
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping backend (circuit open)", "backend", entry.name)
		} else {
			slog.Warn("backend faulted, trying next",
				"backend", entry.name, "error", err)
		}
	}
	return zero, nil, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

// contextDone is a tiny helper the stream wrappers share: true once ctx is
// cancelled, without blocking.
func contextDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
