package session

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// MemoryBackend is the slice of the memory orchestrator the conversation
// loop depends on.
type MemoryBackend interface {
	// CaptureTurn folds one completed turn into long-term memory.
	CaptureTurn(ctx context.Context, turnID, userText, assistantText string) error

	// RecallContext composes relevant memory context for a query. ok=false
	// means nothing relevant exists.
	RecallContext(ctx context.Context, query string) (text string, ok bool, err error)
}

// MemoryGuard wraps a [MemoryBackend] and makes all operations non-fatal.
// If the underlying backend fails, captures are dropped with a warning and
// recalls return absence instead of propagating errors.
//
// This keeps the voice loop running even when the memory layer is
// temporarily unavailable (journal lock contention, disk errors). The
// IsDegraded method reports whether the backend is currently failing.
//
// All methods are safe for concurrent use.
type MemoryGuard struct {
	backend  MemoryBackend
	degraded atomic.Bool
}

// NewMemoryGuard creates a new [MemoryGuard] wrapping backend.
func NewMemoryGuard(backend MemoryBackend) *MemoryGuard {
	return &MemoryGuard{backend: backend}
}

// CaptureTurn attempts the capture. On failure the error is logged and
// swallowed; the backend is marked degraded. On success the degraded flag is
// cleared.
func (mg *MemoryGuard) CaptureTurn(ctx context.Context, turnID, userText, assistantText string) error {
	err := mg.backend.CaptureTurn(ctx, turnID, userText, assistantText)
	if err != nil {
		mg.degraded.Store(true)
		slog.Warn("memory guard: CaptureTurn failed, swallowing error",
			"turn_id", turnID,
			"error", err,
		)
		return nil
	}
	mg.degraded.Store(false)
	return nil
}

// RecallContext attempts the recall. On failure absence is returned and the
// backend is marked degraded — the agent simply runs without memory context.
func (mg *MemoryGuard) RecallContext(ctx context.Context, query string) (string, bool, error) {
	text, ok, err := mg.backend.RecallContext(ctx, query)
	if err != nil {
		mg.degraded.Store(true)
		slog.Warn("memory guard: RecallContext failed, returning absence",
			"error", err,
		)
		return "", false, nil
	}
	mg.degraded.Store(false)
	return text, ok, nil
}

// IsDegraded reports whether the backend is currently operating in degraded
// mode (i.e., the most recent operation on the underlying backend failed).
func (mg *MemoryGuard) IsDegraded() bool {
	return mg.degraded.Load()
}

// Compile-time check that MemoryGuard satisfies MemoryBackend.
var _ MemoryBackend = (*MemoryGuard)(nil)
