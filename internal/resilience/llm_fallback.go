package resilience

import (
	"context"
	"fmt"
	"log/slog"

	ferrors "github.com/saorsa-labs/fae/internal/errors"
	"github.com/saorsa-labs/fae/pkg/provider/llm"
)

// ErrStreamDied marks a turn whose stream opened and then finished with an
// error chunk. It is what the breaker counts for mid-turn deaths.
var ErrStreamDied error = ferrors.New(ferrors.KindProvider, "resilience.LLMFallback", "stream died mid-turn")

// LLMFallback implements [llm.Provider] with automatic failover across
// multiple LLM backends. Each backend has its own circuit breaker; when the
// primary faults or its breaker is open, the next healthy fallback is tried.
//
// Failover happens at turn boundaries only. Once a stream is established the
// turn stays on that backend — switching models mid-utterance would change
// the assistant's voice mid-sentence — but a stream that dies with an error
// chunk is recorded as a fault so the next turn starts on a healthy backend.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional LLM backend as a fallback.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// ResetBreakers forces every backend's breaker back to closed.
func (f *LLMFallback) ResetBreakers() {
	f.group.ResetBreakers()
}

// Complete sends the request to the first healthy backend and returns its
// response. If the primary faults, subsequent fallbacks are tried.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// StreamCompletion opens a chunk stream against the first healthy backend.
// Only stream establishment participates in failover; the returned stream is
// then watched to settle the breaker's verdict for the whole turn. A clean
// finish counts as the success, an error finish not caused by the caller's
// own cancellation counts as the fault — opening a stream that dies two
// chunks in must not look healthy.
func (f *LLMFallback) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	var lastErr error
	for i := range f.group.entries {
		entry := &f.group.entries[i]

		done, err := entry.breaker.Begin()
		if err != nil {
			lastErr = err
			slog.Debug("skipping backend (circuit open)", "backend", entry.name)
			continue
		}

		stream, err := entry.value.StreamCompletion(ctx, req)
		if err != nil {
			done(err)
			if !BackendFault(err) {
				return nil, err
			}
			lastErr = err
			slog.Warn("backend faulted, trying next",
				"backend", entry.name, "error", err)
			continue
		}

		watched := make(chan llm.Chunk)
		go func() {
			verdict := error(nil)
			// done must settle before the channel closes, so a consumer that
			// drains the stream and immediately starts the next turn sees
			// this turn's verdict on the breaker.
			defer close(watched)
			defer func() { done(verdict) }()
			for chunk := range stream {
				if chunk.FinishReason == llm.FinishError && !contextDone(ctx) {
					verdict = ErrStreamDied
				}
				select {
				case watched <- chunk:
				case <-ctx.Done():
					verdict = ctx.Err()
					go drainChunks(stream)
					return
				}
			}
			// A stream cut short by cancellation is the user's outcome,
			// not the backend's success.
			if verdict == nil && contextDone(ctx) {
				verdict = ctx.Err()
			}
		}()
		return watched, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

// CountTokens delegates to the first healthy backend's token counter.
func (f *LLMFallback) CountTokens(messages []llm.Message) (int, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (int, error) {
		return p.CountTokens(messages)
	})
}

// Capabilities returns the capabilities of the primary backend. The agent
// loop sizes its context budget once; reporting the fallback's (possibly
// larger) window would overflow the primary on recovery.
func (f *LLMFallback) Capabilities() llm.ModelCapabilities {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.Capabilities()
	}
	return llm.ModelCapabilities{}
}

// drainChunks empties an abandoned provider stream so its producing
// goroutine can exit.
func drainChunks(ch <-chan llm.Chunk) {
	for range ch {
	}
}
