// Package hotctx assembles the always-injected "hot" context for every agent
// LLM call in the Fae voice pipeline.
//
// The hot layer consists of three components that are fetched concurrently:
//
//  1. Memory context recalled for the user's utterance.
//  2. Recent conversation transcript from the session layer.
//  3. Ambient context: the current wall-clock time and assistant state.
//
// Target assembly latency is < 50 ms; a slow memory layer degrades to an
// empty section rather than delaying the turn. Use [FormatSystemPrompt] to
// convert a [HotContext] into a system prompt string ready for LLM injection.
package hotctx

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/saorsa-labs/fae/pkg/provider/llm"
)

// ─────────────────────────────────────────────────────────────────────────────
// Public types
// ─────────────────────────────────────────────────────────────────────────────

// HotContext is the assembled context injected into every agent LLM prompt.
// All fields are optional — callers should check for empty before using.
type HotContext struct {
	// MemoryContext is the recalled long-term memory relevant to the
	// current utterance, already composed as natural language.
	MemoryContext string

	// RecentTranscript is the tail of the conversation, capped at the
	// assembler's maxEntries setting.
	RecentTranscript []llm.Message

	// Now is the wall-clock time the context was assembled at.
	Now time.Time

	// AssemblyDuration records how long [Assembler.Assemble] took.
	AssemblyDuration time.Duration
}

// Recaller recalls memory context for a query. The memory orchestrator
// (usually behind a session.MemoryGuard) provides the production
// implementation.
type Recaller interface {
	RecallContext(ctx context.Context, query string) (text string, ok bool, err error)
}

// TranscriptSource supplies the recent conversation tail.
type TranscriptSource interface {
	// Recent returns up to n of the most recent conversation messages, in
	// order.
	Recent(n int) []llm.Message
}

// ─────────────────────────────────────────────────────────────────────────────
// Assembler
// ─────────────────────────────────────────────────────────────────────────────

// defaultAssembleTimeout bounds the whole assembly; a component that cannot
// answer inside it is dropped from the context.
const defaultAssembleTimeout = 50 * time.Millisecond

// defaultMaxEntries caps the recent-transcript section.
const defaultMaxEntries = 12

// Assembler fetches the hot-context components concurrently.
// It is safe for concurrent use.
type Assembler struct {
	recaller   Recaller
	transcript TranscriptSource
	prefetch   *PreFetcher

	timeout    time.Duration
	maxEntries int
}

// AssemblerOption configures an [Assembler].
type AssemblerOption func(*Assembler)

// WithTimeout overrides the assembly deadline. Default 50 ms.
func WithTimeout(d time.Duration) AssemblerOption {
	return func(a *Assembler) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithMaxEntries caps the recent-transcript section. Default 12.
func WithMaxEntries(n int) AssemblerOption {
	return func(a *Assembler) {
		if n > 0 {
			a.maxEntries = n
		}
	}
}

// WithPreFetcher attaches a [PreFetcher] consulted before the live recall;
// a cache hit skips the memory round-trip entirely.
func WithPreFetcher(p *PreFetcher) AssemblerOption {
	return func(a *Assembler) { a.prefetch = p }
}

// NewAssembler creates an Assembler. recaller and transcript may each be nil,
// in which case the corresponding section is always empty.
func NewAssembler(recaller Recaller, transcript TranscriptSource, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		recaller:   recaller,
		transcript: transcript,
		timeout:    defaultAssembleTimeout,
		maxEntries: defaultMaxEntries,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assemble builds the hot context for one user utterance. Component
// failures and timeouts degrade the affected section to empty; Assemble
// itself fails only when ctx was already cancelled.
func (a *Assembler) Assemble(ctx context.Context, utterance string) (*HotContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	hctx := &HotContext{Now: start}

	assembleCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(assembleCtx)

	if a.recaller != nil {
		g.Go(func() error {
			// Prefetched result first — the whole point of speculation.
			if a.prefetch != nil {
				if text, ok := a.prefetch.Take(utterance); ok {
					hctx.MemoryContext = text
					return nil
				}
			}
			text, ok, err := a.recaller.RecallContext(gctx, utterance)
			if err == nil && ok {
				hctx.MemoryContext = text
			}
			return nil // degradation, not failure
		})
	}

	if a.transcript != nil {
		g.Go(func() error {
			hctx.RecentTranscript = a.transcript.Recent(a.maxEntries)
			return nil
		})
	}

	_ = g.Wait() // components never return errors; they degrade

	hctx.AssemblyDuration = time.Since(start)
	return hctx, nil
}
