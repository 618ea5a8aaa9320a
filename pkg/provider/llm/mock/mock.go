// Package mock simulates an LLM backend for agent-loop, pipeline, and
// correction tests.
//
// The simulator is turn-scripted: each call to StreamCompletion plays back
// the next entry of [Provider.Turns], so a test can stage a multi-turn
// agent run — a tool-calling turn followed by a final answer — without a
// live model. Helper constructors cover the common shapes:
//
//	p := mock.Completing("It is raining in Oban.")
//	p := mock.ToolCalling(
//	        llm.ToolCall{ID: "c1", Name: "get_weather", Arguments: `{"city":"Oban"}`},
//	        "It is raining in Oban.",
//	)
//
// All fields are safe to set before calling any method; mutating them during
// a concurrent call is the caller's responsibility.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/saorsa-labs/fae/pkg/provider/llm"
	"github.com/saorsa-labs/fae/pkg/types"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a scriptable implementation of llm.Provider.
// Zero values for response fields cause methods to return zero values and
// nil errors. Set the *Err fields to inject failures.
type Provider struct {
	mu sync.Mutex

	// --- Streaming script ---

	// Turns scripts one chunk sequence per StreamCompletion call, in call
	// order. When the script runs out, the last turn repeats — a model that
	// keeps giving the same answer — so loop tests can over-ask safely.
	Turns [][]llm.Chunk

	// StreamChunks is a one-turn shorthand: when Turns is empty, every
	// StreamCompletion call plays this sequence.
	StreamChunks []llm.Chunk

	// ChunkDelay paces chunk emission, for timeout and barge-in tests.
	ChunkDelay time.Duration

	// StreamErr, if non-nil, is returned from StreamCompletion instead of
	// opening a stream.
	StreamErr error

	// --- Complete ---

	// CompleteResponse is returned by Complete. May be nil (returns nil, nil).
	CompleteResponse *llm.CompletionResponse

	// CompleteErr, if non-nil, is returned as the error from Complete.
	CompleteErr error

	// --- Token counting and capabilities ---

	// TokenCount is returned by CountTokens.
	TokenCount int

	// CountTokensErr, if non-nil, is returned as the error from CountTokens.
	CountTokensErr error

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities types.ModelCapabilities

	// --- Call records (read after test) ---

	// StreamCalls records the request of every StreamCompletion call.
	StreamCalls []llm.CompletionRequest

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall

	turn int
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)

// ─── Constructors ─────────────────────────────────────────────────────────────

// Completing returns a Provider whose every turn streams text and finishes
// cleanly. Complete returns the same text.
func Completing(text string) *Provider {
	return &Provider{
		Turns:            [][]llm.Chunk{TextTurn(text)},
		CompleteResponse: &llm.CompletionResponse{Content: text},
	}
}

// Scripted returns a Provider that plays the given turns in order.
func Scripted(turns ...[]llm.Chunk) *Provider {
	return &Provider{Turns: turns}
}

// ToolCalling returns a Provider that requests the given tool calls on its
// first turn and answers with finalText on the second — the canonical
// one-tool agent run.
func ToolCalling(call types.ToolCall, finalText string) *Provider {
	return Scripted(ToolCallTurn(call), TextTurn(finalText))
}

// TextTurn builds a chunk sequence that streams text in two fragments and
// finishes with [llm.FinishStop], mirroring how real backends split output.
func TextTurn(text string) []llm.Chunk {
	half := len(text) / 2
	return []llm.Chunk{
		{Text: text[:half]},
		{Text: text[half:]},
		{FinishReason: llm.FinishStop},
	}
}

// ToolCallTurn builds a chunk sequence that emits the given calls and
// finishes with [llm.FinishTool].
func ToolCallTurn(calls ...types.ToolCall) []llm.Chunk {
	return []llm.Chunk{
		{ToolCalls: calls},
		{FinishReason: llm.FinishTool},
	}
}

// FailingTurn builds a chunk sequence that dies mid-stream after partial
// text, finishing with [llm.FinishError].
func FailingTurn(partial string) []llm.Chunk {
	return []llm.Chunk{
		{Text: partial},
		{FinishReason: llm.FinishError},
	}
}

// ─── llm.Provider ─────────────────────────────────────────────────────────────

// StreamCompletion records the call and plays back the next scripted turn.
// If StreamErr is set, it returns nil, StreamErr without opening a stream.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	p.StreamCalls = append(p.StreamCalls, req)
	if p.StreamErr != nil {
		err := p.StreamErr
		p.mu.Unlock()
		return nil, err
	}
	chunks := p.nextTurnLocked()
	delay := p.ChunkDelay
	p.mu.Unlock()

	ch := make(chan llm.Chunk, len(chunks))
	go func() {
		defer close(ch)
		for _, c := range chunks {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// nextTurnLocked returns the chunk sequence for the current call and
// advances the script. Must be called with p.mu held.
func (p *Provider) nextTurnLocked() []llm.Chunk {
	script := p.Turns
	if len(script) == 0 && len(p.StreamChunks) > 0 {
		script = [][]llm.Chunk{p.StreamChunks}
	}
	if len(script) == 0 {
		return nil
	}
	idx := p.turn
	if idx >= len(script) {
		idx = len(script) - 1
	}
	p.turn++
	out := make([]llm.Chunk, len(script[idx]))
	copy(out, script[idx])
	return out
}

// Complete records the call and returns CompleteResponse, CompleteErr.
func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Req: req})
	return p.CompleteResponse, p.CompleteErr
}

// CountTokens returns TokenCount, CountTokensErr. When TokenCount is zero a
// four-characters-per-token estimate is applied so context-budget tests see
// plausible numbers without configuring anything.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CountTokensErr != nil {
		return 0, p.CountTokensErr
	}
	if p.TokenCount != 0 {
		return p.TokenCount, nil
	}
	chars := 0
	for _, m := range messages {
		chars += len(m.Content)
	}
	return chars / 4, nil
}

// Capabilities returns ModelCapabilities, defaulting the streaming and
// tool-calling flags to true — the simulator supports both.
func (p *Provider) Capabilities() types.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	caps := p.ModelCapabilities
	if caps == (types.ModelCapabilities{}) {
		caps = types.ModelCapabilities{
			ContextWindow:       128000,
			SupportsToolCalling: true,
			SupportsStreaming:   true,
		}
	}
	return caps
}

// Reset clears recorded calls and rewinds the turn script. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StreamCalls = nil
	p.CompleteCalls = nil
	p.turn = 0
}
