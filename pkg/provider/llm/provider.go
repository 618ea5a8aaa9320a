// Package llm defines the Provider interface the Fae agent loop drives.
//
// A provider wraps one language-model backend — a remote API or a local
// runtime — behind a uniform streaming surface, so the agent loop can fold
// chunks into turns, dispatch tool calls, and enforce its timeouts without
// knowing which wire format sits underneath. The voice pipeline cares about
// time-to-first-chunk above all else; implementations should start emitting
// as soon as the backend does, not after buffering a whole reply.
//
// Implementations must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends
// or when the supplied context is cancelled.
package llm

import (
	"context"

	"github.com/saorsa-labs/fae/pkg/types"
)

// Message roles, as they appear in conversation history and on the wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reasons carried on a stream's final chunk. Providers map their
// backend's vocabulary onto these; the agent loop and the failover layer
// branch on them.
const (
	// FinishStop is a natural end of generation.
	FinishStop = "stop"

	// FinishTool means the model wants tool calls executed before it
	// continues.
	FinishTool = "tool_calls"

	// FinishLength means the completion token budget was exhausted.
	FinishLength = "length"

	// FinishError means the stream died after it was established. The
	// chunk's Text may carry a backend message; the turn is over.
	FinishError = "error"
)

// Usage holds token accounting information returned by the backend.
// All counts are in the model's native token unit and may differ between
// backends for the same textual content.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages
	// and system prompt. Tracked against the context budget per turn.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens. Provided as a
	// convenience; some backends return it directly rather than computing
	// it from the parts.
	TotalTokens int
}

// CompletionRequest carries everything the model needs to produce one turn.
// Callers should treat a zero-value request as invalid; at minimum Messages
// must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically the user's utterance (or a tool result) and drives the
	// response.
	Messages []types.Message

	// Tools is the set of tool definitions offered to the model, already
	// filtered by the tool mode and permission gate. The model may request
	// any of them in its reply. Backends without native tool calling
	// should return an error or ignore this field — callers check
	// Capabilities().SupportsToolCalling first.
	Tools []types.ToolDefinition

	// Temperature controls output randomness in the range [0.0, 2.0].
	// Zero requests the backend default; correction and summarisation
	// passes run cooler than conversation.
	Temperature float64

	// MaxTokens caps the completion length. Zero means the backend
	// default. Spoken replies are capped well below the model maximum —
	// nobody wants a minute-long monologue from a speaker.
	MaxTokens int

	// SystemPrompt is the assembled hot context (persona, memory, recent
	// conversation) injected ahead of the history. Backends with a native
	// system slot use it; others must prepend it as a RoleSystem message.
	SystemPrompt string
}

// Chunk is a single fragment emitted by a streaming completion.
// A chunk may carry text, tool calls, a finish reason, or any combination.
type Chunk struct {
	// Text is the incremental text content of this chunk. May be empty if
	// the chunk carries only ToolCalls or a FinishReason.
	Text string

	// FinishReason is set on the final chunk: one of the Finish constants,
	// or "" for a non-final chunk.
	FinishReason string

	// ToolCalls carries tool invocations the model is requesting.
	// Arguments may arrive fragmented across chunks sharing a call ID; the
	// agent loop's accumulator reassembles them.
	ToolCalls []types.ToolCall
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// Content is the full text of the reply. Empty when the model responds
	// exclusively with tool calls.
	Content string

	// ToolCalls lists all tool invocations requested by the model. The
	// caller executes them and appends the results to the conversation.
	ToolCalls []types.ToolCall

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over one language-model backend.
//
// Implementations must be safe for concurrent use from multiple goroutines.
// Each method must propagate context cancellation promptly: a cancelled
// turn (barge-in, shutdown) has to release its stream within the
// pipeline's grace budget.
type Provider interface {
	// StreamCompletion sends req to the model and returns a read-only
	// channel that emits [Chunk] values as they arrive. The channel is
	// closed by the implementation when generation finishes or when ctx is
	// cancelled.
	//
	// Callers must drain the channel to avoid goroutine leaks. Errors that
	// occur after the stream opens surface as a final chunk with
	// [FinishError]; the error return is non-nil only for failures that
	// prevent the stream from starting (bad credentials, malformed
	// request).
	//
	// The returned channel must never be nil when error is nil.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req and waits for the full response. Used by the
	// non-latency-critical passes — memory extraction, summarisation,
	// transcript correction — that want a whole reply, not a stream.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates how many tokens messages would consume in the
	// model's context window, for budget enforcement before a request is
	// sent. The estimate may be approximate but should not undercount.
	CountTokens(messages []types.Message) (int, error)

	// Capabilities returns static metadata about the underlying model,
	// assumed constant for the lifetime of the Provider instance.
	Capabilities() types.ModelCapabilities
}
