// Package agent implements the agentic LLM loop: prompt → stream → tool
// calls → execute → continue, with bounded turns, per-request and per-tool
// timeouts, and cooperative cancellation.
//
// The loop is provider-agnostic: it drives any [llm.Provider] stream and any
// [ToolRegistry], and classifies every way the loop can end into a
// [StopReason].
package agent

import (
	"context"
	"time"

	"github.com/saorsa-labs/fae/pkg/types"
)

// Config bounds a single agent run.
type Config struct {
	// SystemPrompt is injected at the head of the conversation.
	SystemPrompt string

	// MaxTurns bounds prompt→tool→prompt iterations.
	MaxTurns int

	// MaxToolCallsPerTurn bounds how many calls one model turn may request.
	MaxToolCallsPerTurn int

	// RequestTimeout bounds a single provider stream.
	RequestTimeout time.Duration

	// ToolTimeout bounds a single tool execution.
	ToolTimeout time.Duration

	// ToolOutputMaxBytes is the byte budget applied after sanitisation.
	// Zero uses a 16 KiB default.
	ToolOutputMaxBytes int
}

// StopReason classifies why an agent run ended. The set is exhaustive: every
// run ends with exactly one of these.
type StopReason string

const (
	// StopCompleted means the model produced a final answer with no further
	// tool calls.
	StopCompleted StopReason = "Completed"

	// StopMaxTurns means the turn counter reached Config.MaxTurns.
	StopMaxTurns StopReason = "MaxTurns"

	// StopToolBudgetExceeded means one turn requested more tool calls than
	// Config.MaxToolCallsPerTurn allows.
	StopToolBudgetExceeded StopReason = "ToolBudgetExceeded"

	// StopRequestTimeout means a provider request exceeded
	// Config.RequestTimeout.
	StopRequestTimeout StopReason = "RequestTimeout"

	// StopToolError means a tool failed in a way the loop cannot recover
	// from (registry-level failure, not a tool-reported error).
	StopToolError StopReason = "ToolError"

	// StopCancelled means the shared cancellation signal fired. The result
	// holds everything up to the last clean message boundary.
	StopCancelled StopReason = "Cancelled"

	// StopProviderError means the provider stream failed.
	StopProviderError StopReason = "ProviderError"
)

// ExecutedToolCall is one tool call with its outcome and timing.
type ExecutedToolCall struct {
	Call       types.ToolCall
	Result     string
	IsError    bool
	Truncated  bool
	ExecutedAt time.Time
	Duration   time.Duration
}

// TurnResult is the output of a single model turn.
type TurnResult struct {
	// Text is the assistant text produced this turn.
	Text string

	// ToolCalls holds the executed calls, in the order the model emitted
	// them.
	ToolCalls []ExecutedToolCall
}

// Result is the complete output of an agent run.
type Result struct {
	// FinalText is the last assistant text, "" when the run ended before
	// any text was produced.
	FinalText string

	// Turns holds every completed turn in order.
	Turns []TurnResult

	// StopReason classifies why the run ended.
	StopReason StopReason

	// Err carries the underlying failure for error stop reasons.
	Err error
}

// ToolRegistry is the capability the loop uses to enumerate and execute
// tools. [github.com/saorsa-labs/fae/internal/mcp] provides the production
// implementation.
type ToolRegistry interface {
	// Tools returns the definitions currently offered to the model.
	Tools() []types.ToolDefinition

	// Execute runs the named tool. A tool-reported failure is returned as
	// (message, true, nil); a Go error means the registry itself failed.
	Execute(ctx context.Context, name, args string) (result string, isError bool, err error)
}
