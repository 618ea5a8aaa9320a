package agent

import (
	"context"
	"time"

	ferrors "github.com/saorsa-labs/fae/internal/errors"
	"github.com/saorsa-labs/fae/pkg/types"
)

// ToolExecutor runs a turn's tool calls against a [ToolRegistry] with a
// per-tool timeout. Calls execute concurrently; results are reassembled in
// emission order before they are returned.
type ToolExecutor struct {
	registry       ToolRegistry
	timeout        time.Duration
	outputMaxBytes int
}

// NewToolExecutor builds an executor over registry.
func NewToolExecutor(registry ToolRegistry, timeout time.Duration, outputMaxBytes int) *ToolExecutor {
	if outputMaxBytes <= 0 {
		outputMaxBytes = defaultOutputMaxBytes
	}
	return &ToolExecutor{registry: registry, timeout: timeout, outputMaxBytes: outputMaxBytes}
}

// ExecuteAll runs every call and returns one [ExecutedToolCall] per input,
// in the same order the model emitted them. Per-call failures — schema
// mismatches, timeouts, tool-reported errors — become error results rather
// than Go errors, so a bad call never aborts the loop on its own.
func (e *ToolExecutor) ExecuteAll(ctx context.Context, defs map[string]types.ToolDefinition, calls []types.ToolCall) []ExecutedToolCall {
	results := make([]ExecutedToolCall, len(calls))

	done := make(chan int, len(calls))
	for i := range calls {
		go func(i int) {
			results[i] = e.executeOne(ctx, defs, calls[i])
			done <- i
		}(i)
	}
	for range calls {
		<-done
	}
	return results
}

func (e *ToolExecutor) executeOne(ctx context.Context, defs map[string]types.ToolDefinition, call types.ToolCall) ExecutedToolCall {
	started := time.Now()
	out := ExecutedToolCall{Call: call, ExecutedAt: started}

	finish := func(result string, isError bool) ExecutedToolCall {
		sanitized := SanitizeToolOutput(result, e.outputMaxBytes)
		out.Result = sanitized.Content
		out.IsError = isError
		out.Truncated = sanitized.Truncated
		out.Duration = time.Since(started)
		return out
	}

	def, known := defs[call.Name]
	if !known {
		return finish("unknown tool: "+call.Name, true)
	}

	// Invalid arguments produce a synthesised tool error message, not a
	// loop abort — the model gets a chance to correct itself.
	if err := ValidateToolArgs(def, call.Arguments); err != nil {
		return finish("invalid arguments: "+err.Error(), true)
	}

	execCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	result, isError, err := e.registry.Execute(execCtx, call.Name, call.Arguments)
	switch {
	case err == nil:
		return finish(result, isError)
	case execCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
		return finish(ferrors.New(ferrors.KindTimeout, "agent.ToolExecutor", "tool "+call.Name+" timed out").Safe(), true)
	default:
		safe := err.Error()
		if fe, ok := err.(*ferrors.Error); ok {
			safe = fe.Safe()
		}
		return finish(safe, true)
	}
}
