package agent

import (
	"context"
	"log/slog"

	"github.com/saorsa-labs/fae/pkg/provider/llm"
	"github.com/saorsa-labs/fae/pkg/types"
)

// Loop drives the agent iteration for one conversation request.
//
// A Loop is cheap to construct and single-use per Run call; the provider and
// registry it wraps are long-lived and shared.
type Loop struct {
	cfg      Config
	provider llm.Provider
	registry ToolRegistry
}

// NewLoop builds a loop over provider and registry. registry may be nil,
// which disables tool calling entirely.
func NewLoop(cfg Config, provider llm.Provider, registry ToolRegistry) *Loop {
	return &Loop{cfg: cfg, provider: provider, registry: registry}
}

// Run executes the loop until a [StopReason] is reached. messages is the
// conversation so far (without the system prompt). Cancel ctx to abort; the
// result then holds everything up to the last clean message boundary with
// StopCancelled.
func (l *Loop) Run(ctx context.Context, messages []types.Message) *Result {
	result := &Result{}

	history := make([]types.Message, len(messages))
	copy(history, messages)

	var tools []types.ToolDefinition
	defs := map[string]types.ToolDefinition{}
	if l.registry != nil {
		tools = l.registry.Tools()
		for _, def := range tools {
			defs[def.Name] = def
		}
	}

	executor := NewToolExecutor(l.registry, l.cfg.ToolTimeout, l.cfg.ToolOutputMaxBytes)

	for turn := 0; turn < l.cfg.MaxTurns; turn++ {
		if ctx.Err() != nil {
			result.StopReason = StopCancelled
			return result
		}

		accumulated, stop := l.streamTurn(ctx, history, tools, result)
		if stop {
			return result
		}

		if accumulated.Text != "" {
			result.FinalText = accumulated.Text
		}

		// No tool calls: the model is done.
		if len(accumulated.ToolCalls) == 0 {
			result.Turns = append(result.Turns, TurnResult{Text: accumulated.Text})
			result.StopReason = StopCompleted
			return result
		}

		if len(accumulated.ToolCalls) > l.cfg.MaxToolCallsPerTurn {
			result.Turns = append(result.Turns, TurnResult{Text: accumulated.Text})
			result.StopReason = StopToolBudgetExceeded
			return result
		}

		executed := executor.ExecuteAll(ctx, defs, accumulated.ToolCalls)

		if ctx.Err() != nil {
			// Cancelled mid-execution: stop at the boundary before the
			// partially-executed turn is committed to history.
			result.StopReason = StopCancelled
			return result
		}

		// Commit the assistant message and the tool results, in emission
		// order, then continue to the next turn.
		history = append(history, types.Message{
			Role:      llm.RoleAssistant,
			Content:   accumulated.Text,
			ToolCalls: accumulated.ToolCalls,
		})
		for _, exec := range executed {
			history = append(history, types.Message{
				Role:       llm.RoleTool,
				Content:    exec.Result,
				ToolCallID: exec.Call.ID,
			})
		}
		result.Turns = append(result.Turns, TurnResult{Text: accumulated.Text, ToolCalls: executed})
	}

	result.StopReason = StopMaxTurns
	return result
}

// streamTurn sends the history to the provider and folds the stream. When
// stop is true the result's StopReason and Err are already set.
func (l *Loop) streamTurn(ctx context.Context, history []types.Message, tools []types.ToolDefinition, result *Result) (AccumulatedTurn, bool) {
	reqCtx := ctx
	cancel := context.CancelFunc(func() {})
	if l.cfg.RequestTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, l.cfg.RequestTimeout)
	}
	defer cancel()

	stream, err := l.provider.StreamCompletion(reqCtx, llm.CompletionRequest{
		Messages:     history,
		Tools:        tools,
		SystemPrompt: l.cfg.SystemPrompt,
	})
	if err != nil {
		result.StopReason = StopProviderError
		result.Err = err
		if ctx.Err() != nil {
			result.StopReason = StopCancelled
		}
		return AccumulatedTurn{}, true
	}

	acc := NewStreamAccumulator()
	for chunk := range stream {
		acc.Add(chunk)
	}
	turn := acc.Turn()

	switch {
	case ctx.Err() != nil:
		result.StopReason = StopCancelled
		return AccumulatedTurn{}, true
	case reqCtx.Err() == context.DeadlineExceeded:
		result.StopReason = StopRequestTimeout
		return AccumulatedTurn{}, true
	case turn.FinishReason == llm.FinishError:
		slog.Warn("provider stream failed mid-turn", "partial_text_len", len(turn.Text))
		result.StopReason = StopProviderError
		return AccumulatedTurn{}, true
	}

	return turn, false
}
