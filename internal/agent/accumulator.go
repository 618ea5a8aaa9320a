package agent

import (
	"strings"

	"github.com/saorsa-labs/fae/pkg/provider/llm"
	"github.com/saorsa-labs/fae/pkg/types"
)

// AccumulatedTurn is the structured result of folding one provider stream.
type AccumulatedTurn struct {
	// Text is the concatenated assistant text.
	Text string

	// ToolCalls are the complete tool calls, in emission order.
	ToolCalls []types.ToolCall

	// FinishReason is the provider's final-chunk reason (one of the
	// llm.Finish* constants, or "").
	FinishReason string
}

// StreamAccumulator folds a stream of [llm.Chunk] values into an
// [AccumulatedTurn]. Providers may deliver a tool call's arguments across
// several chunks sharing the call ID; the accumulator concatenates argument
// fragments per ID while preserving first-emission order.
//
// The fold is pure per chunk — the single suspension point per network read
// stays in the loop driver, not here.
type StreamAccumulator struct {
	text         strings.Builder
	order        []string
	byID         map[string]*types.ToolCall
	finishReason string
}

// NewStreamAccumulator returns an empty accumulator.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{byID: make(map[string]*types.ToolCall)}
}

// Add folds one chunk.
func (a *StreamAccumulator) Add(chunk llm.Chunk) {
	a.text.WriteString(chunk.Text)

	for _, call := range chunk.ToolCalls {
		id := call.ID
		if id == "" {
			// Providers that stream argument fragments without repeating the
			// ID address the most recent call.
			if len(a.order) == 0 {
				continue
			}
			id = a.order[len(a.order)-1]
		}
		existing, ok := a.byID[id]
		if !ok {
			fresh := call
			fresh.ID = id
			a.byID[id] = &fresh
			a.order = append(a.order, id)
			continue
		}
		if call.Name != "" {
			existing.Name = call.Name
		}
		existing.Arguments += call.Arguments
	}

	if chunk.FinishReason != "" {
		a.finishReason = chunk.FinishReason
	}
}

// Turn returns the accumulated result. Call after the stream closes.
func (a *StreamAccumulator) Turn() AccumulatedTurn {
	calls := make([]types.ToolCall, 0, len(a.order))
	for _, id := range a.order {
		calls = append(calls, *a.byID[id])
	}
	return AccumulatedTurn{
		Text:         a.text.String(),
		ToolCalls:    calls,
		FinishReason: a.finishReason,
	}
}
