package llm

import "github.com/saorsa-labs/fae/pkg/types"

// The conversation and tool types are shared across providers, the agent
// loop, and the MCP host; they live in [types] and are aliased here so
// provider implementations and their callers can stay within this package's
// vocabulary.

// Message is a single message in an LLM conversation history.
type Message = types.Message

// ToolCall is a tool/function invocation requested by the LLM.
type ToolCall = types.ToolCall

// ToolDefinition describes a tool that can be offered to an LLM.
type ToolDefinition = types.ToolDefinition

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities = types.ModelCapabilities
