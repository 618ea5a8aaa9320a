// Package host implements the typed command/response and event channel
// between the Fae core and its host shell (the Swift app via the C ABI, or a
// headless supervisor via the stdio bridge).
//
// Commands are JSON envelopes dispatched synchronously to registered
// handlers; events flow the other way, either pushed through a registered
// callback or pulled with [Channel.PollEvent]. Both directions are bounded:
// overflow surfaces as a Backpressured error instead of unbounded queueing.
package host

import (
	"encoding/json"
	"time"
)

// ProtocolVersion is the envelope version this build speaks.
const ProtocolVersion = 1

// CommandEnvelope is one request from the host shell.
type CommandEnvelope struct {
	V         int             `json:"v"`
	Command   string          `json:"command"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id"`
}

// ResponseError carries a stable error kind and a non-secret message.
type ResponseError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ResponseEnvelope is the reply to one command.
type ResponseEnvelope struct {
	RequestID string         `json:"request_id"`
	OK        bool           `json:"ok"`
	Payload   map[string]any `json:"payload,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// EventEnvelope is one asynchronous notification pushed to the host shell.
type EventEnvelope struct {
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload,omitempty"`
	EmittedAt int64          `json:"emitted_at"`
}

// NewEvent stamps an event envelope with the current wall clock.
func NewEvent(name string, payload map[string]any) EventEnvelope {
	return EventEnvelope{Event: name, Payload: payload, EmittedAt: time.Now().UnixMilli()}
}
