// Package errors defines the error taxonomy shared across Fae's subsystems.
//
// Every error that can cross a component boundary (config, memory, scheduler,
// agent loop, pipeline, host bridge) is wrapped in an [Error] carrying a
// [Kind]. Callers that need to react differently to different failure classes
// (retry, surface to the user, log and continue) switch on Kind rather than
// on sentinel values or string matching, and the host bridge serialises Kind
// as a stable wire string.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies the broad category of a failure. The string value is the
// stable wire form used in host-bridge error payloads and must not change
// between releases.
type Kind string

const (
	// KindConfig marks a configuration validation failure, at load time or
	// during a runtime reconfigure.
	KindConfig Kind = "Config"

	// KindHTTP marks a network fetch failure from a peripheral collaborator.
	KindHTTP Kind = "Http"

	// KindParse marks malformed external input: JSON from a provider, an
	// extraction response, a command envelope.
	KindParse Kind = "Parse"

	// KindTimeout marks a bounded wait that elapsed. Distinct from
	// KindCancelled, which is an external abort.
	KindTimeout Kind = "Timeout"

	// KindStorage marks any filesystem or keystore I/O failure.
	KindStorage Kind = "StorageError"

	// KindNotFound marks a referenced credential, record, or tool that is
	// absent.
	KindNotFound Kind = "NotFound"

	// KindPipeline marks a coordinator-level fault: playback underrun, a
	// stage crash, a stream that died mid-conversation.
	KindPipeline Kind = "Pipeline"

	// KindProvider marks an LLM backend failure mapped to a stable kind.
	KindProvider Kind = "ProviderError"

	// KindTool marks a tool-reported failure. Non-fatal: surfaced back to
	// the model as a tool result, never aborts the agent loop on its own.
	KindTool Kind = "ToolError"

	// KindCancelled marks a deliberate external abort (Ctrl-C, a
	// pipeline.cancel command, shutdown in progress).
	KindCancelled Kind = "Cancelled"

	// KindUnknownCommand marks a host command name with no registered
	// handler.
	KindUnknownCommand Kind = "UnknownCommand"

	// KindBackpressured marks a host-channel queue overflow.
	KindBackpressured Kind = "Backpressured"

	// KindReentrancy marks a send_command issued synchronously from inside
	// an event callback.
	KindReentrancy Kind = "Reentrancy"
)

// Skill-subprocess class. The core never raises these itself; the taxonomy
// reserves the wire strings so skill hosts report through the same channel.
const (
	KindProtocol            Kind = "ProtocolError"
	KindHandshakeFailed     Kind = "HandshakeFailed"
	KindSpawnFailed         Kind = "SpawnFailed"
	KindProcessExited       Kind = "ProcessExited"
	KindOutputTruncated     Kind = "OutputTruncated"
	KindMaxRestartsExceeded Kind = "MaxRestartsExceeded"
)

// IsValid reports whether k is one of the recognised kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindConfig, KindHTTP, KindParse, KindTimeout, KindStorage,
		KindNotFound, KindPipeline, KindProvider, KindTool, KindCancelled,
		KindUnknownCommand, KindBackpressured, KindReentrancy,
		KindProtocol, KindHandshakeFailed, KindSpawnFailed,
		KindProcessExited, KindOutputTruncated, KindMaxRestartsExceeded:
		return true
	}
	return false
}

// String returns the stable wire form of the kind.
func (k Kind) String() string { return string(k) }

// Error is the concrete error type produced by Fae's internal packages. It
// carries a Kind for programmatic dispatch, an Op naming the failing
// operation (e.g. "memory.journal.Append"), and an optional wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Safe returns a message suitable for surfacing outside the process (to the
// host bridge, to a tool-call error payload): the Kind and Msg, never the
// wrapped cause, which may contain file paths or provider internals.
func (e *Error) Safe() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// New builds an [Error] with no wrapped cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap builds an [Error] wrapping cause. If cause is nil, Wrap returns nil —
// this lets call sites write `return errors.Wrap(errors.KindStorage, op, "...", err)`
// directly after an `if err != nil` check without an extra branch.
func Wrap(kind Kind, op, msg string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

// KindOf extracts the Kind from err, walking the unwrap chain. Returns the
// empty string if err is nil or does not wrap an [Error].
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err wraps an [Error] whose Kind equals kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Join combines multiple errors into one, dropping nils. Mirrors the
// standard library's errors.Join; re-exported here so callers only need to
// import this package for both error construction and aggregation.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
