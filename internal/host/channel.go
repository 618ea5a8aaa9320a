package host

import (
	"bytes"
	"context"
	"encoding/json"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	ferrors "github.com/saorsa-labs/fae/internal/errors"
)

const (
	// maxInFlightCommands bounds the inbound direction. Further SendCommand
	// calls fail with Backpressured instead of queueing without limit.
	maxInFlightCommands = 32

	// eventQueueDepth bounds the outbound direction (poll mode).
	eventQueueDepth = 256
)

// HandlerFunc processes one command payload and returns the response
// payload. Returning an error produces an ok=false response; a
// [ferrors.Error] keeps its Kind and safe message on the wire.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (map[string]any, error)

// Channel is the bidirectional command/event bridge. Register handlers with
// [Channel.Register], dispatch with [Channel.SendCommand], and consume
// events either by polling or through a callback.
//
// All methods are safe for concurrent use.
type Channel struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	inFlight chan struct{}

	eventMu     sync.Mutex
	eventQueue  []EventEnvelope
	eventSignal chan struct{}

	callback atomic.Pointer[func(EventEnvelope)]

	// callbackGoroutine holds the id of the goroutine currently executing
	// an event callback (0 when none). A SendCommand issued from that same
	// goroutine is a synchronous re-entrant call and is rejected; commands
	// from other goroutines are unaffected.
	callbackGoroutine atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
}

// NewChannel creates a ready-to-use channel and starts its event worker.
func NewChannel() *Channel {
	c := &Channel{
		handlers:    make(map[string]HandlerFunc),
		inFlight:    make(chan struct{}, maxInFlightCommands),
		eventSignal: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	go c.eventWorker()
	return c
}

// Register installs handler for the named command, replacing any previous
// registration.
func (c *Channel) Register(command string, handler HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[command] = handler
}

// SendCommand dispatches one envelope and returns its response. Unknown
// commands, queue overflow, and re-entrant calls from an event callback all
// produce ok=false responses with the corresponding stable error kind —
// errors never escape as Go panics or stream corruption.
func (c *Channel) SendCommand(ctx context.Context, env CommandEnvelope) ResponseEnvelope {
	if gid := c.callbackGoroutine.Load(); gid != 0 && gid == goroutineID() {
		return errorResponse(env.RequestID, ferrors.KindReentrancy, "send_command called from an event callback")
	}

	select {
	case c.inFlight <- struct{}{}:
		defer func() { <-c.inFlight }()
	default:
		return errorResponse(env.RequestID, ferrors.KindBackpressured, "command queue is full")
	}

	c.mu.RLock()
	handler, ok := c.handlers[env.Command]
	c.mu.RUnlock()
	if !ok {
		return errorResponse(env.RequestID, ferrors.KindUnknownCommand, "unknown command: "+env.Command)
	}

	payload, err := handler(ctx, env.Payload)
	if err != nil {
		kind := ferrors.KindPipeline
		message := err.Error()
		if fe, isTyped := err.(*ferrors.Error); isTyped {
			kind = fe.Kind
			message = fe.Msg
		}
		return errorResponse(env.RequestID, kind, message)
	}

	return ResponseEnvelope{RequestID: env.RequestID, OK: true, Payload: payload}
}

// SendCommandJSON decodes raw as a command envelope, dispatches it, and
// encodes the response. Malformed JSON yields an ok=false Parse response so
// the wire protocol stays line-oriented even on bad input.
func (c *Channel) SendCommandJSON(ctx context.Context, raw []byte) []byte {
	var env CommandEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		out, _ := json.Marshal(errorResponse("", ferrors.KindParse, "malformed command envelope"))
		return out
	}
	resp := c.SendCommand(ctx, env)
	out, _ := json.Marshal(resp)
	return out
}

// EmitEvent queues event for delivery. When a callback is registered the
// event worker pushes it; otherwise it waits in the poll queue. A full poll
// queue drops the oldest pending event rather than blocking the emitter.
func (c *Channel) EmitEvent(event EventEnvelope) {
	c.eventMu.Lock()
	if len(c.eventQueue) >= eventQueueDepth {
		c.eventQueue = c.eventQueue[1:]
	}
	c.eventQueue = append(c.eventQueue, event)
	c.eventMu.Unlock()

	select {
	case c.eventSignal <- struct{}{}:
	default:
	}
}

// PollEvent returns the oldest pending event, or ok=false when none is
// queued. Poll mode and callback mode are mutually exclusive in practice:
// while a callback is registered the worker usually drains the queue first.
func (c *Channel) PollEvent() (EventEnvelope, bool) {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()
	if len(c.eventQueue) == 0 {
		return EventEnvelope{}, false
	}
	event := c.eventQueue[0]
	c.eventQueue = c.eventQueue[1:]
	return event, true
}

// SetEventCallback registers fn to receive events pushed from the worker
// goroutine. Passing nil reverts to poll mode. Registrations replace
// atomically; the callback is invoked serially.
//
// Callbacks must not call [Channel.SendCommand] synchronously — a
// re-entrancy guard turns such calls into Reentrancy errors.
func (c *Channel) SetEventCallback(fn func(EventEnvelope)) {
	if fn == nil {
		c.callback.Store(nil)
		return
	}
	c.callback.Store(&fn)
	// Wake the worker so queued events drain through the new callback.
	select {
	case c.eventSignal <- struct{}{}:
	default:
	}
}

// Close stops the event worker. Pending events stay pollable.
func (c *Channel) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// eventWorker delivers queued events to the registered callback, serially.
func (c *Channel) eventWorker() {
	for {
		select {
		case <-c.done:
			return
		case <-c.eventSignal:
		}

		for {
			fnPtr := c.callback.Load()
			if fnPtr == nil {
				break
			}
			event, ok := c.PollEvent()
			if !ok {
				break
			}
			c.callbackGoroutine.Store(goroutineID())
			(*fnPtr)(event)
			c.callbackGoroutine.Store(0)
		}
	}
}

// goroutineID parses the current goroutine's id from its stack header. Only
// the re-entrancy guard uses it, and only while a callback is in flight —
// the atomic load short-circuits the common path.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Header format: "goroutine 123 [running]:"
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func errorResponse(requestID string, kind ferrors.Kind, message string) ResponseEnvelope {
	return ResponseEnvelope{
		RequestID: requestID,
		OK:        false,
		Error:     &ResponseError{Kind: string(kind), Message: message},
	}
}
