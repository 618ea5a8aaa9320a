// Command libfae exposes the Fae core as a C ABI for embedding in the Swift
// host application. Build with:
//
//	go build -buildmode=c-archive -o libfae.a ./cmd/libfae
//
// All strings crossing the boundary are UTF-8 and null-terminated. Strings
// returned by the core are heap-owned and must be released with
// fae_string_free; passing null to fae_string_free is a no-op. Null inputs
// return null (for constructors) or are no-ops (for destructors). Errors are
// encoded as ok=false response envelopes — nothing ever propagates across
// the boundary as a panic.
package main

/*
#include <stdlib.h>

typedef void (*fae_event_callback)(const char *event_json, void *user_data);

static void fae_invoke_event_callback(fae_event_callback cb, const char *event_json, void *user_data) {
	if (cb != NULL) {
		cb(event_json, user_data);
	}
}
*/
import "C"

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"runtime/cgo"
	"sync"
	"time"
	"unsafe"

	"github.com/saorsa-labs/fae/internal/app"
	"github.com/saorsa-labs/fae/internal/config"
	"github.com/saorsa-labs/fae/internal/host"
	"github.com/saorsa-labs/fae/internal/onboarding"
)

// core is the state behind one opaque handle.
type core struct {
	mu          sync.Mutex
	application *app.App
	channel     *host.Channel
	started     bool
}

func init() {
	// The embedding shell owns stdout; keep diagnostics on stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
}

//export fae_core_init
func fae_core_init(configJSON *C.char) unsafe.Pointer {
	if configJSON == nil {
		return nil
	}

	cfg := config.Default()
	raw := C.GoString(configJSON)
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), cfg); err != nil {
			return nil
		}
	}
	if err := config.Validate(cfg); err != nil {
		return nil
	}

	c := &core{}
	application, err := app.New(cfg, "")
	if err != nil {
		// Providers may be unreachable inside a sandboxed shell; fall back
		// to a bare command channel so host.ping, onboarding, and
		// permissions still work.
		slog.Warn("libfae: core degraded to bare channel", "err", err)
		c.channel = host.NewChannel()
		host.NewCore(c.channel,
			host.WithOnboarding(onboarding.NewMachine(&memOnboarding{})),
		)
	} else {
		c.application = application
		c.channel = application.Channel()
	}

	h := cgo.NewHandle(c)
	// cgo.Handle is an integer token, not a real pointer; it crosses the
	// boundary as an opaque void*.
	return unsafe.Pointer(uintptr(h)) //nolint:govet

}

//export fae_core_start
func fae_core_start(handle unsafe.Pointer) C.int {
	c := coreFrom(handle)
	if c == nil {
		return -1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	return 0
}

//export fae_core_stop
func fae_core_stop(handle unsafe.Pointer) {
	c := coreFrom(handle)
	if c == nil {
		return
	}
	c.mu.Lock()
	application := c.application
	c.started = false
	c.mu.Unlock()

	if application != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Shutdown(ctx)
	}
}

//export fae_core_destroy
func fae_core_destroy(handle unsafe.Pointer) {
	if handle == nil {
		return
	}
	h := cgo.Handle(uintptr(handle))
	if c, ok := h.Value().(*core); ok && c != nil {
		c.channel.SetEventCallback(nil)
	}
	h.Delete()
}

//export fae_core_send_command
func fae_core_send_command(handle unsafe.Pointer, command *C.char) *C.char {
	c := coreFrom(handle)
	if c == nil || command == nil {
		return nil
	}
	response := c.channel.SendCommandJSON(context.Background(), []byte(C.GoString(command)))
	return C.CString(string(response))
}

//export fae_core_poll_event
func fae_core_poll_event(handle unsafe.Pointer) *C.char {
	c := coreFrom(handle)
	if c == nil {
		return nil
	}
	event, ok := c.channel.PollEvent()
	if !ok {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil
	}
	return C.CString(string(data))
}

//export fae_core_set_event_callback
func fae_core_set_event_callback(handle unsafe.Pointer, callback C.fae_event_callback, userData unsafe.Pointer) {
	c := coreFrom(handle)
	if c == nil {
		return
	}
	if callback == nil {
		c.channel.SetEventCallback(nil)
		return
	}
	c.channel.SetEventCallback(func(event host.EventEnvelope) {
		data, err := json.Marshal(event)
		if err != nil {
			return
		}
		cstr := C.CString(string(data))
		C.fae_invoke_event_callback(callback, cstr, userData)
		C.free(unsafe.Pointer(cstr))
	})
}

//export fae_string_free
func fae_string_free(s *C.char) {
	if s == nil {
		return
	}
	C.free(unsafe.Pointer(s))
}

func coreFrom(handle unsafe.Pointer) *core {
	if handle == nil {
		return nil
	}
	c, ok := cgo.Handle(uintptr(handle)).Value().(*core)
	if !ok {
		return nil
	}
	return c
}

// memOnboarding is the in-process onboarding store used when the full app
// could not be assembled.
type memOnboarding struct {
	mu        sync.Mutex
	phase     onboarding.Phase
	onboarded bool
}

func (s *memOnboarding) Phase() onboarding.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *memOnboarding) SetPhase(p onboarding.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
	return nil
}

func (s *memOnboarding) SetOnboarded(done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onboarded = done
	return nil
}

func main() {} // required for c-archive builds; never called
