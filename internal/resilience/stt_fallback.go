package resilience

import (
	"context"

	"github.com/saorsa-labs/fae/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across
// multiple transcription backends (e.g. whisper.cpp in-process, a whisper
// server as fallback). Each backend has its own circuit breaker.
//
// Failover covers session establishment only. A live session owns the
// microphone stream for its whole run; if it dies mid-conversation the
// coordinator reopens through [STTFallback.StartStream], which then lands on
// the next healthy backend. Call [STTFallback.ReportSessionLoss] before
// reopening so the dead backend's breaker sees the fault the session itself
// could not report.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcription backend as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// StartStream opens a streaming transcription session against the first
// healthy backend. If the primary fails to start the session, subsequent
// fallbacks are tried.
func (f *STTFallback) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	session, _, err := executeWithEntry(f.group, func(p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
	return session, err
}

// ReportSessionLoss records a fault against the named backend after its
// session died outside a StartStream call. Unknown names are ignored.
func (f *STTFallback) ReportSessionLoss(backend string) {
	for i := range f.group.entries {
		if f.group.entries[i].name == backend {
			f.group.entries[i].breaker.RecordFault()
			return
		}
	}
}
