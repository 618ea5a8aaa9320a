// Package mock simulates a streaming transcription backend for pipeline and
// failover tests.
//
// A [Session] behaves like a live capture session: the test pushes audio in
// through the normal SendAudio path, then scripts recognition results with
// [Session.EmitPartial] and [Session.EmitFinal]. Finals are stamped with a
// duration derived from the PCM actually received since the previous final,
// so wall-clock-anchored transcript segments look like real speech rather
// than zero-length utterances.
//
// All types are safe for concurrent use.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/saorsa-labs/fae/pkg/provider/stt"
)

// sessionBuffer is the depth of the partial/final channels — deep enough
// that a test can script a whole conversation before the consumer starts.
const sessionBuffer = 16

// Provider is a scriptable implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is handed out by StartStream. If nil, StartStream creates a
	// fresh [Session] per call.
	Session *Session

	// StartStreamErr, if non-nil, is returned from StartStream.
	StartStreamErr error

	// StartStreamCalls records the config of every StartStream call.
	StartStreamCalls []stt.StreamConfig
}

// StartStream records the call and returns the configured session (or a
// fresh one).
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, cfg)
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if p.Session != nil {
		p.Session.setConfig(cfg)
		return p.Session, nil
	}
	s := NewSession()
	s.setConfig(cfg)
	return s, nil
}

// Reset clears recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = nil
}

// Session is a scriptable implementation of stt.SessionHandle.
type Session struct {
	mu sync.Mutex

	partials chan stt.Transcript
	finals   chan stt.Transcript

	cfg            stt.StreamConfig
	audioBytes     int // PCM received since the last final
	sendAudioCalls int
	keywords       []stt.KeywordBoost
	closed         bool

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// CloseErr, if non-nil, is returned by the first Close.
	CloseErr error

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewSession creates a session ready to accept audio and script results.
func NewSession() *Session {
	return &Session{
		partials: make(chan stt.Transcript, sessionBuffer),
		finals:   make(chan stt.Transcript, sessionBuffer),
	}
}

// Ensure the doubles satisfy the interfaces at compile time.
var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*Session)(nil)
)

// ─── Scripting ────────────────────────────────────────────────────────────────

func (s *Session) setConfig(cfg stt.StreamConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// EmitPartial delivers an interim recognition result.
func (s *Session) EmitPartial(text string) {
	s.partials <- stt.Transcript{Text: text, Confidence: 0.5}
}

// EmitFinal delivers an authoritative recognition result whose duration is
// derived from the audio received since the previous final (16 kHz mono
// int16 when no stream config was supplied). A session that received no
// audio stamps one second, so gating tests need not pump PCM first.
func (s *Session) EmitFinal(text string) {
	s.mu.Lock()
	duration := s.bufferedDurationLocked()
	s.audioBytes = 0
	s.mu.Unlock()

	s.finals <- stt.Transcript{
		Text:       text,
		IsFinal:    true,
		Confidence: 0.9,
		Duration:   duration,
	}
}

// EndStream simulates the backend finishing the session: both result
// channels close. Safe to call more than once and alongside Close.
func (s *Session) EndStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endStreamLocked()
}

func (s *Session) endStreamLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.partials)
	close(s.finals)
}

func (s *Session) bufferedDurationLocked() time.Duration {
	rate := s.cfg.SampleRate
	if rate == 0 {
		rate = 16000
	}
	channels := s.cfg.Channels
	if channels == 0 {
		channels = 1
	}
	samples := s.audioBytes / (2 * channels)
	if samples == 0 {
		return time.Second
	}
	return time.Duration(samples) * time.Second / time.Duration(rate)
}

// ─── stt.SessionHandle ────────────────────────────────────────────────────────

// SendAudio accumulates the chunk into the current utterance.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendAudioCalls++
	if s.SendAudioErr != nil {
		return s.SendAudioErr
	}
	s.audioBytes += len(chunk)
	return nil
}

// Partials returns the interim result channel.
func (s *Session) Partials() <-chan stt.Transcript { return s.partials }

// Finals returns the authoritative result channel.
func (s *Session) Finals() <-chan stt.Transcript { return s.finals }

// SetKeywords replaces the active keyword boost list.
func (s *Session) SetKeywords(keywords []stt.KeywordBoost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywords = append([]stt.KeywordBoost(nil), keywords...)
	return nil
}

// Keywords returns the most recently set keyword boost list.
func (s *Session) Keywords() []stt.KeywordBoost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]stt.KeywordBoost(nil), s.keywords...)
}

// SendAudioCallCount returns the number of SendAudio calls. Thread-safe.
func (s *Session) SendAudioCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendAudioCalls
}

// Close ends the stream and records the call. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	first := !s.closed
	s.endStreamLocked()
	if first {
		return s.CloseErr
	}
	return nil
}
