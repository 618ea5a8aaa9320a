// Package mock provides an energy-based stand-in for a real VAD model.
//
// Instead of returning one canned result, a [Session] classifies each frame
// the way the pipeline's capture loop experiences a real detector: frames
// whose PCM energy crosses the speech threshold are speech, silent frames
// are silence, and the start/continue/end transitions fall out of the
// session's own state. Tests drive it with plain byte slices — all-zero
// for silence, anything loud for speech — and get realistic event
// sequences back.
//
// All types are safe for concurrent use across sessions; a single Session
// serialises its own calls with a mutex.
package mock

import (
	"errors"
	"math"
	"sync"

	"github.com/saorsa-labs/fae/pkg/provider/vad"
	"github.com/saorsa-labs/fae/pkg/types"
)

// errSessionClosed is returned by ProcessFrame after Close, matching the
// SessionHandle contract.
var errSessionClosed = errors.New("vad mock: session is closed")

// Engine is a [vad.Engine] producing energy-based sessions.
type Engine struct {
	mu sync.Mutex

	// NewSessionErr, if non-nil, is returned from NewSession.
	NewSessionErr error

	// Sessions records every session created.
	Sessions []*Session
}

// Ensure the doubles satisfy the interfaces at compile time.
var (
	_ vad.Engine        = (*Engine)(nil)
	_ vad.SessionHandle = (*Session)(nil)
)

// NewSession creates an energy-based session using cfg's thresholds.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	s := &Session{cfg: cfg}
	e.Sessions = append(e.Sessions, s)
	return s, nil
}

// Session classifies frames by RMS energy against the configured speech
// threshold, tracking in-speech state to produce start/continue/end events.
type Session struct {
	mu sync.Mutex

	cfg      vad.Config
	inSpeech bool
	frames   int
	closed   bool

	// ProcessFrameErr, if non-nil, is returned by every ProcessFrame call.
	ProcessFrameErr error

	// Force, when non-nil, overrides classification for subsequent frames.
	// Use it to script a detector that disagrees with the audio.
	Force *types.VADEventType
}

// ProcessFrame classifies one little-endian int16 PCM frame.
func (s *Session) ProcessFrame(frame []byte) (types.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.VADEvent{}, errSessionClosed
	}
	if s.ProcessFrameErr != nil {
		return types.VADEvent{}, s.ProcessFrameErr
	}
	s.frames++

	speech, probability := s.classify(frame)

	var eventType types.VADEventType
	switch {
	case speech && !s.inSpeech:
		eventType = types.VADSpeechStart
	case speech && s.inSpeech:
		eventType = types.VADSpeechContinue
	case !speech && s.inSpeech:
		eventType = types.VADSpeechEnd
	default:
		eventType = types.VADSilence
	}
	s.inSpeech = speech

	return types.VADEvent{Type: eventType, Probability: probability}, nil
}

// classify maps frame energy to a speech verdict. Must be called with s.mu
// held.
func (s *Session) classify(frame []byte) (speech bool, probability float64) {
	if s.Force != nil {
		forced := *s.Force
		isSpeech := forced == types.VADSpeechStart || forced == types.VADSpeechContinue
		if isSpeech {
			return true, 0.99
		}
		return false, 0.01
	}

	rms := frameRMS(frame)
	// Normalise against full-scale int16 and squash into [0,1].
	probability = math.Min(1, rms/8192)

	threshold := s.cfg.SpeechThreshold
	if threshold == 0 {
		threshold = 0.5
	}
	return probability >= threshold, probability
}

// Reset clears accumulated detection state without closing the session.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inSpeech = false
}

// Close marks the session closed. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// FrameCount returns how many frames this session has classified.
func (s *Session) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// frameRMS computes the root-mean-square amplitude of little-endian int16
// PCM.
func frameRMS(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := float64(int16(uint16(frame[i*2]) | uint16(frame[i*2+1])<<8))
		sum += sample * sample
	}
	return math.Sqrt(sum / float64(n))
}
