// Package mock simulates a speech synthesis backend for pipeline tests.
//
// Synthesis is keyed to the text it is fed: every fragment read from the
// text channel produces one PCM chunk derived from that fragment, so a test
// can assert that what was played corresponds to what the agent said —
// not just that some canned bytes appeared. [PCMForText] reproduces the
// mapping for assertions.
//
// All types are safe for concurrent use.
package mock

import (
	"context"
	"sync"

	"github.com/saorsa-labs/fae/pkg/provider/tts"
	"github.com/saorsa-labs/fae/pkg/types"
)

// bytesPerChar sizes the fake PCM output: roughly 60 ms of 16 kHz mono
// int16 per character, so longer replies produce audibly longer streams.
const bytesPerChar = 32

// SynthesizeStreamCall records a single invocation of SynthesizeStream.
type SynthesizeStreamCall struct {
	// Voice is the profile requested for synthesis.
	Voice types.VoiceProfile

	// Texts are the fragments read from the text channel, in order.
	Texts []string
}

// Provider is a scriptable implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// SynthesizeErr, if non-nil, is returned from SynthesizeStream instead
	// of starting synthesis.
	SynthesizeErr error

	// SynthesizeChunks, when non-empty, overrides per-fragment synthesis:
	// the stream plays exactly these chunks regardless of input text.
	SynthesizeChunks [][]byte

	// Voices is returned by ListVoices.
	Voices []types.VoiceProfile

	// ListVoicesErr, if non-nil, is returned as the error from ListVoices.
	ListVoicesErr error

	// CloneVoiceResult is returned by CloneVoice. May be nil, in which case
	// a fixed mock profile is returned.
	CloneVoiceResult *types.VoiceProfile

	// CloneVoiceErr, if non-nil, is returned as the error from CloneVoice.
	CloneVoiceErr error

	// SynthesizeStreamCalls records every synthesis run; Texts fills in as
	// fragments arrive.
	SynthesizeStreamCalls []*SynthesizeStreamCall

	// CloneVoiceSampleCounts records the sample count of each CloneVoice call.
	CloneVoiceSampleCounts []int
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)

// PCMForText returns the chunk the mock synthesises for one text fragment.
// Tests compare played frames against this.
func PCMForText(fragment string) []byte {
	out := make([]byte, len(fragment)*bytesPerChar)
	for i := range out {
		out[i] = fragment[i/bytesPerChar]
	}
	return out
}

// SynthesizeStream consumes text fragments and emits one derived PCM chunk
// per fragment (or the fixed SynthesizeChunks when configured). The audio
// channel closes when the text channel closes or ctx is cancelled.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice types.VoiceProfile) (<-chan []byte, error) {
	p.mu.Lock()
	if p.SynthesizeErr != nil {
		err := p.SynthesizeErr
		p.mu.Unlock()
		return nil, err
	}
	call := &SynthesizeStreamCall{Voice: voice}
	p.SynthesizeStreamCalls = append(p.SynthesizeStreamCalls, call)
	fixed := make([][]byte, len(p.SynthesizeChunks))
	copy(fixed, p.SynthesizeChunks)
	p.mu.Unlock()

	out := make(chan []byte, sessionBuffer)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				go drainText(text)
				return
			case fragment, ok := <-text:
				if !ok {
					return
				}
				p.mu.Lock()
				call.Texts = append(call.Texts, fragment)
				p.mu.Unlock()

				chunks := fixed
				if len(chunks) == 0 {
					chunks = [][]byte{PCMForText(fragment)}
				}
				for _, chunk := range chunks {
					select {
					case out <- chunk:
					case <-ctx.Done():
						go drainText(text)
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// sessionBuffer is the audio channel depth — enough for a scripted reply
// without a draining consumer.
const sessionBuffer = 16

// ListVoices returns the configured voice catalogue.
func (p *Provider) ListVoices(_ context.Context) ([]types.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ListVoicesErr != nil {
		return nil, p.ListVoicesErr
	}
	out := make([]types.VoiceProfile, len(p.Voices))
	copy(out, p.Voices)
	return out, nil
}

// CloneVoice records the call and returns the configured (or the fixed
// mock) profile. Nil or empty samples are rejected, matching the contract.
func (p *Provider) CloneVoice(_ context.Context, samples [][]byte) (*types.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CloneVoiceErr != nil {
		return nil, p.CloneVoiceErr
	}
	if len(samples) == 0 {
		return nil, tts.ErrNoSamples
	}
	p.CloneVoiceSampleCounts = append(p.CloneVoiceSampleCounts, len(samples))
	if p.CloneVoiceResult != nil {
		cp := *p.CloneVoiceResult
		return &cp, nil
	}
	return &types.VoiceProfile{ID: "cloned", Name: "Cloned Voice", Provider: "mock"}, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeStreamCalls = nil
	p.CloneVoiceSampleCounts = nil
}

// SpokenTexts flattens every fragment synthesised so far, across calls.
func (p *Provider) SpokenTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, call := range p.SynthesizeStreamCalls {
		out = append(out, call.Texts...)
	}
	return out
}

func drainText(ch <-chan string) {
	for range ch {
	}
}
