package pipeline

import (
	"strings"

	"github.com/saorsa-labs/fae/internal/transcript/phonetic"
)

// phraseGate implements wake/stop phrase gating over final transcripts.
//
// Matching is case-insensitive and whitespace-tolerant, with a phonetic
// fallback so "hey fay" still opens a gate configured for "hey fae". The
// gate starts closed when gating is enabled and open otherwise.
type phraseGate struct {
	enabled bool
	open    bool
	wake    string
	stop    string
	matcher *phonetic.Matcher
}

func newPhraseGate(enabled bool, wake, stop string) *phraseGate {
	return &phraseGate{
		enabled: enabled,
		open:    !enabled,
		wake:    wake,
		stop:    stop,
		matcher: phonetic.New(),
	}
}

// gateAction describes what the gate did with one final transcript.
type gateAction int

const (
	// gatePass means the transcript is addressed to the assistant.
	gatePass gateAction = iota

	// gateOpened means the transcript was the wake phrase; the gate is now
	// open and the utterance itself is consumed.
	gateOpened

	// gateClosed means the transcript was the stop phrase; the gate is now
	// closed and the utterance is consumed.
	gateClosed

	// gateDropped means the gate is closed and the transcript is ignored.
	gateDropped
)

// observe folds one final transcript into the gate state.
func (g *phraseGate) observe(text string) gateAction {
	if !g.enabled {
		return gatePass
	}
	if !g.open {
		if g.matchesPhrase(text, g.wake) {
			g.open = true
			return gateOpened
		}
		return gateDropped
	}
	if g.matchesPhrase(text, g.stop) {
		g.open = false
		return gateClosed
	}
	return gatePass
}

// matchesPhrase reports whether phrase occurs in text. Comparison folds case
// and whitespace first; when that fails, a phonetic pass over n-grams of the
// same token length catches near-miss transcriptions.
func (g *phraseGate) matchesPhrase(text, phrase string) bool {
	normText := normalisePhrase(text)
	normPhrase := normalisePhrase(phrase)
	if normPhrase == "" {
		return false
	}
	if strings.Contains(normText, normPhrase) {
		return true
	}

	phraseTokens := strings.Fields(normPhrase)
	textTokens := strings.Fields(normText)
	if len(textTokens) < len(phraseTokens) {
		return false
	}
	for i := 0; i+len(phraseTokens) <= len(textTokens); i++ {
		gram := strings.Join(textTokens[i:i+len(phraseTokens)], " ")
		if _, _, matched := g.matcher.Match(gram, []string{normPhrase}); matched {
			return true
		}
	}
	return false
}

// normalisePhrase folds case, trims punctuation, and collapses whitespace.
func normalisePhrase(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	for i, f := range fields {
		fields[i] = strings.Trim(f, ".,!?;:\"'")
	}
	return strings.Join(fields, " ")
}
