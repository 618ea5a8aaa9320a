// Package orchestrator sits on top of the memory journal: it extracts
// candidate records from each conversation turn, detects contradictions with
// what is already known, supersedes stale records, and composes recall
// context for the agent loop.
package orchestrator

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/saorsa-labs/fae/internal/memory/journal"
	"github.com/saorsa-labs/fae/pkg/provider/llm"
	"github.com/saorsa-labs/fae/pkg/types"
)

// Candidate is one record proposed by an extractor for a conversation turn.
type Candidate struct {
	Kind       journal.RecordKind
	Text       string
	Tags       []string
	Confidence float64
}

// Action is a follow-up the extractor proposes beyond remembering something
// (e.g. scheduling a reminder). The orchestrator records them for the
// scheduler; unrecognised types are carried through untouched.
type Action struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// Extraction is the structured result of analysing one turn.
type Extraction struct {
	Items   []Candidate
	Actions []Action
}

// IsEmpty reports whether the extraction carries nothing.
func (e Extraction) IsEmpty() bool { return len(e.Items) == 0 && len(e.Actions) == 0 }

// Extractor proposes memory candidates for a conversation turn.
type Extractor interface {
	Extract(ctx context.Context, userText, assistantText, memoryContext string) (Extraction, error)
}

// ── Tolerant JSON parsing ────────────────────────────────────────────────────

// rawExtraction mirrors the JSON shape the extraction prompt requests:
// {"items": [...], "actions": [...]}. Every field is optional.
type rawExtraction struct {
	Items []struct {
		Kind       string   `json:"kind"`
		Text       string   `json:"text"`
		Tags       []string `json:"tags"`
		Confidence *float64 `json:"confidence"`
	} `json:"items"`
	Actions []Action `json:"actions"`
}

// ParseExtraction decodes a model response into an [Extraction]. The parser
// is deliberately tolerant: missing fields default, unknown kinds map to
// "other", confidence clamps to [0,1], and undecodable input yields an empty
// extraction rather than an error — a bad extraction must never break the
// conversation.
func ParseExtraction(raw string) Extraction {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Extraction{}
	}
	// Models occasionally wrap JSON in a markdown fence.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var decoded rawExtraction
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return Extraction{}
	}

	out := Extraction{Actions: decoded.Actions}
	for _, item := range decoded.Items {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		confidence := 0.5
		if item.Confidence != nil {
			confidence = min(max(*item.Confidence, 0), 1)
		}
		tags := make([]string, 0, len(item.Tags))
		for _, t := range item.Tags {
			t = strings.ToLower(strings.TrimSpace(t))
			if t != "" {
				tags = append(tags, t)
			}
		}
		out.Items = append(out.Items, Candidate{
			Kind:       journal.ParseKind(item.Kind),
			Text:       text,
			Tags:       tags,
			Confidence: confidence,
		})
	}
	return out
}

// ── LLM-backed extractor ─────────────────────────────────────────────────────

// extractionPrompt is the fixed system prompt for the extraction call.
const extractionPrompt = `You perform memory extraction for a voice assistant.
Given one conversation turn, extract durable facts about the user worth
remembering: their name, preferences, relationships, upcoming events.

Respond with JSON only:
{"items":[{"kind":"fact|preference|name|relationship|event|other","text":"...","tags":["..."],"confidence":0.0}],"actions":[{"type":"...","detail":"..."}]}

Rules: short declarative "text" phrased in the third person; lowercase tags
naming the attribute (e.g. "name", "preference"); omit small talk. Return
{"items":[],"actions":[]} when the turn contains nothing durable.`

// LLMExtractor asks a language model to propose candidates, then parses the
// response tolerantly.
type LLMExtractor struct {
	provider  llm.Provider
	maxTokens int
}

// NewLLMExtractor wraps provider as an [Extractor].
func NewLLMExtractor(provider llm.Provider) *LLMExtractor {
	return &LLMExtractor{provider: provider, maxTokens: 1024}
}

// Extract implements [Extractor].
func (e *LLMExtractor) Extract(ctx context.Context, userText, assistantText, memoryContext string) (Extraction, error) {
	var prompt strings.Builder
	prompt.WriteString("## Conversation Turn\n\n")
	prompt.WriteString("User: " + userText + "\n\n")
	prompt.WriteString("Assistant: " + assistantText + "\n\n")
	if memoryContext != "" {
		prompt.WriteString("## Existing Memory Context\n\n")
		prompt.WriteString(memoryContext + "\n\n")
	}
	prompt.WriteString("Extract memory items and actions from this conversation turn.")

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: extractionPrompt,
		Messages:     []types.Message{{Role: "user", Content: prompt.String()}},
		MaxTokens:    e.maxTokens,
	})
	if err != nil {
		return Extraction{}, err
	}
	return ParseExtraction(resp.Content), nil
}

// ── Rule-based extractor ─────────────────────────────────────────────────────

var (
	namePattern       = regexp.MustCompile(`(?i)\bmy name is\s+([A-Za-z][A-Za-z'-]*)`)
	callMePattern     = regexp.MustCompile(`(?i)\bcall me\s+([A-Za-z][A-Za-z'-]*)`)
	preferencePattern = regexp.MustCompile(`(?i)\bi (?:prefer|like|love)\s+([^.!?,]+)`)
)

// RuleExtractor recognises a small set of high-precision phrasings without a
// model round-trip. It is the fallback when no LLM is configured for
// extraction and keeps memory capture working offline.
type RuleExtractor struct{}

// Extract implements [Extractor].
func (RuleExtractor) Extract(_ context.Context, userText, _ string, _ string) (Extraction, error) {
	var out Extraction

	if m := firstMatch(namePattern, callMePattern, userText); m != "" {
		out.Items = append(out.Items, Candidate{
			Kind:       journal.KindName,
			Text:       "User's name is " + m,
			Tags:       []string{"name"},
			Confidence: 0.9,
		})
	}

	if m := preferencePattern.FindStringSubmatch(userText); m != nil {
		subject := strings.TrimSpace(m[1])
		out.Items = append(out.Items, Candidate{
			Kind:       journal.KindPreference,
			Text:       "User prefers " + subject,
			Tags:       []string{"preference"},
			Confidence: 0.8,
		})
	}

	return out, nil
}

func firstMatch(a, b *regexp.Regexp, text string) string {
	if m := a.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := b.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
