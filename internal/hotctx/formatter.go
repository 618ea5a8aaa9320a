package hotctx

import (
	"fmt"
	"strings"
)

// FormatSystemPrompt converts a [HotContext] into a system prompt string
// suitable for direct injection into the agent's LLM call.
//
// persona is the assistant's free-text persona description, prepended as the
// opening line. If hctx is nil, a minimal fallback prompt is returned.
//
// The formatter is pure: it performs no I/O, has no side effects, and is
// safe for concurrent use.
//
// Empty sections (no memory context, no transcript) are omitted entirely
// rather than rendering as empty headers.
func FormatSystemPrompt(hctx *HotContext, persona string) string {
	persona = strings.TrimSpace(persona)
	if persona == "" {
		persona = "You are Fae, a voice assistant."
	}

	if hctx == nil {
		return persona
	}

	var sb strings.Builder
	sb.WriteString(persona)

	// ── Ambient section ───────────────────────────────────────────────────────
	if !hctx.Now.IsZero() {
		fmt.Fprintf(&sb, "\n\nThe current time is %s.", hctx.Now.Format("Monday, 2 January 2006, 15:04"))
	}

	// ── Memory section ────────────────────────────────────────────────────────
	if hctx.MemoryContext != "" {
		sb.WriteString("\n\n## What you remember about the user\n")
		sb.WriteString(hctx.MemoryContext)
	}

	// ── Recent conversation section ───────────────────────────────────────────
	if len(hctx.RecentTranscript) > 0 {
		sb.WriteString("\n\n## Recent conversation\n")
		for _, m := range hctx.RecentTranscript {
			if m.Content == "" {
				continue
			}
			speaker := m.Role
			switch m.Role {
			case "user":
				speaker = "User"
			case "assistant":
				speaker = "You"
			}
			fmt.Fprintf(&sb, "%s: %s\n", speaker, m.Content)
		}
	}

	return sb.String()
}
