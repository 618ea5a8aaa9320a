package agent

import (
	"fmt"
	"strings"
)

const (
	// minHexBlobLen is the minimum length for a whitespace-delimited token
	// to be considered a hex dump.
	minHexBlobLen = 128

	// minBase64BlobLen is the minimum length for a token to be considered a
	// base64 blob.
	minBase64BlobLen = 256

	// base64PurityPercent is the minimum share of base64-alphabet bytes a
	// token needs to classify as a blob.
	base64PurityPercent = 98

	// defaultOutputMaxBytes bounds sanitised tool output when the agent
	// config does not set a budget.
	defaultOutputMaxBytes = 16 * 1024
)

// SanitizedOutput is the result of cleaning one tool's output.
type SanitizedOutput struct {
	// Content is the cleaned text with binary-like blobs replaced.
	Content string

	// RedactedBlobs counts how many blob tokens were replaced.
	RedactedBlobs int

	// Truncated reports whether the byte budget cut the output.
	Truncated bool
}

// SanitizeToolOutput strips null bytes, replaces whitespace-delimited tokens
// that look like hex or base64 dumps with a short marker, and truncates the
// result to maxBytes with a truncation marker.
//
// This cleans content fields (file content, command output) before they are
// fed back into the model context. Shell metacharacters are preserved —
// stricter input sanitisation is a separate concern applied before exec, not
// here.
func SanitizeToolOutput(raw string, maxBytes int) SanitizedOutput {
	if maxBytes <= 0 {
		maxBytes = defaultOutputMaxBytes
	}

	// Null bytes never belong in model context.
	raw = strings.ReplaceAll(raw, "\x00", "")

	var (
		out      strings.Builder
		token    strings.Builder
		redacted int
	)
	out.Grow(len(raw))

	flush := func() {
		if token.Len() == 0 {
			return
		}
		t := token.String()
		if kind := classifyBlob(t); kind != "" {
			stripped := stripShellSyntax(t)
			fmt.Fprintf(&out, "[%s blob omitted: %d chars]", kind, len(stripped))
			redacted++
		} else {
			out.WriteString(t)
		}
		token.Reset()
	}

	for _, ch := range raw {
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\v' || ch == '\f' {
			flush()
			out.WriteRune(ch)
		} else {
			token.WriteRune(ch)
		}
	}
	flush()

	content, truncated := truncateOutput(out.String(), maxBytes)
	return SanitizedOutput{Content: content, RedactedBlobs: redacted, Truncated: truncated}
}

// classifyBlob returns "hex", "base64", or "" for a whitespace-delimited
// token.
func classifyBlob(token string) string {
	stripped := stripShellSyntax(token)
	if isProbablyHexBlob(stripped) {
		return "hex"
	}
	if isProbablyBase64Blob(stripped) {
		return "base64"
	}
	return ""
}

// stripShellSyntax removes shell metacharacters for blob detection only;
// the characters survive in non-blob output.
func stripShellSyntax(token string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '$', '`', '|', '>', '<', ';', '&', '\\', '\n', '\r', '\t':
			return -1
		}
		return r
	}, token)
}

func isProbablyHexBlob(s string) bool {
	if len(s) < minHexBlobLen {
		return false
	}
	for _, r := range s {
		if !isHexDigit(r) {
			return false
		}
	}
	return true
}

func isProbablyBase64Blob(s string) bool {
	if len(s) < minBase64BlobLen {
		return false
	}
	valid := 0
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			valid++
		case r == '+' || r == '/' || r == '=' || r == '-' || r == '_':
			valid++
		default:
			return false
		}
	}
	return valid*100/len(s) >= base64PurityPercent
}

func isHexDigit(r rune) bool {
	return r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F'
}

// truncateOutput cuts s to maxBytes (on a rune boundary) and appends a
// marker naming the budget.
func truncateOutput(s string, maxBytes int) (string, bool) {
	if len(s) <= maxBytes {
		return s, false
	}
	cut := maxBytes
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("[output truncated at %d bytes]", maxBytes), true
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
