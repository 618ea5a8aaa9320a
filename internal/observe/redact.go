package observe

import (
	"regexp"
	"strings"
)

// secretPatterns match credential-shaped substrings that must never reach
// logs, span statuses, or host-bridge error payloads. The list is
// deliberately coarse: false positives cost a few masked characters, false
// negatives leak a key.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{8,}`),                   // OpenAI-style API keys
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]{8,}=*`),   // bearer tokens
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret)=[^\s&]+`), // key=value query/env forms
}

// Redact masks credential-shaped substrings in s with "***". It is applied
// at the telemetry boundary as defence in depth — code should never format
// secrets into messages in the first place.
func Redact(s string) string {
	for _, pattern := range secretPatterns {
		s = pattern.ReplaceAllStringFunc(s, func(match string) string {
			// Preserve a key=*** shape for the assignment form so operators
			// can still see which field was set.
			if i := strings.IndexByte(match, '='); i > 0 && !strings.ContainsAny(match[:i], " \t") {
				return match[:i+1] + "***"
			}
			return "***"
		})
	}
	return s
}
