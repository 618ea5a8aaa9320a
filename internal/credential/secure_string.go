package credential

import (
	"log/slog"
	"sync"
)

// SecureString holds a secret value in memory and supports a best-effort
// clear. Go's garbage collector can relocate and copy the backing array
// before Clear runs, so this is a mitigation against incidental exposure
// (logging, panics dumping state), not a guarantee against memory-scraping
// attacks.
type SecureString struct {
	mu    sync.Mutex
	bytes []byte
}

// NewSecureString copies value into a SecureString.
func NewSecureString(value string) *SecureString {
	b := make([]byte, len(value))
	copy(b, value)
	return &SecureString{bytes: b}
}

// Value returns the current secret as a string. Returns "" after Clear.
func (s *SecureString) Value() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.bytes)
}

// Clear overwrites the backing buffer with zeros and releases it. Safe to
// call more than once.
func (s *SecureString) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bytes {
		s.bytes[i] = 0
	}
	s.bytes = nil
}

// String implements fmt.Stringer with a fixed redaction, so SecureString
// values never leak into %v/%s formatting or slog output by accident.
func (s *SecureString) String() string { return "***" }

// LogValue implements slog.LogValuer with the same redaction, so passing a
// *SecureString as a log attribute never prints the secret.
func (s *SecureString) LogValue() slog.Value { return slog.StringValue("***") }
