// Package credential stores references to secrets (API keys, tokens)
// without putting their plaintext values in config files or logs.
//
// A [Ref] is a tagged union: it names where a secret lives (platform
// keystore, inline plaintext for migration compatibility, or nothing at
// all) without carrying the secret itself in the common case. [Store]
// resolves a Ref to its value on demand.
package credential

import (
	"fmt"

	ferrors "github.com/saorsa-labs/fae/internal/errors"
)

// Kind identifies which storage strategy a [Ref] uses.
type Kind int

const (
	// KindNone means no credential is configured.
	KindNone Kind = iota

	// KindInline holds the secret value directly in the Ref. Exists for
	// migrating old configs that stored credentials as plain strings; new
	// code should prefer KindKeystore.
	KindInline

	// KindKeystore references a secret held in the platform keystore,
	// addressed by service and account.
	KindKeystore
)

// Ref is a reference to a credential. The zero value is KindNone.
type Ref struct {
	Kind    Kind
	Inline  string
	Service string
	Account string
}

// None returns the empty credential reference.
func None() Ref { return Ref{Kind: KindNone} }

// Inline wraps a plaintext value directly in a Ref. Only used for
// migration compatibility with legacy configs; prefer storing through a
// [Store] and keeping a Keystore reference.
func Inline(value string) Ref { return Ref{Kind: KindInline, Inline: value} }

// Keystore builds a reference to a platform-keystore entry.
func Keystore(service, account string) Ref {
	return Ref{Kind: KindKeystore, Service: service, Account: account}
}

// IsSet reports whether r points to an actual credential.
func (r Ref) IsSet() bool { return r.Kind != KindNone }

// IsInline reports whether r is a legacy plaintext reference.
func (r Ref) IsInline() bool { return r.Kind == KindInline }

// IsKeystore reports whether r is a platform-keystore reference.
func (r Ref) IsKeystore() bool { return r.Kind == KindKeystore }

// String renders a redacted form of r, safe to log. It never includes
// Inline's plaintext value.
func (r Ref) String() string {
	switch r.Kind {
	case KindNone:
		return "credential.none"
	case KindInline:
		return "credential.inline(***)"
	case KindKeystore:
		return fmt.Sprintf("credential.keystore(%s/%s)", r.Service, r.Account)
	default:
		return "credential.unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so a Ref embedded in a TOML
// config round-trips through three shapes: omitted, an inline string, or a
// "keystore:service/account" reference.
func (r Ref) MarshalText() ([]byte, error) {
	switch r.Kind {
	case KindNone:
		return []byte(""), nil
	case KindInline:
		return []byte(r.Inline), nil
	case KindKeystore:
		return []byte("keystore:" + r.Service + "/" + r.Account), nil
	default:
		return nil, ferrors.New(ferrors.KindConfig, "credential.Ref.MarshalText", "unknown kind")
	}
}

// UnmarshalText implements encoding.TextUnmarshaler, parsing the forms
// MarshalText produces.
func (r *Ref) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "" {
		*r = None()
		return nil
	}
	if rest, ok := cutPrefix(s, "keystore:"); ok {
		service, account, ok := cutAt(rest, '/')
		if !ok {
			return ferrors.New(ferrors.KindParse, "credential.Ref.UnmarshalText", "keystore reference must be service/account")
		}
		*r = Keystore(service, account)
		return nil
	}
	*r = Inline(s)
	return nil
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return s, false
	}
	return s[len(prefix):], true
}

func cutAt(s string, sep byte) (before, after string, found bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
