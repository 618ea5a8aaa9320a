// Package onboarding implements the four-phase first-run lifecycle:
//
//	welcome → permissions → ready → complete
//
// The current phase is persisted in the onboarding section of the config and
// exposed to host shells via the onboarding.get_state, onboarding.advance,
// and onboarding.complete commands.
package onboarding

import (
	"strings"

	ferrors "github.com/saorsa-labs/fae/internal/errors"
)

// Phase is one of the four onboarding phases. Wire strings are the lowercase
// phase names.
type Phase int

const (
	// PhaseWelcome is the initial welcome screen.
	PhaseWelcome Phase = iota

	// PhasePermissions is where the user grants microphone, contacts, etc.
	PhasePermissions

	// PhaseReady shows the personalised greeting and listening indicator.
	PhaseReady

	// PhaseComplete means the user has finished the flow.
	PhaseComplete
)

// String returns the canonical wire-format string for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseWelcome:
		return "welcome"
	case PhasePermissions:
		return "permissions"
	case PhaseReady:
		return "ready"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// ParsePhase parses a phase from its wire-format string. Unrecognised input
// returns ok=false.
func ParsePhase(raw string) (Phase, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "welcome":
		return PhaseWelcome, true
	case "permissions":
		return PhasePermissions, true
	case "ready":
		return PhaseReady, true
	case "complete":
		return PhaseComplete, true
	default:
		return PhaseWelcome, false
	}
}

// Next returns the phase following p, or ok=false when p is already
// PhaseComplete.
func (p Phase) Next() (Phase, bool) {
	switch p {
	case PhaseWelcome:
		return PhasePermissions, true
	case PhasePermissions:
		return PhaseReady, true
	case PhaseReady:
		return PhaseComplete, true
	default:
		return PhaseComplete, false
	}
}

// Store persists onboarding state between runs. The config layer provides
// the production implementation; tests use an in-memory one.
type Store interface {
	// Phase returns the persisted phase.
	Phase() Phase

	// SetPhase persists phase.
	SetPhase(p Phase) error

	// SetOnboarded persists the durable "onboarded" flag.
	SetOnboarded(done bool) error
}

// Machine drives the onboarding lifecycle over a [Store].
type Machine struct {
	store Store
}

// NewMachine wraps store.
func NewMachine(store Store) *Machine {
	return &Machine{store: store}
}

// State returns the current phase.
func (m *Machine) State() Phase {
	return m.store.Phase()
}

// Advance moves to the next phase and persists it. Advancing past
// PhaseComplete is an error.
func (m *Machine) Advance() (Phase, error) {
	const op = "onboarding.Machine.Advance"

	current := m.store.Phase()
	next, ok := current.Next()
	if !ok {
		return current, ferrors.New(ferrors.KindConfig, op, "onboarding is already complete")
	}
	if err := m.store.SetPhase(next); err != nil {
		return current, err
	}
	if next == PhaseComplete {
		if err := m.store.SetOnboarded(true); err != nil {
			return next, err
		}
	}
	return next, nil
}

// Complete jumps directly to PhaseComplete from any phase and sets the
// durable onboarded flag. Completing an already-complete flow is a no-op.
func (m *Machine) Complete() (Phase, error) {
	if err := m.store.SetPhase(PhaseComplete); err != nil {
		return m.store.Phase(), err
	}
	if err := m.store.SetOnboarded(true); err != nil {
		return PhaseComplete, err
	}
	return PhaseComplete, nil
}
