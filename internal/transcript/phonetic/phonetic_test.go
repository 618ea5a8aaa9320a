package phonetic_test

import (
	"testing"

	"github.com/saorsa-labs/fae/internal/transcript/phonetic"
)

func TestMatcher_SplitNameMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	// "cat ree ona" is a syllable-split n-gram that should match "Catriona"
	// through the concatenated Jaro-Winkler strategy.
	entities := []string{"Catriona", "Morag", "Tower of London"}

	corrected, conf, matched := m.Match("cat ree ona", entities)
	if !matched {
		t.Fatalf("Match(%q, entities): matched=false, want true", "cat ree ona")
	}
	if corrected != "Catriona" {
		t.Errorf("Match(%q): corrected=%q, want %q", "cat ree ona", corrected, "Catriona")
	}
	if conf < 0.7 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.7", "cat ree ona", conf)
	}
}

func TestMatcher_MultiWordEntityMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	entities := []string{"Tower of London", "Catriona", "Morag"}

	// "tower of lundun" should match the multi-word entity "Tower of London".
	corrected, conf, matched := m.Match("tower of lundun", entities)
	if !matched {
		t.Fatalf("Match(%q, entities): matched=false, want true", "tower of lundun")
	}
	if corrected != "Tower of London" {
		t.Errorf("Match(%q): corrected=%q, want %q", "tower of lundun", corrected, "Tower of London")
	}
	if conf < 0.7 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.7", "tower of lundun", conf)
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	entities := []string{"Catriona", "Morag"}

	corrected, conf, matched := m.Match("hello", entities)
	if matched {
		t.Fatalf("Match(%q, entities): matched=true, want false", "hello")
	}
	if corrected != "hello" {
		t.Errorf("Match(%q): corrected=%q, want original word %q", "hello", corrected, "hello")
	}
	if conf != 0 {
		t.Errorf("Match(%q): confidence=%f, want 0", "hello", conf)
	}
}

func TestMatcher_CaseInsensitivity(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	entities := []string{"Catriona"}

	// Uppercased input should still match.
	corrected, _, matched := m.Match("CATRIONA", entities)
	if !matched {
		t.Fatalf("Match(%q, entities): matched=false, want true", "CATRIONA")
	}
	// Should return the original entity casing.
	if corrected != "Catriona" {
		t.Errorf("Match(%q): corrected=%q, want %q", "CATRIONA", corrected, "Catriona")
	}
}

func TestMatcher_ExactMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	entities := []string{"Morag", "Catriona"}

	// Exact case-insensitive match should return high confidence.
	corrected, conf, matched := m.Match("morag", entities)
	if !matched {
		t.Fatalf("Match(%q, entities): matched=false, want true", "morag")
	}
	if corrected != "Morag" {
		t.Errorf("Match(%q): corrected=%q, want %q", "morag", corrected, "Morag")
	}
	if conf < 0.9 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.9 for near-exact match", "morag", conf)
	}
}

func TestMatcher_PhoneticThresholdFiltering(t *testing.T) {
	t.Parallel()

	// Set a very high phonetic threshold so near-matches are rejected.
	m := phonetic.New(
		phonetic.WithPhoneticThreshold(0.99),
		phonetic.WithFuzzyThreshold(0.99),
	)
	entities := []string{"Catriona"}

	_, _, matched := m.Match("cat ree ona", entities)
	if matched {
		t.Fatal("Match with threshold=0.99 should reject near-matches, got matched=true")
	}
}

func TestMatcher_EmptyEntities(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	corrected, conf, matched := m.Match("katrina", nil)
	if matched {
		t.Fatal("Match with nil entities should return matched=false")
	}
	if corrected != "katrina" {
		t.Errorf("corrected=%q, want original", corrected)
	}
	if conf != 0 {
		t.Errorf("conf=%f, want 0", conf)
	}
}

func TestMatcher_EmptyWord(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	corrected, conf, matched := m.Match("", []string{"Catriona"})
	if matched {
		t.Fatal("Match with empty word should return matched=false")
	}
	if corrected != "" {
		t.Errorf("corrected=%q, want empty string", corrected)
	}
	if conf != 0 {
		t.Errorf("conf=%f, want 0", conf)
	}
}

func TestWithOptions(t *testing.T) {
	t.Parallel()

	// Verify that options are applied without panicking.
	m := phonetic.New(
		phonetic.WithPhoneticThreshold(0.75),
		phonetic.WithFuzzyThreshold(0.90),
	)
	if m == nil {
		t.Fatal("New returned nil")
	}
}
