package config_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/saorsa-labs/fae/internal/config"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load on missing file should use defaults: %v", err)
	}
	if cfg.Conversation.WakePhrase != "hey fae" {
		t.Errorf("wake_phrase = %q, want default", cfg.Conversation.WakePhrase)
	}
}

func TestLoadFromReaderOverlaysFileOnDefaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(`
log_level = "debug"

[conversation]
wake_phrase = "hi fae"
stop_phrase = "bye fae"
gate_enabled = true

[tts]
voice = "af_sky"
speed = 1.2
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.LogLevel != config.LogDebug {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
	if cfg.Conversation.WakePhrase != "hi fae" {
		t.Errorf("wake_phrase = %q", cfg.Conversation.WakePhrase)
	}
	// Untouched sections keep their defaults.
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("audio.sample_rate = %d, want default 16000", cfg.Audio.SampleRate)
	}
	if cfg.LLM.MaxTurns != 8 {
		t.Errorf("llm.max_turns = %d, want default 8", cfg.LLM.MaxTurns)
	}
}

func TestLoadFromReaderRejectsInvalid(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader(`
[llm]
tool_mode = "everything"
`))
	if err == nil {
		t.Fatal("expected validation failure for invalid tool_mode")
	}
}

func TestLoadFromReaderRejectsMalformedTOML(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader(`[conversation`))
	if err == nil {
		t.Fatal("expected parse failure")
	}
}

func TestEnvOverlayLogLevel(t *testing.T) {
	t.Setenv(config.LogEnvVar, "warn")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != config.LogWarn {
		t.Errorf("log_level = %q, want warn via %s", cfg.LogLevel, config.LogEnvVar)
	}
}

func TestEnvOverlayProviderAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	key := cfg.LLM.Providers[0].APIKey
	if !key.IsInline() || key.Inline != "sk-from-env" {
		t.Errorf("api_key = %v, want inline env value", key)
	}
}
