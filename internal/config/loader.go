package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/saorsa-labs/fae/internal/credential"
	ferrors "github.com/saorsa-labs/fae/internal/errors"
)

// LogEnvVar is the single environment variable controlling the log filter.
// An explicit value beats the default filter that suppresses noisy
// dependency logs.
const LogEnvVar = "FAE_LOG"

// Load builds the effective configuration for path: defaults first, then the
// TOML file (if it exists), then environment overlays, then validation.
// A missing file is not an error — the defaults simply apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := decodeInto(cfg, f); err != nil {
			return nil, ferrors.Wrap(ferrors.KindConfig, "config.Load", fmt.Sprintf("parse %q", path), err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, ferrors.Wrap(ferrors.KindStorage, "config.Load", fmt.Sprintf("open %q", path), err)
	}

	applyEnvOverlay(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a TOML config from r on top of the defaults and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeInto(cfg, r); err != nil {
		return nil, ferrors.Wrap(ferrors.KindConfig, "config.LoadFromReader", "decode toml", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeInto(cfg *Config, r io.Reader) error {
	_, err := toml.NewDecoder(r).Decode(cfg)
	return err
}

// applyEnvOverlay applies the supported environment variables on top of the
// file layer. Provider API keys follow the <NAME>_API_KEY convention
// (e.g. OPENAI_API_KEY) and arrive as inline refs eligible for keystore
// migration on the next Save.
func applyEnvOverlay(cfg *Config) {
	if v := os.Getenv(LogEnvVar); v != "" {
		if lvl := LogLevel(strings.ToLower(v)); lvl.IsValid() {
			cfg.LogLevel = lvl
		}
	}
	if v := os.Getenv("FAE_MEMORY_ROOT"); v != "" {
		cfg.Memory.RootDir = v
	}
	if v := os.Getenv("FAE_SCHEDULER_ROOT"); v != "" {
		cfg.Scheduler.RootDir = v
	}
	for i := range cfg.LLM.Providers {
		p := &cfg.LLM.Providers[i]
		envName := strings.ToUpper(strings.ReplaceAll(p.Name, "-", "_")) + "_API_KEY"
		if v := os.Getenv(envName); v != "" && !p.APIKey.IsSet() {
			p.APIKey = credential.Inline(v)
		}
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error of kind Config listing all failures found.
func Validate(cfg *Config) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, ferrors.New(ferrors.KindConfig, "config.Validate", fmt.Sprintf(format, args...)))
	}

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		fail("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel)
	}

	// Audio
	if cfg.Audio.SampleRate <= 0 {
		fail("audio.sample_rate must be > 0")
	}
	if cfg.Audio.FrameMs <= 0 {
		fail("audio.frame_ms must be > 0")
	}

	// STT
	if cfg.STT.TimeoutSeconds <= 0 {
		fail("stt.timeout_seconds must be > 0")
	}

	// LLM: at least one enabled provider, and default_provider must refer
	// to an enabled one.
	enabled := make(map[string]bool, len(cfg.LLM.Providers))
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			fail("llm.providers[%d].name is required", i)
			continue
		}
		if p.Enabled {
			enabled[p.Name] = true
		}
	}
	if len(enabled) == 0 {
		fail("llm.providers must contain at least one enabled provider")
	}
	if cfg.LLM.DefaultProvider == "" {
		fail("llm.default_provider is required")
	} else if len(enabled) > 0 && !enabled[cfg.LLM.DefaultProvider] {
		fail("llm.default_provider %q does not refer to an enabled provider", cfg.LLM.DefaultProvider)
	}
	if cfg.LLM.MaxTurns <= 0 {
		fail("llm.max_turns must be > 0")
	}
	if cfg.LLM.MaxToolCallsPerTurn <= 0 {
		fail("llm.max_tool_calls_per_turn must be > 0")
	}
	if cfg.LLM.RequestTimeoutSeconds <= 0 {
		fail("llm.request_timeout_seconds must be > 0")
	}
	if cfg.LLM.ToolTimeoutSeconds <= 0 {
		fail("llm.tool_timeout_seconds must be > 0")
	}
	if !cfg.LLM.ToolMode.IsValid() {
		fail("llm.tool_mode %q is invalid; valid values: read_only, full", cfg.LLM.ToolMode)
	}

	// TTS
	if cfg.TTS.Speed != 0 && (cfg.TTS.Speed < 0.5 || cfg.TTS.Speed > 2.0) {
		fail("tts.speed %.2f is out of range [0.5, 2.0]", cfg.TTS.Speed)
	}

	// Conversation gating
	if cfg.Conversation.GateEnabled {
		if strings.TrimSpace(cfg.Conversation.WakePhrase) == "" {
			fail("conversation.wake_phrase must be non-empty when gating is enabled")
		}
		if strings.TrimSpace(cfg.Conversation.StopPhrase) == "" {
			fail("conversation.stop_phrase must be non-empty when gating is enabled")
		}
	}

	// Memory
	if cfg.Memory.MaxResults <= 0 {
		fail("memory.max_results must be > 0")
	}

	// Scheduler
	if cfg.Scheduler.LeaseTTLMs <= 0 {
		fail("scheduler.lease_ttl_ms must be > 0")
	}
	if cfg.Scheduler.HeartbeatMs <= 0 {
		fail("scheduler.heartbeat_ms must be > 0")
	} else if cfg.Scheduler.HeartbeatMs >= cfg.Scheduler.LeaseTTLMs {
		fail("scheduler.heartbeat_ms (%d) must be below scheduler.lease_ttl_ms (%d)", cfg.Scheduler.HeartbeatMs, cfg.Scheduler.LeaseTTLMs)
	}

	// Permissions
	for k, v := range cfg.Permissions.Grants {
		switch v {
		case "unknown", "granted", "denied":
		default:
			fail("permissions.grants[%q] %q is invalid; valid values: unknown, granted, denied", k, v)
		}
	}

	return ferrors.Join(errs...)
}

// Save writes cfg to path atomically: serialize to a sibling temp file,
// flush, rename over the target, then fsync the parent directory so the
// rename itself is durable.
func Save(cfg *Config, path string) error {
	const op = "config.Save"

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ferrors.Wrap(ferrors.KindStorage, op, "create config dir", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return ferrors.Wrap(ferrors.KindStorage, op, "create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after successful rename

	enc := toml.NewEncoder(tmp)
	if err := enc.Encode(cfg); err != nil {
		tmp.Close()
		return ferrors.Wrap(ferrors.KindStorage, op, "encode toml", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ferrors.Wrap(ferrors.KindStorage, op, "fsync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return ferrors.Wrap(ferrors.KindStorage, op, "close temp file", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return ferrors.Wrap(ferrors.KindStorage, op, "rename over target", err)
	}

	d, err := os.Open(dir)
	if err != nil {
		return ferrors.Wrap(ferrors.KindStorage, op, "open parent dir", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return ferrors.Wrap(ferrors.KindStorage, op, "fsync parent dir", err)
	}
	return nil
}
