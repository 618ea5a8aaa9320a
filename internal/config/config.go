// Package config provides the configuration schema, loader, and provider
// registry for the Fae speech assistant core.
package config

import (
	"github.com/saorsa-labs/fae/internal/credential"
	"github.com/saorsa-labs/fae/pkg/types"
)

// Config is the root configuration structure for Fae.
// It is typically loaded from a TOML file using [Load] or [LoadFromReader];
// [Default] supplies the baseline every layer overrides.
type Config struct {
	Audio        AudioConfig        `toml:"audio"`
	STT          STTConfig          `toml:"stt"`
	LLM          LLMConfig          `toml:"llm"`
	TTS          TTSConfig          `toml:"tts"`
	Conversation ConversationConfig `toml:"conversation"`
	Memory       MemoryConfig       `toml:"memory"`
	Scheduler    SchedulerConfig    `toml:"scheduler"`
	Permissions  PermissionsConfig  `toml:"permissions"`
	Onboarding   OnboardingConfig   `toml:"onboarding"`
	LogLevel     LogLevel           `toml:"log_level"`
}

// LogLevel controls log verbosity. Valid values: "debug", "info", "warn", "error".
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	return l == LogDebug || l == LogInfo || l == LogWarn || l == LogError
}

// AudioConfig holds microphone capture and playback settings.
type AudioConfig struct {
	// InputDevice names the capture device. Empty selects the system default.
	InputDevice string `toml:"input_device"`

	// OutputDevice names the playback device. Empty selects the system default.
	OutputDevice string `toml:"output_device"`

	// SampleRate in Hz for the capture stream (STT providers expect 16000).
	SampleRate int `toml:"sample_rate"`

	// FrameMs is the duration of a single capture frame in milliseconds.
	FrameMs int `toml:"frame_ms"`

	// PlaybackBufferMs bounds the TTS→playback channel by audio duration.
	// An underrun past this budget emits a pipeline.underrun event.
	PlaybackBufferMs int `toml:"playback_buffer_ms"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "whisper-native", "kokoro").
	Name string `toml:"name"`

	// Enabled marks the provider as usable. At least one LLM provider must
	// be enabled for the core to start.
	Enabled bool `toml:"enabled"`

	// APIKey references the provider's authentication secret. Inline values
	// are accepted for migration and rewritten to keystore-backed references
	// on the next [Config.Save].
	APIKey credential.Ref `toml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `toml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o").
	Model string `toml:"model"`

	// Options holds provider-specific values not covered by the standard
	// fields above.
	Options map[string]any `toml:"options"`
}

// STTConfig selects and tunes the speech-to-text stage.
type STTConfig struct {
	Provider ProviderEntry `toml:"provider"`

	// Language is the BCP-47 hint passed to the model ("" = auto-detect).
	Language string `toml:"language"`

	// TimeoutSeconds bounds a single transcription request.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// LLMConfig selects the agent's language model backends and loop limits.
type LLMConfig struct {
	// Providers lists the configured LLM backends, in fallback order.
	Providers []ProviderEntry `toml:"providers"`

	// DefaultProvider names the entry in Providers used first. Must refer to
	// an enabled provider.
	DefaultProvider string `toml:"default_provider"`

	// SystemPrompt is the assistant persona injected at the head of every
	// conversation.
	SystemPrompt string `toml:"system_prompt"`

	// MaxTurns bounds the agent loop's prompt→tool→prompt iterations.
	MaxTurns int `toml:"max_turns"`

	// MaxToolCallsPerTurn bounds how many tool calls a single model turn may
	// request before the loop stops with a budget error.
	MaxToolCallsPerTurn int `toml:"max_tool_calls_per_turn"`

	// RequestTimeoutSeconds bounds a single provider request.
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`

	// ToolTimeoutSeconds bounds a single tool execution.
	ToolTimeoutSeconds int `toml:"tool_timeout_seconds"`

	// ToolMode gates which tools are offered: "read_only" or "full".
	ToolMode types.ToolMode `toml:"tool_mode"`

	// ToolOutputMaxBytes is the byte budget applied to sanitised tool output.
	ToolOutputMaxBytes int `toml:"tool_output_max_bytes"`
}

// TTSConfig selects and tunes the text-to-speech stage.
type TTSConfig struct {
	Provider ProviderEntry `toml:"provider"`

	// Voice is the provider-specific voice identifier.
	Voice string `toml:"voice"`

	// Speed adjusts speaking rate (0.5–2.0, 1.0 = default).
	Speed float64 `toml:"speed"`

	// VoiceReference points at a cloning reference sample for backends that
	// support it.
	VoiceReference string `toml:"voice_reference"`

	// VoiceReferenceTranscript is the text spoken in VoiceReference.
	VoiceReferenceTranscript string `toml:"voice_reference_transcript"`
}

// ConversationConfig controls wake-word gating and barge-in policy.
type ConversationConfig struct {
	// GateEnabled drops transcripts until the wake phrase is heard. When
	// false the pipeline treats every final transcript as addressed to Fae.
	GateEnabled bool `toml:"gate_enabled"`

	// WakePhrase opens the gate (matched case-insensitively, whitespace- and
	// phonetically tolerant).
	WakePhrase string `toml:"wake_phrase"`

	// StopPhrase closes the gate again.
	StopPhrase string `toml:"stop_phrase"`

	// BargeIn, when true, cancels in-flight TTS playback as soon as fresh
	// user speech finalises. When false (the default) new speech queues as
	// the next turn.
	BargeIn bool `toml:"barge_in"`
}

// MemoryConfig holds settings for the journal-backed long-term memory layer.
type MemoryConfig struct {
	// RootDir is the per-user data root under which memory/ lives.
	RootDir string `toml:"root_dir"`

	// MaxResults caps how many records recall composes into context.
	MaxResults int `toml:"max_results"`

	// CaptureEnabled toggles asynchronous per-turn memory extraction.
	CaptureEnabled bool `toml:"capture_enabled"`
}

// SchedulerConfig tunes the background-task leader lease.
type SchedulerConfig struct {
	// RootDir is the directory holding the lease file and run-key ledger.
	RootDir string `toml:"root_dir"`

	// LeaseTTLMs is how long a leader holds the lease without renewal.
	LeaseTTLMs int64 `toml:"lease_ttl_ms"`

	// HeartbeatMs is the renewal cadence. Must be below LeaseTTLMs; a ratio
	// around 1/3 tolerates two missed heartbeats.
	HeartbeatMs int64 `toml:"heartbeat_ms"`
}

// PermissionsConfig persists the user's permission grant decisions.
type PermissionsConfig struct {
	// Grants maps permission kind wire strings to their state
	// ("unknown", "granted", "denied").
	Grants map[string]string `toml:"grants"`
}

// StateOf returns the recorded state for kind, defaulting to unknown.
func (p PermissionsConfig) StateOf(kind types.PermissionKind) types.PermissionState {
	if s, ok := p.Grants[string(kind)]; ok {
		return types.PermissionState(s)
	}
	return types.PermissionUnknown
}

// OnboardingConfig persists first-run lifecycle state.
type OnboardingConfig struct {
	// Phase is the current onboarding phase wire string
	// ("welcome", "permissions", "ready", "complete").
	Phase string `toml:"phase"`

	// Onboarded is the durable flag set by onboarding.complete.
	Onboarded bool `toml:"onboarded"`
}

// Default returns the baseline configuration that file and environment
// layers override.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:       16000,
			FrameMs:          20,
			PlaybackBufferMs: 1000,
		},
		STT: STTConfig{
			Provider:       ProviderEntry{Name: "whisper-native", Enabled: true},
			TimeoutSeconds: 30,
		},
		LLM: LLMConfig{
			Providers: []ProviderEntry{
				{Name: "openai", Enabled: true, Model: "gpt-4o-mini"},
			},
			DefaultProvider:       "openai",
			MaxTurns:              8,
			MaxToolCallsPerTurn:   8,
			RequestTimeoutSeconds: 60,
			ToolTimeoutSeconds:    30,
			ToolMode:              types.ToolModeFull,
			ToolOutputMaxBytes:    16 * 1024,
		},
		TTS: TTSConfig{
			Provider: ProviderEntry{Name: "kokoro", Enabled: true},
			Voice:    "af_heart",
			Speed:    1.0,
		},
		Conversation: ConversationConfig{
			GateEnabled: true,
			WakePhrase:  "hey fae",
			StopPhrase:  "goodbye fae",
		},
		Memory: MemoryConfig{
			MaxResults:     8,
			CaptureEnabled: true,
		},
		Scheduler: SchedulerConfig{
			LeaseTTLMs:  15_000,
			HeartbeatMs: 5_000,
		},
		Permissions: PermissionsConfig{Grants: map[string]string{}},
		Onboarding:  OnboardingConfig{Phase: "welcome"},
		LogLevel:    LogInfo,
	}
}
