package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// audio-device changes require a pipeline restart and are deliberately
// absent here.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ConversationChanged is true if the wake phrase, stop phrase, gate
	// toggle, or barge-in policy changed.
	ConversationChanged bool

	// ToolModeChanged is true if llm.tool_mode changed.
	ToolModeChanged bool

	// VoiceChanged is true if the TTS voice, speed, or reference changed.
	VoiceChanged bool

	// MemoryCaptureChanged is true if memory.capture_enabled flipped.
	MemoryCaptureChanged bool

	// PermissionsChanged is true if any permission grant state changed.
	PermissionsChanged bool
}

// Empty reports whether no hot-reloadable field changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.ConversationChanged && !d.ToolModeChanged &&
		!d.VoiceChanged && !d.MemoryCaptureChanged && !d.PermissionsChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}

	if old.Conversation != new.Conversation {
		d.ConversationChanged = true
	}

	if old.LLM.ToolMode != new.LLM.ToolMode {
		d.ToolModeChanged = true
	}

	if old.TTS.Voice != new.TTS.Voice ||
		old.TTS.Speed != new.TTS.Speed ||
		old.TTS.VoiceReference != new.TTS.VoiceReference ||
		old.TTS.VoiceReferenceTranscript != new.TTS.VoiceReferenceTranscript {
		d.VoiceChanged = true
	}

	if old.Memory.CaptureEnabled != new.Memory.CaptureEnabled {
		d.MemoryCaptureChanged = true
	}

	if !equalGrants(old.Permissions.Grants, new.Permissions.Grants) {
		d.PermissionsChanged = true
	}

	return d
}

func equalGrants(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
