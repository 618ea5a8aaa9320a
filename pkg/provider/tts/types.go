package tts

import "github.com/saorsa-labs/fae/pkg/types"

// VoiceProfile describes a TTS voice configuration. It is shared with the
// pipeline coordinator and aliased here for provider implementations.
type VoiceProfile = types.VoiceProfile
