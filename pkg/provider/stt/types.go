package stt

import "github.com/saorsa-labs/fae/pkg/types"

// Transcription types are shared with the pipeline coordinator and the
// session log; they live in [types] and are aliased here so provider
// implementations and their tests can stay within this package's vocabulary.

// Transcript represents a speech-to-text result from an STT provider.
type Transcript = types.Transcript

// WordDetail holds per-word metadata from STT providers that support it.
type WordDetail = types.WordDetail

// KeywordBoost represents a keyword to boost in STT recognition.
type KeywordBoost = types.KeywordBoost
