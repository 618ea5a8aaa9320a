package phonetic

import "strings"

// EntitySet holds precomputed phonetic codes and token counts for an entity
// list, so repeated window comparisons over the same list skip the
// per-entity Double Metaphone work.
//
// An EntitySet is immutable after construction and safe for concurrent use.
type EntitySet struct {
	entities []preparedEntity
	maxWords int
}

type preparedEntity struct {
	original string
	lower    string
	tokens   []string
	codes    map[string]struct{}
}

// PrepareEntities precomputes phonetic codes for entities. Blank entries are
// dropped.
func PrepareEntities(entities []string) *EntitySet {
	es := &EntitySet{entities: make([]preparedEntity, 0, len(entities))}
	for _, entity := range entities {
		lower := strings.ToLower(strings.TrimSpace(entity))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		es.entities = append(es.entities, preparedEntity{
			original: entity,
			lower:    lower,
			tokens:   tokens,
			codes:    codesForTokens(tokens),
		})
		if len(tokens) > es.maxWords {
			es.maxWords = len(tokens)
		}
	}
	return es
}

// MaxWords returns the token count of the longest entity, bounding the
// n-gram window the correction pipeline slides over the transcript.
func (es *EntitySet) MaxWords() int { return es.maxWords }

// MatchPrepared is [Matcher.Match] against a precomputed [EntitySet].
func (m *Matcher) MatchPrepared(word string, es *EntitySet) (corrected string, confidence float64, matched bool) {
	if es == nil || len(es.entities) == 0 || strings.TrimSpace(word) == "" {
		return word, 0, false
	}

	wordLower := strings.ToLower(strings.TrimSpace(word))
	wordTokens := strings.Fields(wordLower)
	inputCodes := codesForTokens(wordTokens)

	type candidate struct {
		entity   string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, entity := range es.entities {
		phoneticMatch := codesOverlap(inputCodes, entity.codes)
		jwScore := bestJWScore(wordTokens, entity.tokens, wordLower, entity.lower)

		if phoneticMatch {
			if jwScore >= m.phoneticThreshold {
				if !best.phonetic || jwScore > best.score {
					best = candidate{entity: entity.original, score: jwScore, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if jwScore >= m.fuzzyThreshold && jwScore > best.score {
				best = candidate{entity: entity.original, score: jwScore, phonetic: false}
			}
		}
	}

	if best.entity != "" {
		return best.entity, best.score, true
	}
	return word, 0, false
}
