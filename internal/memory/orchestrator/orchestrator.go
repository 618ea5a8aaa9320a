package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	ferrors "github.com/saorsa-labs/fae/internal/errors"
	"github.com/saorsa-labs/fae/internal/memory/journal"
	"golang.org/x/sync/singleflight"
)

// singleValuedTags lists tag keys for which at most one active record may
// exist at a time. A fresh candidate sharing one of these tags always
// supersedes the previous value, explicit supersession language or not.
var singleValuedTags = map[string]bool{
	"name": true,
}

// supersessionMarkers is the deliberately small set of phrasings treated as
// explicit supersession language in the user's own words.
var supersessionMarkers = []string{"actually", "now", "instead"}

// Orchestrator drives per-turn memory capture and recall against a journal
// [journal.Store]. Captures for the same conversation are serialised;
// concurrent recalls for the same query are collapsed through singleflight.
type Orchestrator struct {
	store      *journal.Store
	extractor  Extractor
	maxResults int

	captureMu sync.Mutex
	recalls   singleflight.Group
}

// Option configures an Orchestrator during construction.
type Option func(*Orchestrator)

// WithMaxResults caps how many records recall composes into context.
// Default is 8.
func WithMaxResults(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxResults = n
		}
	}
}

// New builds an Orchestrator over store. extractor may be nil, in which case
// the rule-based extractor is used.
func New(store *journal.Store, extractor Extractor, opts ...Option) *Orchestrator {
	if extractor == nil {
		extractor = RuleExtractor{}
	}
	o := &Orchestrator{
		store:      store,
		extractor:  extractor,
		maxResults: 8,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CaptureTurn extracts candidates from one conversation turn and folds them
// into the journal, superseding contradicted records.
//
// The capture is logically transactional: if any journal write fails, every
// record appended earlier in the same capture is archived through
// compensating audit entries before the error is returned.
func (o *Orchestrator) CaptureTurn(ctx context.Context, turnID, userText, assistantText string) error {
	const op = "memory.orchestrator.CaptureTurn"

	o.captureMu.Lock()
	defer o.captureMu.Unlock()

	if err := o.store.EnsureLayout(); err != nil {
		return err
	}

	extraction, err := o.extractor.Extract(ctx, userText, assistantText, "")
	if err != nil {
		// Extraction failure is non-fatal for the conversation; nothing was
		// written yet, so there is nothing to compensate.
		return ferrors.Wrap(ferrors.KindProvider, op, "extraction failed", err)
	}
	if len(extraction.Items) == 0 {
		return nil
	}

	var appended []string
	compensate := func(cause error) error {
		for _, id := range appended {
			if archiveErr := o.store.Archive(id, "capture "+turnID+" failed partway"); archiveErr != nil {
				slog.Warn("memory capture compensation failed", "record", id, "err", archiveErr)
			}
		}
		return cause
	}

	now := time.Now().Unix()
	for _, candidate := range extraction.Items {
		contradicted, err := o.findContradicted(candidate, userText)
		if err != nil {
			return compensate(err)
		}

		record := journal.Record{
			ID:        uuid.NewString(),
			Kind:      candidate.Kind,
			Text:      candidate.Text,
			Tags:      candidate.Tags,
			Status:    journal.StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		for _, old := range contradicted {
			record.Supersedes = append(record.Supersedes, old.ID)
		}

		if err := o.store.Append(record); err != nil {
			return compensate(err)
		}
		appended = append(appended, record.ID)

		if err := o.store.AppendAudit(journal.AuditEntry{
			RecordID: record.ID,
			Op:       journal.AuditInsert,
			AtEpoch:  now,
			Reason:   "turn " + turnID,
		}); err != nil {
			return compensate(err)
		}

		for _, old := range contradicted {
			if err := o.store.Supersede(old.ID, record.ID, "contradicted in turn "+turnID); err != nil {
				return compensate(err)
			}
		}
	}

	return nil
}

// findContradicted returns the active records the candidate contradicts: a
// shared tag key, a materially different text, and either a single-valued
// tag or explicit supersession language in the user's phrasing.
func (o *Orchestrator) findContradicted(candidate Candidate, userText string) ([]journal.Record, error) {
	explicit := containsSupersessionLanguage(userText)

	var contradicted []journal.Record
	seen := map[string]bool{}
	for _, tag := range candidate.Tags {
		if !explicit && !singleValuedTags[tag] {
			continue
		}
		active, err := o.store.FindActiveByTag(tag)
		if err != nil {
			return nil, err
		}
		for _, rec := range active {
			if seen[rec.ID] {
				continue
			}
			if normalise(rec.Text) == normalise(candidate.Text) {
				continue
			}
			seen[rec.ID] = true
			contradicted = append(contradicted, rec)
		}
	}
	return contradicted, nil
}

// RecallContext composes a short natural-language context from active
// records relevant to query. Returns ok=false when nothing relevant exists —
// callers must not treat absence as an error.
func (o *Orchestrator) RecallContext(ctx context.Context, query string) (string, bool, error) {
	v, err, _ := o.recalls.Do(strings.ToLower(strings.TrimSpace(query)), func() (any, error) {
		return o.recall(query)
	})
	if err != nil {
		return "", false, err
	}
	text := v.(string)
	return text, text != "", nil
}

func (o *Orchestrator) recall(query string) (string, error) {
	records, err := o.store.ListRecords()
	if err != nil {
		return "", err
	}

	terms := queryTerms(query)
	type scored struct {
		rec   journal.Record
		score int
	}
	var hits []scored
	for _, rec := range records {
		if rec.Status != journal.StatusActive {
			continue
		}
		score := 0
		for _, tag := range rec.Tags {
			if terms[tag] {
				score += 2
			}
		}
		if terms[string(rec.Kind)] {
			score++
		}
		if score > 0 {
			hits = append(hits, scored{rec: rec, score: score})
		}
	}
	if len(hits) == 0 {
		return "", nil
	}

	// Tag overlap first, then recency.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].rec.CreatedAt > hits[j].rec.CreatedAt
	})
	if len(hits) > o.maxResults {
		hits = hits[:o.maxResults]
	}

	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(strings.TrimRight(h.rec.Text, ". "))
		b.WriteString(".")
	}
	return b.String(), nil
}

func containsSupersessionLanguage(text string) bool {
	lowered := strings.ToLower(text)
	for _, marker := range supersessionMarkers {
		if containsWord(lowered, marker) {
			return true
		}
	}
	return false
}

// containsWord reports whether word appears in text on word boundaries, so
// "now" does not fire on "know" or "snow".
func containsWord(text, word string) bool {
	for i := 0; i+len(word) <= len(text); i++ {
		if text[i:i+len(word)] != word {
			continue
		}
		beforeOK := i == 0 || !isWordByte(text[i-1])
		after := i + len(word)
		afterOK := after == len(text) || !isWordByte(text[after])
		if beforeOK && afterOK {
			return true
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '\''
}

// normalise folds case and collapses whitespace for contradiction
// comparison.
func normalise(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func queryTerms(query string) map[string]bool {
	terms := map[string]bool{}
	for _, field := range strings.Fields(strings.ToLower(query)) {
		field = strings.Trim(field, ".,!?\"'")
		if field != "" {
			terms[field] = true
		}
	}
	// "favourite"/"favorite" and "prefer" questions should reach
	// preference-tagged records.
	for _, t := range []string{"prefer", "prefers", "favourite", "favorite", "drink", "drinks"} {
		if terms[t] {
			terms["preference"] = true
		}
	}
	return terms
}
