package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/saorsa-labs/fae/pkg/provider/llm"
)

// recordingStore is an in-memory TranscriptStore for tests.
type recordingStore struct {
	mu      sync.Mutex
	entries []TranscriptEntry
	err     error
}

func (s *recordingStore) WriteEntry(_ context.Context, _ string, entry TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *recordingStore) all() []TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TranscriptEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func newTestContextManager(t *testing.T) *ContextManager {
	t.Helper()
	return NewContextManager(ContextManagerConfig{
		MaxTokens:  100000,
		Summariser: &mockSummariser{},
	})
}

func TestConsolidateNowWritesNewMessages(t *testing.T) {
	store := &recordingStore{}
	cm := newTestContextManager(t)
	c := NewConsolidator(ConsolidatorConfig{
		Store:          store,
		ContextMgr:     cm,
		ConversationID: "conv-1",
	})

	if err := cm.AddMessages(context.Background(),
		llm.Message{Role: "user", Content: "remind me to water the plants"},
		llm.Message{Role: "assistant", Content: "Will do."},
	); err != nil {
		t.Fatal(err)
	}

	if err := c.ConsolidateNow(context.Background()); err != nil {
		t.Fatalf("ConsolidateNow: %v", err)
	}

	entries := store.all()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Role != "user" || entries[1].Role != "assistant" {
		t.Errorf("roles = %q, %q", entries[0].Role, entries[1].Role)
	}
}

func TestConsolidateNowSkipsAlreadyWritten(t *testing.T) {
	store := &recordingStore{}
	cm := newTestContextManager(t)
	c := NewConsolidator(ConsolidatorConfig{
		Store:          store,
		ContextMgr:     cm,
		ConversationID: "conv-1",
	})

	_ = cm.AddMessages(context.Background(), llm.Message{Role: "user", Content: "one"})
	if err := c.ConsolidateNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.ConsolidateNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(store.all()); got != 1 {
		t.Errorf("entries after repeated consolidation = %d, want 1", got)
	}

	_ = cm.AddMessages(context.Background(), llm.Message{Role: "assistant", Content: "two"})
	if err := c.ConsolidateNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(store.all()); got != 2 {
		t.Errorf("entries after new message = %d, want 2", got)
	}
}

func TestConsolidateReportsWriteErrors(t *testing.T) {
	store := &recordingStore{err: errors.New("disk full")}
	cm := newTestContextManager(t)
	c := NewConsolidator(ConsolidatorConfig{
		Store:          store,
		ContextMgr:     cm,
		ConversationID: "conv-1",
	})

	_ = cm.AddMessages(context.Background(), llm.Message{Role: "user", Content: "hello"})
	if err := c.ConsolidateNow(context.Background()); err == nil {
		t.Fatal("expected write error to surface")
	}
}

func TestPeriodicConsolidation(t *testing.T) {
	store := &recordingStore{}
	cm := newTestContextManager(t)
	c := NewConsolidator(ConsolidatorConfig{
		Store:          store,
		ContextMgr:     cm,
		ConversationID: "conv-1",
		Interval:       20 * time.Millisecond,
	})

	_ = cm.AddMessages(context.Background(), llm.Message{Role: "user", Content: "tick"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(store.all()) >= 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("periodic consolidation never fired")
}

func TestConsolidatorStopIsIdempotent(t *testing.T) {
	c := NewConsolidator(ConsolidatorConfig{
		Store:      &recordingStore{},
		ContextMgr: newTestContextManager(t),
	})
	c.Stop()
	c.Stop()
}
