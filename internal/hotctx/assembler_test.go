package hotctx_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/saorsa-labs/fae/internal/hotctx"
	"github.com/saorsa-labs/fae/pkg/provider/llm"
)

// stubRecaller answers recalls with a fixed result after an optional delay.
type stubRecaller struct {
	mu    sync.Mutex
	text  string
	err   error
	delay time.Duration
	calls int
}

func (r *stubRecaller) RecallContext(ctx context.Context, _ string) (string, bool, error) {
	r.mu.Lock()
	r.calls++
	text, err, delay := r.text, r.err, r.delay
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
	if err != nil {
		return "", false, err
	}
	return text, text != "", nil
}

func (r *stubRecaller) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// stubTranscript returns a fixed conversation tail.
type stubTranscript struct {
	messages []llm.Message
}

func (s *stubTranscript) Recent(n int) []llm.Message {
	if len(s.messages) > n {
		return s.messages[len(s.messages)-n:]
	}
	return s.messages
}

func TestAssembleGathersAllComponents(t *testing.T) {
	recaller := &stubRecaller{text: "User's name is Bob."}
	transcript := &stubTranscript{messages: []llm.Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	}}

	a := hotctx.NewAssembler(recaller, transcript)
	hctx, err := a.Assemble(context.Background(), "what is my name")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if hctx.MemoryContext != "User's name is Bob." {
		t.Errorf("memory context = %q", hctx.MemoryContext)
	}
	if len(hctx.RecentTranscript) != 2 {
		t.Errorf("transcript entries = %d", len(hctx.RecentTranscript))
	}
	if hctx.AssemblyDuration <= 0 {
		t.Error("assembly duration not recorded")
	}
}

func TestAssembleDegradesOnRecallError(t *testing.T) {
	recaller := &stubRecaller{err: errors.New("journal locked")}
	a := hotctx.NewAssembler(recaller, nil)

	hctx, err := a.Assemble(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Assemble must not fail on recall errors: %v", err)
	}
	if hctx.MemoryContext != "" {
		t.Errorf("memory context = %q, want empty on failure", hctx.MemoryContext)
	}
}

func TestAssembleDegradesOnSlowRecall(t *testing.T) {
	recaller := &stubRecaller{text: "too slow", delay: 500 * time.Millisecond}
	a := hotctx.NewAssembler(recaller, nil, hotctx.WithTimeout(20*time.Millisecond))

	start := time.Now()
	hctx, err := a.Assemble(context.Background(), "anything")
	if err != nil {
		t.Fatal(err)
	}
	if hctx.MemoryContext != "" {
		t.Error("slow recall should be dropped, not awaited")
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("assembly took %v, want bounded by timeout", elapsed)
	}
}

func TestAssembleWithNilComponents(t *testing.T) {
	a := hotctx.NewAssembler(nil, nil)
	hctx, err := a.Assemble(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if hctx.MemoryContext != "" || len(hctx.RecentTranscript) != 0 {
		t.Errorf("expected empty context: %+v", hctx)
	}
}

func TestAssembleRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := hotctx.NewAssembler(&stubRecaller{}, nil)
	if _, err := a.Assemble(ctx, "hello"); err == nil {
		t.Fatal("expected error for already-cancelled context")
	}
}

func TestAssembleUsesPrefetchedResult(t *testing.T) {
	recaller := &stubRecaller{text: "User prefers coffee."}
	prefetcher := hotctx.NewPreFetcher(recaller)

	// Observe a partial; wait for the background recall.
	prefetcher.Observe(context.Background(), "what do I prefer")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := prefetcher.Take("what do I prefer to drink"); ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	liveCallsBefore := recaller.callCount()

	a := hotctx.NewAssembler(recaller, nil, hotctx.WithPreFetcher(prefetcher))
	hctx, err := a.Assemble(context.Background(), "what do I prefer to drink")
	if err != nil {
		t.Fatal(err)
	}
	if hctx.MemoryContext != "User prefers coffee." {
		t.Errorf("memory context = %q", hctx.MemoryContext)
	}
	if recaller.callCount() != liveCallsBefore {
		t.Error("a prefetch hit must skip the live recall")
	}
}

func TestMaxEntriesCapsTranscript(t *testing.T) {
	var msgs []llm.Message
	for i := 0; i < 30; i++ {
		msgs = append(msgs, llm.Message{Role: "user", Content: "m"})
	}
	a := hotctx.NewAssembler(nil, &stubTranscript{messages: msgs}, hotctx.WithMaxEntries(5))

	hctx, err := a.Assemble(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if len(hctx.RecentTranscript) != 5 {
		t.Errorf("transcript entries = %d, want 5", len(hctx.RecentTranscript))
	}
}
