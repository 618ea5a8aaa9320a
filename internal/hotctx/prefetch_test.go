package hotctx_test

import (
	"context"
	"testing"
	"time"

	"github.com/saorsa-labs/fae/internal/hotctx"
)

func waitForHit(t *testing.T, p *hotctx.PreFetcher, utterance string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if text, ok := p.Take(utterance); ok {
			return text
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("prefetch for %q never completed", utterance)
	return ""
}

func TestPreFetcherCachesByPartial(t *testing.T) {
	recaller := &stubRecaller{text: "User's name is Bob."}
	p := hotctx.NewPreFetcher(recaller)

	p.Observe(context.Background(), "what is my")
	got := waitForHit(t, p, "what is my name")
	if got != "User's name is Bob." {
		t.Errorf("Take = %q", got)
	}
}

func TestPreFetcherIgnoresShortPartials(t *testing.T) {
	recaller := &stubRecaller{text: "something"}
	p := hotctx.NewPreFetcher(recaller)

	p.Observe(context.Background(), "what is")
	time.Sleep(50 * time.Millisecond)
	if recaller.callCount() != 0 {
		t.Error("two-word partials must not trigger recalls")
	}
}

func TestPreFetcherDeduplicatesObservations(t *testing.T) {
	recaller := &stubRecaller{text: "cached"}
	p := hotctx.NewPreFetcher(recaller)

	ctx := context.Background()
	p.Observe(ctx, "what is my name")
	waitForHit(t, p, "what is my name")

	calls := recaller.callCount()
	p.Observe(ctx, "what is my name")
	p.Observe(ctx, "What  Is  My  Name") // same after normalisation
	time.Sleep(50 * time.Millisecond)

	if recaller.callCount() != calls {
		t.Errorf("repeated observations re-fetched: %d → %d", calls, recaller.callCount())
	}
}

func TestPreFetcherMissOnUnrelatedUtterance(t *testing.T) {
	recaller := &stubRecaller{text: "cached"}
	p := hotctx.NewPreFetcher(recaller)

	p.Observe(context.Background(), "what is my name")
	waitForHit(t, p, "what is my name")

	if _, ok := p.Take("set a timer for five minutes"); ok {
		t.Error("unrelated utterance must miss")
	}
}

func TestPreFetcherReset(t *testing.T) {
	recaller := &stubRecaller{text: "cached"}
	p := hotctx.NewPreFetcher(recaller)

	p.Observe(context.Background(), "what is my name")
	waitForHit(t, p, "what is my name")

	p.Reset()
	if _, ok := p.Take("what is my name"); ok {
		t.Error("Take after Reset should miss")
	}
}
