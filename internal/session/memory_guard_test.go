package session

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// flakyBackend is a MemoryBackend whose failure mode the test controls.
type flakyBackend struct {
	mu         sync.Mutex
	captureErr error
	recallErr  error
	recallText string
	captures   int
}

func (b *flakyBackend) CaptureTurn(_ context.Context, _, _, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.captures++
	return b.captureErr
}

func (b *flakyBackend) RecallContext(_ context.Context, _ string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.recallErr != nil {
		return "", false, b.recallErr
	}
	return b.recallText, b.recallText != "", nil
}

func TestMemoryGuardCaptureSuccess(t *testing.T) {
	backend := &flakyBackend{}
	mg := NewMemoryGuard(backend)

	if err := mg.CaptureTurn(context.Background(), "t1", "hello", "hi"); err != nil {
		t.Fatalf("CaptureTurn: %v", err)
	}
	if mg.IsDegraded() {
		t.Error("guard degraded after success")
	}
	if backend.captures != 1 {
		t.Errorf("captures = %d", backend.captures)
	}
}

func TestMemoryGuardSwallowsCaptureFailure(t *testing.T) {
	backend := &flakyBackend{captureErr: errors.New("journal locked")}
	mg := NewMemoryGuard(backend)

	if err := mg.CaptureTurn(context.Background(), "t1", "hello", "hi"); err != nil {
		t.Fatalf("capture failure must be swallowed, got %v", err)
	}
	if !mg.IsDegraded() {
		t.Error("guard should be degraded after failure")
	}
}

func TestMemoryGuardRecallFailureReturnsAbsence(t *testing.T) {
	backend := &flakyBackend{recallErr: errors.New("disk gone")}
	mg := NewMemoryGuard(backend)

	text, ok, err := mg.RecallContext(context.Background(), "what is my name")
	if err != nil || ok || text != "" {
		t.Fatalf("degraded recall = (%q, %v, %v), want absence", text, ok, err)
	}
	if !mg.IsDegraded() {
		t.Error("guard should be degraded after recall failure")
	}
}

func TestMemoryGuardRecallSuccessPassesThrough(t *testing.T) {
	backend := &flakyBackend{recallText: "User's name is Bob."}
	mg := NewMemoryGuard(backend)

	text, ok, err := mg.RecallContext(context.Background(), "name")
	if err != nil || !ok || text != "User's name is Bob." {
		t.Fatalf("recall = (%q, %v, %v)", text, ok, err)
	}
}

func TestMemoryGuardRecoversFromDegradation(t *testing.T) {
	backend := &flakyBackend{captureErr: errors.New("transient")}
	mg := NewMemoryGuard(backend)

	_ = mg.CaptureTurn(context.Background(), "t1", "a", "b")
	if !mg.IsDegraded() {
		t.Fatal("should be degraded")
	}

	backend.mu.Lock()
	backend.captureErr = nil
	backend.mu.Unlock()

	_ = mg.CaptureTurn(context.Background(), "t2", "c", "d")
	if mg.IsDegraded() {
		t.Error("successful capture should clear the degraded flag")
	}
}
