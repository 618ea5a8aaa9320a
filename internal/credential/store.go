package credential

import (
	"sync"

	ferrors "github.com/saorsa-labs/fae/internal/errors"
)

// Store resolves [Ref] values to their secret contents and manages their
// lifecycle in the backing keystore. Implementations are platform-specific;
// [NewMemoryStore] provides an in-process backend for tests and for
// platforms without a keystore integration wired in yet.
type Store interface {
	// Put stores value under account and returns a Ref pointing at it.
	Put(account, value string) (Ref, error)

	// Get resolves ref to its secret value. Returns ok=false, nil error for
	// a KindNone ref. A KindKeystore ref that cannot be found returns a
	// KindNotFound error.
	Get(ref Ref) (value string, ok bool, err error)

	// Delete removes the credential ref points to. Deleting a KindNone or
	// already-absent reference is not an error.
	Delete(ref Ref) error
}

// MemoryStore is an in-process [Store] backed by a map, guarded by a mutex.
// It is the default on platforms without a native keystore binding and the
// standard choice in tests.
type MemoryStore struct {
	mu      sync.Mutex
	service string
	values  map[string]string
}

// NewMemoryStore creates a MemoryStore that labels entries under service
// when producing Keystore refs (e.g. "com.saorsalabs.fae").
func NewMemoryStore(service string) *MemoryStore {
	return &MemoryStore{service: service, values: make(map[string]string)}
}

// Put implements [Store].
func (s *MemoryStore) Put(account, value string) (Ref, error) {
	if account == "" {
		return Ref{}, ferrors.New(ferrors.KindStorage, "credential.MemoryStore.Put", "account must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[account] = value
	return Keystore(s.service, account), nil
}

// Get implements [Store].
func (s *MemoryStore) Get(ref Ref) (string, bool, error) {
	switch ref.Kind {
	case KindNone:
		return "", false, nil
	case KindInline:
		return ref.Inline, true, nil
	case KindKeystore:
		s.mu.Lock()
		defer s.mu.Unlock()
		v, ok := s.values[ref.Account]
		if !ok {
			return "", false, ferrors.New(ferrors.KindNotFound, "credential.MemoryStore.Get", "no credential for account "+ref.Account)
		}
		return v, true, nil
	default:
		return "", false, ferrors.New(ferrors.KindStorage, "credential.MemoryStore.Get", "unknown ref kind")
	}
}

// Delete implements [Store].
func (s *MemoryStore) Delete(ref Ref) error {
	if ref.Kind != KindKeystore {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, ref.Account)
	return nil
}

// MigrateInline rewrites a legacy inline reference into keystore-backed
// storage: the plaintext value is stored under account and a Keystore ref is
// returned. Non-inline refs pass through unchanged.
func MigrateInline(s Store, account string, ref Ref) (Ref, error) {
	if !ref.IsInline() {
		return ref, nil
	}
	migrated, err := s.Put(account, ref.Inline)
	if err != nil {
		return ref, err
	}
	return migrated, nil
}
