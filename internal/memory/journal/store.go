package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"
	ferrors "github.com/saorsa-labs/fae/internal/errors"
)

const (
	manifestFile = "manifest.toml"
	recordsFile  = "records.jsonl"
	auditFile    = "audit.jsonl"
	lockFile     = ".journal.lock"

	// failpointFile injects a failure between the forward rewrite and the
	// manifest bump during migration. Test-only; never written by the core.
	failpointFile = ".fail_migration"
)

// Store is the journal-backed memory repository rooted at <root>/memory.
//
// Writers take an exclusive OS file lock for the duration of each mutation;
// readers take a shared lock, so a reader never observes a torn line. All
// append paths fsync before returning.
type Store struct {
	dir  string
	lock *flock.Flock
}

// New creates a Store for the memory directory under rootDir. No I/O happens
// until [Store.EnsureLayout] or the first operation.
func New(rootDir string) *Store {
	dir := filepath.Join(rootDir, "memory")
	return &Store{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, lockFile)),
	}
}

// Dir returns the memory directory this store operates on.
func (s *Store) Dir() string { return s.dir }

// EnsureLayout creates the memory directory, an initial manifest, and empty
// record/audit journals if any are missing. Safe to call repeatedly.
func (s *Store) EnsureLayout() error {
	const op = "memory.journal.EnsureLayout"

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return ferrors.Wrap(ferrors.KindStorage, op, "create memory dir", err)
	}

	manifestPath := filepath.Join(s.dir, manifestFile)
	if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
		m := Manifest{
			SchemaVersion: CurrentSchemaVersion,
			CreatedAt:     time.Now().Unix(),
			CreatedBy:     "fae",
		}
		if err := writeManifest(manifestPath, m); err != nil {
			return ferrors.Wrap(ferrors.KindStorage, op, "write initial manifest", err)
		}
	}

	for _, name := range []string{recordsFile, auditFile} {
		path := filepath.Join(s.dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return ferrors.Wrap(ferrors.KindStorage, op, "create "+name, err)
		}
		f.Close()
	}
	return nil
}

// Append writes rec as one JSON line to records.jsonl and fsyncs before
// returning. The record's UpdatedAt is bumped to at least CreatedAt.
func (s *Store) Append(rec Record) error {
	const op = "memory.journal.Append"

	if rec.ID == "" {
		return ferrors.New(ferrors.KindStorage, op, "record id must not be empty")
	}
	if rec.Status == "" {
		rec.Status = StatusActive
	}
	if rec.UpdatedAt < rec.CreatedAt {
		rec.UpdatedAt = rec.CreatedAt
	}

	if err := s.withExclusiveLock(op, func() error {
		return appendJSONLine(filepath.Join(s.dir, recordsFile), rec)
	}); err != nil {
		return err
	}
	return nil
}

// AppendAudit writes entry as one JSON line to audit.jsonl and fsyncs.
func (s *Store) AppendAudit(entry AuditEntry) error {
	const op = "memory.journal.AppendAudit"
	return s.withExclusiveLock(op, func() error {
		return appendJSONLine(filepath.Join(s.dir, auditFile), entry)
	})
}

// ListRecords scans records.jsonl and returns each record in first-appearance
// order. A later line sharing an ID with an earlier one replaces it in place,
// so the journal stays append-only while callers always see the latest state.
func (s *Store) ListRecords() ([]Record, error) {
	const op = "memory.journal.ListRecords"

	var records []Record
	err := s.withSharedLock(op, func() error {
		var err error
		records, err = readRecords(filepath.Join(s.dir, recordsFile))
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ListAudit scans audit.jsonl in file order.
func (s *Store) ListAudit() ([]AuditEntry, error) {
	const op = "memory.journal.ListAudit"

	var entries []AuditEntry
	err := s.withSharedLock(op, func() error {
		f, err := os.Open(filepath.Join(s.dir, auditFile))
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for sc.Scan() {
			line := sc.Bytes()
			if len(line) == 0 {
				continue
			}
			var e AuditEntry
			if err := json.Unmarshal(line, &e); err != nil {
				continue // a torn trailing line is not fatal for audit reads
			}
			entries = append(entries, e)
		}
		return sc.Err()
	})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindStorage, op, "scan audit log", err)
	}
	return entries, nil
}

// FindActiveByTag returns records carrying tag with status active, in
// journal order.
func (s *Store) FindActiveByTag(tag string) ([]Record, error) {
	all, err := s.ListRecords()
	if err != nil {
		return nil, err
	}
	var out []Record
	for i := range all {
		if all[i].Status == StatusActive && all[i].HasTag(tag) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Supersede marks the record oldID as superseded by newID and appends a
// supersede audit entry. Both records must already exist in the journal.
func (s *Store) Supersede(oldID, newID, reason string) error {
	const op = "memory.journal.Supersede"

	return s.withExclusiveLock(op, func() error {
		recordsPath := filepath.Join(s.dir, recordsFile)
		records, err := readRecords(recordsPath)
		if err != nil {
			return err
		}

		var oldRec *Record
		newExists := false
		for i := range records {
			switch records[i].ID {
			case oldID:
				oldRec = &records[i]
			case newID:
				newExists = true
			}
		}
		if oldRec == nil {
			return ferrors.New(ferrors.KindNotFound, op, "record "+oldID+" not found")
		}
		if !newExists {
			return ferrors.New(ferrors.KindNotFound, op, "record "+newID+" not found")
		}

		now := time.Now().Unix()
		updated := *oldRec
		updated.Status = StatusSuperseded
		updated.UpdatedAt = now
		if !containsString(updated.SupersededBy, newID) {
			updated.SupersededBy = append(updated.SupersededBy, newID)
		}

		if err := appendJSONLine(recordsPath, updated); err != nil {
			return err
		}
		return appendJSONLine(filepath.Join(s.dir, auditFile), AuditEntry{
			RecordID: oldID,
			Op:       AuditSupersede,
			AtEpoch:  now,
			Reason:   reason,
		})
	})
}

// Archive marks the record id as archived and appends an archive audit
// entry. Used by capture compensation when a multi-write capture fails
// partway through.
func (s *Store) Archive(id, reason string) error {
	const op = "memory.journal.Archive"

	return s.withExclusiveLock(op, func() error {
		recordsPath := filepath.Join(s.dir, recordsFile)
		records, err := readRecords(recordsPath)
		if err != nil {
			return err
		}
		var rec *Record
		for i := range records {
			if records[i].ID == id {
				rec = &records[i]
			}
		}
		if rec == nil {
			return ferrors.New(ferrors.KindNotFound, op, "record "+id+" not found")
		}

		now := time.Now().Unix()
		updated := *rec
		updated.Status = StatusArchived
		updated.UpdatedAt = now

		if err := appendJSONLine(recordsPath, updated); err != nil {
			return err
		}
		return appendJSONLine(filepath.Join(s.dir, auditFile), AuditEntry{
			RecordID: id,
			Op:       AuditArchive,
			AtEpoch:  now,
			Reason:   reason,
		})
	})
}

// SchemaVersion reads the manifest's schema version.
func (s *Store) SchemaVersion() (uint32, error) {
	const op = "memory.journal.SchemaVersion"

	m, err := readManifest(filepath.Join(s.dir, manifestFile))
	if err != nil {
		return 0, ferrors.Wrap(ferrors.KindStorage, op, "read manifest", err)
	}
	return m.SchemaVersion, nil
}

// ── Locking ──────────────────────────────────────────────────────────────────

func (s *Store) withExclusiveLock(op string, fn func() error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return ferrors.Wrap(ferrors.KindStorage, op, "create memory dir", err)
	}
	if err := s.lock.Lock(); err != nil {
		return ferrors.Wrap(ferrors.KindStorage, op, "acquire journal lock", err)
	}
	defer s.lock.Unlock()

	if err := fn(); err != nil {
		if _, ok := err.(*ferrors.Error); ok {
			return err
		}
		return ferrors.Wrap(ferrors.KindStorage, op, "journal write", err)
	}
	return nil
}

func (s *Store) withSharedLock(op string, fn func() error) error {
	if err := s.lock.RLock(); err != nil {
		return ferrors.Wrap(ferrors.KindStorage, op, "acquire shared journal lock", err)
	}
	defer s.lock.Unlock()
	return fn()
}

// ── File helpers ─────────────────────────────────────────────────────────────

func appendJSONLine(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func readRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	// Later lines replace earlier lines with the same ID; order of first
	// appearance is preserved.
	index := make(map[string]int)
	var records []Record

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("malformed record line: %w", err)
		}
		if rec.Status == "" {
			rec.Status = StatusActive
		}
		if i, seen := index[rec.ID]; seen {
			records[i] = rec
		} else {
			index[rec.ID] = len(records)
			records = append(records, rec)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func readManifest(path string) (Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func writeManifest(path string, m Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(m); err != nil {
		return err
	}
	return f.Sync()
}

func nowEpoch() int64 { return time.Now().Unix() }

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
