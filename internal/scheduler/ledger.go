package scheduler

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	ferrors "github.com/saorsa-labs/fae/internal/errors"
)

// ledgerLine is one recorded run key in the JSONL ledger.
type ledgerLine struct {
	Key string `json:"key"`
}

// RunKeyLedger is an append-only persistent set of run keys of the form
// "<task-id>:<instance-stamp>". [RunKeyLedger.RecordOnce] guarantees that
// across any number of processes contending on the same path, exactly one
// caller records a given key.
type RunKeyLedger struct {
	path string
	lock *flock.Flock

	mu         sync.Mutex
	seen       map[string]struct{}
	scanOffset int64
}

// NewRunKeyLedger creates a ledger handle for path. The file is loaded
// lazily on the first RecordOnce call.
func NewRunKeyLedger(path string) *RunKeyLedger {
	return &RunKeyLedger{
		path: path,
		lock: flock.New(path + ".flock"),
		seen: make(map[string]struct{}),
	}
}

// RecordOnce records key if it has never been recorded before and reports
// whether this call was the one that recorded it.
//
// Under the exclusive file lock it first re-scans any bytes appended since
// the previous scan, so writes by other processes (or other ledger handles
// on the same path) are observed before the membership check. The append
// itself is a single O_APPEND write followed by fsync.
func (l *RunKeyLedger) RecordOnce(key string) (bool, error) {
	const op = "scheduler.RunKeyLedger.RecordOnce"

	if key == "" {
		return false, ferrors.New(ferrors.KindStorage, op, "run key must not be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, ferrors.Wrap(ferrors.KindStorage, op, "create scheduler dir", err)
	}
	if err := l.lock.Lock(); err != nil {
		return false, ferrors.Wrap(ferrors.KindStorage, op, "acquire ledger lock", err)
	}
	defer l.lock.Unlock()

	if err := l.catchUp(); err != nil {
		return false, ferrors.Wrap(ferrors.KindStorage, op, "re-scan ledger", err)
	}

	if _, dup := l.seen[key]; dup {
		return false, nil
	}

	data, err := json.Marshal(ledgerLine{Key: key})
	if err != nil {
		return false, ferrors.Wrap(ferrors.KindStorage, op, "encode run key", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return false, ferrors.Wrap(ferrors.KindStorage, op, "open ledger", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return false, ferrors.Wrap(ferrors.KindStorage, op, "append run key", err)
	}
	if err := f.Sync(); err != nil {
		return false, ferrors.Wrap(ferrors.KindStorage, op, "fsync ledger", err)
	}

	l.seen[key] = struct{}{}
	l.scanOffset += int64(len(data))
	return true, nil
}

// catchUp reads any bytes appended to the ledger since the last scan into
// the in-memory set. Must be called with both locks held.
func (l *RunKeyLedger) catchUp() error {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < l.scanOffset {
		// The file shrank underneath us (external truncation). Re-scan from
		// the start rather than carrying a stale offset.
		l.scanOffset = 0
		l.seen = make(map[string]struct{})
	}
	if info.Size() == l.scanOffset {
		return nil
	}

	if _, err := f.Seek(l.scanOffset, 0); err != nil {
		return err
	}

	read := int64(0)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		read += int64(len(line)) + 1
		if len(line) == 0 {
			continue
		}
		var entry ledgerLine
		if err := json.Unmarshal(line, &entry); err != nil {
			continue // skip a torn line; the writer behind it will re-append
		}
		l.seen[entry.Key] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	l.scanOffset += read
	return nil
}
