// Package scheduler implements the authority layer for background task
// execution: a file-backed leader lease electing at most one leader per
// namespace, and a run-key ledger guaranteeing at-most-one execution per
// run key across all processes sharing the data root.
package scheduler

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	ferrors "github.com/saorsa-labs/fae/internal/errors"
)

// LeaseConfig tunes the leader lease timing.
type LeaseConfig struct {
	// TTLMs is how long a leader holds the lease without renewal.
	TTLMs int64

	// HeartbeatMs is the expected renewal cadence. Callers retry
	// [LeaderLease.TryAcquireOrRenewAt] on this interval; a ratio of about
	// 1/3 of TTLMs tolerates two missed heartbeats before takeover.
	HeartbeatMs int64
}

// leaseRecord is the single JSON line stored in the lease file.
type leaseRecord struct {
	HolderID        string `json:"holder_id"`
	HolderPID       int    `json:"holder_pid"`
	AcquiredAtEpoch int64  `json:"acquired_at_epoch_ms"`
	RenewedAtEpoch  int64  `json:"renewed_at_epoch_ms"`
	TTLMs           int64  `json:"ttl_ms"`
}

// Decision is the outcome of a lease acquisition attempt.
type Decision struct {
	// Leader is true when this holder owns the lease after the call.
	Leader bool

	// Takeover is true when leadership was claimed from an expired record
	// left by a different holder. Callers use it to re-seed in-flight state
	// that the previous leader may have abandoned.
	Takeover bool

	// ExpiresAtMs and Holder describe the current leader when Leader is
	// false.
	ExpiresAtMs int64
	Holder      string
}

// LeaderLease is a file-backed lease electing a single leader per scheduler
// namespace. Multiple processes may share the same lease path; the
// check-and-write critical section is guarded by an exclusive OS file lock.
type LeaderLease struct {
	holderID string
	pid      int
	path     string
	cfg      LeaseConfig
	lock     *flock.Flock
}

// NewLeaderLease creates a lease handle for holderID at path. No I/O happens
// until the first acquisition attempt.
func NewLeaderLease(holderID string, pid int, path string, cfg LeaseConfig) *LeaderLease {
	return &LeaderLease{
		holderID: holderID,
		pid:      pid,
		path:     path,
		cfg:      cfg,
		lock:     flock.New(path + ".flock"),
	}
}

// TryAcquireOrRenewAt attempts to acquire or renew the lease at nowMs
// (epoch milliseconds). The decision rules:
//
//   - no record, or nowMs ≥ renewed_at + ttl: write a fresh record for this
//     holder; Takeover reports whether a previous holder's record existed.
//   - record held by this holder: bump renewed_at, remain leader.
//   - record held by another holder within its TTL: follower. Equality at
//     the TTL boundary retains the current leader, so clock jitter between
//     heartbeats never preempts a live leader early.
//
// File I/O failures surface as StorageError; callers typically retry at the
// next heartbeat.
func (l *LeaderLease) TryAcquireOrRenewAt(nowMs int64) (Decision, error) {
	const op = "scheduler.LeaderLease.TryAcquireOrRenewAt"

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return Decision{}, ferrors.Wrap(ferrors.KindStorage, op, "create scheduler dir", err)
	}
	if err := l.lock.Lock(); err != nil {
		return Decision{}, ferrors.Wrap(ferrors.KindStorage, op, "acquire lease lock", err)
	}
	defer l.lock.Unlock()

	current, exists, err := l.read()
	if err != nil {
		return Decision{}, ferrors.Wrap(ferrors.KindStorage, op, "read lease record", err)
	}

	switch {
	case !exists, nowMs >= current.RenewedAtEpoch+current.TTLMs:
		takeover := exists && current.HolderID != l.holderID
		fresh := leaseRecord{
			HolderID:        l.holderID,
			HolderPID:       l.pid,
			AcquiredAtEpoch: nowMs,
			RenewedAtEpoch:  nowMs,
			TTLMs:           l.cfg.TTLMs,
		}
		if err := l.write(fresh); err != nil {
			return Decision{}, ferrors.Wrap(ferrors.KindStorage, op, "write lease record", err)
		}
		return Decision{Leader: true, Takeover: takeover}, nil

	case current.HolderID == l.holderID:
		current.RenewedAtEpoch = nowMs
		if err := l.write(current); err != nil {
			return Decision{}, ferrors.Wrap(ferrors.KindStorage, op, "renew lease record", err)
		}
		return Decision{Leader: true}, nil

	default:
		return Decision{
			Leader:      false,
			ExpiresAtMs: current.RenewedAtEpoch + current.TTLMs,
			Holder:      current.HolderID,
		}, nil
	}
}

func (l *LeaderLease) read() (leaseRecord, bool, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return leaseRecord{}, false, nil
		}
		return leaseRecord{}, false, err
	}
	if len(data) == 0 {
		return leaseRecord{}, false, nil
	}
	var rec leaseRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		// A torn or corrupt record is treated as absent: the next writer
		// re-seeds it under the exclusive lock.
		return leaseRecord{}, false, nil
	}
	return rec, true, nil
}

// write rewrites the lease file in place through a temp file + rename so a
// reader never observes a partial record.
func (l *LeaderLease) write(rec leaseRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}
