package journal

import (
	"encoding/json"
	"os"
	"path/filepath"

	ferrors "github.com/saorsa-labs/fae/internal/errors"
)

// MigrateIfNeeded upgrades the journal layout to targetVersion if the
// manifest reports an older one. Returns (from, to) when a migration ran,
// nil when the journal was already current.
//
// The migration is all-or-nothing: both manifest.toml and records.jsonl are
// backed up before the forward rewrite, and any failure — including one
// injected through the .fail_migration failpoint file — restores both
// backups byte-identically before the error is surfaced.
func (s *Store) MigrateIfNeeded(targetVersion uint32) (*MigrationResult, error) {
	const op = "memory.journal.MigrateIfNeeded"

	var result *MigrationResult
	err := s.withExclusiveLock(op, func() error {
		manifestPath := filepath.Join(s.dir, manifestFile)
		recordsPath := filepath.Join(s.dir, recordsFile)

		m, err := readManifest(manifestPath)
		if err != nil {
			return err
		}
		if m.SchemaVersion >= targetVersion {
			return nil
		}
		from := m.SchemaVersion

		// Snapshot both files before touching anything.
		manifestBackup, err := os.ReadFile(manifestPath)
		if err != nil {
			return err
		}
		recordsBackup, err := os.ReadFile(recordsPath)
		if err != nil {
			return err
		}

		restore := func() {
			_ = os.WriteFile(manifestPath, manifestBackup, 0o644)
			_ = os.WriteFile(recordsPath, recordsBackup, 0o644)
		}

		if err := rewriteRecordsForward(recordsPath, from, targetVersion); err != nil {
			restore()
			return err
		}

		// Failpoint: simulate a crash between the forward rewrite and the
		// manifest bump.
		if _, err := os.Stat(filepath.Join(s.dir, failpointFile)); err == nil {
			restore()
			return ferrors.New(ferrors.KindStorage, op, "migration failpoint triggered")
		}

		m.SchemaVersion = targetVersion
		if err := writeManifest(manifestPath, m); err != nil {
			restore()
			return err
		}

		_ = appendJSONLine(filepath.Join(s.dir, auditFile), AuditEntry{
			RecordID: "*",
			Op:       AuditReindex,
			AtEpoch:  nowEpoch(),
			Reason:   "schema migration",
		})

		result = &MigrationResult{From: from, To: targetVersion}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MigrationResult reports the versions a completed migration moved between.
type MigrationResult struct {
	From uint32
	To   uint32
}

// rewriteRecordsForward rewrites records.jsonl through the version chain.
// The v0→v1 step normalises records written before tags and status existed:
// missing status becomes active, and updated_at is backfilled from
// created_at.
func rewriteRecordsForward(path string, from, to uint32) error {
	records, err := readRecords(path)
	if err != nil {
		return err
	}

	for v := from; v < to; v++ {
		for i := range records {
			if records[i].Status == "" {
				records[i].Status = StatusActive
			}
			if records[i].UpdatedAt == 0 {
				records[i].UpdatedAt = records[i].CreatedAt
			}
		}
	}

	tmp := path + ".migrate"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		data = append(data, '\n')
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
