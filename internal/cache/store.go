// Package cache persists verification results, tracked-file hash
// snapshots, and the rename map in a local SQLite database. Results
// are keyed by fingerprint (spec identity + tracked-file hash set), so
// any tracked change invalidates them without explicit bookkeeping.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"github.com/dfalgout/specsentry/internal/logger"
	"github.com/dfalgout/specsentry/internal/spec"
)

var log = logger.ForComponent("cache")

// CacheCorruptionError reports an unreadable cache row. The row is
// deleted and the lookup degrades to a miss; callers regenerate.
type CacheCorruptionError struct {
	Fingerprint string
	Err         error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("corrupt cache row %s: %v", e.Fingerprint, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }

type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	memo *lru.Cache[string, json.RawMessage]
}

func NewStore(dbPath string, memoSize int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return nil, err
		}
	}

	if memoSize <= 0 {
		memoSize = 64
	}
	memo, err := lru.New[string, json.RawMessage](memoSize)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, memo: memo}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	_, _ = s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, SchemaVersion)
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PutResult memoizes a verification result blob under the fingerprint,
// replacing any previous row for the same key.
func (s *Store) PutResult(fingerprint, slug string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO results (fingerprint, spec_slug, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			spec_slug = excluded.spec_slug,
			payload = excluded.payload,
			created_at = excluded.created_at
	`, fingerprint, slug, blob, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put result: %w", err)
	}

	s.memo.Add(fingerprint, json.RawMessage(blob))
	return nil
}

// GetResult decodes the cached blob for fingerprint into out. A
// corrupt row is deleted, logged, and reported as a miss.
func (s *Store) GetResult(fingerprint string, out any) (bool, error) {
	if blob, ok := s.memo.Get(fingerprint); ok {
		if err := json.Unmarshal(blob, out); err == nil {
			return true, nil
		}
		s.memo.Remove(fingerprint)
	}

	s.mu.RLock()
	var blob []byte
	err := s.db.QueryRow(`SELECT payload FROM results WHERE fingerprint = ?`, fingerprint).Scan(&blob)
	s.mu.RUnlock()

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get result: %w", err)
	}

	if err := json.Unmarshal(blob, out); err != nil {
		corrupt := &CacheCorruptionError{Fingerprint: fingerprint, Err: err}
		log.Warn("dropping corrupt cache row", "fingerprint", fingerprint, "error", err)
		s.mu.Lock()
		_, _ = s.db.Exec(`DELETE FROM results WHERE fingerprint = ?`, fingerprint)
		s.mu.Unlock()
		return false, corrupt
	}

	s.memo.Add(fingerprint, json.RawMessage(blob))
	return true, nil
}

// SnapshotHashes replaces the recorded hash set for a spec with a
// fresh capture (scoped delete then insert).
func (s *Store) SnapshotHashes(slug string, records []spec.FileHashRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM file_hashes WHERE spec_slug = ?`, slug); err != nil {
		return fmt.Errorf("clear hashes: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO file_hashes (spec_slug, path, hash, tokens, captured_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		capturedAt := rec.CapturedAt
		if capturedAt.IsZero() {
			capturedAt = time.Now().UTC()
		}
		if _, err := stmt.Exec(slug, rec.Path, rec.Hash, strings.Join(rec.Tokens, " "), capturedAt); err != nil {
			return fmt.Errorf("insert hash %s: %w", rec.Path, err)
		}
	}

	return tx.Commit()
}

// GetHashes returns the recorded snapshot for a spec, path-ordered.
func (s *Store) GetHashes(slug string) ([]spec.FileHashRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT path, hash, tokens, captured_at FROM file_hashes
		WHERE spec_slug = ? ORDER BY path ASC
	`, slug)
	if err != nil {
		return nil, fmt.Errorf("get hashes: %w", err)
	}
	defer rows.Close()

	var out []spec.FileHashRecord
	for rows.Next() {
		var rec spec.FileHashRecord
		var tokens sql.NullString
		var capturedAt sql.NullTime
		if err := rows.Scan(&rec.Path, &rec.Hash, &tokens, &capturedAt); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		if tokens.Valid && tokens.String != "" {
			rec.Tokens = strings.Fields(tokens.String)
		}
		if capturedAt.Valid {
			rec.CapturedAt = capturedAt.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordRename appends a rename to the persisted rename map.
func (s *Store) RecordRename(slug string, rec spec.RenameRecord, applied bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO renames (spec_slug, old_path, new_path, confidence, applied)
		VALUES (?, ?, ?, ?, ?)
	`, slug, rec.OldPath, rec.NewPath, rec.Confidence, applied)
	if err != nil {
		return fmt.Errorf("record rename: %w", err)
	}
	return nil
}

// ListRenames returns the recorded renames for a spec, newest first.
func (s *Store) ListRenames(slug string) ([]spec.RenameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT old_path, new_path, confidence FROM renames
		WHERE spec_slug = ? ORDER BY id DESC
	`, slug)
	if err != nil {
		return nil, fmt.Errorf("list renames: %w", err)
	}
	defer rows.Close()

	var out []spec.RenameRecord
	for rows.Next() {
		var rec spec.RenameRecord
		if err := rows.Scan(&rec.OldPath, &rec.NewPath, &rec.Confidence); err != nil {
			return nil, fmt.Errorf("scan rename: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Clean deletes result rows whose fingerprint matches no existing
// spec (orphan collection). live holds the current fingerprint of
// every spec on disk.
func (s *Store) Clean(live map[string]bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT fingerprint FROM results`)
	if err != nil {
		return 0, fmt.Errorf("list fingerprints: %w", err)
	}
	var orphans []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan fingerprint: %w", err)
		}
		if !live[fp] {
			orphans = append(orphans, fp)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var deleted int64
	for _, fp := range orphans {
		res, err := s.db.Exec(`DELETE FROM results WHERE fingerprint = ?`, fp)
		if err != nil {
			return deleted, fmt.Errorf("delete orphan: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted += n
		s.memo.Remove(fp)
	}
	return deleted, nil
}

// ForceClean deletes every result row unconditionally. Destructive;
// callers gate it behind explicit opt-in.
func (s *Store) ForceClean() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM results`)
	if err != nil {
		return 0, fmt.Errorf("force clean: %w", err)
	}
	s.memo.Purge()
	n, _ := res.RowsAffected()
	return n, nil
}
