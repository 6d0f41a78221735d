package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dfalgout/specsentry/internal/spec"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "cache.db"), 8)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type resultBlob struct {
	CheckID string `json:"check_id"`
	Status  string `json:"status"`
}

func TestPutGetResult(t *testing.T) {
	s := newTestStore(t)

	in := []resultBlob{{CheckID: "reverse-string", Status: "pass"}}
	if err := s.PutResult("fp-1", "string-utils", in); err != nil {
		t.Fatalf("put: %v", err)
	}

	var out []resultBlob
	ok, err := s.GetResult("fp-1", &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestGetResultMissIsNotAnError(t *testing.T) {
	s := newTestStore(t)

	var out []resultBlob
	ok, err := s.GetResult("no-such-fp", &out)
	if err != nil {
		t.Fatalf("miss must not error: %v", err)
	}
	if ok {
		t.Error("expected miss")
	}
}

func TestPutResultReplacesPreviousRow(t *testing.T) {
	s := newTestStore(t)

	if err := s.PutResult("fp-1", "s", []resultBlob{{CheckID: "a", Status: "fail"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutResult("fp-1", "s", []resultBlob{{CheckID: "a", Status: "pass"}}); err != nil {
		t.Fatal(err)
	}

	var out []resultBlob
	if ok, err := s.GetResult("fp-1", &out); err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if out[0].Status != "pass" {
		t.Errorf("expected replaced payload, got %q", out[0].Status)
	}
}

func TestCorruptRowDegradesToMiss(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.db.Exec(`
		INSERT INTO results (fingerprint, spec_slug, payload, created_at)
		VALUES (?, ?, ?, ?)
	`, "fp-bad", "s", []byte("{not json"), time.Now().UTC()); err != nil {
		t.Fatalf("inject corrupt row: %v", err)
	}

	var out []resultBlob
	ok, err := s.GetResult("fp-bad", &out)
	if ok {
		t.Error("corrupt row must read as a miss")
	}
	var corrupt *CacheCorruptionError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CacheCorruptionError, got %v", err)
	}
	if corrupt.Fingerprint != "fp-bad" {
		t.Errorf("wrong fingerprint in error: %s", corrupt.Fingerprint)
	}

	// The row must be gone so the next lookup is a clean miss.
	ok, err = s.GetResult("fp-bad", &out)
	if err != nil || ok {
		t.Errorf("expected clean miss after deletion, ok=%v err=%v", ok, err)
	}
}

func TestSnapshotAndGetHashes(t *testing.T) {
	s := newTestStore(t)

	records := []spec.FileHashRecord{
		{Path: "src/b.go", Hash: "bbb", Tokens: []string{"open", "close"}},
		{Path: "src/a.go", Hash: "aaa"},
	}
	if err := s.SnapshotHashes("demo", records); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	got, err := s.GetHashes("demo")
	if err != nil {
		t.Fatalf("get hashes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Path != "src/a.go" || got[1].Path != "src/b.go" {
		t.Errorf("records not path-ordered: %s, %s", got[0].Path, got[1].Path)
	}
	if len(got[1].Tokens) != 2 || got[1].Tokens[0] != "open" {
		t.Errorf("tokens not preserved: %v", got[1].Tokens)
	}

	// A second snapshot replaces the first rather than accumulating.
	if err := s.SnapshotHashes("demo", records[:1]); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	got, err = s.GetHashes("demo")
	if err != nil {
		t.Fatalf("get hashes: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("snapshot must replace the prior set, got %d records", len(got))
	}
}

func TestRecordAndListRenames(t *testing.T) {
	s := newTestStore(t)

	first := spec.RenameRecord{OldPath: "src/auth.ts", NewPath: "src/authentication.ts", Confidence: 0.95}
	second := spec.RenameRecord{OldPath: "src/db.ts", NewPath: "src/database.ts", Confidence: 0.72}
	if err := s.RecordRename("demo", first, true); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordRename("demo", second, false); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListRenames("demo")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 renames, got %d", len(got))
	}
	if got[0].OldPath != "src/db.ts" {
		t.Errorf("expected newest first, got %s", got[0].OldPath)
	}
}

func TestCleanDeletesOnlyOrphans(t *testing.T) {
	s := newTestStore(t)

	if err := s.PutResult("fp-live", "a", "x"); err != nil {
		t.Fatal(err)
	}
	if err := s.PutResult("fp-orphan", "b", "y"); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.Clean(map[string]bool{"fp-live": true})
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 orphan deleted, got %d", deleted)
	}

	var out string
	if ok, _ := s.GetResult("fp-live", &out); !ok {
		t.Error("live entry must survive clean")
	}
	if ok, _ := s.GetResult("fp-orphan", &out); ok {
		t.Error("orphan must be gone")
	}
}

func TestForceCleanDeletesEverything(t *testing.T) {
	s := newTestStore(t)

	for _, fp := range []string{"fp-1", "fp-2", "fp-3"} {
		if err := s.PutResult(fp, "s", "x"); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := s.ForceClean()
	if err != nil {
		t.Fatalf("force clean: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 deleted, got %d", deleted)
	}
	var out string
	if ok, _ := s.GetResult("fp-1", &out); ok {
		t.Error("memo must be purged with the rows")
	}
}

func TestFingerprintChangesWithAnyHash(t *testing.T) {
	base := Fingerprint("demo", map[string]string{"a.go": "h1", "b.go": "h2"})
	same := Fingerprint("demo", map[string]string{"b.go": "h2", "a.go": "h1"})
	if base != same {
		t.Error("fingerprint must be independent of map order")
	}

	changed := Fingerprint("demo", map[string]string{"a.go": "h1", "b.go": "h3"})
	if changed == base {
		t.Error("a changed hash must change the fingerprint")
	}
	otherSlug := Fingerprint("other", map[string]string{"a.go": "h1", "b.go": "h2"})
	if otherSlug == base {
		t.Error("slug must participate in the fingerprint")
	}
}

func TestFresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.go")
	if err := os.WriteFile(path, []byte("package f\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	hash, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if !Fresh(path, hash) {
		t.Error("unmodified file must be fresh")
	}
	if err := os.WriteFile(path, []byte("package f // edited\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if Fresh(path, hash) {
		t.Error("modified file must be unfresh")
	}
	if Fresh(filepath.Join(dir, "missing.go"), hash) {
		t.Error("missing file must be unfresh")
	}
}

func TestTokenSample(t *testing.T) {
	data := []byte("func OpenSession(id string) { open_session(id); openSession(id) }")
	tokens := TokenSample(data)

	want := map[string]bool{"func": true, "opensession": true, "id": true, "string": true, "open_session": true}
	seen := map[string]bool{}
	for _, tok := range tokens {
		if seen[tok] {
			t.Errorf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
	for tok := range want {
		if !seen[tok] {
			t.Errorf("missing token %q in %v", tok, tokens)
		}
	}
}
