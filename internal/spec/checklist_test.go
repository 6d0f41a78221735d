package spec

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const sampleChecklist = `# Feature: Reverse String

Some prose the serializer must never touch.

## Checks

- [ ] reverse string correctly
- [x] handle empty input
- [🟥] handle unicode

## Files

- src/reverse.ts
- src/util.ts

Trailing prose stays too.

<!-- specsentry:meta
auto-discovery: true
hash: src/reverse.ts abc123
hash: src/util.ts def456
-->
`

func parseSample(t *testing.T) *Document {
	t.Helper()
	doc, err := ParseBytes("feature.md", []byte(sampleChecklist))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return doc
}

func TestParseChecklist(t *testing.T) {
	doc := parseSample(t)

	if doc.Spec.Title != "Reverse String" {
		t.Errorf("expected title 'Reverse String', got %q", doc.Spec.Title)
	}
	if doc.Spec.Slug != "reverse-string" {
		t.Errorf("expected slug 'reverse-string', got %q", doc.Spec.Slug)
	}
	if len(doc.Spec.Checks) != 3 {
		t.Fatalf("expected 3 checks, got %d", len(doc.Spec.Checks))
	}

	wantStatus := []Status{StatusUnchecked, StatusPass, StatusFail}
	for i, want := range wantStatus {
		if got := doc.Spec.Checks[i].Status; got != want {
			t.Errorf("check %d: expected status %s, got %s", i, want, got)
		}
	}

	if !reflect.DeepEqual(doc.Spec.Files, []string{"src/reverse.ts", "src/util.ts"}) {
		t.Errorf("unexpected files: %v", doc.Spec.Files)
	}
	if !doc.Spec.Meta.AutoDiscovery {
		t.Error("expected auto-discovery flag set")
	}
	if doc.Spec.Meta.FileHashes["src/reverse.ts"] != "abc123" {
		t.Errorf("unexpected hash map: %v", doc.Spec.Meta.FileHashes)
	}
}

func TestParseMarkerVariants(t *testing.T) {
	for marker, want := range map[string]Status{
		" ": StatusUnchecked, "x": StatusPass, "X": StatusPass,
		"✓": StatusPass, "🟩": StatusPass, "✖": StatusFail, "🟥": StatusFail,
	} {
		text := "# Feature: M\n\n## Checks\n\n- [" + marker + "] something\n"
		doc, err := ParseBytes("m.md", []byte(text))
		if err != nil {
			t.Fatalf("marker %q: parse failed: %v", marker, err)
		}
		if got := doc.Spec.Checks[0].Status; got != want {
			t.Errorf("marker %q: expected %s, got %s", marker, want, got)
		}
	}
}

func TestUnrecognizedMarker(t *testing.T) {
	text := "# Feature: M\n\n## Checks\n\n- [?] something\n"
	_, err := ParseBytes("m.md", []byte(text))

	var markerErr *UnrecognizedMarkerError
	if !errors.As(err, &markerErr) {
		t.Fatalf("expected UnrecognizedMarkerError, got %v", err)
	}
	if markerErr.Marker != "?" {
		t.Errorf("expected marker '?', got %q", markerErr.Marker)
	}
	if markerErr.Line != 5 {
		t.Errorf("expected line 5, got %d", markerErr.Line)
	}
}

func TestMissingHeading(t *testing.T) {
	_, err := ParseBytes("m.md", []byte("## Checks\n\n- [ ] orphan\n"))
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestSerializeIsByteIdenticalWhenUnchanged(t *testing.T) {
	doc := parseSample(t)
	out, err := doc.Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if string(out) != sampleChecklist {
		t.Error("unchanged document should serialize byte-identically")
	}
}

func TestStatusFlipTouchesOnlyMarker(t *testing.T) {
	doc := parseSample(t)
	doc.Spec.Checks[0].Status = StatusPass

	out, err := doc.Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	want := strings.Replace(sampleChecklist,
		"- [ ] reverse string correctly",
		"- [🟩] reverse string correctly", 1)
	if string(out) != want {
		t.Errorf("expected only the bracket token to change\ngot:\n%s", out)
	}
}

func TestResetRestoresUncheckedMarker(t *testing.T) {
	text := "# Feature: R\n\n## Checks\n\n- [🟩] reverse string correctly\n"
	doc, err := ParseBytes("r.md", []byte(text))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	doc.Spec.Checks[0].Status = StatusUnchecked
	out, err := doc.Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if !strings.Contains(string(out), "- [ ] reverse string correctly") {
		t.Errorf("expected unchecked marker restored, got:\n%s", out)
	}
}

func TestAddCheckAppendsAfterLastEntry(t *testing.T) {
	doc := parseSample(t)
	doc.AddCheck(NewCheck("support very long input"))

	out, err := doc.Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	text := string(out)
	if !strings.Contains(text, "- [🟥] handle unicode\n- [ ] support very long input\n") {
		t.Errorf("new entry must follow the last existing check:\n%s", text)
	}

	again, err := ParseBytes("feature.md", out)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if len(again.Spec.Checks) != 4 {
		t.Fatalf("expected 4 checks, got %d", len(again.Spec.Checks))
	}
	last := again.Spec.Checks[3]
	if last.Require != "support very long input" || last.Status != StatusUnchecked {
		t.Errorf("appended check wrong: %+v", last)
	}
	if !reflect.DeepEqual(again.Spec.Files, []string{"src/reverse.ts", "src/util.ts"}) {
		t.Errorf("file references disturbed: %+v", again.Spec.Files)
	}
	if !again.Spec.Meta.AutoDiscovery || len(again.Spec.Meta.FileHashes) != 2 {
		t.Errorf("metadata disturbed: %+v", again.Spec.Meta)
	}

	// Statuses of the later checks must still flip at the right lines.
	again.Spec.Checks[3].Status = StatusPass
	out2, err := again.Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if !strings.Contains(string(out2), "- [🟩] support very long input") {
		t.Errorf("appended check does not track its line:\n%s", out2)
	}
}

func TestAddCheckCreatesSectionWhenMissing(t *testing.T) {
	doc, err := ParseBytes("bare.md", []byte("# Feature: Bare\n\nNo checks yet.\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	doc.AddCheck(NewCheck("first requirement"))

	out, err := doc.Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	again, err := ParseBytes("bare.md", out)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if len(again.Spec.Checks) != 1 || again.Spec.Checks[0].Require != "first requirement" {
		t.Errorf("created section wrong:\n%s", out)
	}
}

func TestRoundTripLaw(t *testing.T) {
	doc := parseSample(t)
	doc.Spec.Checks[0].Status = StatusPass
	doc.Spec.Checks[2].Status = StatusUnchecked

	out, err := doc.Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	again, err := ParseBytes("feature.md", out)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	assertSpecsEqual(t, doc.Spec, again.Spec)

	// And once more: parse(serialize(parse(x))) == parse(x).
	out2, err := again.Serialize()
	if err != nil {
		t.Fatalf("second serialize failed: %v", err)
	}
	final, err := ParseBytes("feature.md", out2)
	if err != nil {
		t.Fatalf("final parse failed: %v", err)
	}
	assertSpecsEqual(t, again.Spec, final.Spec)
}

func TestRewritePath(t *testing.T) {
	doc := parseSample(t)

	if !doc.RewritePath("src/reverse.ts", "src/reversal.ts") {
		t.Fatal("expected rewrite to report a change")
	}
	out, err := doc.Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	text := string(out)
	if !strings.Contains(text, "- src/reversal.ts") {
		t.Error("file list entry not rewritten")
	}
	if !strings.Contains(text, "hash: src/reversal.ts abc123") {
		t.Error("hash metadata key not rewritten")
	}
	if strings.Contains(text, "src/reverse.ts") {
		t.Error("old path still present")
	}
	// Statuses must be untouched by repair.
	again, err := ParseBytes("feature.md", out)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	for i, c := range doc.Spec.Checks {
		if again.Spec.Checks[i].Status != c.Status {
			t.Errorf("check %d status changed during rewrite", i)
		}
	}
}

func TestSetFileHashesAppendsMetaBlock(t *testing.T) {
	text := "# Feature: Bare\n\n## Checks\n\n- [ ] one thing\n"
	doc, err := ParseBytes("bare.md", []byte(text))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	doc.SetFileHashes(map[string]string{"a.go": "123"})
	out, err := doc.Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	again, err := ParseBytes("bare.md", out)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if again.Spec.Meta.FileHashes["a.go"] != "123" {
		t.Errorf("expected appended metadata to round-trip, got %v", again.Spec.Meta.FileHashes)
	}
}

func assertSpecsEqual(t *testing.T, a, b *Spec) {
	t.Helper()
	if a.Title != b.Title || a.Slug != b.Slug {
		t.Errorf("title/slug mismatch: %q/%q vs %q/%q", a.Title, a.Slug, b.Title, b.Slug)
	}
	if !reflect.DeepEqual(a.Files, b.Files) {
		t.Errorf("files mismatch: %v vs %v", a.Files, b.Files)
	}
	if len(a.Checks) != len(b.Checks) {
		t.Fatalf("check count mismatch: %d vs %d", len(a.Checks), len(b.Checks))
	}
	for i := range a.Checks {
		if *a.Checks[i] != *b.Checks[i] {
			t.Errorf("check %d mismatch: %+v vs %+v", i, a.Checks[i], b.Checks[i])
		}
	}
	if !reflect.DeepEqual(a.Meta, b.Meta) {
		t.Errorf("meta mismatch: %+v vs %+v", a.Meta, b.Meta)
	}
}
