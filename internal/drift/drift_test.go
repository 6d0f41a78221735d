package drift

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"- Validate  user credentials.": "validate user credentials",
		"* log request":                 "log request",
		"• Emit   METRICS!?":            "emit metrics",
		"  plain phrase  ":              "plain phrase",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestSimilaritySymmetry(t *testing.T) {
	a := "validate user credentials"
	b := "validate credentials quickly"
	if Similarity(a, b) != Similarity(b, a) {
		t.Error("similarity must be symmetric")
	}
}

func TestSimilarityIdentity(t *testing.T) {
	if got := Similarity("reverse a string", "reverse a string"); got != 1 {
		t.Errorf("expected 1 for identical phrases, got %f", got)
	}
	if got := Similarity("- Reverse A String.", "reverse a string"); got != 1 {
		t.Errorf("expected 1 for identical normalized phrases, got %f", got)
	}
}

func TestSimilarityEmptySets(t *testing.T) {
	if got := Similarity("something", ""); got != 0 {
		t.Errorf("expected 0 when exactly one set is empty, got %f", got)
	}
	if got := Similarity("", "something"); got != 0 {
		t.Errorf("expected 0 when exactly one set is empty, got %f", got)
	}
	if got := Similarity("", ""); got != 1 {
		t.Errorf("expected 1 for two empty phrases, got %f", got)
	}
}

func TestThresholdBoundaries(t *testing.T) {
	th := DefaultThresholds()

	// |A∩B|=4, |A∪B|=5 → exactly 0.8.
	specBullet := "alpha beta gamma delta epsilon"
	implBullet := "alpha beta gamma delta"
	if sim := Similarity(specBullet, implBullet); math.Abs(sim-0.8) > 1e-12 {
		t.Fatalf("fixture broken: expected similarity 0.8, got %f", sim)
	}
	report := Audit([]string{specBullet}, []string{implBullet}, th)
	if report.Rows[0].Verdict != VerdictMatch {
		t.Errorf("similarity exactly 0.8 must be a match, got %s", report.Rows[0].Verdict)
	}

	// |A∩B|=2, |A∪B|=5 → exactly 0.4.
	specBullet = "red green blue"
	implBullet = "red green yellow purple"
	if sim := Similarity(specBullet, implBullet); math.Abs(sim-0.4) > 1e-12 {
		t.Fatalf("fixture broken: expected similarity 0.4, got %f", sim)
	}
	report = Audit([]string{specBullet}, []string{implBullet}, th)
	if report.Rows[0].Verdict != VerdictGap {
		t.Errorf("similarity exactly 0.4 must be a gap, got %s", report.Rows[0].Verdict)
	}

	// |A∩B|=1, |A∪B|=3 → just below 0.4.
	specBullet = "red green"
	implBullet = "red blue"
	report = Audit([]string{specBullet}, []string{implBullet}, th)
	if report.Rows[0].Verdict != VerdictConflict {
		t.Errorf("similarity below 0.4 must be a conflict, got %s", report.Rows[0].Verdict)
	}
}

func TestAuditScenario(t *testing.T) {
	report := Audit(
		[]string{"validate user credentials"},
		[]string{"validate user credentials", "log request"},
		DefaultThresholds(),
	)

	if len(report.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(report.Rows))
	}
	first := report.Rows[0]
	if first.Verdict != VerdictMatch || first.Similarity != 1 {
		t.Errorf("expected exact match at 1.0, got %s at %f", first.Verdict, first.Similarity)
	}
	second := report.Rows[1]
	if !second.Uncovered || second.ImplBullet != "log request" {
		t.Errorf("expected 'log request' uncovered, got %+v", second)
	}

	if !report.Failed(false) {
		t.Error("audit with an uncovered bullet must fail")
	}
	if report.Failed(true) {
		t.Error("warn-only must downgrade the failure")
	}
}

func TestAuditTieBreaksOnFirstOccurrence(t *testing.T) {
	report := Audit(
		[]string{"store data"},
		[]string{"store data", "store data"},
		DefaultThresholds(),
	)
	if report.Rows[0].ImplBullet != "store data" {
		t.Fatalf("unexpected best match: %+v", report.Rows[0])
	}
	// The second identical bullet was never selected, so it is
	// uncovered.
	if report.Uncovered != 1 {
		t.Errorf("expected 1 uncovered bullet, got %d", report.Uncovered)
	}
}

func TestAuditEmptyImplementation(t *testing.T) {
	report := Audit([]string{"do something"}, nil, DefaultThresholds())
	if report.Rows[0].Verdict != VerdictConflict {
		t.Errorf("expected conflict with no impl bullets, got %s", report.Rows[0].Verdict)
	}
	if !report.Failed(false) {
		t.Error("expected failing audit")
	}
}

func TestAuditDeterminism(t *testing.T) {
	specBullets := []string{"parse config file", "watch file changes"}
	implBullets := []string{"watch for file changes", "parse the config file", "emit logs"}

	first := Audit(specBullets, implBullets, DefaultThresholds())
	second := Audit(specBullets, implBullets, DefaultThresholds())

	if len(first.Rows) != len(second.Rows) {
		t.Fatal("audit must be deterministic")
	}
	for i := range first.Rows {
		if first.Rows[i] != second.Rows[i] {
			t.Errorf("row %d differs between runs", i)
		}
	}
}
