package drift

// Verdict classifies one spec bullet against its best implementation
// match.
type Verdict string

const (
	VerdictMatch    Verdict = "match"
	VerdictGap      Verdict = "gap"
	VerdictConflict Verdict = "conflict"
)

// Thresholds are the classification cut points. Similarity at or above
// Match is a match, within [Gap, Match) a gap, below Gap a conflict.
type Thresholds struct {
	Match float64
	Gap   float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Match: 0.8, Gap: 0.4}
}

// Row is one reconciliation result: a spec bullet with its best
// implementation match, or an uncovered implementation bullet
// (SpecBullet empty).
type Row struct {
	SpecBullet string
	ImplBullet string
	Similarity float64
	Verdict    Verdict
	Uncovered  bool
}

type Report struct {
	Rows      []Row
	Matches   int
	Gaps      int
	Conflicts int
	Uncovered int
}

// Failed reports whether the audit should fail: any conflict or
// uncovered implementation bullet, unless downgraded to warn-only.
func (r *Report) Failed(warnOnly bool) bool {
	if warnOnly {
		return false
	}
	return r.Conflicts > 0 || r.Uncovered > 0
}

// Audit reconciles spec bullets against implementation bullets. Each
// spec bullet is paired with the implementation bullet of highest
// similarity (ties broken by first occurrence); implementation bullets
// never selected as a best match are reported uncovered.
func Audit(specBullets, implBullets []string, th Thresholds) *Report {
	report := &Report{}
	covered := make([]bool, len(implBullets))

	implTokens := make([]map[string]bool, len(implBullets))
	for i, b := range implBullets {
		implTokens[i] = Tokens(b)
	}

	for _, sb := range specBullets {
		st := Tokens(sb)
		bestIdx := -1
		bestSim := -1.0
		for i, it := range implTokens {
			if sim := jaccard(st, it); sim > bestSim {
				bestSim = sim
				bestIdx = i
			}
		}

		row := Row{SpecBullet: sb}
		if bestIdx >= 0 {
			row.ImplBullet = implBullets[bestIdx]
			row.Similarity = bestSim
		} else {
			bestSim = 0
		}

		switch {
		case bestSim >= th.Match:
			row.Verdict = VerdictMatch
			report.Matches++
			if bestIdx >= 0 {
				covered[bestIdx] = true
			}
		case bestSim >= th.Gap:
			row.Verdict = VerdictGap
			report.Gaps++
			if bestIdx >= 0 {
				covered[bestIdx] = true
			}
		default:
			// Treated as missing from the implementation.
			row.Verdict = VerdictConflict
			row.ImplBullet = ""
			row.Similarity = bestSim
			report.Conflicts++
		}
		report.Rows = append(report.Rows, row)
	}

	for i, b := range implBullets {
		if covered[i] {
			continue
		}
		report.Rows = append(report.Rows, Row{
			ImplBullet: b,
			Uncovered:  true,
		})
		report.Uncovered++
	}

	return report
}
