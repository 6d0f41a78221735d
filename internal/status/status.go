// Package status owns the per-check state machine and the run/reset
// semantics. The only transitions are unchecked → pass|fail via Verify
// and pass|fail → unchecked via Reset.
package status

import (
	"context"
	"fmt"

	"github.com/dfalgout/specsentry/internal/spec"
)

type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// Assessment is a reasoning collaborator's judgement of whether an
// outcome satisfies a stated condition pair.
type Assessment struct {
	Verdict     Verdict
	Explanation string
}

// ReasoningService judges whether an outcome narrative satisfies the
// success condition without triggering the failure condition. It is a
// black-box text service; retries and timeouts are its own business.
type ReasoningService interface {
	Assess(ctx context.Context, successCond, failureCond, outcome string) (Assessment, error)
}

// OutcomeSource produces the outcome narrative for a check, typically
// by executing its embedded test snippet.
type OutcomeSource interface {
	Outcome(ctx context.Context, check *spec.Check) (string, error)
}

// CollaboratorFailureError wraps an external service error. Callers
// fall back to cached results when available; a pass is never
// fabricated.
type CollaboratorFailureError struct {
	Service string
	Err     error
}

func (e *CollaboratorFailureError) Error() string {
	return fmt.Sprintf("collaborator %s: %v", e.Service, e.Err)
}

func (e *CollaboratorFailureError) Unwrap() error { return e.Err }

// Result is the committed outcome of one verification.
type Result struct {
	CheckID     string
	Status      spec.Status
	Explanation string
	Cached      bool
}

// Fallback supplies a previously cached result for a check when the
// reasoning collaborator fails.
type Fallback func(checkID string) (Result, bool)

type Tracker struct {
	candidate   ReasoningService
	consistency ReasoningService
	fallback    Fallback
}

// NewTracker builds a tracker over a candidate reasoner and an
// independent consistency validator. Passing the same service twice is
// allowed but weakens the agreement requirement to a single opinion.
func NewTracker(candidate, consistency ReasoningService) *Tracker {
	return &Tracker{candidate: candidate, consistency: consistency}
}

// WithFallback installs a cached-result source consulted when a
// collaborator call fails.
func (t *Tracker) WithFallback(fb Fallback) *Tracker {
	t.fallback = fb
	return t
}

// Verify runs the check's requirement against the outcome narrative
// and commits the resulting status. Pass requires the candidate
// determination and the consistency validation to both agree that the
// success condition holds and the failure condition does not; any
// contradiction forces fail with the contradiction text retained. The
// status flips atomically only after both results are available.
func (t *Tracker) Verify(ctx context.Context, check *spec.Check, outcome string) (Result, error) {
	successCond := check.Require
	failureCond := "the requirement is not satisfied: " + check.Require

	cand, err := t.candidate.Assess(ctx, successCond, failureCond, outcome)
	if err != nil {
		return t.recover(check, &CollaboratorFailureError{Service: "reasoning", Err: err})
	}

	cons, err := t.consistency.Assess(ctx, successCond, failureCond, outcome)
	if err != nil {
		return t.recover(check, &CollaboratorFailureError{Service: "consistency", Err: err})
	}

	res := Result{CheckID: check.ID}
	if cand.Verdict == VerdictPass && cons.Verdict == VerdictPass {
		res.Status = spec.StatusPass
	} else {
		res.Status = spec.StatusFail
		res.Explanation = contradiction(cand, cons)
	}

	check.Status = res.Status
	return res, nil
}

func (t *Tracker) recover(check *spec.Check, failure *CollaboratorFailureError) (Result, error) {
	if t.fallback != nil {
		if cached, ok := t.fallback(check.ID); ok {
			cached.Cached = true
			check.Status = cached.Status
			return cached, nil
		}
	}
	return Result{CheckID: check.ID}, failure
}

func contradiction(cand, cons Assessment) string {
	switch {
	case cand.Verdict != VerdictPass && cons.Verdict != VerdictPass:
		if cand.Explanation == cons.Explanation || cons.Explanation == "" {
			return cand.Explanation
		}
		return cand.Explanation + "; " + cons.Explanation
	case cand.Verdict != VerdictPass:
		return cand.Explanation
	default:
		return cons.Explanation
	}
}

// Reset returns a check to unchecked.
func Reset(check *spec.Check) {
	check.Status = spec.StatusUnchecked
}

// ResetAll sets every check to unchecked. The returned flag is false
// when the spec was already all-unchecked, in which case no write
// should be performed.
func ResetAll(s *spec.Spec) (changed bool) {
	if s.AllUnchecked() {
		return false
	}
	for _, c := range s.Checks {
		c.Status = spec.StatusUnchecked
	}
	return true
}
