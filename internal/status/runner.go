package status

import (
	"context"

	"github.com/dfalgout/specsentry/internal/logger"
	"github.com/dfalgout/specsentry/internal/spec"
)

var log = logger.ForComponent("status")

// RunPolicy controls RunAll. The default skips checks that already
// pass; Force re-verifies everything. Only restricts the run to a
// single check id, leaving the rest untouched.
type RunPolicy struct {
	Force bool
	Only  string
}

type RunResult struct {
	Results []Result
	Skipped int
	// Success is true iff every check in the spec ends pass.
	Success bool
}

// RunAll verifies the document's checks strictly in file order. Each
// check's outcome is persisted before the next one starts, so an
// interruption after N checks leaves exactly the first N results on
// disk. The first persistence or collaborator error (with no cached
// fallback) aborts the run; earlier results stay committed.
func (t *Tracker) RunAll(ctx context.Context, doc *spec.Document, outcomes OutcomeSource, policy RunPolicy) (*RunResult, error) {
	run := &RunResult{}

	if policy.Only != "" {
		if _, err := doc.Spec.CheckByID(policy.Only); err != nil {
			return run, err
		}
	}

	for _, check := range doc.Spec.Checks {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		if policy.Only != "" && check.ID != policy.Only {
			run.Skipped++
			continue
		}
		if !policy.Force && check.Status == spec.StatusPass {
			run.Skipped++
			continue
		}

		outcome, err := outcomes.Outcome(ctx, check)
		if err != nil {
			return run, &CollaboratorFailureError{Service: "outcome", Err: err}
		}

		res, err := t.Verify(ctx, check, outcome)
		if err != nil {
			return run, err
		}
		run.Results = append(run.Results, res)

		if err := doc.Save(); err != nil {
			return run, err
		}
		log.Debug("check persisted", "spec", doc.Spec.Slug, "check", check.ID, "status", check.Status)
	}

	run.Success = doc.Spec.AllPass()
	return run, nil
}
