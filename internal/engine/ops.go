package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/dfalgout/specsentry/internal/cache"
	"github.com/dfalgout/specsentry/internal/repair"
	"github.com/dfalgout/specsentry/internal/spec"
	"github.com/dfalgout/specsentry/internal/status"
)

// Verify runs the spec's checks in file order, persisting each result
// before the next check starts, then memoizes the run under the
// current fingerprint. Cached results back individual checks when a
// collaborator call fails mid-run.
func (e *Engine) Verify(ctx context.Context, doc *spec.Document, policy status.RunPolicy) (*status.RunResult, error) {
	fp := cache.Fingerprint(doc.Spec.Slug, e.currentHashes(doc.Spec))

	var cached []status.Result
	if ok, err := e.store.GetResult(fp, &cached); err != nil && !isCorruption(err) {
		return nil, err
	} else if !ok {
		cached = nil
	}

	tracker := status.NewTracker(e.collab.Reasoner, e.collab.Consistency).
		WithFallback(func(checkID string) (status.Result, bool) {
			for _, r := range cached {
				if r.CheckID == checkID {
					return r, true
				}
			}
			return status.Result{}, false
		})

	run, runErr := tracker.RunAll(ctx, doc, e.collab.Outcomes, policy)

	if len(run.Results) > 0 {
		if err := e.store.PutResult(fp, doc.Spec.Slug, run.Results); err != nil {
			log.Warn("failed to memoize run", "spec", doc.Spec.Slug, "error", err)
		}
	}
	return run, runErr
}

// AddCheck appends a new unchecked requirement to the spec and
// persists it. Structured documents keep the generated id; the
// checklist dialect derives ids from the requirement text on reparse.
func (e *Engine) AddCheck(doc *spec.Document, require, test string) (*spec.Check, error) {
	if strings.TrimSpace(require) == "" {
		return nil, fmt.Errorf("requirement text is required")
	}
	check := spec.NewCheck(require)
	check.Test = test
	doc.AddCheck(check)
	if err := doc.Save(); err != nil {
		return nil, err
	}
	return check, nil
}

// ResetOutcome reports whether a reset wrote anything.
type ResetOutcome struct {
	Changed bool `json:"changed"`
}

// Reset returns checks to unchecked: all of them, or only checkID when
// given. A reset that would change nothing skips the write.
func (e *Engine) Reset(doc *spec.Document, checkID string) (*ResetOutcome, error) {
	if checkID != "" {
		check, err := doc.Spec.CheckByID(checkID)
		if err != nil {
			return nil, err
		}
		if check.Status == spec.StatusUnchecked {
			return &ResetOutcome{Changed: false}, nil
		}
		status.Reset(check)
	} else if !status.ResetAll(doc.Spec) {
		return &ResetOutcome{Changed: false}, nil
	}
	if err := doc.Save(); err != nil {
		return nil, err
	}
	return &ResetOutcome{Changed: true}, nil
}

// DetectRenames finds rename candidates for the spec's missing tracked
// files and records them in the persisted rename map.
func (e *Engine) DetectRenames(doc *spec.Document) ([]spec.RenameRecord, error) {
	snapshot, err := e.store.GetHashes(doc.Spec.Slug)
	if err != nil {
		return nil, err
	}

	renames, err := e.detector.DetectRenames(doc.Spec, e.cfg.Root, snapshot)
	if err != nil {
		return nil, err
	}
	for _, rec := range renames {
		if err := e.store.RecordRename(doc.Spec.Slug, rec, false); err != nil {
			return nil, err
		}
	}
	return renames, nil
}

// Repair applies detected renames to the document. With auto set, or
// when the spec's auto-discovery metadata opts it in, candidates at or
// above the auto floor are applied unattended; the rest are surfaced
// as pending and never applied silently. Applied changes are persisted
// and recorded; check statuses stay untouched.
func (e *Engine) Repair(doc *spec.Document, auto bool) (*repair.Outcome, error) {
	renames, err := e.DetectRenames(doc)
	if err != nil {
		return nil, err
	}

	outcome := e.detector.Repair(doc, renames, auto || doc.Spec.Meta.AutoDiscovery)
	if len(outcome.Applied) == 0 {
		return outcome, nil
	}

	if err := doc.Save(); err != nil {
		return nil, err
	}
	for _, rec := range outcome.Applied {
		if err := e.store.RecordRename(doc.Spec.Slug, rec, true); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// ConfirmRename applies a single rename the user explicitly confirmed,
// regardless of the confidence the detector assigned to it. The spec
// must actually reference oldPath for anything to change.
func (e *Engine) ConfirmRename(doc *spec.Document, oldPath, newPath string) (*repair.Outcome, error) {
	rec := spec.RenameRecord{OldPath: oldPath, NewPath: newPath, Confidence: 1}
	if known, err := e.store.ListRenames(doc.Spec.Slug); err == nil {
		for _, k := range known {
			if k.OldPath == oldPath && k.NewPath == newPath {
				rec.Confidence = k.Confidence
				break
			}
		}
	}

	outcome := e.detector.ApplyConfirmed(doc, []spec.RenameRecord{rec})
	if len(outcome.Applied) == 0 {
		return nil, fmt.Errorf("no reference to %s in %s", oldPath, doc.Spec.Slug)
	}
	if err := doc.Save(); err != nil {
		return nil, err
	}
	if err := e.store.RecordRename(doc.Spec.Slug, rec, true); err != nil {
		return nil, err
	}
	return outcome, nil
}

// SetAutoRepair persists the spec's auto-discovery opt-in, which lets
// Repair apply high-confidence renames without an explicit auto flag.
func (e *Engine) SetAutoRepair(doc *spec.Document, on bool) error {
	doc.SetAutoDiscovery(on)
	return doc.Save()
}

// CleanOutcome reports cache collection results.
type CleanOutcome struct {
	Deleted int64 `json:"deleted"`
	Forced  bool  `json:"forced"`
}

// Clean collects orphaned cache rows: result rows whose fingerprint
// matches no spec currently under the spec directory. force deletes
// all rows unconditionally and requires explicit opt-in upstream.
func (e *Engine) Clean(force bool) (*CleanOutcome, error) {
	if force {
		n, err := e.store.ForceClean()
		if err != nil {
			return nil, err
		}
		return &CleanOutcome{Deleted: n, Forced: true}, nil
	}

	live := map[string]bool{}
	docs, err := e.allSpecs()
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		live[cache.Fingerprint(doc.Spec.Slug, e.currentHashes(doc.Spec))] = true
	}

	n, err := e.store.Clean(live)
	if err != nil {
		return nil, err
	}
	return &CleanOutcome{Deleted: n}, nil
}
