package engine

import (
	"os"
	"path/filepath"

	"github.com/dfalgout/specsentry/internal/cache"
	"github.com/dfalgout/specsentry/internal/spec"
	"github.com/dfalgout/specsentry/internal/status"
)

type CheckReport struct {
	ID      string      `json:"id"`
	Require string      `json:"require"`
	Status  spec.Status `json:"status"`
}

// SpecReport is the derived reporting view of one spec. Stale layers
// over the tri-state check statuses; it is not a fourth check state.
type SpecReport struct {
	Title      string        `json:"title"`
	Slug       string        `json:"slug"`
	Path       string        `json:"path"`
	Checks     []CheckReport `json:"checks"`
	Files      []string      `json:"files"`
	StaleFiles []string      `json:"stale_files,omitempty"`
	Missing    []string      `json:"missing_files,omitempty"`
	// Stale means at least one tracked file changed since its recorded
	// hash and no re-verification has happened under the current
	// fingerprint.
	Stale   bool `json:"stale"`
	AllPass bool `json:"all_pass"`
}

// Status builds the report for a spec document.
func (e *Engine) Status(doc *spec.Document) (*SpecReport, error) {
	report := &SpecReport{
		Title: doc.Spec.Title,
		Slug:  doc.Spec.Slug,
		Path:  doc.Path,
		Files: doc.Spec.Files,
	}
	for _, c := range doc.Spec.Checks {
		report.Checks = append(report.Checks, CheckReport{
			ID:      c.ID,
			Require: c.Require,
			Status:  c.Status,
		})
	}
	report.AllPass = doc.Spec.AllPass()

	recorded, err := e.recordedHashes(doc)
	if err != nil {
		return nil, err
	}

	anyUnfresh := false
	for _, f := range doc.Spec.Files {
		full := filepath.Join(e.cfg.Root, f)
		rec, ok := recorded[f]
		if !ok {
			// Never snapshotted: nothing to be stale against.
			continue
		}
		if _, err := os.Stat(full); err != nil {
			report.Missing = append(report.Missing, f)
			anyUnfresh = true
			continue
		}
		if !cache.Fresh(full, rec) {
			report.StaleFiles = append(report.StaleFiles, f)
			anyUnfresh = true
		}
	}

	if anyUnfresh {
		// A cached result under the current fingerprint means the spec
		// was re-verified after the change.
		fp := cache.Fingerprint(doc.Spec.Slug, e.currentHashes(doc.Spec))
		var cached []status.Result
		ok, err := e.store.GetResult(fp, &cached)
		if err != nil && !isCorruption(err) {
			return nil, err
		}
		report.Stale = !ok
	}

	return report, nil
}

func isCorruption(err error) bool {
	_, ok := err.(*cache.CacheCorruptionError)
	return ok
}
