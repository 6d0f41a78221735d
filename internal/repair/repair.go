package repair

import "github.com/dfalgout/specsentry/internal/spec"

// Outcome reports exactly what a repair changed. Pending renames
// scored below the auto floor are surfaced for manual confirmation and
// never applied silently.
type Outcome struct {
	Applied []spec.RenameRecord
	Pending []spec.RenameRecord
	// SnapshotAdvised is set whenever references changed; callers
	// should take a fresh hash snapshot afterwards.
	SnapshotAdvised bool
}

// Repair rewrites matching file references in the document. With auto
// set, renames at or above the auto floor are applied unattended; the
// rest are returned as pending. Without auto everything is pending.
// Check statuses are never touched.
func (d *Detector) Repair(doc *spec.Document, renames []spec.RenameRecord, auto bool) *Outcome {
	out := &Outcome{}
	for _, rec := range renames {
		if auto && rec.Confidence >= d.AutoFloor {
			if doc.RewritePath(rec.OldPath, rec.NewPath) {
				out.Applied = append(out.Applied, rec)
				continue
			}
		}
		out.Pending = append(out.Pending, rec)
	}
	out.SnapshotAdvised = len(out.Applied) > 0
	return out
}

// ApplyConfirmed applies renames the user explicitly confirmed,
// regardless of confidence.
func (d *Detector) ApplyConfirmed(doc *spec.Document, renames []spec.RenameRecord) *Outcome {
	out := &Outcome{}
	for _, rec := range renames {
		if doc.RewritePath(rec.OldPath, rec.NewPath) {
			out.Applied = append(out.Applied, rec)
		}
	}
	out.SnapshotAdvised = len(out.Applied) > 0
	return out
}
