// Package engine composes the spec store, status tracker, cache,
// repair, and drift components behind the operations the tool surface
// exposes. All external reasoning is injected through the Collaborators
// struct; the engine itself performs no network I/O.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dfalgout/specsentry/internal/cache"
	"github.com/dfalgout/specsentry/internal/config"
	"github.com/dfalgout/specsentry/internal/drift"
	"github.com/dfalgout/specsentry/internal/logger"
	"github.com/dfalgout/specsentry/internal/repair"
	"github.com/dfalgout/specsentry/internal/spec"
	"github.com/dfalgout/specsentry/internal/status"
	"github.com/dfalgout/specsentry/internal/textenc"
)

var log = logger.ForComponent("engine")

// Collaborators are the external services the engine consumes. They
// are black-box text-in/text-out; failures propagate (with cached
// fallback where one exists) rather than being retried here.
type Collaborators struct {
	Reasoner    status.ReasoningService
	Consistency status.ReasoningService
	Outcomes    status.OutcomeSource
	Extractor   drift.ExtractionService
}

type Engine struct {
	cfg      *config.Config
	store    *cache.Store
	collab   Collaborators
	detector *repair.Detector
}

func New(cfg *config.Config, store *cache.Store, collab Collaborators) *Engine {
	if collab.Consistency == nil {
		collab.Consistency = collab.Reasoner
	}
	return &Engine{
		cfg:    cfg,
		store:  store,
		collab: collab,
		detector: repair.NewDetector(
			cfg.Repair.DetectFloor,
			cfg.Repair.AutoFloor,
			cfg.Repair.ExcludePatterns,
		),
	}
}

// Open loads a spec by path, or by fuzzy name lookup within the
// configured spec directory when path does not point at a file.
// Ambiguity resolves to the best candidate and is logged.
func (e *Engine) Open(nameOrPath string) (*spec.Document, error) {
	if _, err := os.Stat(nameOrPath); err == nil {
		return spec.Parse(nameOrPath)
	}
	path, err := spec.Resolve(e.cfg.SpecDir, nameOrPath)
	if err != nil {
		if amb, ok := err.(*spec.AmbiguousSpecError); ok {
			log.Warn("ambiguous spec query, using best candidate",
				"query", amb.Query, "chosen", path, "candidates", len(amb.Candidates))
		} else {
			return nil, err
		}
	}
	return spec.Parse(path)
}

// allSpecs parses every spec document under the spec directory,
// skipping unparseable files.
func (e *Engine) allSpecs() ([]*spec.Document, error) {
	entries, err := os.ReadDir(e.cfg.SpecDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []*spec.Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".md", ".markdown", ".yaml", ".yml", ".json":
		default:
			continue
		}
		doc, err := spec.Parse(filepath.Join(e.cfg.SpecDir, entry.Name()))
		if err != nil {
			log.Warn("skipping unparseable spec", "file", entry.Name(), "error", err)
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// recordedHashes prefers the document's embedded metadata snapshot and
// falls back to the cache store's.
func (e *Engine) recordedHashes(doc *spec.Document) (map[string]string, error) {
	hashes := map[string]string{}
	for p, h := range doc.Spec.Meta.FileHashes {
		hashes[p] = h
	}

	records, err := e.store.GetHashes(doc.Spec.Slug)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if _, ok := hashes[rec.Path]; !ok {
			hashes[rec.Path] = rec.Hash
		}
	}
	return hashes, nil
}

// currentHashes hashes every tracked file as it exists now. Missing
// files map to an empty hash so they still perturb the fingerprint.
func (e *Engine) currentHashes(s *spec.Spec) map[string]string {
	out := map[string]string{}
	for _, f := range s.Files {
		h, err := cache.HashFile(filepath.Join(e.cfg.Root, f))
		if err != nil {
			h = ""
		}
		out[f] = h
	}
	return out
}

// Snapshot captures a fresh hash-and-token snapshot of the tracked
// files, persisting it both in the cache store and in the document's
// metadata block.
func (e *Engine) Snapshot(doc *spec.Document) error {
	var records []spec.FileHashRecord
	hashes := map[string]string{}

	for _, f := range doc.Spec.Files {
		full := filepath.Join(e.cfg.Root, f)
		data, err := os.ReadFile(full)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", f, err)
		}
		h := cache.HashBytes(data)
		hashes[f] = h
		records = append(records, spec.FileHashRecord{
			Path:   f,
			Hash:   h,
			Tokens: cache.TokenSample(data),
		})
	}

	if err := e.store.SnapshotHashes(doc.Spec.Slug, records); err != nil {
		return err
	}
	doc.SetFileHashes(hashes)
	return doc.Save()
}

// trackedContents reads the tracked files for extraction, decoding
// them to UTF-8. Missing files are skipped.
func (e *Engine) trackedContents(s *spec.Spec) (map[string]string, error) {
	out := map[string]string{}
	for _, f := range s.Files {
		data, err := os.ReadFile(filepath.Join(e.cfg.Root, f))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		decoded, _, err := textenc.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", f, err)
		}
		out[f] = string(decoded)
	}
	return out, nil
}

// Audit reconciles the spec's declared checks against capability
// bullets mined from the tracked files by the extraction collaborator.
func (e *Engine) Audit(ctx context.Context, doc *spec.Document) (*drift.Report, error) {
	contents, err := e.trackedContents(doc.Spec)
	if err != nil {
		return nil, err
	}

	implBullets, err := e.collab.Extractor.ExtractBullets(ctx, contents)
	if err != nil {
		return nil, &status.CollaboratorFailureError{Service: "extraction", Err: err}
	}

	specBullets := make([]string, len(doc.Spec.Checks))
	for i, c := range doc.Spec.Checks {
		specBullets[i] = c.Require
	}

	th := drift.Thresholds{
		Match: e.cfg.Drift.MatchThreshold,
		Gap:   e.cfg.Drift.GapThreshold,
	}
	return drift.Audit(specBullets, implBullets, th), nil
}
