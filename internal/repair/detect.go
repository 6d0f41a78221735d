// Package repair detects renamed tracked files and rewrites spec
// references without disturbing check status.
package repair

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/dfalgout/specsentry/internal/cache"
	"github.com/dfalgout/specsentry/internal/logger"
	"github.com/dfalgout/specsentry/internal/spec"
)

var log = logger.ForComponent("repair")

type Detector struct {
	// DetectFloor is the minimum blended score to retain a candidate;
	// AutoFloor marks it eligible for unattended application.
	DetectFloor float64
	AutoFloor   float64
	Excludes    []string
}

func NewDetector(detectFloor, autoFloor float64, excludes []string) *Detector {
	return &Detector{DetectFloor: detectFloor, AutoFloor: autoFloor, Excludes: excludes}
}

// DetectRenames pairs tracked files that no longer exist with
// newly-appeared files under root. The score blends basename
// similarity with content-token overlap against the stored snapshot;
// when no token snapshot exists the basename carries the full weight.
// Each new file is claimed by at most one old path, best score first.
func (d *Detector) DetectRenames(s *spec.Spec, root string, snapshot []spec.FileHashRecord) ([]spec.RenameRecord, error) {
	tracked := map[string]bool{}
	var missing []string
	for _, f := range s.Files {
		tracked[f] = true
		if _, err := os.Stat(filepath.Join(root, f)); os.IsNotExist(err) {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	candidates, err := d.scanUntracked(root, tracked)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	tokens := map[string][]string{}
	for _, rec := range snapshot {
		tokens[rec.Path] = rec.Tokens
	}

	type pairing struct {
		old   string
		new   string
		score float64
	}
	var pairs []pairing
	for _, old := range missing {
		for _, cand := range candidates {
			score := d.score(root, old, cand, tokens[old])
			if score >= d.DetectFloor {
				pairs = append(pairs, pairing{old: old, new: cand, score: score})
			}
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })

	usedOld := map[string]bool{}
	usedNew := map[string]bool{}
	var out []spec.RenameRecord
	for _, p := range pairs {
		if usedOld[p.old] || usedNew[p.new] {
			continue
		}
		usedOld[p.old] = true
		usedNew[p.new] = true
		out = append(out, spec.RenameRecord{
			OldPath:    p.old,
			NewPath:    p.new,
			Confidence: clamp01(p.score),
		})
		log.Debug("rename candidate", "old", p.old, "new", p.new, "confidence", p.score)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].OldPath < out[j].OldPath })
	return out, nil
}

func (d *Detector) scanUntracked(root string, tracked map[string]bool) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.excluded(rel) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.IsDir() && !tracked[rel] {
			out = append(out, rel)
		}
		return nil
	})
	return out, err
}

func (d *Detector) excluded(rel string) bool {
	for _, pattern := range d.Excludes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// score blends basename similarity with content-token overlap so that
// either a near-identical name or near-identical content alone is
// enough to clear the auto floor.
func (d *Detector) score(root, oldPath, newPath string, oldTokens []string) float64 {
	name := basenameSimilarity(oldPath, newPath)
	if len(oldTokens) == 0 {
		return name
	}

	data, err := os.ReadFile(filepath.Join(root, newPath))
	if err != nil {
		return name
	}
	overlap := tokenOverlap(oldTokens, cache.TokenSample(data))
	return 1 - (1-name)*(1-overlap)
}

// basenameSimilarity is normalized Levenshtein similarity over the
// extension-stripped, lowercased basenames.
func basenameSimilarity(a, b string) float64 {
	na := stem(a)
	nb := stem(b)
	if na == nb {
		return 1
	}
	longest := max(len([]rune(na)), len([]rune(nb)))
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(na, nb)
	return 1 - float64(dist)/float64(longest)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// tokenOverlap is the Jaccard index of the two token lists.
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := map[string]bool{}
	for _, t := range a {
		setA[t] = true
	}
	inter := 0
	setB := map[string]bool{}
	for _, t := range b {
		if setB[t] {
			continue
		}
		setB[t] = true
		if setA[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
