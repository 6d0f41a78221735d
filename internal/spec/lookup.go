package spec

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Candidate is one fuzzy-lookup result.
type Candidate struct {
	Path  string
	Slug  string
	Score float64
}

var specExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".yaml":     true,
	".yml":      true,
	".json":     true,
}

// FindByName fuzzy-matches query against the slugified titles and
// filenames of every spec document under dir. The result is ordered
// best first; ambiguity is the caller's to resolve (see Resolve).
func FindByName(dir, query string) ([]Candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	q := Slugify(query)
	var out []Candidate

	for _, entry := range entries {
		if entry.IsDir() || !specExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		nameSlug := Slugify(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
		best := matchScore(q, nameSlug)
		slug := nameSlug

		if doc, err := Parse(path); err == nil {
			slug = doc.Spec.Slug
			if s := matchScore(q, doc.Spec.Slug); s > best {
				best = s
			}
		}

		if best > 0 {
			out = append(out, Candidate{Path: path, Slug: slug, Score: best})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// Resolve returns the best candidate path for query. When several
// specs match, the best one is still returned alongside an
// AmbiguousSpecError so callers can proceed by convention while
// reporting the ambiguity.
func Resolve(dir, query string) (string, error) {
	candidates, err := FindByName(dir, query)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", &ParseError{Path: dir, Reason: "no spec matches " + query}
	}
	if len(candidates) > 1 {
		paths := make([]string, len(candidates))
		for i, c := range candidates {
			paths[i] = c.Path
		}
		return candidates[0].Path, &AmbiguousSpecError{Query: query, Candidates: paths}
	}
	return candidates[0].Path, nil
}

func matchScore(query, slug string) float64 {
	switch {
	case query == "" || slug == "":
		return 0
	case slug == query:
		return 1
	case strings.HasPrefix(slug, query):
		return 0.85
	case strings.Contains(slug, query):
		return 0.7
	}

	qt := strings.Split(query, "-")
	st := strings.Split(slug, "-")
	inter := 0
	set := map[string]bool{}
	for _, t := range st {
		set[t] = true
	}
	for _, t := range qt {
		if set[t] {
			inter++
		}
	}
	union := len(set)
	for _, t := range qt {
		if !set[t] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return 0.6 * float64(inter) / float64(union)
}
