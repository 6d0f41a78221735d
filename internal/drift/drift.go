// Package drift reconciles declared checks against capability phrases
// mined from the implementation. Mining is delegated to an
// ExtractionService; everything in this package is pure text work,
// deterministic for fixed inputs.
package drift

import (
	"context"
	"strings"
)

// ExtractionService mines short capability phrases from source files.
// Implementations typically wrap a language model; this package only
// consumes the resulting phrase list.
type ExtractionService interface {
	ExtractBullets(ctx context.Context, files map[string]string) ([]string, error)
}

// Normalize reduces a phrase to its comparable form: lowercased,
// whitespace collapsed, leading bullet markers and trailing
// punctuation stripped.
func Normalize(phrase string) string {
	s := strings.TrimSpace(strings.ToLower(phrase))
	for _, prefix := range []string{"- ", "* ", "+ ", "• "} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}
	s = strings.TrimRight(s, ".,;:!?")
	return strings.Join(strings.Fields(s), " ")
}

// Tokens returns the normalized token set of a phrase.
func Tokens(phrase string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range strings.Fields(Normalize(phrase)) {
		set[tok] = true
	}
	return set
}

// Similarity is the Jaccard index of the two phrases' token sets.
// It is symmetric, 0 when exactly one set is empty, and 1 for
// identical normalized phrases (including two empty ones).
func Similarity(a, b string) float64 {
	return jaccard(Tokens(a), Tokens(b))
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
