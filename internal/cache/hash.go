package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"
)

// HashFile returns the sha256 hex digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the sha256 hex digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Fresh reports whether the file's current content still matches the
// recorded hash. A missing file is never fresh.
func Fresh(path, recorded string) bool {
	current, err := HashFile(path)
	if err != nil {
		return false
	}
	return current == recorded
}

// Fingerprint derives the cache key for a spec from its identity and
// the tracked-file hash set. Any hash change yields a new fingerprint,
// implicitly invalidating memoized results.
func Fingerprint(slug string, hashes map[string]string) string {
	paths := make([]string, 0, len(hashes))
	for p := range hashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	io.WriteString(h, slug)
	for _, p := range paths {
		io.WriteString(h, "\x00")
		io.WriteString(h, p)
		io.WriteString(h, "\x00")
		io.WriteString(h, hashes[p])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// tokenSampleSize caps the tokens captured per file at snapshot time;
// rename scoring needs a representative sample, not the full file.
const tokenSampleSize = 512

// TokenSample extracts the deduplicated identifier-ish tokens of a
// source file, used later for rename content-overlap scoring.
func TokenSample(data []byte) []string {
	fields := strings.FieldsFunc(string(data), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	seen := map[string]bool{}
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		tok := strings.ToLower(f)
		if seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
		if len(tokens) >= tokenSampleSize {
			break
		}
	}
	return tokens
}
