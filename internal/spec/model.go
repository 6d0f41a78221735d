// Package spec implements the canonical in-memory model for spec
// documents and the codecs for their two on-disk dialects. Downstream
// packages only ever see the canonical types; the source dialect is an
// implementation detail of parsing and serialization.
package spec

import (
	"strings"
	"time"
)

type Status string

const (
	StatusUnchecked Status = "unchecked"
	StatusPass      Status = "pass"
	StatusFail      Status = "fail"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUnchecked, StatusPass, StatusFail:
		return true
	}
	return false
}

type Dialect string

const (
	DialectChecklist  Dialect = "checklist"
	DialectStructured Dialect = "structured"
)

// Check is a single testable requirement inside a Spec.
type Check struct {
	ID      string
	Require string
	Test    string
	Status  Status
}

// Meta carries the optional trailing metadata of a spec document.
type Meta struct {
	AutoDiscovery bool
	FileHashes    map[string]string
}

type Spec struct {
	Title  string
	Slug   string
	Checks []*Check
	Files  []string
	Meta   Meta
}

// FileHashRecord is a tracked file's content hash captured at snapshot
// time, plus a token sample used later for rename scoring.
type FileHashRecord struct {
	Path       string
	Hash       string
	Tokens     []string
	CapturedAt time.Time
}

type RenameRecord struct {
	OldPath    string
	NewPath    string
	Confidence float64
}

// CheckByID returns the check with the given id, or CheckNotFoundError.
func (s *Spec) CheckByID(id string) (*Check, error) {
	for _, c := range s.Checks {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, &CheckNotFoundError{Spec: s.Slug, ID: id}
}

// AllUnchecked reports whether no check carries a verification result.
func (s *Spec) AllUnchecked() bool {
	for _, c := range s.Checks {
		if c.Status != StatusUnchecked {
			return false
		}
	}
	return true
}

// AllPass reports whether every check passed. An empty spec is
// vacuously passing.
func (s *Spec) AllPass() bool {
	for _, c := range s.Checks {
		if c.Status != StatusPass {
			return false
		}
	}
	return true
}

// Slugify reduces a title or filename to its lookup key: lowercase
// alphanumeric runs joined by single dashes.
func Slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
