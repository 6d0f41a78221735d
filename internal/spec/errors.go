package spec

import (
	"fmt"
	"strings"
)

// ParseError reports a document whose shape is not a recognizable spec.
type ParseError struct {
	Path   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s:%d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("parse %s: %s", e.Path, e.Reason)
}

// UnrecognizedMarkerError reports a checklist bracket token outside the
// marker table. Unknown markers are never coerced to a status.
type UnrecognizedMarkerError struct {
	Path   string
	Line   int
	Marker string
}

func (e *UnrecognizedMarkerError) Error() string {
	return fmt.Sprintf("%s:%d: unrecognized check marker %q", e.Path, e.Line, e.Marker)
}

type CheckNotFoundError struct {
	Spec string
	ID   string
}

func (e *CheckNotFoundError) Error() string {
	return fmt.Sprintf("spec %s: no check with id %q", e.Spec, e.ID)
}

// AmbiguousSpecError carries the ordered candidate list when a name
// query matches more than one spec. Callers resolve by convention
// (first candidate) but must report the ambiguity.
type AmbiguousSpecError struct {
	Query      string
	Candidates []string
}

func (e *AmbiguousSpecError) Error() string {
	return fmt.Sprintf("query %q matches %d specs: %s",
		e.Query, len(e.Candidates), strings.Join(e.Candidates, ", "))
}
