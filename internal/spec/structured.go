package spec

import (
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// structuredDoc mirrors the on-disk structured dialect. Older
// documents spell the check list `requirements`; both normalize into
// the same canonical Check slice.
type structuredDoc struct {
	Title        string            `yaml:"title"`
	Files        []string          `yaml:"files,omitempty"`
	Checks       []structuredCheck `yaml:"checks,omitempty"`
	Requirements []structuredCheck `yaml:"requirements,omitempty"`
	Meta         *structuredMeta   `yaml:"meta,omitempty"`
}

type structuredCheck struct {
	ID      string `yaml:"id,omitempty"`
	Require string `yaml:"require"`
	Test    string `yaml:"test,omitempty"`
	Status  string `yaml:"status,omitempty"`
}

type structuredMeta struct {
	AutoDiscovery bool              `yaml:"auto_discovery,omitempty"`
	FileHashes    map[string]string `yaml:"file_hashes,omitempty"`
}

func parseStructured(path string, data []byte) (*Document, error) {
	var raw structuredDoc
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}
	if raw.Title == "" {
		return nil, &ParseError{Path: path, Reason: "missing title"}
	}
	if len(raw.Checks) > 0 && len(raw.Requirements) > 0 {
		return nil, &ParseError{Path: path, Reason: "both 'checks' and 'requirements' present"}
	}

	records := raw.Checks
	if len(records) == 0 {
		records = raw.Requirements
	}

	s := &Spec{
		Title: raw.Title,
		Slug:  Slugify(raw.Title),
		Files: raw.Files,
		Meta:  Meta{FileHashes: map[string]string{}},
	}
	if raw.Meta != nil {
		s.Meta.AutoDiscovery = raw.Meta.AutoDiscovery
		for p, h := range raw.Meta.FileHashes {
			s.Meta.FileHashes[p] = h
		}
	}

	ids := map[string]int{}
	for i, rec := range records {
		status := StatusUnchecked
		if rec.Status != "" {
			status = Status(rec.Status)
			if !status.Valid() {
				return nil, &ParseError{Path: path,
					Reason: fmt.Sprintf("check %d: invalid status %q", i+1, rec.Status)}
			}
		}
		id := rec.ID
		if id == "" {
			// Position-based ids stay stable across reparses of the
			// same document.
			id = dedupeID(ids, Slugify(rec.Require))
		} else {
			ids[id]++
			if ids[id] > 1 {
				return nil, &ParseError{Path: path,
					Reason: fmt.Sprintf("duplicate check id %q", id)}
			}
		}
		s.Checks = append(s.Checks, &Check{
			ID:      id,
			Require: rec.Require,
			Test:    rec.Test,
			Status:  status,
		})
	}

	return &Document{Spec: s, Path: path, Dialect: DialectStructured, metaStart: -1, metaEnd: -1}, nil
}

func serializeStructured(s *Spec) ([]byte, error) {
	doc := structuredDoc{
		Title: s.Title,
		Files: s.Files,
	}
	for _, c := range s.Checks {
		doc.Checks = append(doc.Checks, structuredCheck{
			ID:      c.ID,
			Require: c.Require,
			Test:    c.Test,
			Status:  string(c.Status),
		})
	}
	if s.Meta.AutoDiscovery || len(s.Meta.FileHashes) > 0 {
		doc.Meta = &structuredMeta{
			AutoDiscovery: s.Meta.AutoDiscovery,
			FileHashes:    s.Meta.FileHashes,
		}
	}
	return yaml.Marshal(&doc)
}

// NewCheck creates a check for programmatic spec construction with a
// fresh unique id.
func NewCheck(require string) *Check {
	return &Check{
		ID:      uuid.NewString(),
		Require: require,
		Status:  StatusUnchecked,
	}
}
