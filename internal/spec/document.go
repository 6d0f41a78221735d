package spec

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/dfalgout/specsentry/internal/textenc"
)

// Document binds a parsed Spec to its source text so mutations can be
// persisted as targeted splices instead of full regeneration.
type Document struct {
	Spec    *Spec
	Path    string
	Dialect Dialect

	// checklist dialect state: the original lines, the line index and
	// original marker of every check, the line index of every tracked
	// file entry, and the metadata block range (-1 when absent).
	lines       []string
	checkLines  []int
	origMarkers []string
	fileLines   []int
	origFiles   []string
	metaStart   int
	metaEnd     int
	metaDirty   bool
}

// Parse reads and parses the spec document at path.
func Parse(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBytes(path, data)
}

// ParseBytes parses data as the spec document nominally located at
// path. The dialect is detected from content and extension; input is
// decoded to UTF-8 first.
func ParseBytes(path string, data []byte) (*Document, error) {
	decoded, _, err := textenc.Decode(data)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}

	switch detectDialect(path, decoded) {
	case DialectStructured:
		return parseStructured(path, decoded)
	default:
		return parseChecklist(path, decoded)
	}
}

func detectDialect(path string, data []byte) Dialect {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return DialectStructured
	case ".md", ".markdown":
		return DialectChecklist
	}
	// Ambiguous extension: a feature heading wins, a bare top-level
	// mapping reads as structured.
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("#")) {
		return DialectChecklist
	}
	if bytes.HasPrefix(trimmed, []byte("title:")) || bytes.HasPrefix(trimmed, []byte("{")) {
		return DialectStructured
	}
	return DialectChecklist
}

// Serialize renders the document. For the checklist dialect only the
// bracket tokens of flipped checks, rewritten file references, and a
// dirty metadata block are touched; all other bytes are preserved.
func (d *Document) Serialize() ([]byte, error) {
	if d.Dialect == DialectStructured {
		return serializeStructured(d.Spec)
	}
	return d.serializeChecklist()
}

// Save serializes the document and writes it back to its path as a
// single write.
func (d *Document) Save() error {
	out, err := d.Serialize()
	if err != nil {
		return err
	}
	return os.WriteFile(d.Path, out, 0o644)
}

// RewritePath replaces a tracked file reference in place, updating the
// file list and any recorded hash key. Check statuses are untouched.
func (d *Document) RewritePath(oldPath, newPath string) bool {
	changed := false
	for i, f := range d.Spec.Files {
		if f == oldPath {
			d.Spec.Files[i] = newPath
			changed = true
		}
	}
	if h, ok := d.Spec.Meta.FileHashes[oldPath]; ok {
		delete(d.Spec.Meta.FileHashes, oldPath)
		d.Spec.Meta.FileHashes[newPath] = h
		d.metaDirty = true
		changed = true
	}
	return changed
}

// AddCheck appends a new check to the document. For the checklist
// dialect an entry line is inserted after the last existing check, or
// a Checks section is created when the document has none.
func (d *Document) AddCheck(check *Check) {
	d.Spec.Checks = append(d.Spec.Checks, check)
	if d.Dialect != DialectChecklist {
		return
	}

	marker := MarkerForStatus(check.Status)
	entry := "- [" + marker + "] " + check.Require

	at := -1
	block := []string{entry}
	if n := len(d.checkLines); n > 0 {
		at = d.checkLines[n-1] + 1
	} else {
		for i, l := range d.lines {
			if strings.TrimRight(l, "\r") == checksHeading {
				at = i + 1
				break
			}
		}
		if at < 0 {
			at = len(d.lines)
			if d.metaStart >= 0 {
				at = d.metaStart
			}
			block = []string{checksHeading, entry, ""}
		}
	}

	entryAt := at
	if len(block) > 1 {
		entryAt = at + 1
	}
	d.insertLines(at, block)
	d.checkLines = append(d.checkLines, entryAt)
	d.origMarkers = append(d.origMarkers, marker)
}

// insertLines splices block into the document at the given line index
// and shifts every recorded line position at or past it.
func (d *Document) insertLines(at int, block []string) {
	out := make([]string, 0, len(d.lines)+len(block))
	out = append(out, d.lines[:at]...)
	out = append(out, block...)
	out = append(out, d.lines[at:]...)
	d.lines = out

	n := len(block)
	for i, l := range d.checkLines {
		if l >= at {
			d.checkLines[i] += n
		}
	}
	for i, l := range d.fileLines {
		if l >= at {
			d.fileLines[i] += n
		}
	}
	if d.metaStart >= at {
		d.metaStart += n
		d.metaEnd += n
	}
}

// SetFileHashes replaces the recorded hash snapshot.
func (d *Document) SetFileHashes(hashes map[string]string) {
	d.Spec.Meta.FileHashes = hashes
	d.metaDirty = true
}

// SetAutoDiscovery flips the auto-discovery metadata flag.
func (d *Document) SetAutoDiscovery(on bool) {
	if d.Spec.Meta.AutoDiscovery != on {
		d.Spec.Meta.AutoDiscovery = on
		d.metaDirty = true
	}
}
