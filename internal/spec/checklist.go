package spec

import (
	"fmt"
	"sort"
	"strings"
)

const (
	featurePrefix = "# Feature:"
	checksHeading = "## Checks"
	filesHeading  = "## Files"
	metaOpen      = "<!-- specsentry:meta"
	metaClose     = "-->"
)

func parseChecklist(path string, data []byte) (*Document, error) {
	lines := strings.Split(string(data), "\n")

	doc := &Document{
		Path:      path,
		Dialect:   DialectChecklist,
		lines:     lines,
		metaStart: -1,
		metaEnd:   -1,
		Spec: &Spec{
			Meta: Meta{FileHashes: map[string]string{}},
		},
	}

	section := ""
	ids := map[string]int{}

	for i, raw := range lines {
		line := strings.TrimRight(raw, "\r")

		switch {
		case strings.HasPrefix(line, featurePrefix):
			if doc.Spec.Title == "" {
				doc.Spec.Title = strings.TrimSpace(strings.TrimPrefix(line, featurePrefix))
			}
		case strings.HasPrefix(line, "## "):
			section = strings.TrimSpace(line)
		case line == metaOpen:
			doc.metaStart = i
			end, err := parseMetaBlock(doc, lines, i)
			if err != nil {
				return nil, err
			}
			doc.metaEnd = end
		}

		switch section {
		case checksHeading:
			if !strings.HasPrefix(line, "- [") {
				continue
			}
			marker, rest, err := splitCheckLine(path, i+1, line)
			if err != nil {
				return nil, err
			}
			status, ok := StatusForMarker(marker)
			if !ok {
				return nil, &UnrecognizedMarkerError{Path: path, Line: i + 1, Marker: marker}
			}
			check := &Check{
				ID:      dedupeID(ids, Slugify(rest)),
				Require: rest,
				Status:  status,
			}
			doc.Spec.Checks = append(doc.Spec.Checks, check)
			doc.checkLines = append(doc.checkLines, i)
			doc.origMarkers = append(doc.origMarkers, marker)
		case filesHeading:
			if !strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "- [") {
				continue
			}
			p := strings.TrimSpace(strings.TrimPrefix(line, "- "))
			if p == "" {
				continue
			}
			doc.Spec.Files = append(doc.Spec.Files, p)
			doc.fileLines = append(doc.fileLines, i)
			doc.origFiles = append(doc.origFiles, p)
		}
	}

	if doc.Spec.Title == "" {
		return nil, &ParseError{Path: path, Reason: "missing '# Feature:' heading"}
	}
	doc.Spec.Slug = Slugify(doc.Spec.Title)

	return doc, nil
}

// splitCheckLine extracts the bracket token and requirement text from a
// `- [<marker>] <text>` line.
func splitCheckLine(path string, lineno int, line string) (marker, rest string, err error) {
	body := strings.TrimPrefix(line, "- [")
	end := strings.Index(body, "]")
	if end < 0 {
		return "", "", &ParseError{Path: path, Line: lineno, Reason: "unterminated check marker"}
	}
	marker = body[:end]
	rest = strings.TrimSpace(body[end+1:])
	return marker, rest, nil
}

func dedupeID(seen map[string]int, id string) string {
	if id == "" {
		id = "check"
	}
	seen[id]++
	if n := seen[id]; n > 1 {
		return fmt.Sprintf("%s-%d", id, n)
	}
	return id
}

func parseMetaBlock(doc *Document, lines []string, start int) (int, error) {
	for i := start + 1; i < len(lines); i++ {
		line := strings.TrimSpace(strings.TrimRight(lines[i], "\r"))
		if line == metaClose {
			return i, nil
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "auto-discovery":
			doc.Spec.Meta.AutoDiscovery = value == "true"
		case "hash":
			// `hash: <path> <hex>`; the hash is the last field so
			// paths containing spaces survive.
			sep := strings.LastIndex(value, " ")
			if sep <= 0 {
				continue
			}
			doc.Spec.Meta.FileHashes[strings.TrimSpace(value[:sep])] = value[sep+1:]
		}
	}
	return -1, &ParseError{Path: doc.Path, Line: start + 1, Reason: "unterminated metadata block"}
}

func (d *Document) serializeChecklist() ([]byte, error) {
	out := make([]string, len(d.lines))
	copy(out, d.lines)

	for i, check := range d.Spec.Checks {
		if i >= len(d.checkLines) {
			break
		}
		orig := d.origMarkers[i]
		if st, _ := StatusForMarker(orig); st == check.Status {
			continue
		}
		lineno := d.checkLines[i]
		out[lineno] = replaceMarker(out[lineno], orig, MarkerForStatus(check.Status))
	}

	for i, f := range d.Spec.Files {
		if i >= len(d.fileLines) {
			break
		}
		if f == d.origFiles[i] {
			continue
		}
		lineno := d.fileLines[i]
		out[lineno] = strings.Replace(out[lineno], d.origFiles[i], f, 1)
	}

	if d.metaDirty {
		out = spliceMetaBlock(out, d)
	}

	return []byte(strings.Join(out, "\n")), nil
}

func replaceMarker(line, old, new string) string {
	return strings.Replace(line, "["+old+"]", "["+new+"]", 1)
}

func spliceMetaBlock(lines []string, d *Document) []string {
	block := renderMetaBlock(d.Spec.Meta)

	if d.metaStart >= 0 && d.metaEnd >= d.metaStart {
		out := make([]string, 0, len(lines))
		out = append(out, lines[:d.metaStart]...)
		out = append(out, block...)
		out = append(out, lines[d.metaEnd+1:]...)
		return out
	}

	out := lines
	// Drop a single trailing empty line so the block lands after the
	// final newline rather than leaving a gap, then restore it.
	trailing := false
	if len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
		trailing = true
	}
	out = append(out, "")
	out = append(out, block...)
	if trailing {
		out = append(out, "")
	}
	return out
}

func renderMetaBlock(m Meta) []string {
	block := []string{metaOpen}
	block = append(block, fmt.Sprintf("auto-discovery: %t", m.AutoDiscovery))

	paths := make([]string, 0, len(m.FileHashes))
	for p := range m.FileHashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		block = append(block, fmt.Sprintf("hash: %s %s", p, m.FileHashes[p]))
	}

	return append(block, metaClose)
}
