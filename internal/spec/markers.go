package spec

// The marker table is the single source of truth for checklist bracket
// tokens, shared by parse and serialize.

var markerStatus = map[string]Status{
	" ":  StatusUnchecked,
	"x":  StatusPass,
	"X":  StatusPass,
	"✓":  StatusPass,
	"🟩": StatusPass,
	"✖":  StatusFail,
	"🟥": StatusFail,
}

var canonicalMarker = map[Status]string{
	StatusUnchecked: " ",
	StatusPass:      "🟩",
	StatusFail:      "🟥",
}

// StatusForMarker resolves a bracket token; ok is false for tokens
// outside the table.
func StatusForMarker(marker string) (Status, bool) {
	st, ok := markerStatus[marker]
	return st, ok
}

// MarkerForStatus returns the token written when a check's status
// changes. Existing tokens that already encode the right status are
// left untouched by serialization.
func MarkerForStatus(st Status) string {
	return canonicalMarker[st]
}
