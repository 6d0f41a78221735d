// Package textenc normalizes on-disk text to UTF-8 before parsing.
// Spec documents and tracked sources occasionally arrive as UTF-16 or
// legacy single-byte files; everything downstream assumes UTF-8.
package textenc

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

type Result struct {
	Encoding string
	HasBOM   bool
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Detect identifies the encoding of data from its BOM, falling back to
// UTF-8 validation and finally Latin-1.
func Detect(data []byte) Result {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return Result{Encoding: "utf-8", HasBOM: true}
	case bytes.HasPrefix(data, bomUTF16LE):
		return Result{Encoding: "utf-16le", HasBOM: true}
	case bytes.HasPrefix(data, bomUTF16BE):
		return Result{Encoding: "utf-16be", HasBOM: true}
	}
	if utf8.Valid(data) {
		return Result{Encoding: "utf-8"}
	}
	return Result{Encoding: "latin-1"}
}

// Decode converts data to UTF-8, stripping any BOM.
func Decode(data []byte) ([]byte, Result, error) {
	res := Detect(data)

	var enc encoding.Encoding
	switch res.Encoding {
	case "utf-8":
		if res.HasBOM {
			data = data[len(bomUTF8):]
		}
		return data, res, nil
	case "utf-16le":
		enc = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
	case "utf-16be":
		enc = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
	case "latin-1":
		enc = charmap.ISO8859_1
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, res, fmt.Errorf("decode %s: %w", res.Encoding, err)
	}
	return decoded, res, nil
}
