package textenc

import (
	"bytes"
	"testing"
	"unicode/utf16"
)

func utf16Bytes(s string, bigEndian bool) []byte {
	units := utf16.Encode([]rune(s))
	var buf bytes.Buffer
	if bigEndian {
		buf.Write(bomUTF16BE)
	} else {
		buf.Write(bomUTF16LE)
	}
	for _, u := range units {
		if bigEndian {
			buf.WriteByte(byte(u >> 8))
			buf.WriteByte(byte(u))
		} else {
			buf.WriteByte(byte(u))
			buf.WriteByte(byte(u >> 8))
		}
	}
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name     string
		data     []byte
		encoding string
		hasBOM   bool
	}{
		{"plain utf-8", []byte("# Feature: Demo\n"), "utf-8", false},
		{"utf-8 bom", append(append([]byte{}, bomUTF8...), []byte("hello")...), "utf-8", true},
		{"utf-16le bom", utf16Bytes("hello", false), "utf-16le", true},
		{"utf-16be bom", utf16Bytes("hello", true), "utf-16be", true},
		{"latin-1", []byte{'c', 'a', 'f', 0xE9}, "latin-1", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Detect(tc.data)
			if res.Encoding != tc.encoding {
				t.Errorf("expected %s, got %s", tc.encoding, res.Encoding)
			}
			if res.HasBOM != tc.hasBOM {
				t.Errorf("expected hasBOM=%v, got %v", tc.hasBOM, res.HasBOM)
			}
		})
	}
}

func TestDecodeStripsBOM(t *testing.T) {
	data := append(append([]byte{}, bomUTF8...), []byte("# Feature: Demo")...)
	out, res, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Encoding != "utf-8" || !res.HasBOM {
		t.Errorf("unexpected detection: %+v", res)
	}
	if string(out) != "# Feature: Demo" {
		t.Errorf("BOM not stripped: %q", out)
	}
}

func TestDecodeUTF16(t *testing.T) {
	for _, bigEndian := range []bool{false, true} {
		out, _, err := Decode(utf16Bytes("résumé", bigEndian))
		if err != nil {
			t.Fatalf("decode(bigEndian=%v): %v", bigEndian, err)
		}
		if string(out) != "résumé" {
			t.Errorf("bad round trip: %q", out)
		}
	}
}

func TestDecodeLatin1(t *testing.T) {
	out, res, err := Decode([]byte{'c', 'a', 'f', 0xE9})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Encoding != "latin-1" {
		t.Errorf("expected latin-1, got %s", res.Encoding)
	}
	if string(out) != "café" {
		t.Errorf("bad conversion: %q", out)
	}
}
