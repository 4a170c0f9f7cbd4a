package tlv

import (
	"bytes"
	"testing"
)

func TestDecodeOneShortForm(t *testing.T) {
	buf := []byte{0x82, 0x02, 0x19, 0x80, 0xFF} // AIP tag 82, len 2, trailing garbage
	dec, err := DecodeOne(buf)
	if err != nil {
		t.Fatalf("DecodeOne: %v", err)
	}
	if dec.Tag != 0x82 {
		t.Fatalf("tag = %02X, want 82", dec.Tag)
	}
	if !bytes.Equal(dec.Value, []byte{0x19, 0x80}) {
		t.Fatalf("value = % X", dec.Value)
	}
	if dec.Consumed != 4 {
		t.Fatalf("consumed = %d, want 4", dec.Consumed)
	}
}

func TestDecodeOneTwoByteTag(t *testing.T) {
	buf := []byte{0x9F, 0x02, 0x06, 0, 0, 0, 0, 0x10, 0x00}
	dec, err := DecodeOne(buf)
	if err != nil {
		t.Fatalf("DecodeOne: %v", err)
	}
	if dec.Tag != 0x9F02 {
		t.Fatalf("tag = %04X, want 9F02", dec.Tag)
	}
	if dec.Consumed != 9 {
		t.Fatalf("consumed = %d, want 9", dec.Consumed)
	}
}

func TestDecodeOneLongFormLength(t *testing.T) {
	value := bytes.Repeat([]byte{0xAB}, 200)
	buf := append([]byte{0x5F, 0x20, 0x81, 200}, value...)
	dec, err := DecodeOne(buf)
	if err != nil {
		t.Fatalf("DecodeOne: %v", err)
	}
	if dec.Tag != 0x5F20 {
		t.Fatalf("tag = %04X", dec.Tag)
	}
	if len(dec.Value) != 200 {
		t.Fatalf("value len = %d, want 200", len(dec.Value))
	}
}

func TestDecodeOneTagTruncated(t *testing.T) {
	buf := []byte{0x9F} // claims more-follows (0x1F low bits) but nothing after
	if _, err := DecodeOne(buf); err != ErrTagTruncated {
		t.Fatalf("err = %v, want ErrTagTruncated", err)
	}
}

func TestDecodeOneInvalidHighTag(t *testing.T) {
	buf := []byte{0x1F, 0x00, 0x01} // high-tag-number form with redundant zero byte
	if _, err := DecodeOne(buf); err != ErrInvalidHighTag {
		t.Fatalf("err = %v, want ErrInvalidHighTag", err)
	}
}

func TestDecodeOneLengthTruncated(t *testing.T) {
	buf := []byte{0x5A, 0x81} // long form claims 1 more length byte, none present
	if _, err := DecodeOne(buf); err != ErrLengthTruncated {
		t.Fatalf("err = %v, want ErrLengthTruncated", err)
	}
}

func TestDecodeOneValueTruncated(t *testing.T) {
	buf := []byte{0x5A, 0x05, 0x11, 0x22} // claims 5 value bytes, only 2 present
	if _, err := DecodeOne(buf); err != ErrValueTruncated {
		t.Fatalf("err = %v, want ErrValueTruncated", err)
	}
}

func TestParseAllFlattensKnownTemplate(t *testing.T) {
	// 70 { 5A 02 1234, 5F24 02 2512 }
	inner := []byte{0x5A, 0x02, 0x12, 0x34, 0x5F, 0x24, 0x02, 0x25, 0x12}
	buf := append([]byte{0x70, byte(len(inner))}, inner...)

	list, err := ParseAll(buf)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	if list[0].Tag != 0x5A || list[1].Tag != 0x5F24 {
		t.Fatalf("unexpected tags: %+v", list)
	}
}

func TestParseAllPreservesUnknownConstructed(t *testing.T) {
	// BF 50 (unknown constructed tag) wrapping a child; should be preserved
	// opaquely, not descended.
	inner := []byte{0x5A, 0x01, 0x11}
	buf := append([]byte{0xBF, 0x50, byte(len(inner))}, inner...)

	list, err := ParseAll(buf)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1 (opaque)", len(list))
	}
	if list[0].Tag != 0xBF50 {
		t.Fatalf("tag = %04X, want BF50", list[0].Tag)
	}
	if !bytes.Equal(list[0].Value, inner) {
		t.Fatalf("value = % X, want % X", list[0].Value, inner)
	}
}

func TestParseAllRoundTripsPrimitiveOnlyPayload(t *testing.T) {
	// Property 1 of spec.md 8: primitive-only payloads round-trip exactly.
	orig := []byte{0x9F, 0x02, 0x06, 0, 0, 0, 0, 0x10, 0x00, 0x5A, 0x02, 0x12, 0x34}
	list, err := ParseAll(orig)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	var out []byte
	for _, f := range list {
		out = append(out, TagBytes(f.Tag)...)
		out = append(out, byte(len(f.Value)))
		out = append(out, f.Value...)
	}
	if !bytes.Equal(out, orig) {
		t.Fatalf("round trip mismatch:\n got % X\nwant % X", out, orig)
	}
}
