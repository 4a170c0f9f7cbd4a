package tlv

import "testing"

func TestParseDOL(t *testing.T) {
	// PDOL-shaped: 9F66 04, 9F02 06, 9F37 04
	buf := []byte{0x9F, 0x66, 0x04, 0x9F, 0x02, 0x06, 0x9F, 0x37, 0x04}
	entries, err := ParseDOL(buf)
	if err != nil {
		t.Fatalf("ParseDOL: %v", err)
	}
	want := []DolEntry{{0x9F66, 4}, {0x9F02, 6}, {0x9F37, 4}}
	if len(entries) != len(want) {
		t.Fatalf("len = %d, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e != want[i] {
			t.Fatalf("entry[%d] = %+v, want %+v", i, e, want[i])
		}
	}
}

func TestComputeDataLength(t *testing.T) {
	entries := []DolEntry{{0x9F66, 4}, {0x9F02, 6}}
	n, err := ComputeDataLength(entries)
	if err != nil {
		t.Fatalf("ComputeDataLength: %v", err)
	}
	if n != 10 {
		t.Fatalf("n = %d, want 10", n)
	}
}
