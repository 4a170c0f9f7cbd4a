package capk

import (
	"os"
	"path/filepath"
	"testing"
)

const validManifest = `
keys:
  - rid_hex: "A000000003"
    index: 5
    modulus_hex: "AABBCCDD"
    exponent_hex: "03"
  - rid_hex: "A000000004"
    index: 8
    modulus_hex: "112233"
    exponent_hex: "010001"
`

func TestLoadAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capk.yaml")
	if err := os.WriteFile(path, []byte(validManifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	rid := [5]byte{0xA0, 0x00, 0x00, 0x00, 0x03}
	mod, exp, ok := store.Lookup(rid, 5)
	if !ok {
		t.Fatalf("expected key for RID=%x index=5", rid)
	}
	if string(mod) != "\xAA\xBB\xCC\xDD" || string(exp) != "\x03" {
		t.Fatalf("unexpected key bytes: mod=%x exp=%x", mod, exp)
	}

	if _, _, ok := store.Lookup(rid, 9); ok {
		t.Fatalf("expected no key for unknown index")
	}
}

func TestLoadRejectsBadRIDLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capk.yaml")
	bad := `
keys:
  - rid_hex: "A0000003"
    index: 5
    modulus_hex: "AABBCCDD"
    exponent_hex: "03"
`
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for short RID")
	}
}
