package field

import (
	"reflect"
	"testing"
)

func TestParseAFLScenario(t *testing.T) {
	// Scenario S3: GPO AFL "08010100" -> {sfi=1, first=1, last=1, oda=0}
	entries, err := ParseAFL([]byte{0x08, 0x01, 0x01, 0x00})
	if err != nil {
		t.Fatalf("ParseAFL: %v", err)
	}
	want := []AflEntry{{SFI: 1, FirstRecord: 1, LastRecord: 1, OdaRecordCount: 0}}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("entries = %+v, want %+v", entries, want)
	}
}

func TestParseAFLRejectsBadLength(t *testing.T) {
	if _, err := ParseAFL([]byte{0x08, 0x01, 0x01}); err == nil {
		t.Fatalf("expected error for non-multiple-of-4 AFL")
	}
}

func TestParseAFLRejectsOdaCountBeyondSpan(t *testing.T) {
	if _, err := ParseAFL([]byte{0x08, 0x01, 0x01, 0x05}); err == nil {
		t.Fatalf("expected error when oda_record_count exceeds record span")
	}
}

func TestBuildAFLRoundTrip(t *testing.T) {
	entries := []AflEntry{{SFI: 2, FirstRecord: 1, LastRecord: 3, OdaRecordCount: 2}}
	buf := BuildAFL(entries)
	back, err := ParseAFL(buf)
	if err != nil {
		t.Fatalf("ParseAFL: %v", err)
	}
	if !reflect.DeepEqual(back, entries) {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, entries)
	}
}
