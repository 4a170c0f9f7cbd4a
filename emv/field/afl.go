package field

import "fmt"

// AflEntry is one 4-byte Application File Locator entry.
type AflEntry struct {
	SFI            uint8 // 1..=30
	FirstRecord    uint8
	LastRecord     uint8
	OdaRecordCount uint8
}

// ParseAFL decodes an AFL buffer (N*4 bytes, sfi_shifted|first|last|oda) into
// its entries. It rejects a length that isn't a multiple of 4 and entries
// whose oda_record_count exceeds the record range (spec.md 3 invariants).
func ParseAFL(buf []byte) ([]AflEntry, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("field: AFL length %d is not a multiple of 4", len(buf))
	}
	entries := make([]AflEntry, 0, len(buf)/4)
	for i := 0; i < len(buf); i += 4 {
		e := AflEntry{
			SFI:            buf[i] >> 3,
			FirstRecord:    buf[i+1],
			LastRecord:     buf[i+2],
			OdaRecordCount: buf[i+3],
		}
		if e.SFI < 1 || e.SFI > 30 {
			return nil, fmt.Errorf("field: AFL entry has invalid SFI %d", e.SFI)
		}
		span := int(e.LastRecord) - int(e.FirstRecord) + 1
		if span < 0 || int(e.OdaRecordCount) > span {
			return nil, fmt.Errorf("field: AFL entry oda_record_count %d exceeds record span %d", e.OdaRecordCount, span)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// BuildAFL re-encodes entries into the 4-byte-per-entry wire form.
func BuildAFL(entries []AflEntry) []byte {
	buf := make([]byte, len(entries)*4)
	for i, e := range entries {
		buf[i*4] = e.SFI << 3
		buf[i*4+1] = e.FirstRecord
		buf[i*4+2] = e.LastRecord
		buf[i*4+3] = e.OdaRecordCount
	}
	return buf
}
