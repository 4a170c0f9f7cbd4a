package tlv

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/crypto/cryptobyte"
)

// DolEntry is one {tag, length} pair from a Data Object List.
type DolEntry struct {
	Tag    uint32
	Length int
}

var ErrDolLengthOverflow = errors.New("tlv: DOL total length overflows")

// ParseDOL decodes a DOL buffer (a concatenation of {tag, length} pairs,
// length always a single byte) into an ordered sequence of DolEntry.
func ParseDOL(buf []byte) ([]DolEntry, error) {
	s := cryptobyte.String(buf)
	var entries []DolEntry
	for len(s) > 0 {
		tag, err := readTag(&s)
		if err != nil {
			return nil, fmt.Errorf("tlv: DOL tag: %w", err)
		}
		var lb uint8
		if !s.ReadUint8(&lb) {
			return nil, fmt.Errorf("tlv: DOL length: %w", ErrLengthTruncated)
		}
		entries = append(entries, DolEntry{Tag: tag, Length: int(lb)})
	}
	return entries, nil
}

// ComputeDataLength sums the Length of every entry, rejecting overflow.
func ComputeDataLength(entries []DolEntry) (int, error) {
	total := 0
	for _, e := range entries {
		if total > math.MaxInt32-e.Length {
			return 0, ErrDolLengthOverflow
		}
		total += e.Length
	}
	return total, nil
}
