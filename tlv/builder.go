package tlv

// Format classifies how a DOL source value is truncated or padded when it
// doesn't exactly match the requested length (spec.md 4.B).
type Format int

const (
	// FormatBinary is the default for unrecognized tags: right-truncate
	// when too long, left-justify with trailing 0x00 when too short.
	FormatBinary Format = iota
	// FormatNumeric covers EMV format n/cn (packed BCD): left-truncate
	// keeping least-significant nibbles when too long, pad with leading
	// zero nibbles when too short.
	FormatNumeric
	// FormatAlphanumeric left-justifies with trailing 0x20 (space) padding
	// and right-truncates when too long.
	FormatAlphanumeric
)

// knownFormats maps EMV tags that commonly appear in PDOL/CDOL sources to
// their DOL-build format. Tags absent from this table default to
// FormatBinary, which is a safe default: the vast majority of EMV data
// elements used in DOLs are already binary-shaped (amounts in spec.md are
// the numeric exception, handled explicitly below).
var knownFormats = map[uint32]Format{
	0x9F02: FormatNumeric, // Amount, Authorised (n12)
	0x9F03: FormatNumeric, // Amount, Other (n12)
	0x81:   FormatBinary,  // Amount, Authorised (Binary)
	0x9F04: FormatBinary,  // Amount, Other (Binary)
	0x5F28: FormatNumeric, // Issuer Country Code
	0x9F1A: FormatNumeric, // Terminal Country Code
	0x9A:   FormatNumeric, // Transaction Date (YYMMDD, BCD)
	0x9C:   FormatBinary,  // Transaction Type
	0x5F2A: FormatNumeric, // Transaction Currency Code
	0x5A:   FormatNumeric, // Application PAN (cn)
	0x5F24: FormatNumeric, // Application Expiration Date
	0x5F25: FormatNumeric, // Application Effective Date
	0x50:   FormatAlphanumeric,
	0x9F12: FormatAlphanumeric,
}

// FormatOf returns the DOL-build format for tag, defaulting to
// FormatBinary for unrecognized tags.
func FormatOf(tag uint32) Format {
	if f, ok := knownFormats[tag]; ok {
		return f
	}
	return FormatBinary
}

// Sources is an ordered sequence of ranked TLV lists; the
// first list whose Find succeeds wins. Typical rank order is transaction
// parameters, terminal configuration, terminal dynamic data.
type Sources []*List

// find searches Sources in rank order for the first Field with tag.
func (s Sources) find(tag uint32) (Field, bool) {
	for _, l := range s {
		if l == nil {
			continue
		}
		if f, ok := l.Find(tag); ok {
			return f, true
		}
	}
	return Field{}, false
}

// Build assembles the byte string a DOL requests from sources, writing into
// dst (which must be at least ComputeDataLength(entries) bytes) and
// returning the exact byte count written.
func Build(dst []byte, entries []DolEntry, sources Sources) (int, error) {
	total, err := ComputeDataLength(entries)
	if err != nil {
		return 0, err
	}
	if len(dst) < total {
		return 0, errShortBuffer
	}

	off := 0
	for _, e := range entries {
		seg := dst[off : off+e.Length]
		f, found := sources.find(e.Tag)
		if !found {
			zero(seg)
			off += e.Length
			continue
		}
		fitField(seg, f.Value, FormatOf(e.Tag))
		off += e.Length
	}
	return off, nil
}

func zero(dst []byte) {
	for i := range dst {
		dst[i] = 0
	}
}

// fitField copies src into dst (len(dst) == requested length), applying the
// truncation/padding rule for format when lengths differ.
func fitField(dst, src []byte, format Format) {
	switch {
	case len(src) == len(dst):
		copy(dst, src)
	case len(src) > len(dst):
		truncate(dst, src, format)
	default:
		pad(dst, src, format)
	}
}

func truncate(dst, src []byte, format Format) {
	switch format {
	case FormatNumeric:
		// Keep the least-significant BCD nibbles.
		srcNibbles := toNibbles(src)
		wantNibbles := len(dst) * 2
		keep := srcNibbles[len(srcNibbles)-wantNibbles:]
		copy(dst, fromNibbles(keep))
	default:
		// Binary and alphanumeric: right-truncate (keep leading bytes).
		copy(dst, src[:len(dst)])
	}
}

func pad(dst, src []byte, format Format) {
	switch format {
	case FormatNumeric:
		srcNibbles := toNibbles(src)
		wantNibbles := len(dst) * 2
		padded := make([]byte, wantNibbles)
		copy(padded[wantNibbles-len(srcNibbles):], srcNibbles)
		copy(dst, fromNibbles(padded))
	case FormatAlphanumeric:
		copy(dst, src)
		for i := len(src); i < len(dst); i++ {
			dst[i] = 0x20
		}
	default: // FormatBinary
		copy(dst, src)
		for i := len(src); i < len(dst); i++ {
			dst[i] = 0x00
		}
	}
}

func toNibbles(b []byte) []byte {
	n := make([]byte, len(b)*2)
	for i, v := range b {
		n[2*i] = v >> 4
		n[2*i+1] = v & 0x0F
	}
	return n
}

func fromNibbles(n []byte) []byte {
	b := make([]byte, len(n)/2)
	for i := range b {
		b[i] = n[2*i]<<4 | n[2*i+1]
	}
	return b
}

type shortBufferError struct{}

func (shortBufferError) Error() string { return "tlv: destination buffer shorter than DOL total length" }

var errShortBuffer = shortBufferError{}
