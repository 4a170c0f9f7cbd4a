// Package directory provides a human-readable dump of PSE and FCI
// BER-TLV templates for diagnostics, built on an independent third-party
// decoder so it can double as a cross-check oracle for package tlv's
// round-trip property (spec.md 8).
package directory

import (
	"encoding/hex"
	"strings"

	"github.com/moov-io/bertlv"
)

// Describe renders raw as an indented tree of tag/length/value lines using
// github.com/moov-io/bertlv, independent of this module's own tlv
// decoder. It is diagnostic-only: callers needing structured access to the
// fields use package tlv.
func Describe(raw []byte) (string, error) {
	packets, err := bertlv.Decode(raw)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	writeLevel(&sb, packets, 0)
	return strings.TrimRight(sb.String(), "\n"), nil
}

func writeLevel(sb *strings.Builder, packets []bertlv.TLV, depth int) {
	for _, p := range packets {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(strings.ToUpper(p.Tag))
		if len(p.TLVs) > 0 {
			sb.WriteString(" {\n")
			writeLevel(sb, p.TLVs, depth+1)
			sb.WriteString(strings.Repeat("  ", depth))
			sb.WriteString("}\n")
			continue
		}
		sb.WriteString(" = ")
		sb.WriteString(hex.EncodeToString(p.Value))
		sb.WriteString("\n")
	}
}
