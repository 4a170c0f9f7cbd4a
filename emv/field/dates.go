package field

import "bytes"

// CompareBCDDate compares two BCD-encoded dates (YYMMDD or MMYY, any equal
// width) lexicographically as bytes, which is valid because BCD digit
// ordering matches byte ordering for same-width dates (spec.md 4.G).
// It returns <0, 0, >0 like bytes.Compare.
func CompareBCDDate(a, b []byte) int {
	return bytes.Compare(a, b)
}

// Before reports whether a < b as BCD dates.
func Before(a, b []byte) bool { return CompareBCDDate(a, b) < 0 }

// After reports whether a > b as BCD dates.
func After(a, b []byte) bool { return CompareBCDDate(a, b) > 0 }
