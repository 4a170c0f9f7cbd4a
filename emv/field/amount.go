package field

// AmountBinary decodes a 4-byte big-endian binary amount field (e.g. tag
// 81, Amount Authorised (Binary)).
func AmountBinary(buf []byte) uint32 {
	return beUint32(buf)
}

// PutAmountBinary encodes v into a 4-byte big-endian binary amount field.
func PutAmountBinary(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
