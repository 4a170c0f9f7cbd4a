package field

// Cleanse overwrites buf with zeros in place. It is the Go stand-in for the
// TTL/crypto collaborator's cleanse() primitive (spec.md 6.2), used by
// Session.Close to wipe the ICC and terminal field values and the ODA
// record buffer (spec.md 5, "Cancellation").
func Cleanse(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
