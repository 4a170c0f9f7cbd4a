// Package tal defines the Terminal Transport Layer contract the session
// orchestrator and Terminal Application Layer consume (spec.md 6.1). The
// TTL itself — APDU marshalling, card timeouts, cancellation — is an
// external collaborator out of this module's scope; only the interface
// lives here.
package tal

// SW is a two-byte ISO 7816 status word.
type SW uint16

// OK reports whether sw is 0x9000.
func (sw SW) OK() bool { return sw == 0x9000 }

// Common status words the TAL branches on (spec.md 4.D).
const (
	SWSuccess              SW = 0x9000
	SWCardBlocked          SW = 0x6A81
	SWFileNotFound         SW = 0x6A82
	SWSelectedFileInvalid  SW = 0x6283 // blocked application
	SWFileEOF              SW = 0x6A83
	SWConditionsNotSatisfd SW = 0x6985
)

// ErrTransport is returned by a Transport method when the underlying
// transport failed outright (not merely a non-9000 status word). The
// orchestrator treats this uniformly as "terminate session, CardError"
// (spec.md 5, "Timeouts").
type ErrTransport struct {
	Op  string
	Err error
}

func (e *ErrTransport) Error() string { return "tal: " + e.Op + ": " + e.Err.Error() }
func (e *ErrTransport) Unwrap() error { return e.Err }

// Transport is the TTL contract consumed by the TAL (spec.md 6.1).
// R-APDU data never exceeds RAPDUDataMax bytes.
type Transport interface {
	SelectByDFName(dfName []byte) (fci []byte, sw SW, err error)
	SelectByDFNameNext(dfName []byte) (fci []byte, sw SW, err error)
	ReadRecord(sfi uint8, recordNumber uint8) (data []byte, sw SW, err error)
	GetProcessingOptions(data []byte) (rapdu []byte, sw SW, err error)
	GetData(tag uint32) (rapdu []byte, sw SW, err error)
	GenerateAC(refControl byte, data []byte) (rapdu []byte, sw SW, err error)
	InternalAuthenticate(ddolData []byte) (rapdu []byte, sw SW, err error)
}

// RAPDUDataMax is the maximum R-APDU data length (spec.md 6.1).
const RAPDUDataMax = 255
