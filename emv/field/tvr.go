package field

// TVR and TSI are fixed-width byte arrays mirrored out of the TLV store
// into named context fields, per spec.md 9's suggested redesign: "model
// TVR/TSI/AIP/AFL as strongly typed fixed-length byte arrays lifted out of
// the TLV store." Bit accessors route through SetBit/TestBit so updates
// never alias a TLV value in place.

// TVR is the 5-byte Terminal Verification Results (tag 95).
type TVR [5]byte

// TVRBit identifies one bit of the TVR by (byte index 0-based, bit number
// 1-8 as in EMV Book 3 tables, MSB=8).
type TVRBit struct {
	Byte int
	Bit  uint
}

// Named TVR bits per EMV Book 3 Table (Annex); XDAFailed is a non-standard
// extension this kernel uses internally to record XDA's terminal-side
// rejection (spec.md 4.E: "XDA is not implemented -- if selected, set TVR
// bit XDA_FAILED"), parked in one of the two RFU bits of byte 1.
var (
	OfflineDataAuthNotPerformed  = TVRBit{0, 8}
	SDAFailed                    = TVRBit{0, 7}
	ICCDataMissing               = TVRBit{0, 6}
	CardOnExceptionFile          = TVRBit{0, 5}
	DDAFailed                    = TVRBit{0, 4}
	CDAFailed                    = TVRBit{0, 3}
	XDAFailed                    = TVRBit{0, 2}
	DifferentApplicationVersions = TVRBit{1, 8}
	ApplicationExpired           = TVRBit{1, 7}
	ApplicationNotYetEffective   = TVRBit{1, 6}
	ServiceNotAllowed            = TVRBit{1, 5}
	NewCard                      = TVRBit{1, 4}
	CVNotSuccessful              = TVRBit{2, 8}
	UnrecognisedCVM              = TVRBit{2, 7}
	PINTryLimitExceeded          = TVRBit{2, 6}
	PINPadNotPresent             = TVRBit{2, 5}
	PINNotEntered                = TVRBit{2, 4}
	OnlinePINEntered             = TVRBit{2, 3}
	TxnFloorLimitExceeded        = TVRBit{3, 8}
	LowerConsecutiveLimitExceed  = TVRBit{3, 7}
	UpperConsecutiveLimitExceed  = TVRBit{3, 6}
	RandomSelectedOnline         = TVRBit{3, 5}
	MerchantForcedOnline         = TVRBit{3, 4}
	DefaultTDOLUsed              = TVRBit{4, 8}
	IssuerAuthenticationFailed   = TVRBit{4, 7}
	ScriptFailedBeforeFinalGenAC = TVRBit{4, 6}
	ScriptFailedAfterFinalGenAC  = TVRBit{4, 5}
)

func bitMask(bit uint) byte { return 1 << (bit - 1) }

// Set sets b in place.
func (t *TVR) Set(b TVRBit) { t[b.Byte] |= bitMask(b.Bit) }

// Clear clears b in place.
func (t *TVR) Clear(b TVRBit) { t[b.Byte] &^= bitMask(b.Bit) }

// Test reports whether b is set.
func (t TVR) Test(b TVRBit) bool { return t[b.Byte]&bitMask(b.Bit) != 0 }

// TSI is the 2-byte Transaction Status Information (tag 9B).
type TSI [2]byte

// TSIBit identifies one bit of the TSI.
type TSIBit struct {
	Byte int
	Bit  uint
}

var (
	OfflineDataAuthPerformed     = TSIBit{0, 8}
	CardholderVerifPerformed     = TSIBit{0, 7}
	CardRiskManagementPerformed  = TSIBit{0, 6}
	IssuerAuthenticationPerf     = TSIBit{0, 5}
	TerminalRiskManagementPerf   = TSIBit{0, 4}
	ScriptProcessingPerformed    = TSIBit{0, 3}
)

// Set sets b in place.
func (t *TSI) Set(b TSIBit) { t[b.Byte] |= bitMask(b.Bit) }

// Test reports whether b is set.
func (t TSI) Test(b TSIBit) bool { return t[b.Byte]&bitMask(b.Bit) != 0 }
