package emv

// Well-known EMV tags referenced directly by the kernel. Tags used only as
// opaque pass-through data (most of the ICC TLV list) don't need a name
// here; this list covers the ones the state machine or ODA engine branches
// on.
const (
	TagAID                    = 0x4F
	TagAIDAlt                 = 0x84
	TagSelectedAID            = 0x9F06
	TagApplicationLabel       = 0x50
	TagApplicationPreferred   = 0x9F12
	TagIssuerCodeTableIndex   = 0x9F11
	TagPriorityIndicator      = 0x87
	TagPDOL                   = 0x9F38
	TagCDOL1                  = 0x8C
	TagCDOL2                  = 0x8D
	TagAFL                    = 0x94
	TagAIP                    = 0x82
	TagApplicationPAN         = 0x5A
	TagApplicationExpiryDate  = 0x5F24
	TagApplicationEffDate     = 0x5F25
	TagTVR                    = 0x95
	TagTSI                    = 0x9B
	TagTerminalCapabilities   = 0x9F33
	TagAdditionalTermCaps     = 0x9F40
	TagTerminalCountryCode    = 0x9F1A
	TagTerminalFloorLimit     = 0x9F1B
	TagTerminalType           = 0x9F35
	TagTransactionCurrency    = 0x5F2A
	TagTransactionDate        = 0x9A
	TagTransactionType        = 0x9C
	TagAmountAuthorizedBin    = 0x81
	TagAmountAuthorizedNum    = 0x9F02
	TagAmountOtherBin         = 0x9F04
	TagUnpredictableNumber    = 0x9F37
	TagPOSEntryMode           = 0x9F39
	TagApplicationVersionTerm = 0x9F09
	TagApplicationVersionICC  = 0x9F08
	TagAUC                    = 0x9F07
	TagIssuerCountryCode      = 0x5F28
	TagATC                    = 0x9F36
	TagLastOnlineATC          = 0x9F13
	TagLowerConsecLimit       = 0x9F14
	TagUpperConsecLimit       = 0x9F23
	TagCVMList                = 0x8E
	TagDDOL                   = 0x9F49

	TagCAPublicKeyIndex       = 0x8F
	TagIssuerPublicKeyCert    = 0x90
	TagIssuerExponent         = 0x9F32
	TagIssuerPublicKeyRemain  = 0x92
	TagSignedStaticAppData    = 0x93
	TagSDATagList             = 0x9F4A
	TagDataAuthCode           = 0x9F45
	TagICCPublicKeyCert       = 0x9F46
	TagICCExponent            = 0x9F47
	TagICCPublicKeyRemain     = 0x9F48
	TagICCDynamicNumber       = 0x9F4C
	TagCID                    = 0x9F27
	TagApplicationCryptogram  = 0x9F26
	TagSignedDynamicAppData   = 0x9F4B

	TagPSEAppTemplate  = 0x61
	TagPSESFI          = 0x88
	TagFCITemplate     = 0x6F
	TagRecordTemplate  = 0x70
	TagGPOTemplateFmt1 = 0x80
	TagGPOTemplateFmt2 = 0x77
)

// PSEDFName is the Payment System Environment directory file name.
const PSEDFName = "1PAY.SYS.DDF01"
