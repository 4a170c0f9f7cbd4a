package field

import "fmt"

// CVMRule is one 2-byte rule from an EMV CVM List (tag 8E).
type CVMRule struct {
	Method     byte // bits 0-5 of the first byte (bit 7 reserved, bit 6 "apply next if unsuccessful")
	ApplyNext  bool
	Condition  byte
}

// CVMList is a parsed Cardholder Verification Method List: the 8-byte X/Y
// amount header followed by an ordered sequence of 2-byte rules. Neither
// risk management nor terminal action analysis reads it; cmd/emvterm logs
// it for the operator. CVM *processing* is out of scope (spec.md
// Non-goals).
type CVMList struct {
	AmountX uint32 // binary, 4 bytes
	AmountY uint32 // binary, 4 bytes
	Rules   []CVMRule
}

// ParseCVMList decodes tag-8E's value.
func ParseCVMList(buf []byte) (CVMList, error) {
	if len(buf) < 8 || (len(buf)-8)%2 != 0 {
		return CVMList{}, fmt.Errorf("field: CVM list length %d is malformed", len(buf))
	}
	cvm := CVMList{
		AmountX: beUint32(buf[0:4]),
		AmountY: beUint32(buf[4:8]),
	}
	for i := 8; i < len(buf); i += 2 {
		cvm.Rules = append(cvm.Rules, CVMRule{
			Method:    buf[i] & 0x3F,
			ApplyNext: buf[i]&0x40 != 0,
			Condition: buf[i+1],
		})
	}
	return cvm, nil
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
