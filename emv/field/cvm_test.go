package field

import (
	"reflect"
	"testing"
)

func TestParseCVMListTwoRules(t *testing.T) {
	buf := []byte{
		0x00, 0x00, 0x00, 0x00, // amount X = 0
		0x00, 0x00, 0x27, 0x10, // amount Y = 10000
		0x42, 0x03, // method 0x02, apply-next set, condition 0x03
		0x02, 0x00, // method 0x02, apply-next clear, condition 0x00
	}
	cvm, err := ParseCVMList(buf)
	if err != nil {
		t.Fatalf("ParseCVMList: %v", err)
	}
	want := CVMList{
		AmountX: 0,
		AmountY: 10000,
		Rules: []CVMRule{
			{Method: 0x02, ApplyNext: true, Condition: 0x03},
			{Method: 0x02, ApplyNext: false, Condition: 0x00},
		},
	}
	if !reflect.DeepEqual(cvm, want) {
		t.Fatalf("cvm = %+v, want %+v", cvm, want)
	}
}

func TestParseCVMListRejectsBadLength(t *testing.T) {
	if _, err := ParseCVMList([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}); err == nil {
		t.Fatalf("expected error for length below 8")
	}
	if _, err := ParseCVMList([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}); err == nil {
		t.Fatalf("expected error for trailing odd byte")
	}
}
