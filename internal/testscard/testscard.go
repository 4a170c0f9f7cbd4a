// Package testscard is a scripted test double for emv/tal.Transport,
// letting kernel tests drive a fixed sequence of APDU exchanges without a
// physical card or PC/SC reader.
package testscard

import (
	"bytes"
	"fmt"

	"github.com/barnettlynn/emvkernel/emv/tal"
)

// Exchange is one scripted request/response pair. Op names the Transport
// method the fixture expects to be called next ("select", "select_next",
// "read_record", "gpo", "get_data", "generate_ac",
// "internal_authenticate"); a mismatched call fails the test loudly
// instead of silently returning wrong data.
type Exchange struct {
	Op       string
	WantArg1 []byte // DF name for select/select_next; expected command data for gpo/generate_ac/internal_authenticate (nil skips the check)
	WantSFI  uint8
	WantRec  uint8
	WantTag  uint32
	RAPDU    []byte
	SW       tal.SW
	Err      error
}

// Transport replays a fixed Exchange script, failing fast on the first
// call that doesn't match the expected operation or arguments.
type Transport struct {
	script []Exchange
	pos    int
}

// New returns a Transport that will serve script in order.
func New(script []Exchange) *Transport {
	return &Transport{script: script}
}

// Done reports whether every scripted exchange was consumed.
func (t *Transport) Done() bool { return t.pos == len(t.script) }

func (t *Transport) next(op string) (*Exchange, error) {
	if t.pos >= len(t.script) {
		return nil, fmt.Errorf("testscard: unexpected %s call, script exhausted", op)
	}
	e := &t.script[t.pos]
	if e.Op != op {
		return nil, fmt.Errorf("testscard: call %d: got %s, want %s", t.pos, op, e.Op)
	}
	t.pos++
	return e, nil
}

func (t *Transport) SelectByDFName(dfName []byte) ([]byte, tal.SW, error) {
	e, err := t.next("select")
	if err != nil {
		return nil, 0, err
	}
	if !bytes.Equal(e.WantArg1, dfName) {
		return nil, 0, fmt.Errorf("testscard: select DF name mismatch: got %x, want %x", dfName, e.WantArg1)
	}
	return e.RAPDU, e.SW, e.Err
}

func (t *Transport) SelectByDFNameNext(dfName []byte) ([]byte, tal.SW, error) {
	e, err := t.next("select_next")
	if err != nil {
		return nil, 0, err
	}
	if !bytes.Equal(e.WantArg1, dfName) {
		return nil, 0, fmt.Errorf("testscard: select-next DF name mismatch: got %x, want %x", dfName, e.WantArg1)
	}
	return e.RAPDU, e.SW, e.Err
}

func (t *Transport) ReadRecord(sfi uint8, recordNumber uint8) ([]byte, tal.SW, error) {
	e, err := t.next("read_record")
	if err != nil {
		return nil, 0, err
	}
	if e.WantSFI != sfi || e.WantRec != recordNumber {
		return nil, 0, fmt.Errorf("testscard: read record mismatch: got sfi=%d rec=%d, want sfi=%d rec=%d", sfi, recordNumber, e.WantSFI, e.WantRec)
	}
	return e.RAPDU, e.SW, e.Err
}

func (t *Transport) GetProcessingOptions(data []byte) ([]byte, tal.SW, error) {
	e, err := t.next("gpo")
	if err != nil {
		return nil, 0, err
	}
	if e.WantArg1 != nil && !bytes.Equal(e.WantArg1, data) {
		return nil, 0, fmt.Errorf("testscard: GPO command data mismatch: got %x, want %x", data, e.WantArg1)
	}
	return e.RAPDU, e.SW, e.Err
}

func (t *Transport) GetData(tag uint32) ([]byte, tal.SW, error) {
	e, err := t.next("get_data")
	if err != nil {
		return nil, 0, err
	}
	if e.WantTag != tag {
		return nil, 0, fmt.Errorf("testscard: GET DATA tag mismatch: got %04X, want %04X", tag, e.WantTag)
	}
	return e.RAPDU, e.SW, e.Err
}

func (t *Transport) GenerateAC(refControl byte, data []byte) ([]byte, tal.SW, error) {
	e, err := t.next("generate_ac")
	if err != nil {
		return nil, 0, err
	}
	if e.WantArg1 != nil && !bytes.Equal(e.WantArg1, data) {
		return nil, 0, fmt.Errorf("testscard: GENERATE AC command data mismatch: got %x, want %x", data, e.WantArg1)
	}
	return e.RAPDU, e.SW, e.Err
}

func (t *Transport) InternalAuthenticate(ddolData []byte) ([]byte, tal.SW, error) {
	e, err := t.next("internal_authenticate")
	if err != nil {
		return nil, 0, err
	}
	if e.WantArg1 != nil && !bytes.Equal(e.WantArg1, ddolData) {
		return nil, 0, fmt.Errorf("testscard: INTERNAL AUTHENTICATE command data mismatch: got %x, want %x", ddolData, e.WantArg1)
	}
	return e.RAPDU, e.SW, e.Err
}

var _ tal.Transport = (*Transport)(nil)
