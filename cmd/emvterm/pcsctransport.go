package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/barnettlynn/emvkernel/emv/tal"
	"github.com/ebfe/scard"
)

// pcscCard abstracts card transmit behavior for a real PC/SC connection,
// narrowed to what a transport adapter needs.
type pcscCard interface {
	Transmit(apdu []byte) ([]byte, error)
}

// connection wraps a PC/SC reader connection for the lifetime of one
// terminal run.
type connection struct {
	ctx  *scard.Context
	card *scard.Card
}

// connectReader resolves sel against the list of available readers, either
// as a numeric index or a substring of the reader name, and connects to
// the first match.
func connectReader(sel string) (*connection, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("EstablishContext failed: %w", err)
	}
	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		ctx.Release()
		return nil, fmt.Errorf("no readers found: %v", err)
	}

	reader := readers[0]
	if v, err := strconv.Atoi(strings.TrimSpace(sel)); err == nil {
		if v < 0 || v >= len(readers) {
			ctx.Release()
			return nil, fmt.Errorf("reader index out of range (0..%d)", len(readers)-1)
		}
		reader = readers[v]
	} else {
		found := false
		for _, r := range readers {
			if strings.Contains(r, sel) {
				reader = r
				found = true
				break
			}
		}
		if !found {
			ctx.Release()
			return nil, fmt.Errorf("no reader matching %q", sel)
		}
	}

	card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("connect failed: %w", err)
	}
	return &connection{ctx: ctx, card: card}, nil
}

func (c *connection) Close() {
	if c == nil {
		return
	}
	if c.card != nil {
		_ = c.card.Disconnect(scard.LeaveCard)
	}
	if c.ctx != nil {
		_ = c.ctx.Release()
	}
}

func (c *connection) Transmit(apdu []byte) ([]byte, error) { return c.card.Transmit(apdu) }

func transmit(card pcscCard, apdu []byte) (data []byte, sw tal.SW, err error) {
	resp, err := card.Transmit(apdu)
	if err != nil {
		return nil, 0, &tal.ErrTransport{Op: "transmit", Err: err}
	}
	if len(resp) < 2 {
		return nil, 0, &tal.ErrTransport{Op: "transmit", Err: fmt.Errorf("short response: %d bytes", len(resp))}
	}
	n := len(resp) - 2
	return resp[:n], tal.SW(uint16(resp[n])<<8 | uint16(resp[n+1])), nil
}

// pcscTransport implements emv/tal.Transport over a live PC/SC connection
// using contact EMV T=0/T=1 APDU framing.
type pcscTransport struct {
	card pcscCard
}

func newPCSCTransport(card pcscCard) *pcscTransport { return &pcscTransport{card: card} }

func (t *pcscTransport) SelectByDFName(dfName []byte) ([]byte, tal.SW, error) {
	apdu := append([]byte{0x00, 0xA4, 0x04, 0x00, byte(len(dfName))}, dfName...)
	apdu = append(apdu, 0x00)
	return transmit(t.card, apdu)
}

func (t *pcscTransport) SelectByDFNameNext(dfName []byte) ([]byte, tal.SW, error) {
	apdu := append([]byte{0x00, 0xA4, 0x04, 0x02, byte(len(dfName))}, dfName...)
	apdu = append(apdu, 0x00)
	return transmit(t.card, apdu)
}

func (t *pcscTransport) ReadRecord(sfi uint8, recordNumber uint8) ([]byte, tal.SW, error) {
	p2 := (sfi << 3) | 0x04
	apdu := []byte{0x00, 0xB2, recordNumber, p2, 0x00}
	return transmit(t.card, apdu)
}

func (t *pcscTransport) GetProcessingOptions(data []byte) ([]byte, tal.SW, error) {
	apdu := append([]byte{0x80, 0xA8, 0x00, 0x00, byte(len(data))}, data...)
	apdu = append(apdu, 0x00)
	return transmit(t.card, apdu)
}

func (t *pcscTransport) GetData(tag uint32) ([]byte, tal.SW, error) {
	p1 := byte(tag >> 8)
	p2 := byte(tag)
	apdu := []byte{0x80, 0xCA, p1, p2, 0x00}
	return transmit(t.card, apdu)
}

func (t *pcscTransport) GenerateAC(refControl byte, data []byte) ([]byte, tal.SW, error) {
	apdu := append([]byte{0x80, 0xAE, refControl, 0x00, byte(len(data))}, data...)
	apdu = append(apdu, 0x00)
	return transmit(t.card, apdu)
}

func (t *pcscTransport) InternalAuthenticate(ddolData []byte) ([]byte, tal.SW, error) {
	apdu := append([]byte{0x00, 0x88, 0x00, 0x00, byte(len(ddolData))}, ddolData...)
	apdu = append(apdu, 0x00)
	return transmit(t.card, apdu)
}

var _ tal.Transport = (*pcscTransport)(nil)
