package emv

import (
	"testing"

	"github.com/barnettlynn/emvkernel/emv/tal"
	"github.com/barnettlynn/emvkernel/internal/testscard"
)

func testSession(tr tal.Transport, aids ...SupportedAID) *Session {
	cfg := &TerminalConfig{SupportedAIDs: aids}
	return NewSession(tr, cfg)
}

func TestReadPSEDiscoversApplication(t *testing.T) {
	pseFCI := []byte{0x6F, 0x05, 0xA5, 0x03, 0x88, 0x01, 0x01}
	record := []byte{
		0x70, 0x0E,
		0x61, 0x0C,
		0x4F, 0x07, 0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10,
		0x87, 0x01, 0x01,
	}
	tr := testscard.New([]testscard.Exchange{
		{Op: "select", WantArg1: []byte(PSEDFName), RAPDU: pseFCI, SW: tal.SWSuccess},
		{Op: "read_record", WantSFI: 1, WantRec: 1, RAPDU: record, SW: tal.SWSuccess},
		{Op: "read_record", WantSFI: 1, WantRec: 2, RAPDU: nil, SW: tal.SWFileEOF},
	})
	s := testSession(tr, SupportedAID{AID: []byte{0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10}})

	outcome, err := s.readPSE()
	if err != nil {
		t.Fatalf("readPSE: %v", err)
	}
	if outcome != OutcomeContinue {
		t.Fatalf("expected OutcomeContinue, got %v", outcome)
	}
	if s.candidates.Len() != 1 {
		t.Fatalf("expected 1 candidate, got %d", s.candidates.Len())
	}
	if !tr.Done() {
		t.Fatalf("script not fully consumed")
	}
}

func TestReadPSEAbsentIsEmptyContinue(t *testing.T) {
	tr := testscard.New([]testscard.Exchange{
		{Op: "select", WantArg1: []byte(PSEDFName), RAPDU: nil, SW: tal.SWFileNotFound},
	})
	s := testSession(tr)
	outcome, err := s.readPSE()
	if err != nil {
		t.Fatalf("readPSE: %v", err)
	}
	if outcome != OutcomeContinue {
		t.Fatalf("expected OutcomeContinue, got %v", outcome)
	}
	if s.candidates.Len() != 0 {
		t.Fatalf("expected no candidates, got %d", s.candidates.Len())
	}
}

func TestReadPSECardBlocked(t *testing.T) {
	tr := testscard.New([]testscard.Exchange{
		{Op: "select", WantArg1: []byte(PSEDFName), RAPDU: nil, SW: tal.SWCardBlocked},
	})
	s := testSession(tr)
	outcome, err := s.readPSE()
	if err != nil {
		t.Fatalf("readPSE: %v", err)
	}
	if outcome != OutcomeCardBlocked {
		t.Fatalf("expected OutcomeCardBlocked, got %v", outcome)
	}
}

func TestProbeAIDListExactMatch(t *testing.T) {
	fci := []byte{0x6F, 0x0B, 0xA5, 0x09, 0x4F, 0x07, 0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10}
	tr := testscard.New([]testscard.Exchange{
		{Op: "select", WantArg1: []byte{0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10}, RAPDU: fci, SW: tal.SWSuccess},
	})
	s := testSession(tr, SupportedAID{AID: []byte{0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10}})
	outcome, err := s.probeAIDList()
	if err != nil {
		t.Fatalf("probeAIDList: %v", err)
	}
	if outcome != OutcomeContinue {
		t.Fatalf("expected OutcomeContinue, got %v", outcome)
	}
	if s.candidates.Len() != 1 {
		t.Fatalf("expected 1 candidate, got %d", s.candidates.Len())
	}
}

func TestSelectApplicationSuccess(t *testing.T) {
	aid := []byte{0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10}
	fci := []byte{
		0x6F, 0x0B,
		0xA5, 0x09,
		0x4F, 0x07, 0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10,
	}
	tr := testscard.New([]testscard.Exchange{
		{Op: "select", WantArg1: aid, RAPDU: fci, SW: tal.SWSuccess},
	})
	s := testSession(tr)
	app, outcome := s.selectApplication(aid)
	if outcome != OutcomeContinue {
		t.Fatalf("expected OutcomeContinue, got %v", outcome)
	}
	if app == nil || string(app.AID) != string(aid) {
		t.Fatalf("unexpected application: %+v", app)
	}
}

func TestSelectApplicationCardBlocked(t *testing.T) {
	aid := []byte{0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10}
	tr := testscard.New([]testscard.Exchange{
		{Op: "select", WantArg1: aid, RAPDU: nil, SW: tal.SWCardBlocked},
	})
	s := testSession(tr)
	_, outcome := s.selectApplication(aid)
	if outcome != OutcomeCardBlocked {
		t.Fatalf("expected OutcomeCardBlocked, got %v", outcome)
	}
}

func TestGetProcessingOptionsFormat1(t *testing.T) {
	rapdu := []byte{0x80, 0x06, 0x18, 0x00, 0x08, 0x01, 0x01, 0x00}
	tr := testscard.New([]testscard.Exchange{
		{Op: "gpo", RAPDU: rapdu, SW: tal.SWSuccess},
	})
	s := testSession(tr)
	res, outcome := s.getProcessingOptions(nil)
	if outcome != OutcomeContinue {
		t.Fatalf("expected OutcomeContinue, got %v", outcome)
	}
	if len(res.aip) != 2 || res.aip[0] != 0x18 {
		t.Fatalf("unexpected AIP: %x", res.aip)
	}
	if len(res.afl) != 4 {
		t.Fatalf("unexpected AFL length: %d", len(res.afl))
	}
}

func TestGetProcessingOptionsConditionsNotSatisfied(t *testing.T) {
	tr := testscard.New([]testscard.Exchange{
		{Op: "gpo", RAPDU: nil, SW: tal.SWConditionsNotSatisfd},
	})
	s := testSession(tr)
	_, outcome := s.getProcessingOptions(nil)
	if outcome != OutcomeGpoNotAccepted {
		t.Fatalf("expected OutcomeGpoNotAccepted, got %v", outcome)
	}
}

func TestBuildTag83ShortAndLongForm(t *testing.T) {
	short := buildTag83([]byte{0x01, 0x02, 0x03})
	if short[0] != 0x83 || short[1] != 0x03 {
		t.Fatalf("unexpected short-form encoding: %x", short)
	}
	long := buildTag83(make([]byte, 200))
	if long[0] != 0x83 || long[1] != 0x81 || long[2] != 200 {
		t.Fatalf("unexpected long-form encoding: %x", long[:3])
	}
}
