package emv

import (
	"testing"

	"github.com/barnettlynn/emvkernel/emv/field"
	"github.com/barnettlynn/emvkernel/emv/risk"
	"github.com/barnettlynn/emvkernel/emv/tal"
	"github.com/barnettlynn/emvkernel/internal/testscard"
)

// TestFullTransactionApprovesOffline drives every state from discovery
// through the first GENERATE AC for a card that supports no offline data
// authentication method, exercising the session's happy path end to end.
func TestFullTransactionApprovesOffline(t *testing.T) {
	aid := []byte{0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10}
	fci := []byte{
		0x6F, 0x0B,
		0xA5, 0x09,
		0x4F, 0x07, 0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10,
	}
	// GPO format 1: AIP (no SDA/DDA/CDA bits) + one AFL entry, sfi=1 rec 1..1 oda=0.
	gpoResp := []byte{0x80, 0x06, 0x00, 0x00, 0x08, 0x01, 0x01, 0x00}
	record := []byte{0x70, 0x05, 0x9F, 0x02, 0x02, 0x30, 0x00} // Amount Authorised (dummy)
	genAcResp := []byte{
		0x80, 0x0B,
		0x40,             // CID: TC
		0x00, 0x01,       // ATC
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, // AC
	}

	tr := testscard.New([]testscard.Exchange{
		{Op: "select", WantArg1: aid, RAPDU: fci, SW: tal.SWSuccess},
		{Op: "gpo", RAPDU: gpoResp, SW: tal.SWSuccess},
		{Op: "read_record", WantSFI: 1, WantRec: 1, RAPDU: record, SW: tal.SWSuccess},
		{Op: "generate_ac", RAPDU: genAcResp, SW: tal.SWSuccess},
	})

	s := testSession(tr, SupportedAID{AID: aid})
	s.candidates.PushBack(&Application{AID: aid})
	s.setState(StateCandidateList)

	if outcome, err := s.SelectByIndex(0); err != nil || outcome != OutcomeContinue {
		t.Fatalf("SelectByIndex: outcome=%v err=%v", outcome, err)
	}

	txn := TxnParams{
		AmountAuthorized:   1000,
		TransactionType:    0x00,
		TransactionDateBCD: [3]byte{0x26, 0x08, 0x01},
	}

	if outcome, err := s.RunGPO(txn); err != nil || outcome != OutcomeContinue {
		t.Fatalf("RunGPO: outcome=%v err=%v", outcome, err)
	}
	if outcome, err := s.RunReadRecords(); err != nil || outcome != OutcomeContinue {
		t.Fatalf("RunReadRecords: outcome=%v err=%v", outcome, err)
	}
	if outcome, err := s.RunOfflineDataAuthentication(RiskConfig{}); err != nil || outcome != OutcomeContinue {
		t.Fatalf("RunOfflineDataAuthentication: outcome=%v err=%v", outcome, err)
	}
	if !s.tvr.Test(field.OfflineDataAuthNotPerformed) {
		t.Fatalf("expected OfflineDataAuthNotPerformed set, TVR=%x", s.tvr)
	}
	if outcome, err := s.RunProcessingRestrictions(txn, [2]byte{0x08, 0x40}); err != nil || outcome != OutcomeContinue {
		t.Fatalf("RunProcessingRestrictions: outcome=%v err=%v", outcome, err)
	}
	rc := RiskConfig{FloorLimit: 100000}
	if outcome, err := s.RunTerminalRiskManagement(txn, rc); err != nil || outcome != OutcomeContinue {
		t.Fatalf("RunTerminalRiskManagement: outcome=%v err=%v", outcome, err)
	}

	outcome, err := s.RunFirstGenerateAC(rc)
	if err != nil {
		t.Fatalf("RunFirstGenerateAC: %v", err)
	}
	if outcome != OutcomeApproved {
		t.Fatalf("expected OutcomeApproved, got %v", outcome)
	}
	if s.state != StateFirstGenAcDone {
		t.Fatalf("expected state FirstGenAcDone, got %v", s.state)
	}
	if !tr.Done() {
		t.Fatalf("script not fully consumed")
	}
}

func TestFullTransactionFloorLimitForcesOnline(t *testing.T) {
	aid := []byte{0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10}
	fci := []byte{0x6F, 0x0B, 0xA5, 0x09, 0x4F, 0x07, 0xA0, 0x00, 0x00, 0x00, 0x03, 0x10, 0x10}
	gpoResp := []byte{0x80, 0x02, 0x00, 0x00} // AIP only, no AFL
	genAcResp := []byte{0x80, 0x0B, 0x80, 0x00, 0x01, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

	tr := testscard.New([]testscard.Exchange{
		{Op: "select", WantArg1: aid, RAPDU: fci, SW: tal.SWSuccess},
		{Op: "gpo", RAPDU: gpoResp, SW: tal.SWSuccess},
		{Op: "generate_ac", RAPDU: genAcResp, SW: tal.SWSuccess},
	})
	s := testSession(tr, SupportedAID{AID: aid})
	s.candidates.PushBack(&Application{AID: aid})
	s.setState(StateCandidateList)
	if _, err := s.SelectByIndex(0); err != nil {
		t.Fatalf("SelectByIndex: %v", err)
	}
	txn := TxnParams{AmountAuthorized: 50000, TransactionDateBCD: [3]byte{0x26, 0x08, 0x01}}
	if _, err := s.RunGPO(txn); err != nil {
		t.Fatalf("RunGPO: %v", err)
	}
	if _, err := s.RunReadRecords(); err != nil {
		t.Fatalf("RunReadRecords: %v", err)
	}
	if _, err := s.RunOfflineDataAuthentication(RiskConfig{}); err != nil {
		t.Fatalf("RunOfflineDataAuthentication: %v", err)
	}
	if _, err := s.RunProcessingRestrictions(txn, [2]byte{0x08, 0x40}); err != nil {
		t.Fatalf("RunProcessingRestrictions: %v", err)
	}
	// TAC-Online names the floor-limit bit, so Terminal Action Analysis
	// requests an ARQC once the floor limit is exceeded.
	var tacOnline field.TVR
	tacOnline.Set(field.TxnFloorLimitExceeded)
	rc := RiskConfig{FloorLimit: 1000, TerminalActionCodes: risk.ActionCodes{Online: tacOnline}}
	if _, err := s.RunTerminalRiskManagement(txn, rc); err != nil {
		t.Fatalf("RunTerminalRiskManagement: %v", err)
	}
	if !s.tvr.Test(field.TxnFloorLimitExceeded) {
		t.Fatalf("expected TxnFloorLimitExceeded set, TVR=%x", s.tvr)
	}
	outcome, err := s.RunFirstGenerateAC(rc)
	if err != nil {
		t.Fatalf("RunFirstGenerateAC: %v", err)
	}
	if outcome != OutcomeOnlineRequest {
		t.Fatalf("expected OutcomeOnlineRequest, got %v", outcome)
	}
}
