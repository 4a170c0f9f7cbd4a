package emv

import (
	"github.com/barnettlynn/emvkernel/emv/field"
	"github.com/barnettlynn/emvkernel/emv/oda"
	"github.com/barnettlynn/emvkernel/emv/risk"
	"github.com/barnettlynn/emvkernel/emv/tal"
	"github.com/barnettlynn/emvkernel/tlv"
)

// TxnParams are the transaction-specific values the terminal supplies at
// the start of a transaction (spec.md 4.G, 6.4): amounts, date, currency,
// and the unpredictable number the TRNG collaborator produced.
type TxnParams struct {
	AmountAuthorized    uint64
	AmountOther         uint64
	TransactionType     byte
	TransactionDateBCD  [3]byte // YYMMDD
	UnpredictableNumber [4]byte
	POSEntryMode        byte
}

// RiskConfig bundles the terminal-side risk management and ODA
// collaborators a Session needs beyond TerminalConfig's static fields.
// Both fields are optional: a nil ODA skips offline data authentication
// entirely (TVR.OfflineDataAuthNotPerformed is set), and a nil Rand
// defaults random online selection to "never select".
type RiskConfig struct {
	FloorLimit uint64
	Random     risk.RandomSelectionParams
	Rand       risk.RandSource
	Velocity   struct {
		LowerLimit, UpperLimit uint8
	}
	TerminalActionCodes risk.ActionCodes
	ODA                 *oda.Engine
}

func (s *Session) setState(next State) { s.state = next }

// SetCandidates replaces the candidate list, used by a caller that wants
// to drive discovery itself (e.g. presenting a menu) rather than calling
// DiscoverApplications.
func (s *Session) SetCandidates(apps *ApplicationList) { s.candidates = *apps }

// Candidates returns the discovered candidate list.
func (s *Session) Candidates() *ApplicationList { return &s.candidates }

// DiscoverApplications implements spec.md 4.D.1-4.D.2: try PSE first, and
// only fall back to AID-list probing if PSE yielded nothing (spec.md 3).
func (s *Session) DiscoverApplications() (Outcome, error) {
	if s.state != StateIdle && s.state != StateAtrValidated {
		return 0, errInternal("emv.DiscoverApplications", errBadState(s.state))
	}
	outcome, err := s.readPSE()
	if err != nil || outcome.Terminal() {
		return outcome, err
	}
	if s.candidates.Len() == 0 {
		outcome, err = s.probeAIDList()
		if err != nil || outcome.Terminal() {
			return outcome, err
		}
	}
	s.candidates.SortByPriority()
	s.setState(StateCandidateList)
	return OutcomeContinue, nil
}

// SelectByIndex selects candidate i from the discovered list (spec.md
// 4.D.3). The caller is responsible for presenting the candidate list and
// resolving ConfirmationRequired per its own UX, both out of kernel scope.
func (s *Session) SelectByIndex(i int) (Outcome, error) {
	if s.state != StateCandidateList {
		return 0, errInternal("emv.SelectByIndex", errBadState(s.state))
	}
	if i < 0 || i >= s.candidates.Len() {
		return 0, errInvalidParameter("emv.SelectByIndex", errInvalidIndex)
	}
	app, outcome := s.selectApplication(s.candidates.At(i).AID)
	if outcome.Terminal() {
		return outcome, nil
	}
	s.selected = app
	s.terminal.Set(TagSelectedAID, app.AID)
	s.setState(StateSelected)
	return OutcomeContinue, nil
}

// RunGPO implements spec.md 4.D.4: build the PDOL (if the FCI carries one)
// from terminal+transaction sources and call GET PROCESSING OPTIONS.
func (s *Session) RunGPO(txn TxnParams) (Outcome, error) {
	if s.state != StateSelected {
		return 0, errInternal("emv.RunGPO", errBadState(s.state))
	}
	s.publishTxnFields(txn)

	var pdolData []byte
	if pdol, ok := s.selected.TlvList.Find(TagPDOL); ok {
		entries, err := tlv.ParseDOL(pdol.Value)
		if err != nil {
			return 0, errInternal("emv.RunGPO", err)
		}
		total, err := tlv.ComputeDataLength(entries)
		if err != nil {
			return 0, errInternal("emv.RunGPO", err)
		}
		pdolData = make([]byte, total)
		sources := tlv.Sources{&s.terminal, &s.selected.TlvList}
		if _, err := tlv.Build(pdolData, entries, sources); err != nil {
			return 0, errInternal("emv.RunGPO", err)
		}
	}

	res, outcome := s.getProcessingOptions(pdolData)
	if outcome.Terminal() {
		return outcome, nil
	}
	s.icc.SpliceAll(&res.fields)
	s.setState(StateGpoDone)
	return OutcomeContinue, nil
}

// RunReadRecords implements spec.md 4.D.5: walk the AFL returned by GPO.
// Invalid records are non-fatal; they set ICCDataMissing and the session
// continues (spec.md 4.D.5 edge case).
func (s *Session) RunReadRecords() (Outcome, error) {
	if s.state != StateGpoDone {
		return 0, errInternal("emv.RunReadRecords", errBadState(s.state))
	}
	aflField, ok := s.icc.Find(TagAFL)
	if !ok {
		s.tvr.Set(field.ICCDataMissing)
		s.setState(StateRecordsRead)
		return OutcomeContinue, nil
	}
	entries, err := field.ParseAFL(aflField.Value)
	if err != nil {
		s.tvr.Set(field.ICCDataMissing)
		s.setState(StateRecordsRead)
		return OutcomeContinue, nil
	}
	if invalids := s.readRecords(entries); len(invalids) > 0 {
		s.tvr.Set(field.ICCDataMissing)
	}
	s.setState(StateRecordsRead)
	return OutcomeContinue, nil
}

// RunOfflineDataAuthentication implements spec.md 4.E: select a method
// from the AIP and available ICC fields, then verify it via rc.ODA. A nil
// rc.ODA or ODANone selection sets OfflineDataAuthNotPerformed and does
// not fail the transaction by itself; Terminal Action Analysis downstream
// decides based on the TVR.
func (s *Session) RunOfflineDataAuthentication(rc RiskConfig) (Outcome, error) {
	if s.state != StateRecordsRead {
		return 0, errInternal("emv.RunOfflineDataAuthentication", errBadState(s.state))
	}
	aipField, ok := s.icc.Find(TagAIP)
	if !ok {
		s.tvr.Set(field.OfflineDataAuthNotPerformed)
		s.setState(StateOdaDone)
		return OutcomeContinue, nil
	}
	method := oda.SelectMethod(aipField.Value, s.icc)
	switch method {
	case oda.None:
		aip := aipField.Value
		xdaClaimed := len(aip) > 1 && aip[1]&0x20 != 0
		if xdaClaimed {
			s.tvr.Set(field.XDAFailed)
		} else {
			s.tvr.Set(field.OfflineDataAuthNotPerformed)
		}
		s.setState(StateOdaDone)
		return OutcomeContinue, nil
	case oda.SDA:
		s.oda.Method = ODASDA
	case oda.DDA:
		s.oda.Method = ODADDA
	case oda.CDA:
		s.oda.Method = ODACDA
	}

	if rc.ODA == nil {
		s.tvr.Set(field.OfflineDataAuthNotPerformed)
		s.setState(StateOdaDone)
		return OutcomeContinue, nil
	}

	var rid [5]byte
	copy(rid[:], s.selected.AID)
	capkIdx, ok := s.icc.Find(TagCAPublicKeyIndex)
	if !ok || len(capkIdx.Value) != 1 {
		s.tvr.Set(field.OfflineDataAuthNotPerformed)
		s.setState(StateOdaDone)
		return OutcomeContinue, nil
	}

	switch s.oda.Method {
	case ODASDA:
		tagList, _ := s.icc.Find(TagSDATagList)
		ok, err := rc.ODA.RunSDA(rid, capkIdx.Value[0], s.icc, tagList.Value)
		if err != nil || !ok {
			s.tvr.Set(field.SDAFailed)
		} else {
			s.oda.Succeeded = true
			s.tsi.Set(field.OfflineDataAuthPerformed)
		}
	case ODADDA:
		panField, _ := s.icc.Find(TagApplicationPAN)
		ddolData, err := s.buildDDOLData()
		if err != nil {
			s.tvr.Set(field.DDAFailed)
			break
		}
		resp, sw, err := s.transport().InternalAuthenticate(ddolData)
		if err != nil || sw != tal.SWSuccess {
			s.tvr.Set(field.DDAFailed)
			break
		}
		ok, err := rc.ODA.RunDDA(rid, capkIdx.Value[0], s.icc, panField.Value, ddolData, resp)
		if err != nil || !ok {
			s.tvr.Set(field.DDAFailed)
		} else {
			s.oda.Succeeded = true
			s.tsi.Set(field.OfflineDataAuthPerformed)
		}
	case ODACDA:
		// CDA's signature lives in the first GENERATE AC response and is
		// verified in RunFirstGenerateAC once that response exists.
		s.tsi.Set(field.OfflineDataAuthPerformed)
	}

	s.setState(StateOdaDone)
	return OutcomeContinue, nil
}

// buildDDOLData builds the command data for INTERNAL AUTHENTICATE from the
// application's DDOL (tag 9F49), falling back to the single Unpredictable
// Number field per EMV Book 3 §6.5.2 when the application carries none.
func (s *Session) buildDDOLData() ([]byte, error) {
	ddol, ok := s.selected.TlvList.Find(TagDDOL)
	if !ok {
		return findValue(s.terminal, TagUnpredictableNumber), nil
	}
	entries, err := tlv.ParseDOL(ddol.Value)
	if err != nil {
		return nil, err
	}
	total, err := tlv.ComputeDataLength(entries)
	if err != nil {
		return nil, err
	}
	data := make([]byte, total)
	if _, err := tlv.Build(data, entries, tlv.Sources{&s.terminal, &s.icc}); err != nil {
		return nil, err
	}
	return data, nil
}

// findValue returns a Field's value or nil if tag is absent.
func findValue(l tlv.List, tag uint32) []byte {
	if f, ok := l.Find(tag); ok {
		return f.Value
	}
	return nil
}

// RunProcessingRestrictions implements spec.md 4: AUC domestic/
// international check, application version check, and effective/
// expiration date checks (EMV Book 3 §10.2-10.4).
func (s *Session) RunProcessingRestrictions(txn TxnParams, terminalCountry [2]byte) (Outcome, error) {
	if s.state != StateOdaDone {
		return 0, errInternal("emv.RunProcessingRestrictions", errBadState(s.state))
	}

	if icc, ok := s.icc.Find(TagApplicationVersionICC); ok {
		if term, ok := s.terminal.Find(TagApplicationVersionTerm); ok {
			if string(icc.Value) != string(term.Value) {
				s.tvr.Set(field.DifferentApplicationVersions)
			}
		}
	}

	if exp, ok := s.icc.Find(TagApplicationExpiryDate); ok {
		if field.Before(exp.Value, txn.TransactionDateBCD[:]) {
			s.tvr.Set(field.ApplicationExpired)
		}
	}
	if eff, ok := s.icc.Find(TagApplicationEffDate); ok {
		if field.After(eff.Value, txn.TransactionDateBCD[:]) {
			s.tvr.Set(field.ApplicationNotYetEffective)
		}
	}

	if auc, ok := s.icc.Find(TagAUC); ok && len(auc.Value) == 2 {
		domestic := auc.Value[0]&0x80 != 0
		international := auc.Value[0]&0x40 != 0
		issuerCountry, hasIssuerCountry := s.icc.Find(TagIssuerCountryCode)
		isDomestic := hasIssuerCountry && string(issuerCountry.Value) == string(terminalCountry[:])
		allowed := (isDomestic && domestic) || (!isDomestic && international)
		if !allowed {
			s.tvr.Set(field.ServiceNotAllowed)
		}
	}

	s.setState(StateRestrictionsChecked)
	return OutcomeContinue, nil
}

// RunTerminalRiskManagement implements spec.md 4.F: floor limit, random
// online selection, and velocity checking, recording each outcome in the
// TVR and setting the TSI's terminal-risk-management-performed bit.
func (s *Session) RunTerminalRiskManagement(txn TxnParams, rc RiskConfig) (Outcome, error) {
	if s.state != StateRestrictionsChecked {
		return 0, errInternal("emv.RunTerminalRiskManagement", errBadState(s.state))
	}

	if risk.FloorLimitExceeded(txn.AmountAuthorized, rc.FloorLimit) {
		s.tvr.Set(field.TxnFloorLimitExceeded)
	}

	if rc.Rand != nil {
		if risk.RandomOnlineSelection(txn.AmountAuthorized, rc.Random, rc.Rand) {
			s.tvr.Set(field.RandomSelectedOnline)
		}
	}

	atcField, hasATC := s.icc.Find(TagATC)
	lastOnlineField, hasLastOnline := s.icc.Find(TagLastOnlineATC)
	if hasATC && hasLastOnline && len(atcField.Value) == 2 && len(lastOnlineField.Value) == 2 {
		atc := be16(atcField.Value)
		lastOnline := be16(lastOnlineField.Value)
		lower, upper := risk.VelocityExceeded(atc, lastOnline, rc.Velocity.LowerLimit, rc.Velocity.UpperLimit)
		if lower {
			s.tvr.Set(field.LowerConsecutiveLimitExceed)
		}
		if upper {
			s.tvr.Set(field.UpperConsecutiveLimitExceed)
		}
	}

	s.tsi.Set(field.TerminalRiskManagementPerf)
	s.setState(StateRiskDone)
	return OutcomeContinue, nil
}

func be16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }

// RefControlRequestARQC is the GENERATE AC reference control byte
// requesting an ARQC (EMV Book 3 §10.8). RunFirstGenerateAC sends it when
// Terminal Action Analysis decides to go online; it sends TC (0x40) when
// the decision is to approve offline and AAC (0x00) when it is to decline.
const RefControlRequestARQC byte = 0x80

// RunFirstGenerateAC implements spec.md 4.D.6 and the Terminal Action
// Analysis it triggers (spec.md 4.F, EMV Book 3 §10.7): build CDOL1 data,
// call GENERATE AC, classify the response's CID into an Outcome, and run
// CDA verification if that method was selected.
func (s *Session) RunFirstGenerateAC(rc RiskConfig) (Outcome, error) {
	if s.state != StateRiskDone {
		return 0, errInternal("emv.RunFirstGenerateAC", errBadState(s.state))
	}

	s.terminal.Set(TagTVR, s.tvr[:])
	s.terminal.Set(TagTSI, s.tsi[:])

	decision := risk.TerminalActionAnalysis(s.tvr, rc.TerminalActionCodes, s.issuerActionCodes())

	var cdol1Data []byte
	if cdol1, ok := s.selected.TlvList.Find(TagCDOL1); ok {
		entries, err := tlv.ParseDOL(cdol1.Value)
		if err != nil {
			return 0, errInternal("emv.RunFirstGenerateAC", err)
		}
		total, err := tlv.ComputeDataLength(entries)
		if err != nil {
			return 0, errInternal("emv.RunFirstGenerateAC", err)
		}
		cdol1Data = make([]byte, total)
		sources := tlv.Sources{&s.terminal, &s.icc}
		if _, err := tlv.Build(cdol1Data, entries, sources); err != nil {
			return 0, errInternal("emv.RunFirstGenerateAC", err)
		}
	}

	refControl := byte(0x40) // TC: approve offline
	switch decision {
	case risk.DecisionGoOnline:
		refControl = RefControlRequestARQC
	case risk.DecisionDeclineOffline:
		refControl = 0x00 // AAC
	}

	res, outcome := s.generateACFirst(refControl, cdol1Data)
	if outcome.Terminal() {
		return outcome, nil
	}
	genAcFields := append(tlv.List(nil), res.fields...)
	s.icc.SpliceAll(&res.fields)

	if s.oda.Method == ODACDA {
		var rid [5]byte
		copy(rid[:], s.selected.AID)
		if capkIdx, ok := s.icc.Find(TagCAPublicKeyIndex); ok && len(capkIdx.Value) == 1 && rc.ODA != nil {
			panField, _ := s.icc.Find(TagApplicationPAN)
			ok, err := rc.ODA.RunCDA(rid, capkIdx.Value[0], s.icc, panField.Value, genAcFields, cdol1Data)
			if err != nil || !ok {
				s.tvr.Set(field.CDAFailed)
			} else {
				s.oda.Succeeded = true
			}
		}
	}

	s.setState(StateFirstGenAcDone)

	cidField, ok := s.icc.Find(TagCID)
	if !ok || len(cidField.Value) != 1 {
		return OutcomeTryAgain, nil
	}
	switch cidField.Value[0] & 0xC0 {
	case 0x40:
		return OutcomeApproved, nil // TC
	case 0x80:
		return OutcomeOnlineRequest, nil // ARQC
	case 0x00:
		return OutcomeDeclined, nil // AAC
	default:
		return OutcomeTryAgain, nil
	}
}

// issuerActionCodes reads the card's IAC-denial/online/default fields
// (EMV Book 3 §10.7); a missing IAC tag leaves that mask all-zero, which
// cannot veto the terminal's own TAC decision.
func (s *Session) issuerActionCodes() risk.ActionCodes {
	var ac risk.ActionCodes
	if f, ok := s.icc.Find(0x9F0E); ok {
		if t, err := risk.ParseActionCode(f.Value); err == nil {
			ac.Denial = t
		}
	}
	if f, ok := s.icc.Find(0x9F0F); ok {
		if t, err := risk.ParseActionCode(f.Value); err == nil {
			ac.Online = t
		}
	}
	if f, ok := s.icc.Find(0x9F0D); ok {
		if t, err := risk.ParseActionCode(f.Value); err == nil {
			ac.Default = t
		}
	}
	return ac
}

func (s *Session) publishTxnFields(txn TxnParams) {
	s.terminal.Set(TagAmountAuthorizedBin, field.PutAmountBinary(uint32(txn.AmountAuthorized)))
	s.terminal.Set(TagAmountOtherBin, field.PutAmountBinary(uint32(txn.AmountOther)))
	s.terminal.Set(TagTransactionType, []byte{txn.TransactionType})
	s.terminal.Set(TagTransactionDate, txn.TransactionDateBCD[:])
	s.terminal.Set(TagUnpredictableNumber, txn.UnpredictableNumber[:])
	s.terminal.Set(TagPOSEntryMode, []byte{txn.POSEntryMode})
}

type stateError string

func (e stateError) Error() string { return string(e) }

func errBadState(s State) error {
	return stateError("emv: invalid state " + s.String() + " for this operation")
}

const errInvalidIndex stateError = "emv: candidate index out of range"
