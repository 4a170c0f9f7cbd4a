package emv

import (
	"bytes"
	"fmt"

	"github.com/barnettlynn/emvkernel/emv/field"
	"github.com/barnettlynn/emvkernel/emv/tal"
	"github.com/barnettlynn/emvkernel/tlv"
)

// readPSE implements spec.md 4.D.1: SELECT the PSE directory DF name, walk
// its records via the SFI found in the FCI, and append one Application per
// Application Template (tag 61) found, subject to supported-AID filtering.
// It returns CardBlocked for SW 6A81 and CardError when the PSE SELECT
// fails at the transport level; any other absent or unreadable PSE is
// "empty, continue".
func (s *Session) readPSE() (Outcome, error) {
	fci, sw, err := s.transport().SelectByDFName([]byte(PSEDFName))
	if err != nil {
		return OutcomeCardError, nil
	}
	switch sw {
	case tal.SWCardBlocked:
		return OutcomeCardBlocked, nil
	case tal.SWSuccess:
		// fall through to record reading
	default:
		// SW 6A82 (absent), 6283 (blocked), or anything else non-9000:
		// empty, continue (spec.md 4.D.1).
		return OutcomeContinue, nil
	}

	fciFields, perr := tlv.ParseAll(fci)
	if perr != nil {
		return OutcomeContinue, nil
	}
	sfiField, ok := fciFields.Find(TagPSESFI)
	if !ok || len(sfiField.Value) != 1 {
		return OutcomeContinue, nil
	}
	sfi := sfiField.Value[0]

	for rec := uint8(1); ; rec++ {
		data, rsw, rerr := s.transport().ReadRecord(sfi, rec)
		if rerr != nil {
			return OutcomeContinue, nil
		}
		if rsw == tal.SWFileEOF {
			break
		}
		if rsw != tal.SWSuccess {
			break
		}
		recFields, err := tlv.ParseAll(data)
		if err != nil {
			continue
		}
		s.appendPSEApplications(recFields)
	}
	return OutcomeContinue, nil
}

// appendPSEApplications turns the fields of one PSE record, as flattened by
// tlv.ParseAll (which descends tag 70 and every tag 61 in it), into
// candidate Applications, keeping only those whose AID matches a supported
// AID.
func (s *Session) appendPSEApplications(recFields tlv.List) {
	// recFields is the flattened content of template 70; every 61-rooted
	// group was itself flattened by tlv.ParseAll, so AID (4F) boundaries
	// delimit applications: each AID starts a new Application whose
	// fields run until the next AID or end of list.
	var cur tlv.List
	flushed := false
	flush := func() {
		if len(cur) == 0 {
			return
		}
		if app, err := NewApplicationFromPSE(cur, s.codeTablesSet()); err == nil {
			if matchesAny(app.AID, s.supportedAIDList()) {
				s.candidates.PushBack(app)
			}
		}
		cur = nil
		flushed = true
	}
	for _, f := range recFields {
		if f.Tag == TagAID || f.Tag == TagAIDAlt {
			flush()
		}
		cur = append(cur, f)
	}
	flush()
	_ = flushed
}

// probeAIDList implements spec.md 4.D.2: fallback AID-list discovery by
// SELECT-by-DF-name against each supported AID, using "next occurrence"
// cursor semantics for subsequent hits on the same AID.
func (s *Session) probeAIDList() (Outcome, error) {
	for _, supported := range s.supportedAIDList() {
		first := true
		exactDone := false
		for {
			if exactDone {
				break
			}
			var fci []byte
			var sw tal.SW
			var err error
			if first {
				fci, sw, err = s.transport().SelectByDFName(supported.AID)
				first = false
			} else {
				fci, sw, err = s.transport().SelectByDFNameNext(supported.AID)
			}
			if err != nil {
				break
			}
			if sw == tal.SWCardBlocked {
				return OutcomeCardBlocked, nil
			}
			blocked := sw == tal.SWSelectedFileInvalid
			if sw != tal.SWSuccess && !blocked {
				break
			}

			fields, perr := tlv.ParseAll(fci)
			if perr != nil {
				continue
			}
			aidField, ok := fields.Find(TagAID)
			if !ok {
				ok = false
				if f2, ok2 := fields.Find(TagAIDAlt); ok2 {
					aidField, ok = f2, true
				}
			}
			if !ok {
				continue
			}

			exact := len(aidField.Value) == len(supported.AID)
			if blocked {
				// Discarded, but counts as "found" for cursor advancement.
				if exact {
					exactDone = true
				}
				continue
			}
			if exact {
				if app, err := NewApplicationFromFCI(fields, s.codeTablesSet()); err == nil {
					s.candidates.PushBack(app)
				}
				exactDone = true
				continue
			}
			if !supported.PartialMatch {
				continue
			}
			if app, err := NewApplicationFromFCI(fields, s.codeTablesSet()); err == nil {
				s.candidates.PushBack(app)
			}
		}
	}
	return OutcomeContinue, nil
}

// selectApplication implements spec.md 4.D.3.
func (s *Session) selectApplication(aid []byte) (*Application, Outcome) {
	if len(aid) > 16 {
		return nil, OutcomeTryAgain
	}
	fci, sw, err := s.transport().SelectByDFName(aid)
	if err != nil {
		return nil, OutcomeCardError
	}
	switch sw {
	case tal.SWCardBlocked:
		return nil, OutcomeCardBlocked
	case tal.SWSuccess:
		fields, perr := tlv.ParseAll(fci)
		if perr != nil {
			return nil, OutcomeTryAgain
		}
		app, aerr := NewApplicationFromFCI(fields, s.codeTablesSet())
		if aerr != nil {
			return nil, OutcomeTryAgain
		}
		return app, OutcomeContinue
	default:
		return nil, OutcomeTryAgain
	}
}

// buildTag83 wraps data in BER tag 83 with the correct short/long length
// form (spec.md 6.5).
func buildTag83(data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0x83)
	if len(data) < 0x80 {
		buf.WriteByte(byte(len(data)))
	} else {
		buf.WriteByte(0x81)
		buf.WriteByte(byte(len(data)))
	}
	buf.Write(data)
	return buf.Bytes()
}

// gpoResult holds the normalized output of GET PROCESSING OPTIONS or
// GENERATE AC: the response's fields flattened to a flat tlv.List either
// way, plus the AIP/AFL convenience accessors GPO callers use (spec.md 3,
// 4.D.4, 4.D.6). Tag 0x80 is reused by both commands with an unrelated
// byte layout, so each gets its own decoder; only format 2 (tag 0x77, a
// self-describing BER-TLV template) can share one.
type gpoResult struct {
	fields tlv.List
	aip    []byte
	afl    []byte
}

// parseGPOResponse decodes a GET PROCESSING OPTIONS response. Format 1
// (tag 80) is AIP(2)||AFL(N*4) with no inner tags; format 2 (tag 77) is a
// BER-TLV template whose children are returned directly.
func parseGPOResponse(rapdu []byte) (gpoResult, error) {
	dec, err := tlv.DecodeOne(rapdu)
	if err != nil {
		return gpoResult{}, err
	}
	switch dec.Tag {
	case TagGPOTemplateFmt1:
		if len(dec.Value) < 2 {
			return gpoResult{}, fmt.Errorf("emv: format-1 GPO response shorter than AIP")
		}
		aip := dec.Value[0:2]
		afl := dec.Value[2:]
		if len(afl)%4 != 0 {
			return gpoResult{}, fmt.Errorf("emv: format-1 GPO AFL length %d is not a multiple of 4", len(afl))
		}
		var fields tlv.List
		fields.PushValue(TagAIP, aip)
		if len(afl) > 0 {
			fields.PushValue(TagAFL, afl)
		}
		return gpoResult{fields: fields, aip: aip, afl: afl}, nil
	case TagGPOTemplateFmt2:
		fields, perr := tlv.ParseAll(dec.Value)
		if perr != nil {
			return gpoResult{}, perr
		}
		res := gpoResult{fields: fields}
		if f, ok := fields.Find(TagAIP); ok {
			res.aip = f.Value
		}
		if f, ok := fields.Find(TagAFL); ok {
			res.afl = f.Value
		}
		return res, nil
	default:
		return gpoResult{}, fmt.Errorf("emv: unrecognized GPO response tag %02X", dec.Tag)
	}
}

// parseGenACResponse decodes a GENERATE AC response. Format 1 (tag 80) is
// CID(1)||ATC(2)||AC(8)||IAD(var, optional); format 2 (tag 77) is a
// BER-TLV template carrying the same data as named tags (EMV Book 3
// §6.5.5).
func parseGenACResponse(rapdu []byte) (gpoResult, error) {
	dec, err := tlv.DecodeOne(rapdu)
	if err != nil {
		return gpoResult{}, err
	}
	switch dec.Tag {
	case TagGPOTemplateFmt1:
		if len(dec.Value) < 1+2+8 {
			return gpoResult{}, fmt.Errorf("emv: format-1 GENERATE AC response shorter than CID+ATC+AC")
		}
		var fields tlv.List
		fields.PushValue(TagCID, dec.Value[0:1])
		fields.PushValue(TagATC, dec.Value[1:3])
		fields.PushValue(TagApplicationCryptogram, dec.Value[3:11])
		if len(dec.Value) > 11 {
			fields.PushValue(0x9F10, dec.Value[11:]) // Issuer Application Data
		}
		return gpoResult{fields: fields}, nil
	case TagGPOTemplateFmt2:
		fields, perr := tlv.ParseAll(dec.Value)
		if perr != nil {
			return gpoResult{}, perr
		}
		return gpoResult{fields: fields}, nil
	default:
		return gpoResult{}, fmt.Errorf("emv: unrecognized GENERATE AC response tag %02X", dec.Tag)
	}
}

// getProcessingOptions implements spec.md 4.D.4.
func (s *Session) getProcessingOptions(pdolData []byte) (gpoResult, Outcome) {
	rapdu, sw, err := s.transport().GetProcessingOptions(buildTag83(pdolData))
	if err != nil {
		return gpoResult{}, OutcomeCardError
	}
	if sw == tal.SWConditionsNotSatisfd {
		return gpoResult{}, OutcomeGpoNotAccepted
	}
	if sw != tal.SWSuccess {
		return gpoResult{}, OutcomeCardError
	}
	res, perr := parseGPOResponse(rapdu)
	if perr != nil {
		return gpoResult{}, OutcomeCardError
	}
	return res, OutcomeContinue
}

// readRecords implements spec.md 4.D.5: walk the AFL, accumulating ICC
// fields and the ODA record buffer. A per-record invalid-record condition
// doesn't abort the walk; it's reported via the returned error slice for
// the caller to decide (the orchestrator treats it as ODA_RECORD_INVALID,
// non-fatal).
func (s *Session) readRecords(aflEntries []field.AflEntry) []error {
	var invalids []error
	for _, e := range aflEntries {
		for rec := e.FirstRecord; rec <= e.LastRecord; rec++ {
			data, sw, err := s.transport().ReadRecord(e.SFI, rec)
			if err != nil || sw != tal.SWSuccess {
				invalids = append(invalids, fmt.Errorf("emv: READ RECORD sfi=%d rec=%d failed", e.SFI, rec))
				continue
			}
			dec, derr := tlv.DecodeOne(data)
			if derr != nil || dec.Tag != TagRecordTemplate || dec.Consumed != len(data) {
				invalids = append(invalids, fmt.Errorf("emv: ODA_RECORD_INVALID sfi=%d rec=%d", e.SFI, rec))
				continue
			}
			childFields, cerr := tlv.ParseAll(dec.Value)
			if cerr != nil {
				invalids = append(invalids, fmt.Errorf("emv: ODA_RECORD_INVALID sfi=%d rec=%d", e.SFI, rec))
				continue
			}
			s.icc.SpliceAll(&childFields)

			inOdaRange := rec < e.FirstRecord+e.OdaRecordCount
			if inOdaRange {
				if e.SFI >= 1 && e.SFI <= 10 {
					s.oda.RecordBuf = append(s.oda.RecordBuf, dec.Value...)
				} else {
					s.oda.RecordBuf = append(s.oda.RecordBuf, data...)
				}
			}
		}
	}
	return invalids
}

// generateACFirst implements spec.md 4.D.6.
func (s *Session) generateACFirst(refControl byte, cdol1Data []byte) (gpoResult, Outcome) {
	rapdu, sw, err := s.transport().GenerateAC(refControl, cdol1Data)
	if err != nil {
		return gpoResult{}, OutcomeCardError
	}
	if sw != tal.SWSuccess {
		return gpoResult{}, OutcomeCardError
	}
	res, perr := parseGenACResponse(rapdu)
	if perr != nil {
		return gpoResult{}, OutcomeCardError
	}
	return res, OutcomeContinue
}
