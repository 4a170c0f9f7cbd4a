package emv

import (
	"github.com/barnettlynn/emvkernel/emv/field"
	"github.com/barnettlynn/emvkernel/emv/tal"
	"github.com/barnettlynn/emvkernel/tlv"
)

// State names one step of the linear transaction state machine (spec.md 4.G).
type State int

const (
	StateIdle State = iota
	StateAtrValidated
	StateCandidateList
	StateSelected
	StateGpoDone
	StateRecordsRead
	StateOdaDone
	StateRestrictionsChecked
	StateRiskDone
	StateFirstGenAcDone
	StateTerminal
)

func (s State) String() string {
	names := [...]string{
		"idle", "atr_validated", "candidate_list", "selected", "gpo_done",
		"records_read", "oda_done", "restrictions_checked", "risk_done",
		"first_gen_ac_done", "terminal",
	}
	if int(s) < 0 || int(s) >= len(names) {
		return "unknown"
	}
	return names[s]
}

// ODAMethod is the offline data authentication method chosen for the
// selected application (spec.md 4.E). It is tracked separately from the
// TVR's SDA/DDA/CDA-failed bits so "method selected but not yet run" is
// distinguishable from "method failed".
type ODAMethod int

const (
	ODANone ODAMethod = iota
	ODASDA
	ODADDA
	ODACDA
)

func (m ODAMethod) String() string {
	switch m {
	case ODASDA:
		return "SDA"
	case ODADDA:
		return "DDA"
	case ODACDA:
		return "CDA"
	default:
		return "none"
	}
}

// OdaContext carries the offline data authentication working state across
// GET PROCESSING OPTIONS, READ RECORD, and the first GENERATE AC (spec.md
// 4.E). RecordBuf accumulates the hash-input bytes named by the static or
// dynamic tag list as records are read; it is consumed and cleared by the
// emv/oda engine once ODA runs.
type OdaContext struct {
	Method    ODAMethod
	RecordBuf []byte
	Succeeded bool
}

// TerminalConfig is the fixed-per-terminal configuration the session reads
// its terminal-side TLV fields, supported AIDs, and code-table set from
// (spec.md 6.4). cmd/emvterm builds it once from internal/config's loaded
// Config and reuses it across transactions.
type TerminalConfig struct {
	SupportedAIDs []SupportedAID
	CodeTables    CodeTableSet
	TerminalTags  tlv.List // static terminal fields published into Terminal before GPO
}

// Session drives one transaction through the EMV contact kernel state
// machine (spec.md 4.G). It owns every TLV list the TAL and risk/ODA
// engines read or write and is not safe for concurrent use.
type Session struct {
	tr  tal.Transport
	cfg *TerminalConfig

	state State

	candidates ApplicationList
	selected   *Application

	icc      tlv.List // fields read from the card (records, GPO data)
	terminal tlv.List // terminal-side fields (amounts, dates, config)

	oda OdaContext
	tvr field.TVR
	tsi field.TSI
}

// NewSession creates a Session bound to tr and cfg, seeded with cfg's static
// terminal fields.
func NewSession(tr tal.Transport, cfg *TerminalConfig) *Session {
	s := &Session{tr: tr, cfg: cfg, state: StateIdle}
	if cfg != nil {
		s.terminal = append(tlv.List(nil), cfg.TerminalTags...)
	}
	return s
}

func (s *Session) transport() tal.Transport { return s.tr }

func (s *Session) codeTablesSet() CodeTableSet {
	if s.cfg == nil {
		return nil
	}
	return s.cfg.CodeTables
}

func (s *Session) supportedAIDList() []SupportedAID {
	if s.cfg == nil {
		return nil
	}
	return s.cfg.SupportedAIDs
}

// State returns the current step of the transaction state machine.
func (s *Session) State() State { return s.state }

// TVR returns the session's accumulated Terminal Verification Results.
func (s *Session) TVR() field.TVR { return s.tvr }

// TSI returns the session's accumulated Transaction Status Information.
func (s *Session) TSI() field.TSI { return s.tsi }

// Selected returns the application chosen for this transaction, or nil
// before selection completes.
func (s *Session) Selected() *Application { return s.selected }

// ICC returns the accumulated card-originated TLV fields.
func (s *Session) ICC() tlv.List { return s.icc }

// Close cleanses every sensitive buffer the session accumulated: ICC
// fields, the ODA record buffer, and the terminal list (spec.md 5,
// "Cancellation"). The Session must not be used afterward.
func (s *Session) Close() {
	for i := range s.icc {
		field.Cleanse(s.icc[i].Value)
	}
	for i := range s.terminal {
		field.Cleanse(s.terminal[i].Value)
	}
	field.Cleanse(s.oda.RecordBuf)
	s.icc = nil
	s.terminal = nil
	s.oda = OdaContext{}
	s.selected = nil
}
