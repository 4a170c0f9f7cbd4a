// Package risk implements terminal risk management: floor limit checking,
// EMV Book 3 Figure 15 biased random transaction selection, velocity
// checking, and terminal action analysis (spec.md 4.F).
package risk

import (
	"fmt"

	"github.com/barnettlynn/emvkernel/emv/field"
)

// RandSource supplies the uniformly-distributed integer in [0, max) that
// Figure 15's biased random selection consumes. Cryptographic randomness
// is an external collaborator (spec.md 5).
type RandSource interface {
	Intn(max int) int
}

// FloorLimitExceeded reports whether amount (binary, minor currency units)
// exceeds the terminal's configured floor limit for this application
// (spec.md 4.F).
func FloorLimitExceeded(amount, floorLimit uint64) bool {
	return amount > floorLimit
}

// RandomSelectionParams are the Figure 15 thresholds (EMV Book 3 §10.6):
// transactions below lowerLimit are never selected, transactions at or
// above upperLimit are always selected, and the probability ramps linearly
// between the two, scaled by targetPercentage.
type RandomSelectionParams struct {
	TargetPercentage int // 0..99, the terminal's configured "threshold" (9F1B-adjacent config)
	LowerLimit       uint64
	UpperLimit       uint64
}

// RandomOnlineSelection implements EMV Book 3 Figure 15: returns true if
// the transaction should go online for purely random-selection reasons.
// amount at or above UpperLimit always selects; below LowerLimit never
// selects; in between, the selection probability increases linearly from
// TargetPercentage up to 100%.
func RandomOnlineSelection(amount uint64, p RandomSelectionParams, rnd RandSource) bool {
	if amount >= p.UpperLimit {
		return true
	}
	if amount < p.LowerLimit || p.UpperLimit <= p.LowerLimit {
		return false
	}
	span := p.UpperLimit - p.LowerLimit
	delta := amount - p.LowerLimit
	// probability(amount) = target + (100-target) * delta/span, expressed
	// in whole percent to keep the comparison integer-exact.
	biasedPercent := p.TargetPercentage + int((100-p.TargetPercentage)*int(delta)/int(span))
	draw := rnd.Intn(100)
	return draw < biasedPercent
}

// VelocityExceeded implements the lower/upper consecutive offline limit
// check (tags 9F14/9F23 against ATC minus Last Online ATC, EMV Book 3
// §10.5). upperExceeded additionally forces online.
func VelocityExceeded(atc, lastOnlineATC uint16, lowerLimit, upperLimit uint8) (lowerExceeded, upperExceeded bool) {
	var consecutive uint16
	if atc >= lastOnlineATC {
		consecutive = atc - lastOnlineATC
	}
	lowerExceeded = lowerLimit > 0 && consecutive > uint16(lowerLimit)
	upperExceeded = upperLimit > 0 && consecutive > uint16(upperLimit)
	return lowerExceeded, upperExceeded
}

// ActionCodes is one set of action codes read from terminal configuration
// (TAC) or the card (IAC): denial, online-request, and default bitmaps,
// each the same 5-byte width as TVR (EMV Book 3 §10.7).
type ActionCodes struct {
	Denial  field.TVR
	Online  field.TVR
	Default field.TVR
}

// Decision is the outcome of Terminal Action Analysis.
type Decision int

const (
	DecisionApproveOffline Decision = iota
	DecisionGoOnline
	DecisionDeclineOffline
)

func (d Decision) String() string {
	switch d {
	case DecisionApproveOffline:
		return "approve_offline"
	case DecisionGoOnline:
		return "go_online"
	case DecisionDeclineOffline:
		return "decline_offline"
	default:
		return "unknown"
	}
}

// TerminalActionAnalysis implements EMV Book 3 §10.7: a terminal declines
// offline if any TVR bit set also appears in either the issuer's or the
// terminal's denial codes; it requests online if any TVR bit set appears
// in either's online-request codes; otherwise it falls back to the
// default codes with the same logic, approving offline only if nothing
// matches at all.
func TerminalActionAnalysis(tvr field.TVR, terminal, issuer ActionCodes) Decision {
	if tvrIntersects(tvr, terminal.Denial) || tvrIntersects(tvr, issuer.Denial) {
		return DecisionDeclineOffline
	}
	if tvrIntersects(tvr, terminal.Online) || tvrIntersects(tvr, issuer.Online) {
		return DecisionGoOnline
	}
	if tvrIntersects(tvr, terminal.Default) || tvrIntersects(tvr, issuer.Default) {
		return DecisionGoOnline
	}
	return DecisionApproveOffline
}

func tvrIntersects(tvr, mask field.TVR) bool {
	for i := range tvr {
		if tvr[i]&mask[i] != 0 {
			return true
		}
	}
	return false
}

// ParseActionCode validates a 5-byte IAC/TAC buffer and copies it into a
// TVR-shaped mask.
func ParseActionCode(buf []byte) (field.TVR, error) {
	var t field.TVR
	if len(buf) != 5 {
		return t, fmt.Errorf("risk: action code length %d, want 5", len(buf))
	}
	copy(t[:], buf)
	return t, nil
}
