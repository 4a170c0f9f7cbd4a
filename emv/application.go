package emv

import (
	"encoding/hex"
	"strings"

	"github.com/barnettlynn/emvkernel/tlv"
)

// CodeTableSet converts an ISO 8859 code-table-indexed string to UTF-8. It
// is the external collaborator spec.md 1 reserves for "ISO 8859 -> UTF-8
// conversion"; the kernel only validates the table index is supported and
// delegates the conversion itself.
type CodeTableSet interface {
	// Supported reports whether codeTableIndex (the value of tag 9F11) is
	// one this terminal can render.
	Supported(codeTableIndex byte) bool
	// ToUTF8 converts raw using the code table identified by
	// codeTableIndex.
	ToUTF8(codeTableIndex byte, raw []byte) (string, error)
}

// Application is a candidate or selected EMV application (spec.md 3).
type Application struct {
	AID                  []byte
	DisplayName          string
	Priority             uint8
	ConfirmationRequired bool
	TlvList              tlv.List
}

// NewApplicationFromPSE builds an Application from a PSE Application
// Template (tag 61) body, i.e. the children already flattened by
// tlv.ParseAll.
func NewApplicationFromPSE(fields tlv.List, codeTables CodeTableSet) (*Application, error) {
	return newApplication(fields, codeTables)
}

// NewApplicationFromFCI builds an Application from a SELECT FCI (tag 6F)
// body, i.e. the children already flattened by tlv.ParseAll.
func NewApplicationFromFCI(fields tlv.List, codeTables CodeTableSet) (*Application, error) {
	return newApplication(fields, codeTables)
}

func newApplication(fields tlv.List, codeTables CodeTableSet) (*Application, error) {
	aidField, ok := fields.Find(TagAID)
	if !ok {
		aidField, ok = fields.Find(TagAIDAlt)
	}
	if !ok {
		return nil, errInvalidParameter("emv.NewApplication", errMissingAID)
	}
	if len(aidField.Value) < 5 || len(aidField.Value) > 16 {
		return nil, errInvalidParameter("emv.NewApplication", errAIDLength)
	}

	app := &Application{
		AID:     append([]byte(nil), aidField.Value...),
		TlvList: fields,
	}

	if pr, ok := fields.Find(TagPriorityIndicator); ok && len(pr.Value) == 1 {
		app.Priority = pr.Value[0] & 0x0F
		app.ConfirmationRequired = pr.Value[0]&0x80 != 0
	}

	app.DisplayName = resolveDisplayName(fields, codeTables, app.AID)
	return app, nil
}

func resolveDisplayName(fields tlv.List, codeTables CodeTableSet, aid []byte) string {
	if pref, ok := fields.Find(TagApplicationPreferred); ok && codeTables != nil {
		idx := byte(0) // default code table (ISO 8859-1)
		if ci, ok := fields.Find(TagIssuerCodeTableIndex); ok && len(ci.Value) == 1 {
			idx = ci.Value[0]
		}
		if codeTables.Supported(idx) {
			if s, err := codeTables.ToUTF8(idx, pref.Value); err == nil && s != "" {
				return s
			}
		}
	}
	if label, ok := fields.Find(TagApplicationLabel); ok {
		if s, ok := sanitizeLabel(label.Value); ok {
			return s
		}
	}
	return strings.ToUpper(hex.EncodeToString(aid))
}

// sanitizeLabel accepts only a-zA-Z0-9 and space, per spec.md 4.C.
func sanitizeLabel(raw []byte) (string, bool) {
	for _, b := range raw {
		if !(b == ' ' || (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')) {
			return "", false
		}
	}
	return string(raw), len(raw) > 0
}

type applicationError string

func (e applicationError) Error() string { return string(e) }

const (
	errMissingAID applicationError = "no AID (tag 4F or 84) present"
	errAIDLength  applicationError = "AID length outside 5..=16"
)
