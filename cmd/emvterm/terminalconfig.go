package main

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"

	"github.com/barnettlynn/emvkernel/emv"
	"github.com/barnettlynn/emvkernel/emv/field"
	"github.com/barnettlynn/emvkernel/emv/oda"
	"github.com/barnettlynn/emvkernel/emv/risk"
	"github.com/barnettlynn/emvkernel/internal/capk"
	"github.com/barnettlynn/emvkernel/internal/config"
	"github.com/barnettlynn/emvkernel/tlv"
)

// buildTerminalConfig translates a loaded config.Config into the kernel's
// TerminalConfig, publishing the static terminal TLV fields the session
// needs before GET PROCESSING OPTIONS.
func buildTerminalConfig(cfg *config.Config) (*emv.TerminalConfig, error) {
	supported, err := cfg.SupportedAIDList()
	if err != nil {
		return nil, err
	}

	var tags tlv.List
	if err := setHexField(&tags, emv.TagTerminalCountryCode, cfg.Terminal.CountryCodeHex); err != nil {
		return nil, err
	}
	if err := setHexField(&tags, emv.TagTransactionCurrency, cfg.Terminal.CurrencyCodeHex); err != nil {
		return nil, err
	}
	if err := setHexField(&tags, emv.TagTerminalType, cfg.Terminal.TerminalTypeHex); err != nil {
		return nil, err
	}
	if err := setHexField(&tags, emv.TagTerminalCapabilities, cfg.Terminal.CapabilitiesHex); err != nil {
		return nil, err
	}
	if err := setHexField(&tags, emv.TagAdditionalTermCaps, cfg.Terminal.AddCapsHex); err != nil {
		return nil, err
	}
	if cfg.Terminal.FloorLimit != nil {
		tags.Set(emv.TagTerminalFloorLimit, field.PutAmountBinary(uint32(*cfg.Terminal.FloorLimit)))
	}

	return &emv.TerminalConfig{
		SupportedAIDs: supported,
		TerminalTags:  tags,
	}, nil
}

func setHexField(tags *tlv.List, tag uint32, hexStr string) error {
	hexStr = strings.TrimSpace(hexStr)
	if hexStr == "" {
		return nil
	}
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return fmt.Errorf("tag %04X: %w", tag, err)
	}
	tags.Set(tag, b)
	return nil
}

// mathRandSource adapts math/rand to risk.RandSource for terminal random
// transaction selection.
type mathRandSource struct{ r *rand.Rand }

func (c mathRandSource) Intn(max int) int { return c.r.Intn(max) }

func buildRiskConfig(cfg *config.Config, seed int64) (emv.RiskConfig, error) {
	rc := emv.RiskConfig{}
	if cfg.Terminal.FloorLimit != nil {
		rc.FloorLimit = *cfg.Terminal.FloorLimit
	}
	if cfg.Terminal.RandomTarget != nil && cfg.Terminal.RandomLower != nil && cfg.Terminal.RandomUpper != nil {
		rc.Random = risk.RandomSelectionParams{
			TargetPercentage: *cfg.Terminal.RandomTarget,
			LowerLimit:       *cfg.Terminal.RandomLower,
			UpperLimit:       *cfg.Terminal.RandomUpper,
		}
		rc.Rand = mathRandSource{r: rand.New(rand.NewSource(seed))}
	}

	denial, err := decodeTVR(cfg.TAC.DenialHex)
	if err != nil {
		return rc, err
	}
	online, err := decodeTVR(cfg.TAC.OnlineHex)
	if err != nil {
		return rc, err
	}
	def, err := decodeTVR(cfg.TAC.DefaultHex)
	if err != nil {
		return rc, err
	}
	rc.TerminalActionCodes = risk.ActionCodes{Denial: denial, Online: online, Default: def}

	if strings.TrimSpace(cfg.CAPKManifest) != "" {
		keys, err := capk.Load(cfg.CAPKManifest)
		if err != nil {
			return rc, err
		}
		rc.ODA = &oda.Engine{Keys: keys, RSA: modexpRSA{}, Hash: sha1Hash{}}
	}
	return rc, nil
}

func decodeTVR(hexStr string) (field.TVR, error) {
	var tvr field.TVR
	hexStr = strings.TrimSpace(hexStr)
	if hexStr == "" {
		return tvr, nil
	}
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return tvr, err
	}
	if len(b) != len(tvr) {
		return tvr, fmt.Errorf("TAC value must be %d bytes, got %d", len(tvr), len(b))
	}
	copy(tvr[:], b)
	return tvr, nil
}
