// Package config loads terminal-side EMV configuration: supported AIDs,
// static terminal TLV fields, CAPK store manifest, and TAC table, mirroring
// the YAML loading conventions used elsewhere in this codebase.
package config

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/barnettlynn/emvkernel/emv"
)

type ValidationMode int

const (
	ValidationFull ValidationMode = iota
	ValidationMinimal
)

// Config is the root terminal configuration document.
type Config struct {
	Terminal      TerminalConfig       `yaml:"terminal"`
	SupportedAIDs []SupportedAIDConfig `yaml:"supported_aids"`
	CAPKManifest  string               `yaml:"capk_manifest"`
	TAC           TACConfig            `yaml:"terminal_action_codes"`
}

// TerminalConfig carries the static terminal-side EMV fields published
// into the TLV store before GET PROCESSING OPTIONS (spec.md 6.4).
type TerminalConfig struct {
	CountryCodeHex  string  `yaml:"country_code_hex"`  // tag 9F1A, 2 bytes BCD
	CurrencyCodeHex string  `yaml:"currency_code_hex"` // tag 5F2A, 2 bytes BCD
	FloorLimit      *uint64 `yaml:"floor_limit"`
	TerminalTypeHex string  `yaml:"terminal_type_hex"`      // tag 9F35, 1 byte
	CapabilitiesHex string  `yaml:"capabilities_hex"`       // tag 9F33, 3 bytes
	AddCapsHex      string  `yaml:"additional_caps_hex"`    // tag 9F40, 5 bytes
	RandomTarget    *int    `yaml:"random_selection_target_percent"`
	RandomLower     *uint64 `yaml:"random_selection_lower_limit"`
	RandomUpper     *uint64 `yaml:"random_selection_upper_limit"`
}

// SupportedAIDConfig is one terminal-supported AID entry (spec.md 6.4).
type SupportedAIDConfig struct {
	AIDHex       string `yaml:"aid_hex"`
	PartialMatch bool   `yaml:"partial_match"`
}

// TACConfig holds the terminal-side action codes (IAC is read from the
// card itself and isn't terminal configuration; spec.md 4.F).
type TACConfig struct {
	DenialHex  string `yaml:"denial_hex"`
	OnlineHex  string `yaml:"online_hex"`
	DefaultHex string `yaml:"default_hex"`
}

func Load(path string) (*Config, error) {
	return LoadWithMode(path, ValidationFull)
}

func LoadWithMode(path string, mode ValidationMode) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.resolvePaths(path)
	if err := cfg.ValidateWithMode(mode); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	return c.ValidateWithMode(ValidationFull)
}

func (c *Config) ValidateWithMode(mode ValidationMode) error {
	if len(c.SupportedAIDs) == 0 {
		return fmt.Errorf("config.supported_aids must contain at least one entry")
	}
	for i, a := range c.SupportedAIDs {
		b, err := hex.DecodeString(strings.TrimSpace(a.AIDHex))
		if err != nil {
			return fmt.Errorf("config.supported_aids[%d].aid_hex: %w", i, err)
		}
		if len(b) < 5 || len(b) > 16 {
			return fmt.Errorf("config.supported_aids[%d].aid_hex must decode to 5..16 bytes", i)
		}
	}

	if c.Terminal.FloorLimit == nil {
		return fmt.Errorf("config.terminal.floor_limit is required")
	}
	if err := validateHexLen(c.Terminal.CountryCodeHex, 2, "config.terminal.country_code_hex"); err != nil {
		return err
	}
	if err := validateHexLen(c.Terminal.CurrencyCodeHex, 2, "config.terminal.currency_code_hex"); err != nil {
		return err
	}
	if err := validateHexLen(c.Terminal.TerminalTypeHex, 1, "config.terminal.terminal_type_hex"); err != nil {
		return err
	}
	if err := validateHexLen(c.Terminal.CapabilitiesHex, 3, "config.terminal.capabilities_hex"); err != nil {
		return err
	}
	if err := validateHexLen(c.Terminal.AddCapsHex, 5, "config.terminal.additional_caps_hex"); err != nil {
		return err
	}

	if mode == ValidationMinimal {
		return nil
	}

	if c.Terminal.RandomTarget == nil {
		return fmt.Errorf("config.terminal.random_selection_target_percent is required")
	}
	if *c.Terminal.RandomTarget < 0 || *c.Terminal.RandomTarget > 99 {
		return fmt.Errorf("config.terminal.random_selection_target_percent must be 0..99")
	}
	if c.Terminal.RandomLower == nil || c.Terminal.RandomUpper == nil {
		return fmt.Errorf("config.terminal.random_selection_lower_limit and _upper_limit are required")
	}
	if *c.Terminal.RandomLower > *c.Terminal.RandomUpper {
		return fmt.Errorf("config.terminal.random_selection_lower_limit must be <= upper_limit")
	}

	if err := validateHexLen(c.TAC.DenialHex, 5, "config.terminal_action_codes.denial_hex"); err != nil {
		return err
	}
	if err := validateHexLen(c.TAC.OnlineHex, 5, "config.terminal_action_codes.online_hex"); err != nil {
		return err
	}
	if err := validateHexLen(c.TAC.DefaultHex, 5, "config.terminal_action_codes.default_hex"); err != nil {
		return err
	}

	if strings.TrimSpace(c.CAPKManifest) == "" {
		return fmt.Errorf("config.capk_manifest is required")
	}
	if err := validateReadableFile(c.CAPKManifest, "config.capk_manifest"); err != nil {
		return err
	}

	return nil
}

// SupportedAIDList decodes the configured AID list into kernel-ready entries.
func (c *Config) SupportedAIDList() ([]emv.SupportedAID, error) {
	out := make([]emv.SupportedAID, 0, len(c.SupportedAIDs))
	for i, a := range c.SupportedAIDs {
		b, err := hex.DecodeString(strings.TrimSpace(a.AIDHex))
		if err != nil {
			return nil, fmt.Errorf("config.supported_aids[%d].aid_hex: %w", i, err)
		}
		out = append(out, emv.SupportedAID{AID: b, PartialMatch: a.PartialMatch})
	}
	return out, nil
}

func validateHexLen(s string, n int, field string) error {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if len(b) != n {
		return fmt.Errorf("%s must decode to %d bytes, got %d", field, n, len(b))
	}
	return nil
}

func (c *Config) resolvePaths(configPath string) {
	configDir := filepath.Dir(configPath)
	c.CAPKManifest = resolvePath(configDir, c.CAPKManifest)
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}

func validateReadableFile(path string, field string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s must point to a file, got directory", field)
	}
	return nil
}
