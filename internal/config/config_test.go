package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
terminal:
  country_code_hex: "0840"
  currency_code_hex: "0840"
  floor_limit: 5000
  terminal_type_hex: "22"
  capabilities_hex: "E0F8C8"
  additional_caps_hex: "6000F0A001"
  random_selection_target_percent: 20
  random_selection_lower_limit: 1000
  random_selection_upper_limit: 10000
supported_aids:
  - aid_hex: "A0000000031010"
    partial_match: false
  - aid_hex: "A000000003"
    partial_match: true
capk_manifest: "capk.yaml"
terminal_action_codes:
  denial_hex: "0000000000"
  online_hex: "0000000000"
  default_hex: "0000000000"
`

func writeCAPKManifest(t *testing.T, dir string) string {
	t.Helper()
	p := filepath.Join(dir, "capk.yaml")
	if err := os.WriteFile(p, []byte("keys: []\n"), 0o644); err != nil {
		t.Fatalf("write capk manifest: %v", err)
	}
	return p
}

func TestLoadValidFullConfigAndResolveCAPKPath(t *testing.T) {
	tmp := t.TempDir()
	writeCAPKManifest(t, tmp)

	cfgPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(validYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	want := filepath.Join(tmp, "capk.yaml")
	if cfg.CAPKManifest != want {
		t.Fatalf("expected resolved capk manifest %q, got %q", want, cfg.CAPKManifest)
	}
	if len(cfg.SupportedAIDs) != 2 {
		t.Fatalf("expected 2 supported AIDs, got %d", len(cfg.SupportedAIDs))
	}

	list, err := cfg.SupportedAIDList()
	if err != nil {
		t.Fatalf("SupportedAIDList: %v", err)
	}
	if len(list) != 2 || list[1].PartialMatch != true {
		t.Fatalf("unexpected decoded supported AID list: %+v", list)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	tmp := t.TempDir()
	writeCAPKManifest(t, tmp)
	cfgPath := filepath.Join(tmp, "config.yaml")
	bad := validYAML + "\nbogus_field: true\n"
	if err := os.WriteFile(cfgPath, []byte(bad), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadRejectsMissingFloorLimit(t *testing.T) {
	tmp := t.TempDir()
	writeCAPKManifest(t, tmp)
	cfgPath := filepath.Join(tmp, "config.yaml")
	bad := strings.Replace(validYAML, "floor_limit: 5000\n", "", 1)
	if err := os.WriteFile(cfgPath, []byte(bad), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("expected error for missing floor_limit")
	}
}

func TestLoadWithModeMinimalSkipsTACAndCAPK(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	minimal := `
terminal:
  country_code_hex: "0840"
  currency_code_hex: "0840"
  floor_limit: 5000
  terminal_type_hex: "22"
  capabilities_hex: "E0F8C8"
  additional_caps_hex: "6000F0A001"
supported_aids:
  - aid_hex: "A0000000031010"
    partial_match: false
`
	if err := os.WriteFile(cfgPath, []byte(minimal), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadWithMode(cfgPath, ValidationMinimal); err != nil {
		t.Fatalf("LoadWithMode(ValidationMinimal) returned error: %v", err)
	}
	if _, err := LoadWithMode(cfgPath, ValidationFull); err == nil {
		t.Fatalf("expected ValidationFull to require TAC/CAPK fields")
	}
}
