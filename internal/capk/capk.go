// Package capk loads the Certification Authority public key manifest
// emv/oda needs for issuer and ICC certificate recovery, using the same
// YAML conventions as internal/config.
package capk

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one CA public key in the manifest.
type Entry struct {
	RIDHex      string `yaml:"rid_hex"`
	Index       uint8  `yaml:"index"`
	ModulusHex  string `yaml:"modulus_hex"`
	ExponentHex string `yaml:"exponent_hex"`
}

// Manifest is the on-disk document format: a flat list of CA keys.
type Manifest struct {
	Keys []Entry `yaml:"keys"`
}

type key struct {
	modulus, exponent []byte
}

// Store is an in-memory CAKeyStore (emv/oda.CAKeyStore) loaded from a
// manifest file.
type Store struct {
	keys map[[6]byte]key // [5]byte RID + index, flattened for map-ability
}

// Load reads and decodes a CA public key manifest.
func Load(path string) (*Store, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capk manifest: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse capk manifest yaml: %w", err)
	}

	s := &Store{keys: make(map[[6]byte]key, len(m.Keys))}
	for i, e := range m.Keys {
		rid, err := hex.DecodeString(strings.TrimSpace(e.RIDHex))
		if err != nil || len(rid) != 5 {
			return nil, fmt.Errorf("capk manifest entry %d: rid_hex must decode to 5 bytes", i)
		}
		modulus, err := hex.DecodeString(strings.TrimSpace(e.ModulusHex))
		if err != nil {
			return nil, fmt.Errorf("capk manifest entry %d: modulus_hex: %w", i, err)
		}
		exponent, err := hex.DecodeString(strings.TrimSpace(e.ExponentHex))
		if err != nil {
			return nil, fmt.Errorf("capk manifest entry %d: exponent_hex: %w", i, err)
		}
		var k [6]byte
		copy(k[:5], rid)
		k[5] = e.Index
		s.keys[k] = key{modulus: modulus, exponent: exponent}
	}
	return s, nil
}

// Lookup implements emv/oda.CAKeyStore.
func (s *Store) Lookup(rid [5]byte, index byte) (modulus, exponent []byte, ok bool) {
	var k [6]byte
	copy(k[:5], rid[:])
	k[5] = index
	v, ok := s.keys[k]
	if !ok {
		return nil, nil, false
	}
	return v.modulus, v.exponent, true
}
