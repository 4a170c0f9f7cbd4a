// Package oda implements offline data authentication: method selection
// (SDA/DDA/CDA, spec.md 4.E), CA/issuer/ICC public key recovery, and
// signature verification. RSA modular exponentiation and SHA-1 hashing are
// external collaborators (spec.md 6.2); this package only encodes the EMV
// Book 2 byte layouts and comparison rules around them.
package oda

import (
	"bytes"
	"fmt"

	"github.com/barnettlynn/emvkernel/tlv"
)

// AIP bit positions, byte 1 (spec.md 4.E; EMV Book 3 Annex C5).
const (
	aipSDA = 1 << 6
	aipDDA = 1 << 5
	aipCDA = 1 << 0
)

// Method selects which offline data authentication scheme runs, in EMV's
// mandated priority order: CDA, then DDA, then SDA (spec.md 4.E). XDA is
// not implemented; if the AIP claims only XDA support, SelectMethod
// reports None and the caller sets TVR.XDAFailed.
type Method int

const (
	None Method = iota
	SDA
	DDA
	CDA
)

// SelectMethod inspects the Application Interchange Profile (the 2-byte
// tag-82 value) and the fields available on the card to choose a method.
// SDA additionally requires the Signed Static Application Data tag be
// present; DDA and CDA require the ICC Public Key Certificate.
func SelectMethod(aip []byte, icc tlv.List) Method {
	if len(aip) < 1 {
		return None
	}
	b1 := aip[0]
	_, hasSSAD := icc.Find(0x93)
	_, hasICCCert := icc.Find(0x9F46)
	switch {
	case b1&aipCDA != 0 && hasICCCert:
		return CDA
	case b1&aipDDA != 0 && hasICCCert:
		return DDA
	case b1&aipSDA != 0 && hasSSAD:
		return SDA
	default:
		return None
	}
}

// CAKeyStore looks up a Certification Authority public key by RID and
// index (tag 8F), the terminal-side key database spec.md 4.E defers to an
// external collaborator (spec.md 6.2).
type CAKeyStore interface {
	Lookup(rid [5]byte, index byte) (modulus, exponent []byte, ok bool)
}

// RSA performs the modular exponentiation recovery step (cert^exponent mod
// modulus), returning a buffer the same length as modulus (spec.md 6.2).
type RSA interface {
	Recover(modulus, exponent, cert []byte) ([]byte, error)
}

// Hash computes SHA-1, the only hash algorithm EMV static/dynamic data
// authentication currently names (spec.md 6.2).
type Hash interface {
	Sum(data ...[]byte) [20]byte
}

// Engine bundles the external collaborators ODA needs.
type Engine struct {
	Keys CAKeyStore
	RSA  RSA
	Hash Hash
}

// recoveredCert is the decoded, hash-verified body of an issuer or ICC
// public key certificate (EMV Book 2 §5-6).
type recoveredCert struct {
	modulus  []byte
	exponent []byte
	panLike  []byte // issuer identifier (issuer cert) or PAN (ICC cert), BCD
}

const (
	certHeader  = 0x6A
	certTrailer = 0xBC
	certFormat  = 0x02
)

// recoverIssuerKey implements EMV Book 2 §5, issuer public key recovery.
func (e *Engine) recoverIssuerKey(capkMod, capkExp []byte, cert, remainder, exponent []byte) (recoveredCert, error) {
	rec, err := e.RSA.Recover(capkMod, capkExp, cert)
	if err != nil {
		return recoveredCert{}, fmt.Errorf("oda: issuer cert recovery: %w", err)
	}
	if len(rec) < 1+1+1+2+20+1+1 || rec[0] != certHeader || rec[len(rec)-1] != certTrailer {
		return recoveredCert{}, fmt.Errorf("oda: issuer cert header/trailer mismatch")
	}
	if rec[1] != certFormat {
		return recoveredCert{}, fmt.Errorf("oda: issuer cert format byte %02X unsupported", rec[1])
	}
	// Layout: header(1) format(1) issuerID(4) expDate(2) serial(3)
	// hashAlgo(1) pubKeyAlgo(1) pubKeyLen(1) pubKeyExpLen(1)
	// pubKey||padding(N) hash(20) trailer(1).
	if len(rec) < 1+1+4+2+3+1+1+1+1+20+1 {
		return recoveredCert{}, fmt.Errorf("oda: issuer cert too short")
	}
	issuerID := rec[2:6]
	pubKeyLen := int(rec[13])
	hash := rec[len(rec)-21 : len(rec)-1]
	keyAndPad := rec[15 : len(rec)-21]

	digest := e.Hash.Sum(rec[1:len(rec)-21], exponent)
	if !bytes.Equal(digest[:], hash) {
		return recoveredCert{}, fmt.Errorf("oda: issuer cert hash mismatch")
	}

	modulus := make([]byte, pubKeyLen)
	if pubKeyLen <= len(keyAndPad) {
		copy(modulus, keyAndPad[:pubKeyLen])
	} else {
		copy(modulus, keyAndPad)
		copy(modulus[len(keyAndPad):], remainder)
	}
	return recoveredCert{modulus: modulus, exponent: exponent, panLike: issuerID}, nil
}

// recoverICCKey implements EMV Book 2 §6.3, ICC public key recovery.
func (e *Engine) recoverICCKey(issuerMod, issuerExp []byte, cert, remainder, exponent, pan []byte) (recoveredCert, error) {
	rec, err := e.RSA.Recover(issuerMod, issuerExp, cert)
	if err != nil {
		return recoveredCert{}, fmt.Errorf("oda: ICC cert recovery: %w", err)
	}
	if len(rec) < 1+1+10+2+3+1+1+1+1+20+1 || rec[0] != certHeader || rec[len(rec)-1] != certTrailer {
		return recoveredCert{}, fmt.Errorf("oda: ICC cert header/trailer mismatch")
	}
	if rec[1] != certFormat {
		return recoveredCert{}, fmt.Errorf("oda: ICC cert format byte %02X unsupported", rec[1])
	}
	panField := rec[2:12]
	if !panMatches(panField, pan) {
		return recoveredCert{}, fmt.Errorf("oda: ICC cert PAN mismatch")
	}
	pubKeyLen := int(rec[19])
	hash := rec[len(rec)-21 : len(rec)-1]
	keyAndPad := rec[21 : len(rec)-21]

	digest := e.Hash.Sum(rec[1:len(rec)-21], exponent)
	if !bytes.Equal(digest[:], hash) {
		return recoveredCert{}, fmt.Errorf("oda: ICC cert hash mismatch")
	}

	modulus := make([]byte, pubKeyLen)
	if pubKeyLen <= len(keyAndPad) {
		copy(modulus, keyAndPad[:pubKeyLen])
	} else {
		copy(modulus, keyAndPad)
		copy(modulus[len(keyAndPad):], remainder)
	}
	return recoveredCert{modulus: modulus, exponent: exponent, panLike: panField}, nil
}

// panMatches compares a BCD-packed field against pan, honoring the 0xFF
// skip-byte and nibble-0xF end-of-value filler rules (spec.md 4.E).
func panMatches(field1, pan []byte) bool {
	wantNibbles := toNibbles(pan)
	gotNibbles := toNibbles(field1)
	wi, gidx := 0, 0
	for gidx < len(gotNibbles) {
		if field1[gidx/2] == 0xFF {
			gidx += 2
			continue
		}
		n := gotNibbles[gidx]
		if n == 0xF {
			break
		}
		if wi >= len(wantNibbles) || wantNibbles[wi] != n {
			return false
		}
		wi++
		gidx++
	}
	return wi == len(wantNibbles)
}

func toNibbles(b []byte) []byte {
	n := make([]byte, len(b)*2)
	for i, v := range b {
		n[2*i] = v >> 4
		n[2*i+1] = v & 0x0F
	}
	return n
}

// RunSDA implements Static Data Authentication (EMV Book 2 §5, spec.md
// 4.E): recover the issuer key, then verify the Signed Static Application
// Data over the Static Data Authentication Tag List's named fields plus
// the recovered hash-input block.
func (e *Engine) RunSDA(rid [5]byte, capkIndex byte, icc tlv.List, sdaTagList []byte) (bool, error) {
	capkMod, capkExp, ok := e.Keys.Lookup(rid, capkIndex)
	if !ok {
		return false, fmt.Errorf("oda: no CA key for RID=%x index=%02X", rid, capkIndex)
	}
	certField, ok := icc.Find(0x90)
	if !ok {
		return false, fmt.Errorf("oda: missing issuer public key certificate")
	}
	remField, _ := icc.Find(0x92)
	expField, ok := icc.Find(0x9F32)
	if !ok {
		return false, fmt.Errorf("oda: missing issuer public key exponent")
	}
	ssad, ok := icc.Find(0x93)
	if !ok {
		return false, fmt.Errorf("oda: missing signed static application data")
	}

	issuer, err := e.recoverIssuerKey(capkMod, capkExp, certField.Value, remField.Value, expField.Value)
	if err != nil {
		return false, err
	}

	rec, err := e.RSA.Recover(issuer.modulus, issuer.exponent, ssad.Value)
	if err != nil {
		return false, fmt.Errorf("oda: SSAD recovery: %w", err)
	}
	if len(rec) < 1+1+1+20+1 || rec[0] != certHeader || rec[len(rec)-1] != certTrailer {
		return false, fmt.Errorf("oda: SSAD header/trailer mismatch")
	}
	dataAuthCode := rec[2:4]
	hash := rec[len(rec)-21 : len(rec)-1]

	var extra []byte
	for _, tag := range sdaDataTagList(sdaTagList) {
		if f, ok := icc.Find(tag); ok {
			extra = append(extra, f.Value...)
		}
	}
	digest := e.Hash.Sum(rec[1:len(rec)-21], extra)
	if !bytes.Equal(digest[:], hash) {
		return false, fmt.Errorf("oda: SSAD hash mismatch")
	}
	_ = dataAuthCode
	return true, nil
}

// sdaDataTagList decodes the Static Data Authentication Tag List (tag
// 9F4A), which per Book 2 names exactly the AIP tag (0x82) in every
// deployed profile. The list is decoded as a DOL after appending one zero
// length byte, so a one-tag list yields that tag; a list naming more than
// one tag does not decode and yields no tags.
func sdaDataTagList(buf []byte) []uint32 {
	entries, err := tlv.ParseDOL(append(append([]byte(nil), buf...), 0x00))
	if err != nil {
		return nil
	}
	tags := make([]uint32, 0, len(entries))
	for _, e := range entries {
		tags = append(tags, e.Tag)
	}
	return tags
}

// RunDDA implements Dynamic Data Authentication (EMV Book 2 §6, spec.md
// 4.E): recover the issuer then ICC public keys, then verify the signed
// response of INTERNAL AUTHENTICATE against the unpredictable number the
// terminal sent in DDOL.
func (e *Engine) RunDDA(rid [5]byte, capkIndex byte, icc tlv.List, pan []byte, ddolData, internalAuthResp []byte) (bool, error) {
	issuer, err := e.recoverIssuerForICC(rid, capkIndex, icc)
	if err != nil {
		return false, err
	}
	iccCert, _ := icc.Find(0x9F46)
	iccRem, _ := icc.Find(0x9F48)
	iccExp, ok := icc.Find(0x9F47)
	if !ok {
		return false, fmt.Errorf("oda: missing ICC public key exponent")
	}
	iccKey, err := e.recoverICCKey(issuer.modulus, issuer.exponent, iccCert.Value, iccRem.Value, iccExp.Value, pan)
	if err != nil {
		return false, err
	}

	dec, err := tlv.DecodeOne(internalAuthResp)
	if err != nil {
		return false, fmt.Errorf("oda: INTERNAL AUTHENTICATE response: %w", err)
	}
	var sdad []byte
	switch dec.Tag {
	case 0x80:
		sdad = dec.Value
	case 0x9F4B:
		sdad = dec.Value
	default:
		sdad = internalAuthResp
	}

	rec, err := e.RSA.Recover(iccKey.modulus, iccKey.exponent, sdad)
	if err != nil {
		return false, fmt.Errorf("oda: signed dynamic data recovery: %w", err)
	}
	if len(rec) < 1+1+1+1+4+20+1 || rec[0] != certHeader || rec[len(rec)-1] != certTrailer {
		return false, fmt.Errorf("oda: signed dynamic data header/trailer mismatch")
	}
	if rec[1] != 0x05 {
		return false, fmt.Errorf("oda: signed dynamic data format byte %02X unsupported", rec[1])
	}
	dynLen := int(rec[2])
	if 3+dynLen > len(rec)-21 {
		return false, fmt.Errorf("oda: signed dynamic data length overruns")
	}
	iccDynamicData := rec[3 : 3+dynLen]
	hash := rec[len(rec)-21 : len(rec)-1]

	digest := e.Hash.Sum(rec[1:len(rec)-21], ddolData)
	if !bytes.Equal(digest[:], hash) {
		return false, fmt.Errorf("oda: signed dynamic data hash mismatch")
	}
	_ = iccDynamicData
	return true, nil
}

// RunCDA verifies the Combined DDA/AC Generation signature carried in the
// first GENERATE AC response as tag 9F4B (EMV Book 2 §6.6, spec.md 4.E).
// genAcFields is the flattened format-2 GENERATE AC response and cdol1Data
// is the exact CDOL1-built command data sent.
func (e *Engine) RunCDA(rid [5]byte, capkIndex byte, icc tlv.List, pan []byte, genAcFields tlv.List, cdol1Data []byte) (bool, error) {
	issuer, err := e.recoverIssuerForICC(rid, capkIndex, icc)
	if err != nil {
		return false, err
	}
	iccCert, _ := icc.Find(0x9F46)
	iccRem, _ := icc.Find(0x9F48)
	iccExp, ok := icc.Find(0x9F47)
	if !ok {
		return false, fmt.Errorf("oda: missing ICC public key exponent")
	}
	iccKey, err := e.recoverICCKey(issuer.modulus, issuer.exponent, iccCert.Value, iccRem.Value, iccExp.Value, pan)
	if err != nil {
		return false, err
	}

	sig, ok := genAcFields.Find(0x9F4B)
	if !ok {
		return false, fmt.Errorf("oda: GENERATE AC response carries no signed dynamic application data")
	}
	rec, err := e.RSA.Recover(iccKey.modulus, iccKey.exponent, sig.Value)
	if err != nil {
		return false, fmt.Errorf("oda: CDA signature recovery: %w", err)
	}
	if len(rec) < 1+1+1+1+20+1 || rec[0] != certHeader || rec[len(rec)-1] != certTrailer {
		return false, fmt.Errorf("oda: CDA signature header/trailer mismatch")
	}
	if rec[1] != 0x05 {
		return false, fmt.Errorf("oda: CDA signature format byte %02X unsupported", rec[1])
	}
	hash := rec[len(rec)-21 : len(rec)-1]

	var bound []byte
	bound = append(bound, cdol1Data...)
	for _, tag := range []uint32{0x9F27, 0x9F26, 0x9F36, 0x9F10} {
		if f, ok := genAcFields.Find(tag); ok {
			bound = append(bound, f.Value...)
		}
	}
	digest := e.Hash.Sum(rec[1:len(rec)-21], bound)
	if !bytes.Equal(digest[:], hash) {
		return false, fmt.Errorf("oda: CDA hash mismatch")
	}
	return true, nil
}

func (e *Engine) recoverIssuerForICC(rid [5]byte, capkIndex byte, icc tlv.List) (recoveredCert, error) {
	capkMod, capkExp, ok := e.Keys.Lookup(rid, capkIndex)
	if !ok {
		return recoveredCert{}, fmt.Errorf("oda: no CA key for RID=%x index=%02X", rid, capkIndex)
	}
	certField, ok := icc.Find(0x90)
	if !ok {
		return recoveredCert{}, fmt.Errorf("oda: missing issuer public key certificate")
	}
	remField, _ := icc.Find(0x92)
	expField, ok := icc.Find(0x9F32)
	if !ok {
		return recoveredCert{}, fmt.Errorf("oda: missing issuer public key exponent")
	}
	return e.recoverIssuerKey(capkMod, capkExp, certField.Value, remField.Value, expField.Value)
}
