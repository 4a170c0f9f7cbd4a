package main

import (
	"crypto/sha1"
	"fmt"
	"math/big"
)

// modexpRSA implements emv/oda.RSA via raw modular exponentiation. EMV
// certificate recovery operates on unpadded, format-specific byte layouts
// rather than PKCS#1 envelopes, so crypto/rsa's higher-level verify
// functions don't apply; the exponentiation uses math/big directly.
type modexpRSA struct{}

func (modexpRSA) Recover(modulus, exponent, cert []byte) ([]byte, error) {
	if len(cert) != len(modulus) {
		return nil, fmt.Errorf("odacrypto: certificate length %d does not match modulus length %d", len(cert), len(modulus))
	}
	n := new(big.Int).SetBytes(modulus)
	e := new(big.Int).SetBytes(exponent)
	c := new(big.Int).SetBytes(cert)
	if c.Cmp(n) >= 0 {
		return nil, fmt.Errorf("odacrypto: certificate value exceeds modulus")
	}
	rec := new(big.Int).Exp(c, e, n)
	out := make([]byte, len(modulus))
	rec.FillBytes(out)
	return out, nil
}

// sha1Hash implements emv/oda.Hash.
type sha1Hash struct{}

func (sha1Hash) Sum(data ...[]byte) [20]byte {
	h := sha1.New()
	for _, d := range data {
		h.Write(d)
	}
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}
