// Package keys parses and encodes secp256k1 public keys in the textual
// SubjectPublicKeyInfo form used to distribute notary keys.
package keys

import (
	"crypto/ecdsa"
	encasn1 "encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

const pemType = "PUBLIC KEY"

var (
	oidPublicKeyECDSA = encasn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1      = encasn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

var (
	ErrNoPEMBlock       = errors.New("no PEM block found")
	ErrUnexpectedPEM    = errors.New("unexpected PEM block type")
	ErrMalformedSPKI    = errors.New("malformed SubjectPublicKeyInfo")
	ErrUnsupportedAlg   = errors.New("public key algorithm is not EC")
	ErrUnsupportedCurve = errors.New("EC curve is not secp256k1")
)

// ParseSEC1 parses a compressed (33 byte) or uncompressed (65 byte) SEC1
// encoded secp256k1 point.
func ParseSEC1(b []byte) (*ecdsa.PublicKey, error) {
	switch len(b) {
	case 33:
		pub, err := crypto.DecompressPubkey(b)
		if err != nil {
			return nil, fmt.Errorf("invalid compressed point: %w", err)
		}
		return pub, nil
	case 65:
		pub, err := crypto.UnmarshalPubkey(b)
		if err != nil {
			return nil, fmt.Errorf("invalid uncompressed point: %w", err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("invalid SEC1 point length %d", len(b))
	}
}

// ParseDER parses a DER SubjectPublicKeyInfo holding a secp256k1 key.
func ParseDER(der []byte) (*ecdsa.PublicKey, error) {
	input := cryptobyte.String(der)
	var spki, algo cryptobyte.String
	var algOID, curveOID encasn1.ObjectIdentifier
	var point encasn1.BitString
	if !input.ReadASN1(&spki, asn1.SEQUENCE) || !input.Empty() {
		return nil, ErrMalformedSPKI
	}
	if !spki.ReadASN1(&algo, asn1.SEQUENCE) ||
		!spki.ReadASN1BitString(&point) ||
		!spki.Empty() {
		return nil, ErrMalformedSPKI
	}
	if !algo.ReadASN1ObjectIdentifier(&algOID) {
		return nil, ErrMalformedSPKI
	}
	if !algOID.Equal(oidPublicKeyECDSA) {
		return nil, ErrUnsupportedAlg
	}
	if !algo.ReadASN1ObjectIdentifier(&curveOID) || !algo.Empty() {
		return nil, ErrMalformedSPKI
	}
	if !curveOID.Equal(oidSecp256k1) {
		return nil, ErrUnsupportedCurve
	}
	if point.BitLength%8 != 0 {
		return nil, ErrMalformedSPKI
	}
	return ParseSEC1(point.Bytes)
}

// ParsePEM parses a PEM "PUBLIC KEY" block holding a secp256k1 key.
func ParsePEM(text string) (*ecdsa.PublicKey, error) {
	block, rest := pem.Decode([]byte(strings.TrimSpace(text)))
	if block == nil {
		return nil, ErrNoPEMBlock
	}
	if block.Type != pemType {
		return nil, fmt.Errorf("%w %q", ErrUnexpectedPEM, block.Type)
	}
	if len(strings.TrimSpace(string(rest))) != 0 {
		return nil, errors.New("unexpected data after PEM block")
	}
	return ParseDER(block.Bytes)
}

// MarshalDER encodes pub as a SubjectPublicKeyInfo.
func MarshalDER(pub *ecdsa.PublicKey, compressed bool) ([]byte, error) {
	var point []byte
	if compressed {
		point = crypto.CompressPubkey(pub)
	} else {
		point = crypto.FromECDSAPub(pub)
	}
	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oidPublicKeyECDSA)
			b.AddASN1ObjectIdentifier(oidSecp256k1)
		})
		b.AddASN1BitString(point)
	})
	return b.Bytes()
}

// MarshalPEM encodes pub as a PEM "PUBLIC KEY" block with LF line endings.
func MarshalPEM(pub *ecdsa.PublicKey, compressed bool) (string, error) {
	der, err := MarshalDER(pub, compressed)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: pemType, Bytes: der})), nil
}

// Equal reports whether two keys are the same curve point. Curves are
// compared by their parameters since the secp256k1 backends of go-ethereum
// return different curve values for compressed and uncompressed input.
func Equal(a, b *ecdsa.PublicKey) bool {
	if a == nil || b == nil {
		return false
	}
	pa, pb := a.Curve.Params(), b.Curve.Params()
	return pa.P.Cmp(pb.P) == 0 && pa.N.Cmp(pb.N) == 0 && pa.B.Cmp(pb.B) == 0 &&
		a.X.Cmp(b.X) == 0 && a.Y.Cmp(b.Y) == 0
}
