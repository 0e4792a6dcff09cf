package presentation

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// KeyAlgID identifies the key family of a VerifyingKey.
type KeyAlgID uint8

const (
	KeyAlgK256 KeyAlgID = 1
	KeyAlgP256 KeyAlgID = 2
)

func (id KeyAlgID) String() string {
	switch id {
	case KeyAlgK256:
		return "k256"
	case KeyAlgP256:
		return "p256"
	default:
		return fmt.Sprintf("key(%d)", uint8(id))
	}
}

// SignatureAlgID identifies a signature scheme.
type SignatureAlgID uint8

const (
	SigSecp256k1    SignatureAlgID = 1
	SigSecp256r1    SignatureAlgID = 2
	SigSecp256k1Eth SignatureAlgID = 3
)

func (id SignatureAlgID) String() string {
	switch id {
	case SigSecp256k1:
		return "secp256k1"
	case SigSecp256r1:
		return "secp256r1"
	case SigSecp256k1Eth:
		return "secp256k1eth"
	default:
		return fmt.Sprintf("sig(%d)", uint8(id))
	}
}

// VerifyingKey is the notary public key embedded in an attestation.
type VerifyingKey struct {
	Alg  KeyAlgID
	Data []byte
}

func decodeVerifyingKey(d *decoder) VerifyingKey {
	return VerifyingKey{Alg: KeyAlgID(d.u8()), Data: d.bytes()}
}

func (k VerifyingKey) encode(e *encoder) {
	e.u8(uint8(k.Alg))
	e.bytes(k.Data)
}

// Signature is a notary signature over the canonical attestation header.
type Signature struct {
	Alg  SignatureAlgID
	Data []byte
}

func decodeSignature(d *decoder) Signature {
	return Signature{Alg: SignatureAlgID(d.u8()), Data: d.bytes()}
}

func (s Signature) encode(e *encoder) {
	e.u8(uint8(s.Alg))
	e.bytes(s.Data)
}

// SignatureVerifier checks signatures for one scheme.
type SignatureVerifier interface {
	ID() SignatureAlgID
	KeyAlg() KeyAlgID
	Verify(key VerifyingKey, msg, sig []byte) error
}

// ParseSecp256k1Key parses SEC1 compressed or uncompressed secp256k1 bytes.
func ParseSecp256k1Key(b []byte) (*ecdsa.PublicKey, error) {
	switch len(b) {
	case 33:
		return crypto.DecompressPubkey(b)
	case 65:
		return crypto.UnmarshalPubkey(b)
	default:
		return nil, fmt.Errorf("invalid secp256k1 key length %d", len(b))
	}
}

var errInvalidSignature = errors.New("invalid signature")

// secp256k1Verifier checks ECDSA signatures over SHA-256 with 64-byte r||s
// encoding.
type secp256k1Verifier struct{}

func (secp256k1Verifier) ID() SignatureAlgID { return SigSecp256k1 }
func (secp256k1Verifier) KeyAlg() KeyAlgID   { return KeyAlgK256 }

func (secp256k1Verifier) Verify(key VerifyingKey, msg, sig []byte) error {
	pub, err := ParseSecp256k1Key(key.Data)
	if err != nil {
		return err
	}
	if len(sig) != 64 {
		return fmt.Errorf("invalid signature length: expected 64 bytes, got %d", len(sig))
	}
	digest := sha256.Sum256(msg)
	if !crypto.VerifySignature(crypto.CompressPubkey(pub), digest[:], sig) {
		return errInvalidSignature
	}
	return nil
}

// secp256k1EthVerifier checks recoverable Ethereum-style signatures over the
// Keccak-256 digest of the message.
type secp256k1EthVerifier struct{}

func (secp256k1EthVerifier) ID() SignatureAlgID { return SigSecp256k1Eth }
func (secp256k1EthVerifier) KeyAlg() KeyAlgID   { return KeyAlgK256 }

func (secp256k1EthVerifier) Verify(key VerifyingKey, msg, sig []byte) error {
	pub, err := ParseSecp256k1Key(key.Data)
	if err != nil {
		return err
	}
	if len(sig) != 65 {
		return fmt.Errorf("invalid ETH signature length: expected 65 bytes, got %d", len(sig))
	}
	rsv := make([]byte, 65)
	copy(rsv, sig)
	if rsv[64] >= 27 {
		rsv[64] -= 27
	}
	recovered, err := crypto.SigToPub(crypto.Keccak256(msg), rsv)
	if err != nil {
		return fmt.Errorf("failed to recover public key from signature: %w", err)
	}
	if !bytes.Equal(crypto.CompressPubkey(recovered), crypto.CompressPubkey(pub)) {
		return errInvalidSignature
	}
	return nil
}
