package notary

import (
	"crypto/ecdsa"
	"fmt"

	"tlsn-verifier/keys"
	"tlsn-verifier/presentation"
)

// ParseNotaryKey parses the caller's trusted key from PEM text.
func ParseNotaryKey(pemText string) (*ecdsa.PublicKey, error) {
	pub, err := keys.ParsePEM(pemText)
	if err != nil {
		return nil, newError(ErrInvalidTrustedKey, err)
	}
	return pub, nil
}

// ParseVerifyingKey parses the key a presentation claims it was signed with.
// Only secp256k1 keys are understood; any other algorithm tag is rejected.
func ParseVerifyingKey(vk presentation.VerifyingKey) (*ecdsa.PublicKey, error) {
	if vk.Alg != presentation.KeyAlgK256 {
		return nil, newError(ErrInvalidEmbeddedKey, fmt.Errorf("unsupported key algorithm %s", vk.Alg))
	}
	pub, err := keys.ParseSEC1(vk.Data)
	if err != nil {
		return nil, newError(ErrInvalidEmbeddedKey, err)
	}
	return pub, nil
}

// Authenticate checks that the presentation's verifying key is the trusted
// notary key. Both keys are parsed before they are compared, and they are
// compared as curve points, so any valid encoding of the same key matches.
func Authenticate(p *presentation.Presentation, trustedKeyPEM string) error {
	trusted, err := ParseNotaryKey(trustedKeyPEM)
	if err != nil {
		return err
	}
	embedded, err := ParseVerifyingKey(p.VerifyingKey())
	if err != nil {
		return err
	}
	if !keys.Equal(trusted, embedded) {
		return newError(ErrKeyMismatch, nil)
	}
	return nil
}
