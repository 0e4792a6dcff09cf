package presentation

import (
	"crypto/x509"
	"fmt"
)

// CryptoProvider bundles the hash functions, signature schemes and root
// certificates used during verification. It must match what the notary and
// prover used.
type CryptoProvider struct {
	Hash      map[HashAlgID]Hasher
	Signature map[SignatureAlgID]SignatureVerifier
	// Roots verifies server certificate chains; nil selects the system pool.
	Roots *x509.CertPool
}

// DefaultProvider returns a provider with every built-in algorithm.
func DefaultProvider() *CryptoProvider {
	p := &CryptoProvider{
		Hash:      map[HashAlgID]Hasher{},
		Signature: map[SignatureAlgID]SignatureVerifier{},
	}
	for _, h := range []Hasher{sha256Hasher{}, blake3Hasher{}, keccakHasher{}} {
		p.Hash[h.ID()] = h
	}
	for _, v := range []SignatureVerifier{secp256k1Verifier{}, secp256k1EthVerifier{}} {
		p.Signature[v.ID()] = v
	}
	return p
}

// WithRoots returns a copy of the provider that trusts roots.
func (p *CryptoProvider) WithRoots(roots *x509.CertPool) *CryptoProvider {
	cp := *p
	cp.Roots = roots
	return &cp
}

func (p *CryptoProvider) hasher(id HashAlgID) (Hasher, error) {
	h, ok := p.Hash[id]
	if !ok {
		return nil, &VerifyError{Type: VerifyErrorProvider, Message: fmt.Sprintf("hash algorithm %s is not supported", id)}
	}
	return h, nil
}

// Hasher returns the hasher registered for id.
func (p *CryptoProvider) Hasher(id HashAlgID) (Hasher, error) {
	return p.hasher(id)
}

func (p *CryptoProvider) signatureVerifier(id SignatureAlgID) (SignatureVerifier, error) {
	v, ok := p.Signature[id]
	if !ok {
		return nil, &VerifyError{Type: VerifyErrorProvider, Message: fmt.Sprintf("signature algorithm %s is not supported", id)}
	}
	return v, nil
}
