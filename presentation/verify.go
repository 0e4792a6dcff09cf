package presentation

// Output is what a successfully verified presentation attests to.
type Output struct {
	Header         Header
	VerifyingKey   VerifyingKey
	ConnectionInfo ConnectionInfo
	// ServerName is set when the presentation carries an identity proof.
	ServerName *ServerName
	// Transcript is set when the presentation discloses transcript data. It
	// is a copy owned by the caller.
	Transcript *PartialTranscript
}

// Verify checks the presentation with provider and returns its attested
// contents. A nil provider selects DefaultProvider.
func (p *Presentation) Verify(provider *CryptoProvider) (*Output, error) {
	if provider == nil {
		provider = DefaultProvider()
	}
	if err := p.Attestation.verify(provider); err != nil {
		return nil, err
	}

	body := &p.Attestation.Body.Body
	out := &Output{
		Header:         p.Attestation.Header,
		VerifyingKey:   body.VerifyingKey.Data,
		ConnectionInfo: body.ConnectionInfo.Data,
	}

	if p.Identity != nil {
		if err := p.Identity.verify(provider, body); err != nil {
			return nil, verifyErr(VerifyErrorIdentity, err, "server identity proof rejected")
		}
		name := p.Identity.Name
		out.ServerName = &name
	}

	if p.Transcript != nil {
		t, err := p.Transcript.verify(provider, body)
		if err != nil {
			return nil, verifyErr(VerifyErrorTranscript, err, "transcript proof rejected")
		}
		out.Transcript = t
	}
	return out, nil
}

func (a *AttestationProof) verify(provider *CryptoProvider) error {
	body := &a.Body.Body
	key := body.VerifyingKey.Data

	verifier, err := provider.signatureVerifier(a.Signature.Alg)
	if err != nil {
		return err
	}
	if verifier.KeyAlg() != key.Alg {
		return verifyErr(VerifyErrorAttestation, nil, "signature algorithm %s cannot be used with %s keys", a.Signature.Alg, key.Alg)
	}
	if err := verifier.Verify(key, a.Header.CanonicalBytes(), a.Signature.Data); err != nil {
		return verifyErr(VerifyErrorSignature, err, "attestation signature rejected")
	}

	h, err := provider.hasher(a.Header.Root.Alg)
	if err != nil {
		return err
	}
	if err := a.Body.Proof.verify(h, a.Header.Root.Value, body.leaves(h)); err != nil {
		return verifyErr(VerifyErrorBody, err, "attestation body does not match the signed root")
	}
	return nil
}
