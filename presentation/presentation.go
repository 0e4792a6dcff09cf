// Package presentation implements the notary presentation format: its
// binary encoding and the verification routine that checks a presentation's
// attestation, server identity and disclosed transcript.
package presentation

import (
	"errors"
	"fmt"
)

// Presentation is a verifiable bundle of an attestation and the prover's
// selective disclosures.
type Presentation struct {
	Attestation AttestationProof
	Identity    *ServerIdentityProof
	Transcript  *TranscriptProof
}

// VerifyingKey returns the notary key the attestation claims to be signed by.
func (p *Presentation) VerifyingKey() VerifyingKey {
	return p.Attestation.Body.Body.VerifyingKey.Data
}

// Decode deserializes a presentation. Truncated input, trailing bytes,
// unknown variants and unsupported versions are rejected.
func Decode(b []byte) (*Presentation, error) {
	d := newDecoder(b)
	p := &Presentation{Attestation: decodeAttestationProof(d)}
	if d.option() {
		p.Identity = decodeServerIdentityProof(d)
	}
	if d.option() {
		p.Transcript = decodeTranscriptProof(d)
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return p, nil
}

// Encode serializes a presentation.
func (p *Presentation) Encode() []byte {
	var e encoder
	p.Attestation.encode(&e)
	e.option(p.Identity != nil)
	if p.Identity != nil {
		p.Identity.encode(&e)
	}
	e.option(p.Transcript != nil)
	if p.Transcript != nil {
		p.Transcript.encode(&e)
	}
	return e.buf
}

// PlaintextHashSecret opens a PlaintextHash commitment.
type PlaintextHashSecret struct {
	Direction Direction
	Idx       RangeSet
	Alg       HashAlgID
	Blinder   [16]byte
}

// Commit hashes data, the plaintext at the secret's index, with the blinder.
func (s PlaintextHashSecret) Commit(h Hasher, data []byte) Hash {
	msg := make([]byte, 0, len(data)+len(s.Blinder))
	msg = append(msg, data...)
	msg = append(msg, s.Blinder[:]...)
	return h.Hash(msg)
}

// TranscriptProof discloses parts of the transcript and proves them against
// the attestation's commitments.
type TranscriptProof struct {
	Transcript    *PartialTranscript
	EncodingProof *EncodingProof
	HashSecrets   []PlaintextHashSecret
}

func decodeTranscriptProof(d *decoder) *TranscriptProof {
	p := &TranscriptProof{Transcript: decodePartialTranscript(d)}
	if d.option() {
		p.EncodingProof = decodeEncodingProof(d)
	}
	n := d.seqLen(8)
	for i := 0; i < n && d.err == nil; i++ {
		var s PlaintextHashSecret
		s.Direction = decodeDirection(d)
		s.Idx = decodeRangeSet(d)
		s.Alg = HashAlgID(d.u8())
		d.array(s.Blinder[:])
		p.HashSecrets = append(p.HashSecrets, s)
	}
	return p
}

func (p *TranscriptProof) encode(e *encoder) {
	p.Transcript.encode(e)
	e.option(p.EncodingProof != nil)
	if p.EncodingProof != nil {
		p.EncodingProof.encode(e)
	}
	e.seqLen(len(p.HashSecrets))
	for _, s := range p.HashSecrets {
		e.variant(uint32(s.Direction))
		s.Idx.encode(e)
		e.u8(uint8(s.Alg))
		e.array(s.Blinder[:])
	}
}

// verify checks every disclosed range against a commitment in body and
// returns a copy of the authenticated transcript.
func (p *TranscriptProof) verify(provider *CryptoProvider, body *Body) (*PartialTranscript, error) {
	t := p.Transcript
	lengths := body.ConnectionInfo.Data.TranscriptLength
	if t.LenSent() != int(lengths.Sent) || t.LenReceived() != int(lengths.Received) {
		return nil, fmt.Errorf("transcript lengths %d/%d do not match the attested %d/%d",
			t.LenSent(), t.LenReceived(), lengths.Sent, lengths.Received)
	}

	proven := map[Direction]RangeSet{Sent: {}, Received: {}}

	for _, s := range p.HashSecrets {
		commitment, ok := findPlaintextHash(body, s)
		if !ok {
			return nil, fmt.Errorf("no plaintext hash commitment for %s %s", s.Direction, s.Idx)
		}
		if commitment.Hash.Alg != s.Alg {
			return nil, fmt.Errorf("plaintext hash for %s %s uses %s, secret uses %s",
				s.Direction, s.Idx, commitment.Hash.Alg, s.Alg)
		}
		h, err := provider.hasher(s.Alg)
		if err != nil {
			return nil, err
		}
		data, err := t.Slice(s.Direction, s.Idx)
		if err != nil {
			return nil, err
		}
		if !s.Commit(h, data).Equal(commitment.Hash.Value) {
			return nil, fmt.Errorf("plaintext hash mismatch for %s %s", s.Direction, s.Idx)
		}
		proven[s.Direction] = proven[s.Direction].Union(s.Idx)
	}

	if p.EncodingProof != nil {
		if body.EncodingCommitment == nil {
			return nil, errors.New("encoding proof provided without an encoding commitment")
		}
		sent, recv, err := p.EncodingProof.verify(provider, &body.EncodingCommitment.Data, t)
		if err != nil {
			return nil, err
		}
		proven[Sent] = proven[Sent].Union(sent)
		proven[Received] = proven[Received].Union(recv)
	}

	for _, dir := range []Direction{Sent, Received} {
		if !proven[dir].Equal(t.Authed(dir)) {
			return nil, fmt.Errorf("%s disclosed ranges %s are not exactly the proven ranges %s",
				dir, t.Authed(dir), proven[dir])
		}
	}
	return t.Clone(), nil
}

func findPlaintextHash(body *Body, s PlaintextHashSecret) (PlaintextHash, bool) {
	for _, f := range body.PlaintextHashes {
		if f.Data.Direction == s.Direction && f.Data.Idx.Equal(s.Idx) {
			return f.Data, true
		}
	}
	return PlaintextHash{}, false
}
