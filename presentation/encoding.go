package presentation

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aead/chacha20/chacha"
)

// LabelSize is the size of one bit label in bytes.
const LabelSize = 16

// encoderRounds is the round count of the label PRG (ChaCha12).
const encoderRounds = 12

var domainEncodingLeaf = domainSeparator("EncodingLeaf")

// Encoder derives the committed encodings of transcript bytes. Every bit of
// the transcript has a zero label drawn from a ChaCha12 stream keyed by the
// seed, with the direction as the 64-bit stream id. Bits are taken least
// significant first. The active label of a one bit is the zero label XOR
// delta.
type Encoder struct {
	secret EncoderSecret
}

func NewEncoder(secret EncoderSecret) *Encoder {
	return &Encoder{secret: secret}
}

func (enc *Encoder) nonce(dir Direction) []byte {
	n := make([]byte, chacha.NonceSize)
	binary.LittleEndian.PutUint64(n, uint64(dir))
	return n
}

// Encode returns the concatenated active labels for the bytes of data, which
// must be the plaintext at idx.
func (enc *Encoder) Encode(dir Direction, idx RangeSet, data []byte) ([]byte, error) {
	if idx.Len() != len(data) {
		return nil, errors.New("data length does not match index")
	}
	if idx.End() > MaxTranscriptSize {
		return nil, errors.New("index exceeds maximum transcript size")
	}
	out := make([]byte, 0, len(data)*8*LabelSize)
	zeros := make([]byte, 8*LabelSize)
	labels := make([]byte, 8*LabelSize)
	pos := 0
	for _, r := range idx {
		c, err := chacha.NewCipher(enc.nonce(dir), enc.secret.Seed[:], encoderRounds)
		if err != nil {
			return nil, err
		}
		// Each transcript byte consumes two 64-byte blocks.
		c.SetCounter(uint64(2 * r.Start))
		for i := r.Start; i < r.End; i++ {
			c.XORKeyStream(labels, zeros)
			b := data[pos]
			pos++
			for bit := 0; bit < 8; bit++ {
				label := labels[bit*LabelSize : (bit+1)*LabelSize]
				if b>>bit&1 == 1 {
					for j := range label {
						label[j] ^= enc.secret.Delta[j]
					}
				}
			}
			out = append(out, labels...)
		}
	}
	return out, nil
}

// Opening reveals one committed leaf of the encoding tree.
type Opening struct {
	Direction Direction
	Idx       RangeSet
	Blinder   [16]byte
}

// Leaf computes the committed leaf for this opening over data: the
// domain-separated hash of the BCS encoded (encoding, blinder) pair.
func (o Opening) Leaf(h Hasher, enc *Encoder, data []byte) (Hash, error) {
	encoding, err := enc.Encode(o.Direction, o.Idx, data)
	if err != nil {
		return nil, err
	}
	e := newCanonicalEncoder()
	e.bytes(encoding)
	e.array(o.Blinder[:])
	return hashSeparated(h, domainEncodingLeaf, e.buf), nil
}

// LeafOpening pairs an opening with its leaf index in the encoding tree.
type LeafOpening struct {
	Index   int
	Opening Opening
}

// EncodingProof opens a subset of the encoding commitment tree.
type EncodingProof struct {
	InclusionProof MerkleProof
	Openings       []LeafOpening
}

func decodeEncodingProof(d *decoder) *EncodingProof {
	p := &EncodingProof{InclusionProof: decodeMerkleProof(d)}
	n := d.seqLen(8)
	for i := 0; i < n && d.err == nil; i++ {
		var lo LeafOpening
		lo.Index = d.usize()
		lo.Opening.Direction = decodeDirection(d)
		lo.Opening.Idx = decodeRangeSet(d)
		d.array(lo.Opening.Blinder[:])
		p.Openings = append(p.Openings, lo)
	}
	return p
}

func (p *EncodingProof) encode(e *encoder) {
	p.InclusionProof.encode(e)
	e.seqLen(len(p.Openings))
	for _, lo := range p.Openings {
		e.usize(lo.Index)
		e.variant(uint32(lo.Opening.Direction))
		lo.Opening.Idx.encode(e)
		e.array(lo.Opening.Blinder[:])
	}
}

// verify checks the openings against the commitment and returns the proven
// indices per direction.
func (p *EncodingProof) verify(provider *CryptoProvider, commitment *EncodingCommitment, t *PartialTranscript) (sent, recv RangeSet, err error) {
	h, err := provider.hasher(commitment.Root.Alg)
	if err != nil {
		return nil, nil, err
	}
	if len(p.Openings) == 0 {
		return nil, nil, errors.New("encoding proof has no openings")
	}
	enc := NewEncoder(commitment.Secret)
	leaves := make([]merkleNode, 0, len(p.Openings))
	sent, recv = RangeSet{}, RangeSet{}
	for _, lo := range p.Openings {
		data, err := t.Slice(lo.Opening.Direction, lo.Opening.Idx)
		if err != nil {
			return nil, nil, err
		}
		leaf, err := lo.Opening.Leaf(h, enc, data)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode %s %s: %w", lo.Opening.Direction, lo.Opening.Idx, err)
		}
		leaves = append(leaves, merkleNode{index: lo.Index, hash: leaf})
		if lo.Opening.Direction == Sent {
			sent = sent.Union(lo.Opening.Idx)
		} else {
			recv = recv.Union(lo.Opening.Idx)
		}
	}
	if err := p.InclusionProof.verify(h, commitment.Root.Value, leaves); err != nil {
		return nil, nil, fmt.Errorf("encoding commitment: %w", err)
	}
	return sent, recv, nil
}
