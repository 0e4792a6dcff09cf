package presentation

import (
	"github.com/google/uuid"
)

// AttestationVersion is the only attestation header version understood by
// this package.
const AttestationVersion uint32 = 0

// Uid identifies an attestation.
type Uid [16]byte

// UUID renders the id as a UUID value.
func (u Uid) UUID() uuid.UUID {
	return uuid.UUID(u)
}

func (u Uid) String() string {
	return u.UUID().String()
}

// Header is the signed part of an attestation.
type Header struct {
	ID      Uid
	Version uint32
	Root    TypedHash
}

func decodeHeader(d *decoder) Header {
	var h Header
	d.array(h.ID[:])
	h.Version = d.u32()
	h.Root = decodeTypedHash(d)
	if d.err == nil && h.Version != AttestationVersion {
		d.fail("unsupported attestation version", nil)
	}
	return h
}

func (h Header) encode(e *encoder) {
	e.array(h.ID[:])
	e.u32(h.Version)
	h.Root.encode(e)
}

// CanonicalBytes is the message the notary signs: the BCS form of the header.
func (h Header) CanonicalBytes() []byte {
	return canonical(h)
}

// TLSVersion of the notarized connection.
type TLSVersion uint32

const (
	TLSv12 TLSVersion = iota
	TLSv13
)

func (v TLSVersion) String() string {
	if v == TLSv12 {
		return "TLS 1.2"
	}
	return "TLS 1.3"
}

// TranscriptLength is the total size of each transcript direction.
type TranscriptLength struct {
	Sent     uint32
	Received uint32
}

// ConnectionInfo describes the notarized TLS connection.
type ConnectionInfo struct {
	Time             uint64
	Version          TLSVersion
	TranscriptLength TranscriptLength
}

func decodeConnectionInfo(d *decoder) ConnectionInfo {
	return ConnectionInfo{
		Time:    d.u64(),
		Version: TLSVersion(d.variant("tls version", 2)),
		TranscriptLength: TranscriptLength{
			Sent:     d.u32(),
			Received: d.u32(),
		},
	}
}

func (c ConnectionInfo) encode(e *encoder) {
	e.u64(c.Time)
	e.variant(uint32(c.Version))
	e.u32(c.TranscriptLength.Sent)
	e.u32(c.TranscriptLength.Received)
}

// KeyType of a server ephemeral key.
type KeyType uint32

const KeyTypeSecp256r1 KeyType = 0

// ServerEphemKey is the server's ECDHE key share.
type ServerEphemKey struct {
	Type KeyType
	Key  []byte
}

func decodeServerEphemKey(d *decoder) ServerEphemKey {
	return ServerEphemKey{Type: KeyType(d.variant("key type", 1)), Key: d.bytes()}
}

func (k ServerEphemKey) encode(e *encoder) {
	e.variant(uint32(k.Type))
	e.bytes(k.Key)
}

// EncoderSecret seeds the transcript encoder.
type EncoderSecret struct {
	Seed  [32]byte
	Delta [16]byte
}

// EncodingCommitment is the root of the committed transcript encodings.
type EncodingCommitment struct {
	Root   TypedHash
	Secret EncoderSecret
}

func decodeEncodingCommitment(d *decoder) EncodingCommitment {
	var c EncodingCommitment
	c.Root = decodeTypedHash(d)
	d.array(c.Secret.Seed[:])
	d.array(c.Secret.Delta[:])
	return c
}

func (c EncodingCommitment) encode(e *encoder) {
	c.Root.encode(e)
	e.array(c.Secret.Seed[:])
	e.array(c.Secret.Delta[:])
}

// PlaintextHash commits to a blinded hash of transcript bytes.
type PlaintextHash struct {
	Direction Direction
	Idx       RangeSet
	Hash      TypedHash
}

func decodePlaintextHash(d *decoder) PlaintextHash {
	return PlaintextHash{
		Direction: decodeDirection(d),
		Idx:       decodeRangeSet(d),
		Hash:      decodeTypedHash(d),
	}
}

func (p PlaintextHash) encode(e *encoder) {
	e.variant(uint32(p.Direction))
	p.Idx.encode(e)
	p.Hash.encode(e)
}

// FieldID is the leaf index of a body field in the body merkle tree.
type FieldID uint32

// Field pairs a body value with its leaf index.
type Field[T any] struct {
	ID   FieldID
	Data T
}

// Domain separators for body field leaves, one per field type.
var (
	domainVerifyingKey       = domainSeparator("VerifyingKey")
	domainConnectionInfo     = domainSeparator("ConnectionInfo")
	domainServerEphemKey     = domainSeparator("ServerEphemKey")
	domainCertCommitment     = domainSeparator("ServerCertCommitment")
	domainEncodingCommitment = domainSeparator("EncodingCommitment")
	domainPlaintextHash      = domainSeparator("PlaintextHash")
)

// Body holds the attested fields.
type Body struct {
	VerifyingKey       Field[VerifyingKey]
	ConnectionInfo     Field[ConnectionInfo]
	ServerEphemKey     Field[ServerEphemKey]
	CertCommitment     Field[TypedHash]
	EncodingCommitment *Field[EncodingCommitment]
	PlaintextHashes    []Field[PlaintextHash]
}

func decodeBody(d *decoder) Body {
	var b Body
	b.VerifyingKey = Field[VerifyingKey]{ID: FieldID(d.u32()), Data: decodeVerifyingKey(d)}
	b.ConnectionInfo = Field[ConnectionInfo]{ID: FieldID(d.u32()), Data: decodeConnectionInfo(d)}
	b.ServerEphemKey = Field[ServerEphemKey]{ID: FieldID(d.u32()), Data: decodeServerEphemKey(d)}
	b.CertCommitment = Field[TypedHash]{ID: FieldID(d.u32()), Data: decodeTypedHash(d)}
	if d.option() {
		b.EncodingCommitment = &Field[EncodingCommitment]{ID: FieldID(d.u32()), Data: decodeEncodingCommitment(d)}
	}
	n := d.seqLen(4)
	for i := 0; i < n && d.err == nil; i++ {
		b.PlaintextHashes = append(b.PlaintextHashes, Field[PlaintextHash]{ID: FieldID(d.u32()), Data: decodePlaintextHash(d)})
	}
	return b
}

func (b Body) encode(e *encoder) {
	e.u32(uint32(b.VerifyingKey.ID))
	b.VerifyingKey.Data.encode(e)
	e.u32(uint32(b.ConnectionInfo.ID))
	b.ConnectionInfo.Data.encode(e)
	e.u32(uint32(b.ServerEphemKey.ID))
	b.ServerEphemKey.Data.encode(e)
	e.u32(uint32(b.CertCommitment.ID))
	b.CertCommitment.Data.encode(e)
	e.option(b.EncodingCommitment != nil)
	if b.EncodingCommitment != nil {
		e.u32(uint32(b.EncodingCommitment.ID))
		b.EncodingCommitment.Data.encode(e)
	}
	e.seqLen(len(b.PlaintextHashes))
	for _, f := range b.PlaintextHashes {
		e.u32(uint32(f.ID))
		f.Data.encode(e)
	}
}

type encodable interface {
	encode(e *encoder)
}

// canonical returns the BCS serialization of v.
func canonical(v encodable) []byte {
	e := newCanonicalEncoder()
	v.encode(e)
	return e.buf
}

// leaves returns the domain-separated leaf hash of every body field, keyed
// by field id.
func (b Body) leaves(h Hasher) []merkleNode {
	leaves := []merkleNode{
		{index: int(b.VerifyingKey.ID), hash: hashSeparated(h, domainVerifyingKey, canonical(b.VerifyingKey.Data))},
		{index: int(b.ConnectionInfo.ID), hash: hashSeparated(h, domainConnectionInfo, canonical(b.ConnectionInfo.Data))},
		{index: int(b.ServerEphemKey.ID), hash: hashSeparated(h, domainServerEphemKey, canonical(b.ServerEphemKey.Data))},
		{index: int(b.CertCommitment.ID), hash: hashSeparated(h, domainCertCommitment, canonical(b.CertCommitment.Data))},
	}
	if b.EncodingCommitment != nil {
		leaves = append(leaves, merkleNode{
			index: int(b.EncodingCommitment.ID),
			hash:  hashSeparated(h, domainEncodingCommitment, canonical(b.EncodingCommitment.Data)),
		})
	}
	for _, f := range b.PlaintextHashes {
		leaves = append(leaves, merkleNode{index: int(f.ID), hash: hashSeparated(h, domainPlaintextHash, canonical(f.Data))})
	}
	return leaves
}

// LeafHashes returns the leaf hashes ordered by field id, as committed by a
// notary that assigns ids 0..n-1.
func (b Body) LeafHashes(h Hasher) []Hash {
	sorted, err := sortLeaves(b.leaves(h), 1<<31-1)
	if err != nil {
		return nil
	}
	out := make([]Hash, len(sorted))
	for i, n := range sorted {
		out[i] = n.hash
	}
	return out
}

// BodyProof carries the body together with its inclusion proof.
type BodyProof struct {
	Body  Body
	Proof MerkleProof
}

// AttestationProof is the signed attestation as carried in a presentation.
type AttestationProof struct {
	Signature Signature
	Header    Header
	Body      BodyProof
}

func decodeAttestationProof(d *decoder) AttestationProof {
	return AttestationProof{
		Signature: decodeSignature(d),
		Header:    decodeHeader(d),
		Body: BodyProof{
			Body:  decodeBody(d),
			Proof: decodeMerkleProof(d),
		},
	}
}

func (a AttestationProof) encode(e *encoder) {
	a.Signature.encode(e)
	a.Header.encode(e)
	a.Body.Body.encode(e)
	a.Body.Proof.encode(e)
}
