// Package presentationtest builds signed presentations for tests. It plays
// the notary and prover roles with throwaway keys and certificates.
package presentationtest

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"tlsn-verifier/keys"
	"tlsn-verifier/presentation"
)

// Options controls what the built presentation contains.
type Options struct {
	// NotaryKey signs the attestation; a fixed test key is used when nil.
	NotaryKey *ecdsa.PrivateKey
	SigAlg    presentation.SignatureAlgID
	HashAlg   presentation.HashAlgID
	Time      uint64

	Sent     []byte
	Received []byte

	// Ranges disclosed through encoding openings.
	SentReveal     presentation.RangeSet
	ReceivedReveal presentation.RangeSet
	// Ranges disclosed through plaintext hash commitments.
	SentHashReveal     presentation.RangeSet
	ReceivedHashReveal presentation.RangeSet

	// ServerName adds a server identity proof when set.
	ServerName string
	// OmitTranscript leaves the transcript proof out.
	OmitTranscript bool
}

// Fixture is a built presentation with the material needed to verify it.
type Fixture struct {
	Presentation *presentation.Presentation
	Bytes        []byte
	Hex          string
	NotaryKey    *ecdsa.PrivateKey
	NotaryKeyPEM string
	Roots        *x509.CertPool
}

// Provider returns the default provider trusting the fixture's CA.
func (f *Fixture) Provider() *presentation.CryptoProvider {
	return presentation.DefaultProvider().WithRoots(f.Roots)
}

// Reencode refreshes Bytes and Hex after Presentation was modified.
func (f *Fixture) Reencode() {
	f.Bytes = f.Presentation.Encode()
	f.Hex = hex.EncodeToString(f.Bytes)
}

const testNotaryKeyHex = "6c5d6fb1f3a84f2c2c6c1f4b0a3c6fe1e2b7e3d9a4f1c0b8d7e6f5a4b3c2d1e0"

// TestNotaryKey returns the fixed notary key used when Options.NotaryKey is
// nil.
func TestNotaryKey() *ecdsa.PrivateKey {
	k, err := crypto.HexToECDSA(testNotaryKeyHex)
	if err != nil {
		panic(err)
	}
	return k
}

// Build creates a presentation according to opts.
func Build(opts Options) (*Fixture, error) {
	if opts.NotaryKey == nil {
		opts.NotaryKey = TestNotaryKey()
	}
	if opts.SigAlg == 0 {
		opts.SigAlg = presentation.SigSecp256k1
	}
	if opts.HashAlg == 0 {
		opts.HashAlg = presentation.HashSHA256
	}
	provider := presentation.DefaultProvider()
	h, err := provider.Hasher(opts.HashAlg)
	if err != nil {
		return nil, err
	}

	hs, roots, err := newHandshake(opts)
	if err != nil {
		return nil, err
	}
	opening := presentation.ServerCertOpening{Data: hs, Blinder: randomBlinder()}

	var body presentation.Body
	nextID := presentation.FieldID(0)
	id := func() presentation.FieldID {
		v := nextID
		nextID++
		return v
	}
	body.VerifyingKey = presentation.Field[presentation.VerifyingKey]{ID: id(), Data: presentation.VerifyingKey{
		Alg:  presentation.KeyAlgK256,
		Data: crypto.CompressPubkey(&opts.NotaryKey.PublicKey),
	}}
	body.ConnectionInfo = presentation.Field[presentation.ConnectionInfo]{ID: id(), Data: presentation.ConnectionInfo{
		Time:    opts.Time,
		Version: presentation.TLSv12,
		TranscriptLength: presentation.TranscriptLength{
			Sent:     uint32(len(opts.Sent)),
			Received: uint32(len(opts.Received)),
		},
	}}
	body.ServerEphemKey = presentation.Field[presentation.ServerEphemKey]{ID: id(), Data: hs.Binding.ServerEphemKey}
	body.CertCommitment = presentation.Field[presentation.TypedHash]{ID: id(), Data: opening.Commit(h)}

	full := presentation.NewPartialTranscript(len(opts.Sent), len(opts.Received))
	transcript := &presentation.TranscriptProof{Transcript: full}

	hasEncoding := len(opts.SentReveal) > 0 || len(opts.ReceivedReveal) > 0
	if hasEncoding {
		commitment, proof, err := commitEncodings(h, opts)
		if err != nil {
			return nil, err
		}
		body.EncodingCommitment = &presentation.Field[presentation.EncodingCommitment]{ID: id(), Data: commitment}
		transcript.EncodingProof = proof
	}

	for _, dir := range []presentation.Direction{presentation.Sent, presentation.Received} {
		data, encReveal, hashReveal := opts.Sent, opts.SentReveal, opts.SentHashReveal
		if dir == presentation.Received {
			data, encReveal, hashReveal = opts.Received, opts.ReceivedReveal, opts.ReceivedHashReveal
		}
		if err := full.Disclose(dir, data, encReveal.Union(hashReveal)); err != nil {
			return nil, err
		}
		for _, r := range hashReveal {
			secret := presentation.PlaintextHashSecret{
				Direction: dir,
				Idx:       presentation.NewRangeSet(r),
				Alg:       opts.HashAlg,
				Blinder:   randomBlinder(),
			}
			body.PlaintextHashes = append(body.PlaintextHashes, presentation.Field[presentation.PlaintextHash]{
				ID: id(),
				Data: presentation.PlaintextHash{
					Direction: dir,
					Idx:       secret.Idx,
					Hash:      presentation.TypedHash{Alg: opts.HashAlg, Value: secret.Commit(h, data[r.Start:r.End])},
				},
			})
			transcript.HashSecrets = append(transcript.HashSecrets, secret)
		}
	}

	leaves := body.LeafHashes(h)
	tree := presentation.NewMerkleTree(h, leaves)
	all := make([]int, len(leaves))
	for i := range all {
		all[i] = i
	}

	header := presentation.Header{
		ID:      presentation.Uid(uuid.New()),
		Version: presentation.AttestationVersion,
		Root:    presentation.TypedHash{Alg: opts.HashAlg, Value: tree.Root()},
	}
	sig, err := Sign(opts.NotaryKey, opts.SigAlg, header.CanonicalBytes())
	if err != nil {
		return nil, err
	}

	p := &presentation.Presentation{
		Attestation: presentation.AttestationProof{
			Signature: presentation.Signature{Alg: opts.SigAlg, Data: sig},
			Header:    header,
			Body:      presentation.BodyProof{Body: body, Proof: tree.Proof(all)},
		},
	}
	if opts.ServerName != "" {
		p.Identity = &presentation.ServerIdentityProof{Name: presentation.ServerName(opts.ServerName), Opening: opening}
	}
	if !opts.OmitTranscript {
		p.Transcript = transcript
	}

	keyPEM, err := keys.MarshalPEM(&opts.NotaryKey.PublicKey, true)
	if err != nil {
		return nil, err
	}
	f := &Fixture{
		Presentation: p,
		NotaryKey:    opts.NotaryKey,
		NotaryKeyPEM: keyPEM,
		Roots:        roots,
	}
	f.Reencode()
	return f, nil
}

// Sign produces a notary signature over msg.
func Sign(key *ecdsa.PrivateKey, alg presentation.SignatureAlgID, msg []byte) ([]byte, error) {
	switch alg {
	case presentation.SigSecp256k1:
		digest := sha256.Sum256(msg)
		sig, err := crypto.Sign(digest[:], key)
		if err != nil {
			return nil, err
		}
		return sig[:64], nil
	case presentation.SigSecp256k1Eth:
		return crypto.Sign(crypto.Keccak256(msg), key)
	default:
		return nil, fmt.Errorf("unsupported signature algorithm %s", alg)
	}
}

// commitEncodings commits to every range of both directions, revealed or
// not, and opens only the revealed ones.
func commitEncodings(h presentation.Hasher, opts Options) (presentation.EncodingCommitment, *presentation.EncodingProof, error) {
	var secret presentation.EncoderSecret
	rand.Read(secret.Seed[:])
	rand.Read(secret.Delta[:])
	enc := presentation.NewEncoder(secret)

	type leaf struct {
		opening presentation.Opening
		reveal  bool
	}
	var committed []leaf
	for _, dir := range []presentation.Direction{presentation.Sent, presentation.Received} {
		data, reveal := opts.Sent, opts.SentReveal
		if dir == presentation.Received {
			data, reveal = opts.Received, opts.ReceivedReveal
		}
		for _, r := range partition(len(data), reveal) {
			committed = append(committed, leaf{
				opening: presentation.Opening{Direction: dir, Idx: presentation.NewRangeSet(r), Blinder: randomBlinder()},
				reveal:  reveal.ContainsRange(r),
			})
		}
	}

	hashes := make([]presentation.Hash, len(committed))
	var openings []presentation.LeafOpening
	var revealed []int
	for i, l := range committed {
		data := opts.Sent
		if l.opening.Direction == presentation.Received {
			data = opts.Received
		}
		r := l.opening.Idx[0]
		leafHash, err := l.opening.Leaf(h, enc, data[r.Start:r.End])
		if err != nil {
			return presentation.EncodingCommitment{}, nil, err
		}
		hashes[i] = leafHash
		if l.reveal {
			openings = append(openings, presentation.LeafOpening{Index: i, Opening: l.opening})
			revealed = append(revealed, i)
		}
	}

	tree := presentation.NewMerkleTree(h, hashes)
	commitment := presentation.EncodingCommitment{
		Root:   presentation.TypedHash{Alg: h.ID(), Value: tree.Root()},
		Secret: secret,
	}
	return commitment, &presentation.EncodingProof{InclusionProof: tree.Proof(revealed), Openings: openings}, nil
}

// partition splits [0, n) into the ranges of reveal and the gaps between
// them.
func partition(n int, reveal presentation.RangeSet) []presentation.Range {
	var out []presentation.Range
	pos := 0
	for _, r := range reveal {
		if r.Start > pos {
			out = append(out, presentation.Range{Start: pos, End: r.Start})
		}
		out = append(out, r)
		pos = r.End
	}
	if pos < n {
		out = append(out, presentation.Range{Start: pos, End: n})
	}
	return out
}

func randomBlinder() [16]byte {
	var b [16]byte
	rand.Read(b[:])
	return b
}

// newHandshake creates a CA, a leaf certificate for opts.ServerName valid at
// opts.Time, and a signed TLS 1.2 key exchange.
func newHandshake(opts Options) (presentation.HandshakeData, *x509.CertPool, error) {
	var hs presentation.HandshakeData
	rand.Read(hs.Binding.ClientRandom[:])
	rand.Read(hs.Binding.ServerRandom[:])

	ephem, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return hs, nil, err
	}
	hs.Binding.ServerEphemKey = presentation.ServerEphemKey{
		Type: presentation.KeyTypeSecp256r1,
		Key:  ephem.PublicKey().Bytes(),
	}

	name := opts.ServerName
	if name == "" {
		name = "localhost"
	}
	at := time.Unix(int64(opts.Time), 0)

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return hs, nil, err
	}
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test Root CA"},
		NotBefore:             at.Add(-365 * 24 * time.Hour),
		NotAfter:              at.Add(365 * 24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	if err != nil {
		return hs, nil, err
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return hs, nil, err
	}

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return hs, nil, err
	}
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: name},
		DNSNames:     []string{name},
		NotBefore:    at.Add(-24 * time.Hour),
		NotAfter:     at.Add(90 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, caCert, &leafKey.PublicKey, caKey)
	if err != nil {
		return hs, nil, err
	}
	hs.Certs = [][]byte{leafDER}

	digest := sha256.Sum256(hs.KeyExchangeMessage())
	sig, err := ecdsa.SignASN1(rand.Reader, leafKey, digest[:])
	if err != nil {
		return hs, nil, err
	}
	hs.Sig = presentation.ServerSignature{Scheme: presentation.SchemeECDSAP256SHA256, Sig: sig}

	roots := x509.NewCertPool()
	roots.AddCert(caCert)
	return hs, roots, nil
}
