package presentation

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

// ServerName is the DNS name of the notarized server.
type ServerName string

func decodeServerName(d *decoder) ServerName {
	d.variant("server name", 1)
	return ServerName(d.string())
}

func (n ServerName) encode(e *encoder) {
	e.variant(0)
	e.string(string(n))
}

// TLS 1.2 signature schemes accepted in a ServerKeyExchange.
const (
	SchemeRSAPKCS1SHA256   uint16 = 0x0401
	SchemeRSAPKCS1SHA384   uint16 = 0x0501
	SchemeRSAPKCS1SHA512   uint16 = 0x0601
	SchemeECDSAP256SHA256  uint16 = 0x0403
	SchemeECDSAP384SHA384  uint16 = 0x0503
	SchemeRSAPSSRSAESHA256 uint16 = 0x0804
	SchemeRSAPSSRSAESHA384 uint16 = 0x0805
	SchemeRSAPSSRSAESHA512 uint16 = 0x0806
)

var schemeAlgorithms = map[uint16]x509.SignatureAlgorithm{
	SchemeRSAPKCS1SHA256:   x509.SHA256WithRSA,
	SchemeRSAPKCS1SHA384:   x509.SHA384WithRSA,
	SchemeRSAPKCS1SHA512:   x509.SHA512WithRSA,
	SchemeECDSAP256SHA256:  x509.ECDSAWithSHA256,
	SchemeECDSAP384SHA384:  x509.ECDSAWithSHA384,
	SchemeRSAPSSRSAESHA256: x509.SHA256WithRSAPSS,
	SchemeRSAPSSRSAESHA384: x509.SHA384WithRSAPSS,
	SchemeRSAPSSRSAESHA512: x509.SHA512WithRSAPSS,
}

// curveSecp256r1 is the TLS NamedCurve code point of P-256.
const curveSecp256r1 uint16 = 23

// ServerSignature is the server's signature over the key exchange.
type ServerSignature struct {
	Scheme uint16
	Sig    []byte
}

// CertBinding binds the certificate chain to the key exchange.
type CertBinding struct {
	ClientRandom   [32]byte
	ServerRandom   [32]byte
	ServerEphemKey ServerEphemKey
}

// HandshakeData is the TLS 1.2 handshake material the notary committed to.
type HandshakeData struct {
	Certs   [][]byte
	Sig     ServerSignature
	Binding CertBinding
}

func decodeHandshakeData(d *decoder) HandshakeData {
	var h HandshakeData
	d.variant("handshake data", 1)
	n := d.seqLen(8)
	for i := 0; i < n && d.err == nil; i++ {
		h.Certs = append(h.Certs, d.bytes())
	}
	h.Sig = ServerSignature{Scheme: d.u16(), Sig: d.bytes()}
	d.array(h.Binding.ClientRandom[:])
	d.array(h.Binding.ServerRandom[:])
	h.Binding.ServerEphemKey = decodeServerEphemKey(d)
	return h
}

func (h HandshakeData) encode(e *encoder) {
	e.variant(0)
	e.seqLen(len(h.Certs))
	for _, c := range h.Certs {
		e.bytes(c)
	}
	e.u16(h.Sig.Scheme)
	e.bytes(h.Sig.Sig)
	e.array(h.Binding.ClientRandom[:])
	e.array(h.Binding.ServerRandom[:])
	h.Binding.ServerEphemKey.encode(e)
}

// KeyExchangeMessage returns the bytes covered by the ServerKeyExchange
// signature: client_random || server_random || ServerECDHParams.
func (h HandshakeData) KeyExchangeMessage() []byte {
	key := h.Binding.ServerEphemKey.Key
	msg := make([]byte, 0, 64+4+len(key))
	msg = append(msg, h.Binding.ClientRandom[:]...)
	msg = append(msg, h.Binding.ServerRandom[:]...)
	msg = append(msg, 3, byte(curveSecp256r1>>8), byte(curveSecp256r1), byte(len(key)))
	msg = append(msg, key...)
	return msg
}

var domainCertOpening = domainSeparator("ServerCertOpening")

// ServerCertOpening opens the certificate commitment.
type ServerCertOpening struct {
	Data    HandshakeData
	Blinder [16]byte
}

// Commit computes the commitment this opening corresponds to.
func (o ServerCertOpening) Commit(h Hasher) TypedHash {
	msg := canonical(o.Data)
	msg = append(msg, o.Blinder[:]...)
	return TypedHash{Alg: h.ID(), Value: hashSeparated(h, domainCertOpening, msg)}
}

// ServerIdentityProof discloses the server name and certificate chain.
type ServerIdentityProof struct {
	Name    ServerName
	Opening ServerCertOpening
}

func decodeServerIdentityProof(d *decoder) *ServerIdentityProof {
	p := &ServerIdentityProof{Name: decodeServerName(d)}
	p.Opening.Data = decodeHandshakeData(d)
	d.array(p.Opening.Blinder[:])
	return p
}

func (p *ServerIdentityProof) encode(e *encoder) {
	p.Name.encode(e)
	p.Opening.Data.encode(e)
	e.array(p.Opening.Blinder[:])
}

// verify checks the identity proof against the attested body.
func (p *ServerIdentityProof) verify(provider *CryptoProvider, body *Body) error {
	commitment := body.CertCommitment.Data
	h, err := provider.hasher(commitment.Alg)
	if err != nil {
		return err
	}
	if got := p.Opening.Commit(h); !got.Value.Equal(commitment.Value) {
		return errors.New("certificate opening does not match the commitment")
	}

	info := body.ConnectionInfo.Data
	if info.Version != TLSv12 {
		return fmt.Errorf("identity proofs for %s are not supported", info.Version)
	}

	data := p.Opening.Data
	if data.Binding.ServerEphemKey.Type != body.ServerEphemKey.Data.Type ||
		!bytes.Equal(data.Binding.ServerEphemKey.Key, body.ServerEphemKey.Data.Key) {
		return errors.New("server ephemeral key does not match the attestation")
	}
	if len(data.Certs) == 0 {
		return errors.New("no certificates provided")
	}

	certs := make([]*x509.Certificate, 0, len(data.Certs))
	for i, der := range data.Certs {
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return fmt.Errorf("failed to parse certificate %d: %w", i, err)
		}
		certs = append(certs, c)
	}

	leaf := certs[0]
	intermediates := x509.NewCertPool()
	for _, c := range certs[1:] {
		intermediates.AddCert(c)
	}
	opts := x509.VerifyOptions{
		Roots:         provider.Roots,
		Intermediates: intermediates,
		DNSName:       string(p.Name),
		CurrentTime:   time.Unix(int64(info.Time), 0),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if _, err := leaf.Verify(opts); err != nil {
		return fmt.Errorf("certificate verification failed for %s: %w", p.Name, err)
	}

	alg, ok := schemeAlgorithms[data.Sig.Scheme]
	if !ok {
		return fmt.Errorf("unsupported signature scheme 0x%04x", data.Sig.Scheme)
	}
	if err := leaf.CheckSignature(alg, data.KeyExchangeMessage(), data.Sig.Sig); err != nil {
		return fmt.Errorf("invalid key exchange signature: %w", err)
	}
	return nil
}
