// Package notary verifies notary presentations against a trusted notary key
// and returns the disclosed, redacted transcript.
//
// The pipeline is strictly linear: Decode, then Authenticate, then the
// protocol verification routine, then redaction. Each stage either feeds
// the next or ends the call with an *Error.
package notary

import (
	"time"

	"go.uber.org/zap"

	"tlsn-verifier/presentation"
	"tlsn-verifier/shared"
)

var (
	// Package-level logger for notary - use this directly
	logger = shared.NewNopLogger()
)

// SetLogger allows the main package to inject its configured logger
func SetLogger(l *shared.Logger) {
	if l != nil {
		logger = l.WithPackage("notary")
	}
}

// Result is what a successful verification returns to the caller.
type Result struct {
	Sent string `json:"sent"`
	Recv string `json:"recv"`
	Time uint64 `json:"time"`
}

// Report is a Result with the attested metadata around it.
type Report struct {
	Result
	AttestationID string
	ServerName    string
	VerifyingKey  presentation.VerifyingKey
	TLSVersion    presentation.TLSVersion
	// Transcript is the redacted transcript, nil when none was disclosed.
	Transcript *presentation.PartialTranscript
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithProvider replaces the default crypto provider.
func WithProvider(p *presentation.CryptoProvider) Option {
	return func(v *Verifier) { v.provider = p }
}

// WithBackend replaces the protocol verification routine.
func WithBackend(b PresentationVerifier) Option {
	return func(v *Verifier) { v.backend = b }
}

// WithLogger sets the logger used by the verifier.
func WithLogger(l *shared.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

// Verifier runs the verification pipeline. It holds no mutable state and is
// safe for concurrent use.
type Verifier struct {
	provider *presentation.CryptoProvider
	backend  PresentationVerifier
	logger   *shared.Logger
}

// NewVerifier creates a verifier using the default crypto provider.
func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{
		provider: presentation.DefaultProvider(),
		backend:  libraryVerifier{},
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = logger
	}
	return v
}

// Verify decodes, authenticates and verifies a hex encoded presentation.
func (v *Verifier) Verify(presentationHex, notaryKeyPEM string) (*Result, error) {
	r, err := v.VerifyReport(presentationHex, notaryKeyPEM)
	if err != nil {
		return nil, err
	}
	return &r.Result, nil
}

// VerifyReport is Verify returning the full report.
func (v *Verifier) VerifyReport(presentationHex, notaryKeyPEM string) (*Report, error) {
	p, err := Decode(presentationHex)
	if err != nil {
		v.logger.WithStage("decode").Debug("Presentation decode failed", zap.Int("hex_length", len(presentationHex)), zap.Error(err))
		return nil, err
	}
	return v.VerifyPresentation(p, notaryKeyPEM)
}

// VerifyPresentation authenticates p against the trusted key and, only if
// that succeeds, verifies it.
func (v *Verifier) VerifyPresentation(p *presentation.Presentation, notaryKeyPEM string) (*Report, error) {
	if err := Authenticate(p, notaryKeyPEM); err != nil {
		log := v.logger.WithStage("authenticate")
		if e, ok := err.(*Error); ok && e.Type == TypeKeyMismatch {
			log.WithAttestation(p.Attestation.Header.ID.String()).Security("Presentation signed by an untrusted key")
		} else {
			log.Debug("Key authentication failed", zap.Error(err))
		}
		return nil, err
	}
	return v.VerifyTranscript(p)
}

// VerifyTranscript runs the protocol verification routine on an already
// authenticated presentation and redacts the transcript it discloses.
func (v *Verifier) VerifyTranscript(p *presentation.Presentation) (*Report, error) {
	start := time.Now()
	out, err := v.backend.Verify(p, v.provider)
	if err != nil {
		v.logger.WithStage("verify").WithAttestation(p.Attestation.Header.ID.String()).
			Security("Presentation rejected", zap.Error(err))
		return nil, newError(ErrVerificationFailed, err)
	}

	r := &Report{
		Result:        Result{Time: out.ConnectionInfo.Time},
		AttestationID: out.Header.ID.String(),
		VerifyingKey:  out.VerifyingKey,
		TLSVersion:    out.ConnectionInfo.Version,
	}
	if out.ServerName != nil {
		r.ServerName = string(*out.ServerName)
	}
	if out.Transcript != nil {
		redacted := Redact(out.Transcript)
		r.Transcript = redacted
		r.Sent = DecodeLossy(redacted.SentUnsafe())
		r.Recv = DecodeLossy(redacted.ReceivedUnsafe())
	}

	v.logger.WithAttestation(r.AttestationID).Debug("Presentation verified",
		zap.Uint64("session_time", r.Time),
		zap.Int("sent_length", len(r.Sent)),
		zap.Int("recv_length", len(r.Recv)),
		zap.Duration("elapsed", time.Since(start)))
	return r, nil
}

var defaultVerifier = &Verifier{provider: presentation.DefaultProvider(), backend: libraryVerifier{}}

func defaults() *Verifier {
	v := *defaultVerifier
	v.logger = logger
	return &v
}

// Verify checks a hex encoded presentation against a PEM encoded notary key
// with the default crypto provider.
func Verify(presentationHex, notaryKeyPEM string) (*Result, error) {
	return defaults().Verify(presentationHex, notaryKeyPEM)
}

// VerifyTranscript verifies an authenticated presentation with the default
// crypto provider. A presentation without a transcript yields empty texts.
func VerifyTranscript(p *presentation.Presentation) (sent, recv string, sessionTime uint64, err error) {
	r, err := defaults().VerifyTranscript(p)
	if err != nil {
		return "", "", 0, err
	}
	return r.Sent, r.Recv, r.Time, nil
}
