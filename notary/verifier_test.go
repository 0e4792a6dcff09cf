package notary

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tlsn-verifier/keys"
	"tlsn-verifier/presentation"
	"tlsn-verifier/presentation/presentationtest"
	"tlsn-verifier/shared"
)

const (
	// A well-formed secp256k1 key unrelated to any fixture.
	unrelatedKeyPEM = "-----BEGIN PUBLIC KEY-----\n" +
		"MDYwEAYHKoZIzj0CAQYFK4EEAAoDIgACWq2qrz9HJbTB32D4WowdXQfnCaBS5eas\n" +
		"rPwHd4svpUo=\n" +
		"-----END PUBLIC KEY-----"
	// A compressed point with an invalid 0x01 prefix.
	invalidPointPEM = "-----BEGIN PUBLIC KEY-----\n" +
		"MDYwEAYHKoZIzj0CAQYFK4EEAAoDIgABm3AS+GGr3gEwbDOWNJTR7oWF/xJ6LBf+\n" +
		"z9KxqnGiW9o=\n" +
		"-----END PUBLIC KEY-----"
)

// spyVerifier counts calls to the verification routine.
type spyVerifier struct {
	calls atomic.Int32
	next  PresentationVerifier
}

func (s *spyVerifier) Verify(p *presentation.Presentation, provider *presentation.CryptoProvider) (*presentation.Output, error) {
	s.calls.Add(1)
	return s.next.Verify(p, provider)
}

func p256KeyPEM(t *testing.T) string {
	t.Helper()
	k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func githubFixture(t *testing.T) *presentationtest.Fixture {
	t.Helper()
	f, err := presentationtest.GitHub()
	require.NoError(t, err)
	return f
}

func TestVerifyGitHubScenario(t *testing.T) {
	f := githubFixture(t)

	res, err := Verify(f.Hex, f.NotaryKeyPEM)
	require.NoError(t, err)

	assert.Equal(t, uint64(1748415894), res.Time)
	assert.Contains(t, res.Sent, "host: raw.githubusercontent.com")
	assert.Contains(t, res.Sent, "XXXXXXXXXXXXXXXXXX")
	assert.Contains(t, res.Recv, "HTTP/1.1 200 OK")
	assert.Contains(t, res.Recv, "Content-Type: text/plain")

	assert.NotContains(t, res.Sent, presentationtest.GitHubToken)
	assert.NotContains(t, res.Recv, presentationtest.GitHubCookie)
	assert.Contains(t, res.Sent, "authorization: token "+strings.Repeat("X", len(presentationtest.GitHubToken))+"\r\n")
}

func TestVerifyUnrelatedKeyMismatch(t *testing.T) {
	f := githubFixture(t)
	spy := &spyVerifier{next: libraryVerifier{}}
	v := NewVerifier(WithBackend(spy))

	res, err := v.Verify(f.Hex, unrelatedKeyPEM)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, "the verifying key does not match the notary key", err.Error())
	assert.True(t, errors.Is(err, ErrKeyMismatch))
	assert.Equal(t, int32(0), spy.calls.Load(), "verification must not run for a mismatched key")
}

func TestVerifyMismatchWithGeneratedKey(t *testing.T) {
	f := githubFixture(t)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherPEM, err := keys.MarshalPEM(&other.PublicKey, false)
	require.NoError(t, err)

	spy := &spyVerifier{next: libraryVerifier{}}
	_, err = NewVerifier(WithBackend(spy)).Verify(f.Hex, otherPEM)
	require.Error(t, err)
	assert.Equal(t, KeyMismatchMessage, err.Error())
	assert.Zero(t, spy.calls.Load())
}

type rejectingVerifier struct{}

func (rejectingVerifier) Verify(*presentation.Presentation, *presentation.CryptoProvider) (*presentation.Output, error) {
	return nil, errors.New("body root mismatch")
}

func TestVerifyLogsSecurityEvents(t *testing.T) {
	f := githubFixture(t)
	id := f.Presentation.Attestation.Header.ID.String()

	tests := []struct {
		name    string
		backend PresentationVerifier
		key     string
		message string
		stage   string
	}{
		{"untrusted key", libraryVerifier{}, unrelatedKeyPEM, "Presentation signed by an untrusted key", "authenticate"},
		{"rejected presentation", rejectingVerifier{}, f.NotaryKeyPEM, "Presentation rejected", "verify"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			v := NewVerifier(WithBackend(tt.backend), WithLogger(&shared.Logger{Logger: zap.New(core)}))

			_, err := v.Verify(f.Hex, tt.key)
			require.Error(t, err)

			events := logs.FilterMessage(tt.message).All()
			require.Len(t, events, 1)
			assert.Equal(t, zap.WarnLevel, events[0].Level)
			fields := events[0].ContextMap()
			assert.Equal(t, true, fields["security_event"])
			assert.Equal(t, id, fields["attestation_id"])
			assert.Equal(t, tt.stage, fields["stage"])
		})
	}
}

func TestVerifyInvalidTrustedKey(t *testing.T) {
	f := githubFixture(t)
	cases := map[string]string{
		"garbage":        "not a key",
		"empty":          "",
		"invalid point":  invalidPointPEM,
		"wrong pem type": strings.Replace(f.NotaryKeyPEM, "PUBLIC KEY", "PRIVATE KEY", 2),
		"p256 key":       p256KeyPEM(t),
	}
	for name, pemText := range cases {
		t.Run(name, func(t *testing.T) {
			spy := &spyVerifier{next: libraryVerifier{}}
			_, err := NewVerifier(WithBackend(spy)).Verify(f.Hex, pemText)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTrustedKey), "got %v", err)
			assert.NotEqual(t, KeyMismatchMessage, err.Error())
			assert.Zero(t, spy.calls.Load())
		})
	}
}

func TestVerifyInvalidHex(t *testing.T) {
	f := githubFixture(t)
	for name, input := range map[string]string{
		"odd length":     f.Hex[:len(f.Hex)-1],
		"non-hex char":   "zz" + f.Hex[2:],
		"embedded space": f.Hex[:10] + " " + f.Hex[11:],
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Verify(input, f.NotaryKeyPEM)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidHexEncoding), "got %v", err)
		})
	}
}

func TestVerifyMalformedPresentation(t *testing.T) {
	f := githubFixture(t)
	for name, input := range map[string]string{
		"empty":     "",
		"truncated": f.Hex[:len(f.Hex)/4*2],
		"trailing":  f.Hex + "00",
		"garbage":   "deadbeef",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Verify(input, f.NotaryKeyPEM)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedPresentation), "got %v", err)
		})
	}
}

func TestVerifyEmbeddedKeyErrors(t *testing.T) {
	t.Run("unsupported algorithm tag", func(t *testing.T) {
		f := githubFixture(t)
		f.Presentation.Attestation.Body.Body.VerifyingKey.Data.Alg = presentation.KeyAlgP256
		f.Reencode()

		spy := &spyVerifier{next: libraryVerifier{}}
		_, err := NewVerifier(WithBackend(spy)).Verify(f.Hex, f.NotaryKeyPEM)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidEmbeddedKey), "got %v", err)
		assert.Zero(t, spy.calls.Load())
	})

	t.Run("not a curve point", func(t *testing.T) {
		f := githubFixture(t)
		bad := make([]byte, 33)
		bad[0] = 0x05
		f.Presentation.Attestation.Body.Body.VerifyingKey.Data.Data = bad
		f.Reencode()

		_, err := Verify(f.Hex, f.NotaryKeyPEM)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidEmbeddedKey), "got %v", err)
	})
}

func TestVerifyAcceptsUncompressedTrustedKey(t *testing.T) {
	f := githubFixture(t)
	uncompressed, err := keys.MarshalPEM(&f.NotaryKey.PublicKey, false)
	require.NoError(t, err)
	require.NotEqual(t, f.NotaryKeyPEM, uncompressed)

	res, err := Verify(f.Hex, uncompressed)
	require.NoError(t, err)
	assert.Equal(t, presentationtest.GitHubTime, res.Time)
}

func TestVerifyTamperedPresentationFails(t *testing.T) {
	t.Run("time", func(t *testing.T) {
		f := githubFixture(t)
		f.Presentation.Attestation.Body.Body.ConnectionInfo.Data.Time++
		f.Reencode()
		_, err := Verify(f.Hex, f.NotaryKeyPEM)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrVerificationFailed), "got %v", err)
	})

	t.Run("signature", func(t *testing.T) {
		f := githubFixture(t)
		f.Presentation.Attestation.Signature.Data[10] ^= 0xff
		f.Reencode()
		_, err := Verify(f.Hex, f.NotaryKeyPEM)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrVerificationFailed), "got %v", err)
	})

	t.Run("disclosed byte", func(t *testing.T) {
		f := githubFixture(t)
		sent := f.Presentation.Transcript.Transcript.SentUnsafe()
		sent[0] = 'P'
		f.Reencode()
		_, err := Verify(f.Hex, f.NotaryKeyPEM)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrVerificationFailed), "got %v", err)
	})
}

func TestVerifyWithoutTranscript(t *testing.T) {
	opts := presentationtest.GitHubOptions()
	opts.OmitTranscript = true
	f, err := presentationtest.Build(opts)
	require.NoError(t, err)

	res, err := Verify(f.Hex, f.NotaryKeyPEM)
	require.NoError(t, err)
	assert.Equal(t, "", res.Sent)
	assert.Equal(t, "", res.Recv)
	assert.Equal(t, presentationtest.GitHubTime, res.Time)
}

func TestVerifyIdempotent(t *testing.T) {
	f := githubFixture(t)
	first, err := Verify(f.Hex, f.NotaryKeyPEM)
	require.NoError(t, err)
	second, err := Verify(f.Hex, f.NotaryKeyPEM)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestVerifyConcurrent(t *testing.T) {
	f := githubFixture(t)
	want, err := Verify(f.Hex, f.NotaryKeyPEM)
	require.NoError(t, err)

	v := NewVerifier()
	var wg sync.WaitGroup
	results := make([]*Result, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = v.Verify(f.Hex, f.NotaryKeyPEM)
		}(i)
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, want, results[i])
	}
}

func TestVerifyReportMetadata(t *testing.T) {
	opts := presentationtest.GitHubOptions()
	opts.ServerName = "raw.githubusercontent.com"
	f, err := presentationtest.Build(opts)
	require.NoError(t, err)

	r, err := NewVerifier(WithProvider(f.Provider())).VerifyReport(f.Hex, f.NotaryKeyPEM)
	require.NoError(t, err)
	assert.Equal(t, "raw.githubusercontent.com", r.ServerName)
	assert.Equal(t, f.Presentation.Attestation.Header.ID.String(), r.AttestationID)
	assert.Equal(t, presentation.TLSv12, r.TLSVersion)
	require.NotNil(t, r.Transcript)
	assert.Equal(t, r.Sent, string(r.Transcript.SentUnsafe()))
}

func TestVerifyTranscriptPackageFunction(t *testing.T) {
	f := githubFixture(t)
	sent, recv, ts, err := VerifyTranscript(f.Presentation)
	require.NoError(t, err)
	assert.Equal(t, presentationtest.GitHubTime, ts)
	assert.Contains(t, sent, "host: raw.githubusercontent.com")
	assert.Contains(t, recv, "HTTP/1.1 200 OK")

	// The caller's presentation is left untouched.
	assert.Contains(t, string(f.Presentation.Transcript.Transcript.SentUnsafe()), "host:")
}

func TestVerifyEthSignature(t *testing.T) {
	opts := presentationtest.GitHubOptions()
	opts.SigAlg = presentation.SigSecp256k1Eth
	opts.HashAlg = presentation.HashKeccak256
	f, err := presentationtest.Build(opts)
	require.NoError(t, err)

	res, err := Verify(f.Hex, f.NotaryKeyPEM)
	require.NoError(t, err)
	assert.Contains(t, res.Recv, "HTTP/1.1 200 OK")
}
