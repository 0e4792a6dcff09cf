package presentation_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tlsn-verifier/presentation"
	"tlsn-verifier/presentation/presentationtest"
)

func build(t *testing.T, opts presentationtest.Options) *presentationtest.Fixture {
	t.Helper()
	f, err := presentationtest.Build(opts)
	require.NoError(t, err)
	return f
}

func verifyErrorType(t *testing.T, err error) presentation.VerifyErrorType {
	t.Helper()
	var ve *presentation.VerifyError
	require.True(t, errors.As(err, &ve), "not a VerifyError: %v", err)
	return ve.Type
}

func TestDecodeRoundTrip(t *testing.T) {
	opts := presentationtest.GitHubOptions()
	opts.ServerName = "raw.githubusercontent.com"
	f := build(t, opts)

	p, err := presentation.Decode(f.Bytes)
	require.NoError(t, err)
	assert.Equal(t, f.Bytes, p.Encode())
	assert.Equal(t, f.Presentation.Attestation.Header, p.Attestation.Header)
	assert.Equal(t, presentation.ServerName("raw.githubusercontent.com"), p.Identity.Name)
	assert.Equal(t, f.Presentation.Transcript.Transcript.SentAuthed(), p.Transcript.Transcript.SentAuthed())
}

func TestDecodeRejectsEveryTruncation(t *testing.T) {
	f := build(t, presentationtest.GitHubOptions())
	for n := 0; n < len(f.Bytes); n++ {
		_, err := presentation.Decode(f.Bytes[:n])
		require.Error(t, err, "prefix of %d bytes decoded", n)
		var de *presentation.DecodeError
		require.True(t, errors.As(err, &de))
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	f := build(t, presentationtest.GitHubOptions())
	_, err := presentation.Decode(append(f.Bytes, 0))
	assert.Error(t, err)
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	f := build(t, presentationtest.GitHubOptions())
	f.Presentation.Attestation.Header.Version = 1
	f.Reencode()
	_, err := presentation.Decode(f.Bytes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported attestation version")
}

func TestDecodeRejectsBadOptionTag(t *testing.T) {
	opts := presentationtest.GitHubOptions()
	opts.OmitTranscript = true
	f := build(t, opts)
	// The last byte is the transcript option tag.
	b := append([]byte(nil), f.Bytes...)
	b[len(b)-1] = 2
	_, err := presentation.Decode(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid option tag")
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*presentationtest.Options)
	}{
		{"sha256 k256", func(o *presentationtest.Options) {}},
		{"blake3", func(o *presentationtest.Options) { o.HashAlg = presentation.HashBLAKE3 }},
		{"keccak eth", func(o *presentationtest.Options) {
			o.HashAlg = presentation.HashKeccak256
			o.SigAlg = presentation.SigSecp256k1Eth
		}},
		{"with identity", func(o *presentationtest.Options) { o.ServerName = "raw.githubusercontent.com" }},
		{"hash commitments only", func(o *presentationtest.Options) {
			o.SentHashReveal = o.SentReveal
			o.SentReveal = nil
			o.ReceivedHashReveal = o.ReceivedHashReveal.Union(o.ReceivedReveal)
			o.ReceivedReveal = nil
		}},
		{"nothing disclosed", func(o *presentationtest.Options) {
			o.SentReveal, o.ReceivedReveal = nil, nil
			o.SentHashReveal, o.ReceivedHashReveal = nil, nil
		}},
		{"no transcript", func(o *presentationtest.Options) { o.OmitTranscript = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := presentationtest.GitHubOptions()
			tt.mutate(&opts)
			f := build(t, opts)

			p, err := presentation.Decode(f.Bytes)
			require.NoError(t, err)
			out, err := p.Verify(f.Provider())
			require.NoError(t, err)

			assert.Equal(t, presentationtest.GitHubTime, out.ConnectionInfo.Time)
			assert.Equal(t, uint32(len(opts.Sent)), out.ConnectionInfo.TranscriptLength.Sent)
			if opts.ServerName != "" {
				require.NotNil(t, out.ServerName)
				assert.Equal(t, opts.ServerName, string(*out.ServerName))
			} else {
				assert.Nil(t, out.ServerName)
			}
			if opts.OmitTranscript {
				assert.Nil(t, out.Transcript)
				return
			}
			require.NotNil(t, out.Transcript)
			assert.True(t, out.Transcript.SentAuthed().Equal(opts.SentReveal.Union(opts.SentHashReveal)))
			for _, r := range out.Transcript.SentAuthed() {
				assert.Equal(t, opts.Sent[r.Start:r.End], out.Transcript.SentUnsafe()[r.Start:r.End])
			}
		})
	}
}

func TestVerifyOutputIsACopy(t *testing.T) {
	f := build(t, presentationtest.GitHubOptions())
	out, err := f.Presentation.Verify(nil)
	require.NoError(t, err)
	out.Transcript.SetUnauthed('X')
	assert.NotEqual(t, out.Transcript.SentUnsafe(), f.Presentation.Transcript.Transcript.SentUnsafe())
}

func TestVerifyRejects(t *testing.T) {
	tests := []struct {
		name   string
		opts   func(*presentationtest.Options)
		mutate func(*presentation.Presentation)
		want   presentation.VerifyErrorType
	}{
		{
			name:   "bad signature",
			mutate: func(p *presentation.Presentation) { p.Attestation.Signature.Data[0] ^= 1 },
			want:   presentation.VerifyErrorSignature,
		},
		{
			name:   "unknown signature algorithm",
			mutate: func(p *presentation.Presentation) { p.Attestation.Signature.Alg = presentation.SigSecp256r1 },
			want:   presentation.VerifyErrorProvider,
		},
		{
			name: "signature algorithm does not fit key",
			mutate: func(p *presentation.Presentation) {
				p.Attestation.Body.Body.VerifyingKey.Data.Alg = presentation.KeyAlgP256
			},
			want: presentation.VerifyErrorAttestation,
		},
		{
			name: "body field changed",
			mutate: func(p *presentation.Presentation) {
				p.Attestation.Body.Body.ConnectionInfo.Data.TranscriptLength.Received++
			},
			want: presentation.VerifyErrorBody,
		},
		{
			name: "plaintext hash secret wrong",
			mutate: func(p *presentation.Presentation) {
				p.Transcript.HashSecrets[0].Blinder[0] ^= 1
			},
			want: presentation.VerifyErrorTranscript,
		},
		{
			name: "disclosed byte changed",
			mutate: func(p *presentation.Presentation) {
				p.Transcript.Transcript.ReceivedUnsafe()[0] ^= 1
			},
			want: presentation.VerifyErrorTranscript,
		},
		{
			name: "encoding opening dropped",
			mutate: func(p *presentation.Presentation) {
				p.Transcript.EncodingProof.Openings = p.Transcript.EncodingProof.Openings[1:]
			},
			want: presentation.VerifyErrorTranscript,
		},
		{
			name: "server name not in certificate",
			opts: func(o *presentationtest.Options) { o.ServerName = "raw.githubusercontent.com" },
			mutate: func(p *presentation.Presentation) {
				p.Identity.Name = "example.com"
			},
			want: presentation.VerifyErrorIdentity,
		},
		{
			name: "certificate opening changed",
			opts: func(o *presentationtest.Options) { o.ServerName = "raw.githubusercontent.com" },
			mutate: func(p *presentation.Presentation) {
				p.Identity.Opening.Blinder[0] ^= 1
			},
			want: presentation.VerifyErrorIdentity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := presentationtest.GitHubOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			f := build(t, opts)
			tt.mutate(f.Presentation)
			f.Reencode()

			p, err := presentation.Decode(f.Bytes)
			require.NoError(t, err)
			_, err = p.Verify(f.Provider())
			require.Error(t, err)
			assert.Equal(t, tt.want, verifyErrorType(t, err), "got %v", err)
		})
	}
}

func TestVerifyIdentityNeedsTrustedRoot(t *testing.T) {
	opts := presentationtest.GitHubOptions()
	opts.ServerName = "raw.githubusercontent.com"
	f := build(t, opts)

	_, err := f.Presentation.Verify(presentation.DefaultProvider())
	require.Error(t, err)
	assert.Equal(t, presentation.VerifyErrorIdentity, verifyErrorType(t, err))
}
