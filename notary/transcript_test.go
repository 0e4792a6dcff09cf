package notary

import (
	"math/rand"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tlsn-verifier/presentation"
	"tlsn-verifier/presentation/presentationtest"
)

func TestDecodeLossy(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"ascii", []byte("GET / HTTP/1.1"), "GET / HTTP/1.1"},
		{"valid multibyte", []byte("caf\xc3\xa9"), "café"},
		{"lone continuation", []byte("a\x80b"), "a�b"},
		{"two invalid bytes", []byte("a\xff\xfeb"), "a��b"},
		{"truncated three byte sequence", []byte("a\xe2\x82X"), "a�X"},
		{"truncated four byte sequence", []byte("\xf0\x9f\x98X"), "�X"},
		{"surrogate", []byte("\xed\xa0\x80"), "���"},
		{"overlong", []byte("\xc0\xaf"), "��"},
		{"trailing lead byte", []byte("ok\xe2"), "ok�"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeLossy(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestRedactDoesNotModifyInput(t *testing.T) {
	full := []byte("secret=hunter2&user=alice")
	pt := presentation.NewPartialTranscript(len(full), 0)
	require.NoError(t, pt.Disclose(presentation.Sent, full, presentation.NewRangeSet(presentation.Range{Start: 15, End: 25})))

	redacted := Redact(pt)
	assert.Equal(t, "XXXXXXXXXXXXXXXuser=alice", string(redacted.SentUnsafe()))
	assert.Equal(t, byte(0), pt.SentUnsafe()[0])
}

// The sentinel positions of the output are exactly the undisclosed
// positions, for random transcripts and random disclosures.
func TestRedactionMatchesDisclosure(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		full := make([]byte, 1+rng.Intn(200))
		for j := range full {
			// Any byte but the sentinel, including invalid UTF-8.
			for full[j] = byte(rng.Intn(256)); full[j] == Sentinel; full[j] = byte(rng.Intn(256)) {
			}
		}
		var ranges []presentation.Range
		for k := rng.Intn(5); k > 0; k-- {
			start := rng.Intn(len(full))
			ranges = append(ranges, presentation.Range{Start: start, End: start + 1 + rng.Intn(len(full)-start)})
		}
		idx := presentation.NewRangeSet(ranges...)

		pt := presentation.NewPartialTranscript(len(full), 0)
		require.NoError(t, pt.Disclose(presentation.Sent, full, idx))
		redacted := Redact(pt).SentUnsafe()

		for j, b := range redacted {
			if idx.Contains(j) {
				assert.Equal(t, full[j], b, "disclosed byte %d changed", j)
			} else {
				assert.Equal(t, Sentinel, b, "undisclosed byte %d leaked", j)
			}
		}

		// Lossy decoding keeps every sentinel and never introduces new ones.
		text := DecodeLossy(redacted)
		want := len(full) - idx.Len()
		got := 0
		for _, r := range text {
			if r == rune(Sentinel) {
				got++
			}
		}
		assert.Equal(t, want, got)
	}
}

func TestRedactionThroughVerify(t *testing.T) {
	opts := presentationtest.GitHubOptions()
	f, err := presentationtest.Build(opts)
	require.NoError(t, err)

	r, err := NewVerifier().VerifyReport(f.Hex, f.NotaryKeyPEM)
	require.NoError(t, err)

	sentAuthed := opts.SentReveal.Union(opts.SentHashReveal)
	for i, b := range []byte(r.Sent) {
		if sentAuthed.Contains(i) {
			assert.Equal(t, opts.Sent[i], b)
		} else {
			assert.Equal(t, Sentinel, b)
		}
	}
	recvAuthed := opts.ReceivedReveal.Union(opts.ReceivedHashReveal)
	for i, b := range []byte(r.Recv) {
		if recvAuthed.Contains(i) {
			assert.Equal(t, opts.Received[i], b)
		} else {
			assert.Equal(t, Sentinel, b)
		}
	}
}
