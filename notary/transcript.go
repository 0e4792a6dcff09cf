package notary

import (
	"strings"
	"unicode/utf8"

	"tlsn-verifier/presentation"
)

// Sentinel replaces every undisclosed transcript byte.
const Sentinel byte = 'X'

// PresentationVerifier runs the protocol verification routine.
type PresentationVerifier interface {
	Verify(p *presentation.Presentation, provider *presentation.CryptoProvider) (*presentation.Output, error)
}

type libraryVerifier struct{}

func (libraryVerifier) Verify(p *presentation.Presentation, provider *presentation.CryptoProvider) (*presentation.Output, error) {
	return p.Verify(provider)
}

// Redact returns a copy of t with every undisclosed byte set to Sentinel.
func Redact(t *presentation.PartialTranscript) *presentation.PartialTranscript {
	local := t.Clone()
	local.SetUnauthed(Sentinel)
	return local
}

// DecodeLossy decodes b as UTF-8. Each maximal invalid subsequence becomes
// one U+FFFD, so a truncated multi-byte sequence yields a single
// replacement and never absorbs the ASCII byte that follows it.
func DecodeLossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b) + 8)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			sb.WriteRune(utf8.RuneError)
			b = b[invalidPrefixLen(b):]
			continue
		}
		sb.Write(b[:size])
		b = b[size:]
	}
	return sb.String()
}

// invalidPrefixLen returns how many bytes of b form the longest prefix of a
// well-formed sequence. b is known not to start with a complete one.
func invalidPrefixLen(b []byte) int {
	first := b[0]
	lo, hi := byte(0x80), byte(0xBF)
	var need int
	switch {
	case first >= 0xC2 && first <= 0xDF:
		need = 1
	case first == 0xE0:
		need, lo = 2, 0xA0
	case first == 0xED:
		need, hi = 2, 0x9F
	case first >= 0xE1 && first <= 0xEF:
		need = 2
	case first == 0xF0:
		need, lo = 3, 0x90
	case first == 0xF4:
		need, hi = 3, 0x8F
	case first >= 0xF1 && first <= 0xF3:
		need = 3
	default:
		return 1
	}
	n := 1
	for k := 0; k < need && n < len(b); k++ {
		if c := b[n]; c < lo || c > hi {
			break
		}
		lo, hi = 0x80, 0xBF
		n++
	}
	return n
}
