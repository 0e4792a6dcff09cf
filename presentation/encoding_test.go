package presentation

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSecret() EncoderSecret {
	var s EncoderSecret
	for i := range s.Seed {
		s.Seed[i] = byte(i)
	}
	for i := range s.Delta {
		s.Delta[i] = byte(0xa0 + i)
	}
	return s
}

func TestEncoderLabelsDifferByDelta(t *testing.T) {
	enc := NewEncoder(testSecret())
	idx := NewRangeSet(Range{5, 6})

	zero, err := enc.Encode(Sent, idx, []byte{0x00})
	require.NoError(t, err)
	ones, err := enc.Encode(Sent, idx, []byte{0xff})
	require.NoError(t, err)
	require.Len(t, zero, 8*LabelSize)

	delta := testSecret().Delta
	for bit := 0; bit < 8; bit++ {
		for j := 0; j < LabelSize; j++ {
			assert.Equal(t, zero[bit*LabelSize+j]^delta[j], ones[bit*LabelSize+j])
		}
	}

	// Bit 0 of 0x01 is set, the rest are not.
	one, err := enc.Encode(Sent, idx, []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, ones[:LabelSize], one[:LabelSize])
	assert.Equal(t, zero[LabelSize:], one[LabelSize:])
}

func TestEncoderIsPositional(t *testing.T) {
	enc := NewEncoder(testSecret())
	data := []byte("hello, notary")

	whole, err := enc.Encode(Received, NewRangeSet(Range{0, len(data)}), data)
	require.NoError(t, err)

	// Encoding a sub-range yields the matching slice of the whole encoding.
	part, err := enc.Encode(Received, NewRangeSet(Range{7, 13}), data[7:13])
	require.NoError(t, err)
	assert.Equal(t, whole[7*8*LabelSize:], part)

	// Split ranges concatenate.
	split, err := enc.Encode(Received, NewRangeSet(Range{0, 2}, Range{7, 9}), []byte("heno"))
	require.NoError(t, err)
	want := append(append([]byte(nil), whole[:2*8*LabelSize]...), whole[7*8*LabelSize:9*8*LabelSize]...)
	assert.Equal(t, want, split)

	// Directions use independent streams.
	sent, err := enc.Encode(Sent, NewRangeSet(Range{0, len(data)}), data)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(whole, sent))
}

func TestEncoderRejectsBadInput(t *testing.T) {
	enc := NewEncoder(testSecret())
	_, err := enc.Encode(Sent, NewRangeSet(Range{0, 3}), []byte("ab"))
	assert.Error(t, err)
	_, err = enc.Encode(Sent, NewRangeSet(Range{MaxTranscriptSize, MaxTranscriptSize + 1}), []byte("a"))
	assert.Error(t, err)
}

func TestEncoderZeroLabelsKnownAnswer(t *testing.T) {
	tests := []struct {
		name   string
		secret EncoderSecret
		dir    Direction
		pos    int
		want   string
	}{
		{"zero seed sent", EncoderSecret{}, Sent, 0, "9bf49a6a0755f953811fce125f2683d5"},
		{"zero seed received offset", EncoderSecret{}, Received, 3, "a02a1fa1e6e66d69d89b66255d590247"},
		{"counting seed sent", EncoderSecret{Seed: testSecret().Seed}, Sent, 0, "f231f9ffd17ac65e4405f325d7e940aa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewEncoder(tt.secret)
			labels, err := enc.Encode(tt.dir, NewRangeSet(Range{tt.pos, tt.pos + 1}), []byte{0x00})
			require.NoError(t, err)
			require.Len(t, labels, 8*LabelSize)
			assert.Equal(t, tt.want, hex.EncodeToString(labels[:LabelSize]))
		})
	}
}

func TestOpeningLeafIsDomainSeparated(t *testing.T) {
	h := blake3Hasher{}
	enc := NewEncoder(testSecret())
	o := Opening{Direction: Sent, Idx: NewRangeSet(Range{0, 2}), Blinder: [16]byte{1, 2, 3}}
	leaf, err := o.Leaf(h, enc, []byte("hi"))
	require.NoError(t, err)

	encoding, err := enc.Encode(Sent, o.Idx, []byte("hi"))
	require.NoError(t, err)
	// 256 bytes of labels take a two-byte ULEB128 length.
	msg := append([]byte{}, domainEncodingLeaf...)
	msg = append(msg, 0x80, 0x02)
	msg = append(msg, encoding...)
	msg = append(msg, o.Blinder[:]...)
	assert.Equal(t, h.Hash(msg), leaf)
}
