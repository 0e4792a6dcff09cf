package presentation

import "fmt"

// Direction of a transcript stream.
type Direction uint32

const (
	Sent Direction = iota
	Received
)

func (d Direction) String() string {
	if d == Sent {
		return "sent"
	}
	return "received"
}

func decodeDirection(d *decoder) Direction {
	return Direction(d.variant("direction", 2))
}

// MaxTranscriptSize bounds the declared length of each transcript direction.
const MaxTranscriptSize = 1 << 24

// PartialTranscript holds the sent and received streams of a session together
// with the indices that were disclosed. Bytes outside the authenticated
// indices are zero until SetUnauthed overwrites them.
type PartialTranscript struct {
	sent           []byte
	received       []byte
	sentAuthed     RangeSet
	receivedAuthed RangeSet
}

// NewPartialTranscript returns an empty partial transcript of the given
// lengths with nothing disclosed.
func NewPartialTranscript(sentLen, receivedLen int) *PartialTranscript {
	return &PartialTranscript{
		sent:           make([]byte, sentLen),
		received:       make([]byte, receivedLen),
		sentAuthed:     RangeSet{},
		receivedAuthed: RangeSet{},
	}
}

// Disclose copies data from a full stream into the transcript and marks the
// indices in idx as authenticated.
func (t *PartialTranscript) Disclose(dir Direction, full []byte, idx RangeSet) error {
	buf := t.buffer(dir)
	if idx.End() > len(buf) || idx.End() > len(full) {
		return fmt.Errorf("%s index %s out of bounds", dir, idx)
	}
	for _, r := range idx {
		copy(buf[r.Start:r.End], full[r.Start:r.End])
	}
	if dir == Sent {
		t.sentAuthed = t.sentAuthed.Union(idx)
	} else {
		t.receivedAuthed = t.receivedAuthed.Union(idx)
	}
	return nil
}

func (t *PartialTranscript) buffer(dir Direction) []byte {
	if dir == Sent {
		return t.sent
	}
	return t.received
}

func (t *PartialTranscript) LenSent() int     { return len(t.sent) }
func (t *PartialTranscript) LenReceived() int { return len(t.received) }

func (t *PartialTranscript) SentAuthed() RangeSet     { return t.sentAuthed }
func (t *PartialTranscript) ReceivedAuthed() RangeSet { return t.receivedAuthed }

// Authed returns the disclosed indices of one direction.
func (t *PartialTranscript) Authed(dir Direction) RangeSet {
	if dir == Sent {
		return t.sentAuthed
	}
	return t.receivedAuthed
}

// SentUnsafe returns the sent buffer including undisclosed positions.
func (t *PartialTranscript) SentUnsafe() []byte { return t.sent }

// ReceivedUnsafe returns the received buffer including undisclosed positions.
func (t *PartialTranscript) ReceivedUnsafe() []byte { return t.received }

// Slice returns the bytes of idx in one direction, concatenated.
func (t *PartialTranscript) Slice(dir Direction, idx RangeSet) ([]byte, error) {
	buf := t.buffer(dir)
	if idx.End() > len(buf) {
		return nil, fmt.Errorf("%s index %s out of bounds", dir, idx)
	}
	out := make([]byte, 0, idx.Len())
	for _, r := range idx {
		out = append(out, buf[r.Start:r.End]...)
	}
	return out, nil
}

// SetUnauthed overwrites every undisclosed byte in both directions with b.
func (t *PartialTranscript) SetUnauthed(b byte) {
	fillUnauthed(t.sent, t.sentAuthed, b)
	fillUnauthed(t.received, t.receivedAuthed, b)
}

func fillUnauthed(buf []byte, authed RangeSet, b byte) {
	pos := 0
	for _, r := range authed {
		for i := pos; i < r.Start && i < len(buf); i++ {
			buf[i] = b
		}
		pos = r.End
	}
	for i := pos; i < len(buf); i++ {
		buf[i] = b
	}
}

// Clone returns a deep copy.
func (t *PartialTranscript) Clone() *PartialTranscript {
	return &PartialTranscript{
		sent:           append([]byte(nil), t.sent...),
		received:       append([]byte(nil), t.received...),
		sentAuthed:     append(RangeSet{}, t.sentAuthed...),
		receivedAuthed: append(RangeSet{}, t.receivedAuthed...),
	}
}

// The serialized form carries only the disclosed bytes.
func decodePartialTranscript(d *decoder) *PartialTranscript {
	sentData := d.bytes()
	recvData := d.bytes()
	sentIdx := decodeRangeSet(d)
	recvIdx := decodeRangeSet(d)
	sentTotal := d.usize()
	recvTotal := d.usize()
	if d.err != nil {
		return nil
	}
	if sentTotal > MaxTranscriptSize || recvTotal > MaxTranscriptSize {
		d.fail("transcript length exceeds maximum", nil)
		return nil
	}
	if len(sentData) != sentIdx.Len() || len(recvData) != recvIdx.Len() {
		d.fail("disclosed data length does not match its index", nil)
		return nil
	}
	if sentIdx.End() > sentTotal || recvIdx.End() > recvTotal {
		d.fail("disclosed index exceeds transcript length", nil)
		return nil
	}
	t := NewPartialTranscript(sentTotal, recvTotal)
	expand(t.sent, sentData, sentIdx)
	expand(t.received, recvData, recvIdx)
	t.sentAuthed = sentIdx
	t.receivedAuthed = recvIdx
	return t
}

func expand(dst, packed []byte, idx RangeSet) {
	off := 0
	for _, r := range idx {
		off += copy(dst[r.Start:r.End], packed[off:off+r.Len()])
	}
}

func (t *PartialTranscript) encode(e *encoder) {
	sent, _ := t.Slice(Sent, t.sentAuthed)
	recv, _ := t.Slice(Received, t.receivedAuthed)
	e.bytes(sent)
	e.bytes(recv)
	t.sentAuthed.encode(e)
	t.receivedAuthed.encode(e)
	e.usize(len(t.sent))
	e.usize(len(t.received))
}
