package presentation

import (
	"encoding/binary"
	"errors"
	"math"
	"unicode/utf8"
)

// The wire layout follows the bincode 1.x defaults used by the notary
// tooling: little-endian fixed-width integers, u64 length prefixes, u8 option
// tags and u32 enum variant indices.
//
// Signed and hashed values use BCS instead, which differs only in sequence
// lengths and enum variant indices: both are ULEB128.

var errTruncated = errors.New("unexpected end of input")

type decoder struct {
	buf []byte
	off int
	err error
}

func newDecoder(b []byte) *decoder {
	return &decoder{buf: b}
}

func (d *decoder) fail(msg string, err error) {
	if d.err == nil {
		d.err = &DecodeError{Offset: d.off, Message: msg, Err: err}
	}
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.off
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > d.remaining() {
		d.fail("read past end of buffer", errTruncated)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) u16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (d *decoder) u32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) bool() bool {
	switch v := d.u8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		d.fail("invalid bool", nil)
		return false
	}
}

// usize reads a u64 that must fit a non-negative int.
func (d *decoder) usize() int {
	v := d.u64()
	if v > math.MaxInt32 {
		d.fail("usize out of range", nil)
		return 0
	}
	return int(v)
}

// seqLen reads a sequence length. Every element occupies at least minElem
// bytes, which bounds the allocation by the input size.
func (d *decoder) seqLen(minElem int) int {
	n := d.usize()
	if d.err != nil {
		return 0
	}
	if minElem > 0 && n > d.remaining()/minElem {
		d.fail("sequence length exceeds remaining input", errTruncated)
		return 0
	}
	return n
}

func (d *decoder) bytes() []byte {
	n := d.seqLen(1)
	b := d.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (d *decoder) array(dst []byte) {
	b := d.take(len(dst))
	if b != nil {
		copy(dst, b)
	}
}

func (d *decoder) string() string {
	b := d.bytes()
	if d.err != nil {
		return ""
	}
	if !utf8.Valid(b) {
		d.fail("invalid utf-8 string", nil)
		return ""
	}
	return string(b)
}

// option reads an Option tag and reports whether a value follows.
func (d *decoder) option() bool {
	switch v := d.u8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		d.fail("invalid option tag", nil)
		return false
	}
}

// variant reads an enum variant index and checks it against count.
func (d *decoder) variant(name string, count uint32) uint32 {
	v := d.u32()
	if d.err == nil && v >= count {
		d.fail("unknown "+name+" variant", nil)
	}
	return v
}

func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	if d.remaining() != 0 {
		return &DecodeError{Offset: d.off, Message: "trailing bytes after presentation"}
	}
	return nil
}

// encoder writes the wire layout, or the BCS layout when bcs is set.
type encoder struct {
	buf []byte
	bcs bool
}

// newCanonicalEncoder returns an encoder for the form that hashes and
// signatures are computed over.
func newCanonicalEncoder() *encoder {
	return &encoder{bcs: true}
}

func (e *encoder) uleb128(v uint64) {
	for v >= 0x80 {
		e.buf = append(e.buf, byte(v)|0x80)
		v >>= 7
	}
	e.buf = append(e.buf, byte(v))
}

func (e *encoder) u8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *encoder) u16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

func (e *encoder) u32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *encoder) u64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *encoder) bool(v bool) {
	if v {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

func (e *encoder) usize(v int) {
	e.u64(uint64(v))
}

// seqLen writes the length prefix of a sequence.
func (e *encoder) seqLen(n int) {
	if e.bcs {
		e.uleb128(uint64(n))
		return
	}
	e.u64(uint64(n))
}

func (e *encoder) bytes(b []byte) {
	e.seqLen(len(b))
	e.buf = append(e.buf, b...)
}

func (e *encoder) array(b []byte) {
	e.buf = append(e.buf, b...)
}

func (e *encoder) string(s string) {
	e.bytes([]byte(s))
}

func (e *encoder) option(present bool) {
	e.bool(present)
}

func (e *encoder) variant(v uint32) {
	if e.bcs {
		e.uleb128(uint64(v))
		return
	}
	e.u32(v)
}
