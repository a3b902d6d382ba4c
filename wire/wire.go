// Package wire implements the binary framing for the replicated world:
// message tags and little-endian primitive encoding matching §6 of the
// protocol specification byte-for-byte, so a non-Go peer speaking the
// same wire format can interoperate.
package wire

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/hearthcode/netplay/vecmath"
)

// Tag identifies the payload that follows it on the wire. Values are
// stable within a build; only the ordering below is canonical.
type Tag uint8

const (
	TagTimestamp Tag = iota + 1
	TagCreateStaticObjects
	TagCreateGameObject
	TagCreateClientObject
	TagDestroyGameObject
	TagUpdateGameObject
	TagClientInput
	TagAckReceipt
)

// ShapeNone marks "no collider" in a serialized collider record.
const ShapeNone int32 = -1

var errShortRead = errors.New("wire: short read")

// Writer accumulates a single outbound message. Zero value is ready to use.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{buf: make([]byte, 0, 64)} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Tag(t Tag) { w.buf = append(w.buf, byte(t)) }

func (w *Writer) U8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

func (w *Writer) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) I32(v int32) { w.U32(uint32(v)) }

func (w *Writer) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) F32(v float32) { w.U32(math.Float32bits(v)) }

func (w *Writer) Vec3(v vecmath.Vec3) {
	w.F32(v.X)
	w.F32(v.Y)
	w.F32(v.Z)
}

func (w *Writer) Raw(b []byte) { w.buf = append(w.buf, b...) }

// Reader consumes a single inbound message.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// Remaining reports how many unread bytes are left in the message.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, errShortRead
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) Tag() (Tag, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return Tag(b[0]), nil
}

// PeekTag reports the next tag without consuming it.
func (r *Reader) PeekTag() (Tag, bool) {
	if r.Remaining() < 1 {
		return 0, false
	}
	return Tag(r.buf[r.pos]), true
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) Bool() (bool, error) {
	v, err := r.U8()
	return v != 0, err
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

func (r *Reader) U64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) F32() (float32, error) {
	v, err := r.U32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *Reader) Vec3() (vecmath.Vec3, error) {
	x, err := r.F32()
	if err != nil {
		return vecmath.Vec3{}, err
	}
	y, err := r.F32()
	if err != nil {
		return vecmath.Vec3{}, err
	}
	z, err := r.F32()
	if err != nil {
		return vecmath.Vec3{}, err
	}
	return vecmath.Vec3{X: x, Y: y, Z: z}, nil
}
