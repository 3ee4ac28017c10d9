// Package wire walks the protobuf binary wire format of a single serialized
// message.
//
// A [Reader] yields (field number, wire type) headers followed by their raw
// payloads, in buffer order and without looking ahead. It never interprets
// payloads beyond their framing; turning a payload into a typed value is the
// caller's job.
package wire

import (
	"errors"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrTruncatedVarint is returned when a varint's continuation bits run off
	// the end of the buffer.
	ErrTruncatedVarint = errors.New("truncated varint")

	// ErrVarintOverflow is returned when a varint is longer than 10 bytes.
	ErrVarintOverflow = errors.New("varint overflows 64 bits")

	// ErrMalformedTag is returned for tags whose field number is zero or out
	// of the valid protobuf range.
	ErrMalformedTag = errors.New("malformed tag")

	// ErrUnsupportedWireType is returned for groups and the reserved wire
	// types 6 and 7.
	ErrUnsupportedWireType = errors.New("unsupported wire type")

	// ErrTruncatedBytes is returned when a fixed-width or length-delimited
	// payload extends past the end of the buffer.
	ErrTruncatedBytes = errors.New("truncated payload")
)

// Value is the raw payload of one field occurrence.
//
// Varint, fixed32 and fixed64 payloads are stored in Number (fixed-width
// payloads are decoded little-endian). Length-delimited payloads are stored in
// Bytes, which aliases the buffer given to the Reader.
type Value struct {
	Type   protowire.Type
	Number uint64
	Bytes  []byte
}

// Reader is a cursor over one serialized message. The zero value is an empty
// reader; use [Reader.Reset] to point it at a new buffer.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Reset repositions r at the start of buf so a single Reader can be reused
// across messages.
func (r *Reader) Reset(buf []byte) {
	r.buf = buf
	r.off = 0
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

// EOF reports whether the whole buffer has been consumed.
func (r *Reader) EOF() bool { return r.off >= len(r.buf) }

// ReadTag decodes the next tag header. It returns io.EOF once the cursor has
// reached the end of the buffer.
func (r *Reader) ReadTag() (protowire.Number, protowire.Type, error) {
	if r.EOF() {
		return 0, 0, io.EOF
	}

	v, err := r.readVarint()
	if err != nil {
		return 0, 0, err
	}

	if v>>3 == 0 || v>>3 > uint64(protowire.MaxValidNumber) {
		return 0, 0, fmt.Errorf("%w: field number %d", ErrMalformedTag, v>>3)
	}
	num, typ := protowire.DecodeTag(v)
	return num, typ, nil
}

// ReadValue reads the payload that follows a tag of wire type typ.
func (r *Reader) ReadValue(typ protowire.Type) (Value, error) {
	val := Value{Type: typ}

	switch typ {
	case protowire.VarintType:
		v, err := r.readVarint()
		if err != nil {
			return val, err
		}
		val.Number = v

	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(r.buf[r.off:])
		if n < 0 {
			return val, fmt.Errorf("%w: fixed32 needs 4 bytes, %d remaining", ErrTruncatedBytes, len(r.buf)-r.off)
		}
		r.off += n
		val.Number = uint64(v)

	case protowire.Fixed64Type:
		v, n := protowire.ConsumeFixed64(r.buf[r.off:])
		if n < 0 {
			return val, fmt.Errorf("%w: fixed64 needs 8 bytes, %d remaining", ErrTruncatedBytes, len(r.buf)-r.off)
		}
		r.off += n
		val.Number = v

	case protowire.BytesType:
		length, err := r.readVarint()
		if err != nil {
			return val, err
		}
		remaining := uint64(len(r.buf) - r.off)
		if length > remaining || length > math.MaxInt {
			return val, fmt.Errorf("%w: length %d exceeds %d remaining bytes", ErrTruncatedBytes, length, remaining)
		}
		end := r.off + int(length)
		val.Bytes = r.buf[r.off:end:end]
		r.off = end

	default:
		return val, fmt.Errorf("%w: %s", ErrUnsupportedWireType, TypeName(typ))
	}

	return val, nil
}

// Skip consumes and discards the payload that follows a tag of wire type typ.
func (r *Reader) Skip(typ protowire.Type) error {
	_, err := r.ReadValue(typ)
	return err
}

func (r *Reader) readVarint() (uint64, error) {
	v, n := protowire.ConsumeVarint(r.buf[r.off:])
	if n < 0 {
		if errors.Is(protowire.ParseError(n), io.ErrUnexpectedEOF) {
			return 0, ErrTruncatedVarint
		}
		return 0, ErrVarintOverflow
	}
	r.off += n
	return v, nil
}

// TypeName returns a human-readable name for a wire type.
func TypeName(typ protowire.Type) string {
	switch typ {
	case protowire.VarintType:
		return "varint"
	case protowire.Fixed64Type:
		return "fixed64"
	case protowire.BytesType:
		return "length-delimited"
	case protowire.StartGroupType:
		return "start-group"
	case protowire.EndGroupType:
		return "end-group"
	case protowire.Fixed32Type:
		return "fixed32"
	default:
		return fmt.Sprintf("wire type %d", typ)
	}
}
