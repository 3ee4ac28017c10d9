// Package envelope extracts batches of serialized messages from the framings
// they usually travel in: a repeated bytes field of an enclosing message, or
// a stream of varint length-prefixed records.
package envelope

import (
	"io"

	"github.com/pkg/errors"
	"github.com/richardartoul/molecule"
	"github.com/richardartoul/molecule/src/codec"
	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrFieldNotBytes  = errors.New("envelope field is not length-delimited")
	ErrRecordTooLarge = errors.New("record exceeds maximum size")
	ErrTruncated      = errors.New("truncated record")
)

// SplitBatch returns the payloads of every occurrence of field in the
// envelope message buf, in wire order. Other fields are ignored. The returned
// slices alias buf.
func SplitBatch(buf []byte, field int32) ([][]byte, error) {
	var msgs [][]byte
	err := molecule.MessageEach(codec.NewBuffer(buf), func(fieldNum int32, value molecule.Value) (bool, error) {
		if fieldNum != field {
			return true, nil
		}
		if value.WireType != codec.WireBytes {
			return false, errors.Wrapf(ErrFieldNotBytes, "field %d has wire type %d", field, value.WireType)
		}
		data, err := value.AsBytesUnsafe()
		if err != nil {
			return false, err
		}
		msgs = append(msgs, data)
		return true, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "splitting batch envelope")
	}
	return msgs, nil
}

// SplitDelimited splits buf into varint length-prefixed records. A maxSize of
// zero or less disables the size check. The returned slices alias buf.
func SplitDelimited(buf []byte, maxSize int) ([][]byte, error) {
	var (
		msgs [][]byte
		off  int
	)
	for off < len(buf) {
		size, n := protowire.ConsumeVarint(buf[off:])
		if n < 0 {
			return nil, errors.Wrapf(ErrTruncated, "record %d: offset %d: length prefix", len(msgs), off)
		}
		if maxSize > 0 && size > uint64(maxSize) {
			return nil, errors.Wrapf(ErrRecordTooLarge, "record %d: %d > %d bytes", len(msgs), size, maxSize)
		}
		off += n
		if size > uint64(len(buf)-off) {
			return nil, errors.Wrapf(ErrTruncated, "record %d: offset %d: want %d bytes, have %d", len(msgs), off, size, len(buf)-off)
		}
		end := off + int(size)
		msgs = append(msgs, buf[off:end:end])
		off = end
	}
	return msgs, nil
}

// ReadDelimited reads r to the end and splits it into varint length-prefixed
// records.
func ReadDelimited(r io.Reader, maxSize int) ([][]byte, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading delimited records")
	}
	return SplitDelimited(buf, maxSize)
}

// AppendDelimited appends msgs to b, each prefixed with its varint length.
func AppendDelimited(b []byte, msgs ...[]byte) []byte {
	for _, m := range msgs {
		b = protowire.AppendBytes(b, m)
	}
	return b
}

// WriteDelimited writes msgs to w as varint length-prefixed records.
func WriteDelimited(w io.Writer, msgs ...[]byte) error {
	if _, err := w.Write(AppendDelimited(nil, msgs...)); err != nil {
		return errors.Wrap(err, "writing delimited records")
	}
	return nil
}

// AppendBatch appends one occurrence of field per message to b, producing an
// envelope that SplitBatch reverses.
func AppendBatch(b []byte, field int32, msgs ...[]byte) []byte {
	for _, m := range msgs {
		b = protowire.AppendTag(b, protowire.Number(field), protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}
	return b
}
