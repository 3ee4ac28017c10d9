package protarrow

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/grafana/protarrow/pkg/protarrow/schema"
	"github.com/grafana/protarrow/pkg/protarrow/wire"
)

// columnBuilder accumulates the values of one field over a batch.
//
// Values are staged per row: stage may be called any number of times while a
// message is walked (the last call wins) and exactly one of commit or
// appendDefault is called once the message is done. This keeps every column
// at exactly one entry per message.
type columnBuilder interface {
	stage(v wire.Value) error
	commit()
	appendDefault()
	len() int
	newArray() arrow.Array
	release()
}

// appender is the subset of the typed arrow builders the columns use.
type appender[T any] interface {
	array.Builder
	Append(T)
}

type scalarColumn[T any] struct {
	b      appender[T]
	decode func(wire.Value) (T, error)

	zero   T
	staged T
}

func newScalarColumn[T any](b appender[T], capacity int, zero T, decode func(wire.Value) (T, error)) *scalarColumn[T] {
	b.Reserve(capacity)
	return &scalarColumn[T]{b: b, decode: decode, zero: zero, staged: zero}
}

func (c *scalarColumn[T]) stage(v wire.Value) error {
	x, err := c.decode(v)
	if err != nil {
		return err
	}
	c.staged = x
	return nil
}

func (c *scalarColumn[T]) commit() {
	c.b.Append(c.staged)
	c.staged = c.zero
}

func (c *scalarColumn[T]) appendDefault() { c.b.Append(c.zero) }
func (c *scalarColumn[T]) len() int       { return c.b.Len() }

func (c *scalarColumn[T]) newArray() arrow.Array { return c.b.NewArray() }
func (c *scalarColumn[T]) release()              { c.b.Release() }

// utf8Appender appends raw bytes to a string column without converting
// them to a Go string first.
type utf8Appender struct {
	*array.StringBuilder
}

func (a utf8Appender) Append(v []byte) { a.BinaryBuilder.Append(v) }

// newColumnBuilder returns the builder for a plan's kind, sized for capacity
// rows.
func newColumnBuilder(mem memory.Allocator, p fieldPlan, capacity int, validateUTF8 bool) (columnBuilder, error) {
	switch p.field.Kind {
	case schema.KindDouble:
		return newScalarColumn[float64](array.NewFloat64Builder(mem), capacity, p.def.(float64), func(v wire.Value) (float64, error) {
			return math.Float64frombits(v.Number), nil
		}), nil
	case schema.KindFloat:
		return newScalarColumn[float32](array.NewFloat32Builder(mem), capacity, p.def.(float32), func(v wire.Value) (float32, error) {
			return math.Float32frombits(uint32(v.Number)), nil
		}), nil

	case schema.KindInt32, schema.KindSfixed32:
		return newScalarColumn[int32](array.NewInt32Builder(mem), capacity, p.def.(int32), func(v wire.Value) (int32, error) {
			return int32(v.Number), nil
		}), nil
	case schema.KindSint32:
		return newScalarColumn[int32](array.NewInt32Builder(mem), capacity, p.def.(int32), func(v wire.Value) (int32, error) {
			return int32(protowire.DecodeZigZag(v.Number & math.MaxUint32)), nil
		}), nil

	case schema.KindInt64, schema.KindSfixed64:
		return newScalarColumn[int64](array.NewInt64Builder(mem), capacity, p.def.(int64), func(v wire.Value) (int64, error) {
			return int64(v.Number), nil
		}), nil
	case schema.KindSint64:
		return newScalarColumn[int64](array.NewInt64Builder(mem), capacity, p.def.(int64), func(v wire.Value) (int64, error) {
			return protowire.DecodeZigZag(v.Number), nil
		}), nil

	case schema.KindUint32, schema.KindFixed32:
		return newScalarColumn[uint32](array.NewUint32Builder(mem), capacity, p.def.(uint32), func(v wire.Value) (uint32, error) {
			return uint32(v.Number), nil
		}), nil
	case schema.KindUint64, schema.KindFixed64:
		return newScalarColumn[uint64](array.NewUint64Builder(mem), capacity, p.def.(uint64), func(v wire.Value) (uint64, error) {
			return v.Number, nil
		}), nil

	case schema.KindBool:
		return newScalarColumn[bool](array.NewBooleanBuilder(mem), capacity, p.def.(bool), func(v wire.Value) (bool, error) {
			return protowire.DecodeBool(v.Number), nil
		}), nil

	case schema.KindString:
		b := array.NewStringBuilder(mem)
		return newScalarColumn[[]byte](utf8Appender{b}, capacity, []byte(p.def.(string)), func(v wire.Value) ([]byte, error) {
			if validateUTF8 && !utf8.Valid(v.Bytes) {
				return nil, ErrInvalidUTF8
			}
			return v.Bytes, nil
		}), nil
	case schema.KindBytes:
		return newScalarColumn[[]byte](array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary), capacity, p.def.([]byte), func(v wire.Value) ([]byte, error) {
			return v.Bytes, nil
		}), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFieldKind, p.field.Kind)
	}
}
