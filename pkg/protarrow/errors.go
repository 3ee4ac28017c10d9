package protarrow

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/grafana/protarrow/pkg/protarrow/schema"
	"github.com/grafana/protarrow/pkg/protarrow/wire"
)

// Schema errors, wrapped by *SchemaError.
var (
	ErrUnsupportedFieldKind = errors.New("unsupported field kind")
	ErrDuplicateField       = errors.New("duplicate field")
	ErrInvalidFieldNumber   = errors.New("invalid field number")
)

// Decode errors, wrapped by *WireFormatError. The errors of package wire
// (wire.ErrTruncatedVarint, wire.ErrMalformedTag, ...) are wrapped the same
// way.
var (
	ErrWireTypeMismatch = errors.New("wire type mismatch")
	ErrInvalidUTF8      = errors.New("invalid UTF-8 in string field")
	ErrMessageTooLarge  = errors.New("message too large")
)

// ErrBatchTooLarge is returned when a batch holds more messages than the
// configured maximum.
var ErrBatchTooLarge = errors.New("batch too large")

// SchemaError is returned when a handler cannot be built for a schema.
type SchemaError struct {
	Schema string
	Field  schema.Field
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s: field %s: %v", e.Schema, e.Field, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// WireFormatError is returned when one message of a batch cannot be decoded.
// The whole batch fails with it.
type WireFormatError struct {
	// Index is the position of the offending message in the batch.
	Index int
	// Offset is the number of bytes of the message consumed before the
	// failure.
	Offset int

	// Field is set when the failure is attributable to a known field.
	Field *schema.Field
	// Number is the field number of the tag being decoded, if one was read.
	Number protowire.Number

	// Expected and Actual are set for ErrWireTypeMismatch.
	Expected protowire.Type
	Actual   protowire.Type

	Err error
}

func (e *WireFormatError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "message %d: offset %d", e.Index, e.Offset)
	switch {
	case e.Field != nil:
		fmt.Fprintf(&sb, ": field %s", e.Field)
	case e.Number != 0:
		fmt.Fprintf(&sb, ": field number %d", e.Number)
	}
	fmt.Fprintf(&sb, ": %v", e.Err)
	if errors.Is(e.Err, ErrWireTypeMismatch) {
		fmt.Fprintf(&sb, " (expected %s, got %s)", wire.TypeName(e.Expected), wire.TypeName(e.Actual))
	}
	return sb.String()
}

func (e *WireFormatError) Unwrap() error { return e.Err }
