package protarrow

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/dolthub/swiss"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/grafana/protarrow/pkg/protarrow/schema"
)

// fieldPlan is the decode recipe of one schema field. Plans are immutable
// once built and shared by every batch a Handler converts.
type fieldPlan struct {
	field     schema.Field
	wireType  protowire.Type
	arrowType arrow.DataType
	// def is the proto3 default, typed as Kind.Default returns it. Column
	// builders append it for rows where the field is absent.
	def any
}

// fieldCopy returns a copy of the plan's field that callers may keep.
func (p *fieldPlan) fieldCopy() *schema.Field {
	f := p.field
	return &f
}

var arrowTypes = map[schema.Kind]arrow.DataType{
	schema.KindDouble:   arrow.PrimitiveTypes.Float64,
	schema.KindFloat:    arrow.PrimitiveTypes.Float32,
	schema.KindInt32:    arrow.PrimitiveTypes.Int32,
	schema.KindInt64:    arrow.PrimitiveTypes.Int64,
	schema.KindUint32:   arrow.PrimitiveTypes.Uint32,
	schema.KindUint64:   arrow.PrimitiveTypes.Uint64,
	schema.KindSint32:   arrow.PrimitiveTypes.Int32,
	schema.KindSint64:   arrow.PrimitiveTypes.Int64,
	schema.KindFixed32:  arrow.PrimitiveTypes.Uint32,
	schema.KindFixed64:  arrow.PrimitiveTypes.Uint64,
	schema.KindSfixed32: arrow.PrimitiveTypes.Int32,
	schema.KindSfixed64: arrow.PrimitiveTypes.Int64,
	schema.KindBool:     arrow.FixedWidthTypes.Boolean,
	schema.KindString:   arrow.BinaryTypes.String,
	schema.KindBytes:    arrow.BinaryTypes.Binary,
}

// ArrowType returns the arrow type columns of the given scalar kind are
// built with, or nil if kind is not a scalar.
func ArrowType(kind schema.Kind) arrow.DataType {
	return arrowTypes[kind]
}

func newFieldPlan(f schema.Field) (fieldPlan, error) {
	switch {
	case f.Map:
		return fieldPlan{}, fmt.Errorf("%w: map fields are not supported", ErrUnsupportedFieldKind)
	case f.Repeated:
		return fieldPlan{}, fmt.Errorf("%w: repeated fields are not supported", ErrUnsupportedFieldKind)
	case f.Oneof != "":
		return fieldPlan{}, fmt.Errorf("%w: field is a member of oneof %s", ErrUnsupportedFieldKind, f.Oneof)
	case !f.Kind.IsScalar():
		return fieldPlan{}, fmt.Errorf("%w: %s", ErrUnsupportedFieldKind, f.Kind)
	case f.Number < protowire.MinValidNumber || f.Number > protowire.MaxValidNumber:
		return fieldPlan{}, fmt.Errorf("%w: %d", ErrInvalidFieldNumber, f.Number)
	}

	return fieldPlan{
		field:     f,
		wireType:  f.Kind.WireType(),
		arrowType: ArrowType(f.Kind),
		def:       f.Kind.Default(),
	}, nil
}

// buildPlans walks the schema once and returns the plans in field order
// together with an index from field number to plan position.
func buildPlans(s schema.Schema) ([]fieldPlan, *swiss.Map[protowire.Number, int], error) {
	fields := s.Fields()

	plans := make([]fieldPlan, 0, len(fields))
	byNumber := swiss.NewMap[protowire.Number, int](uint32(len(fields)))
	names := make(map[string]struct{}, len(fields))

	for _, f := range fields {
		p, err := newFieldPlan(f)
		if err != nil {
			return nil, nil, &SchemaError{Schema: s.Name(), Field: f, Err: err}
		}
		if byNumber.Has(f.Number) {
			return nil, nil, &SchemaError{Schema: s.Name(), Field: f, Err: fmt.Errorf("%w: number %d", ErrDuplicateField, f.Number)}
		}
		if _, ok := names[f.Name]; ok {
			return nil, nil, &SchemaError{Schema: s.Name(), Field: f, Err: fmt.Errorf("%w: name %q", ErrDuplicateField, f.Name)}
		}

		names[f.Name] = struct{}{}
		byNumber.Put(f.Number, len(plans))
		plans = append(plans, p)
	}

	return plans, byNumber, nil
}
