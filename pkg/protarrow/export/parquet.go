package export

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"

	"github.com/grafana/protarrow/pkg/protarrow"
	"github.com/grafana/protarrow/pkg/protarrow/schema"
)

// ParquetSchema returns the parquet schema a table of the given columns is
// written with. Every column is required; the protobuf kinds map onto the
// narrowest parquet type and logical type that holds them.
func ParquetSchema(name string, columns []*protarrow.Column) (*parquet.Schema, error) {
	group := make(parquet.Group, len(columns))
	for _, c := range columns {
		node, err := parquetNode(c.Kind())
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", c.Name())
		}
		group[c.Name()] = node
	}
	return parquet.NewSchema(name, group), nil
}

func parquetNode(k schema.Kind) (parquet.Node, error) {
	switch k {
	case schema.KindDouble:
		return parquet.Leaf(parquet.DoubleType), nil
	case schema.KindFloat:
		return parquet.Leaf(parquet.FloatType), nil
	case schema.KindInt32, schema.KindSint32, schema.KindSfixed32:
		return parquet.Int(32), nil
	case schema.KindInt64, schema.KindSint64, schema.KindSfixed64:
		return parquet.Int(64), nil
	case schema.KindUint32, schema.KindFixed32:
		return parquet.Uint(32), nil
	case schema.KindUint64, schema.KindFixed64:
		return parquet.Uint(64), nil
	case schema.KindBool:
		return parquet.Leaf(parquet.BooleanType), nil
	case schema.KindString:
		return parquet.String(), nil
	case schema.KindBytes:
		return parquet.Leaf(parquet.ByteArrayType), nil
	default:
		return nil, fmt.Errorf("kind %s has no parquet mapping", k)
	}
}

// WriteParquet writes t to w as a parquet file with a single row group.
func WriteParquet(w io.Writer, t *protarrow.Table) error {
	name := "message"
	if md := t.Record().Schema().Metadata(); md.FindKey(protarrow.MetadataMessage) >= 0 {
		name = md.Values()[md.FindKey(protarrow.MetadataMessage)]
	}

	ps, err := ParquetSchema(name, t.Columns())
	if err != nil {
		return err
	}

	// Group orders leaf columns by name, so each table column is placed at
	// the index the parquet schema assigned it.
	indexes := make([]int, t.NumColumns())
	for i, c := range t.Columns() {
		leaf, ok := ps.Lookup(c.Name())
		if !ok {
			return fmt.Errorf("column %s missing from parquet schema", c.Name())
		}
		indexes[i] = leaf.ColumnIndex
	}

	rows := make([]parquet.Row, t.NumRows())
	for r := range rows {
		rows[r] = make(parquet.Row, t.NumColumns())
	}
	for i, c := range t.Columns() {
		idx := indexes[i]
		for r := range rows {
			rows[r][idx] = parquetValue(c.Array(), r).Level(0, 0, idx)
		}
	}

	pw := parquet.NewWriter(w, ps)
	if _, err := pw.WriteRows(rows); err != nil {
		_ = pw.Close()
		return errors.Wrap(err, "writing parquet rows")
	}
	return errors.Wrap(pw.Close(), "closing parquet writer")
}

func parquetValue(arr any, i int) parquet.Value {
	switch a := arr.(type) {
	case *array.Float64:
		return parquet.DoubleValue(a.Value(i))
	case *array.Float32:
		return parquet.FloatValue(a.Value(i))
	case *array.Int32:
		return parquet.Int32Value(a.Value(i))
	case *array.Int64:
		return parquet.Int64Value(a.Value(i))
	case *array.Uint32:
		return parquet.Int32Value(int32(a.Value(i)))
	case *array.Uint64:
		return parquet.Int64Value(int64(a.Value(i)))
	case *array.Boolean:
		return parquet.BooleanValue(a.Value(i))
	case *array.String:
		return parquet.ByteArrayValue([]byte(a.Value(i)))
	case *array.Binary:
		return parquet.ByteArrayValue(a.Value(i))
	default:
		panic(fmt.Sprintf("export: unexpected column array %T", arr))
	}
}
