package protarrow

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/grafana/protarrow/pkg/protarrow/schema"
)

// Table is the result of converting one batch: one column per schema field,
// all of the same length, in schema field order.
type Table struct {
	rec     arrow.RecordBatch
	columns []*Column
	byName  map[string]*Column
}

func newTable(rec arrow.RecordBatch, plans []fieldPlan) *Table {
	t := &Table{
		rec:     rec,
		columns: make([]*Column, len(plans)),
		byName:  make(map[string]*Column, len(plans)),
	}
	for i, p := range plans {
		c := &Column{field: p.field, arr: rec.Column(i)}
		t.columns[i] = c
		t.byName[p.field.Name] = c
	}
	return t
}

// NumRows returns the number of rows, equal to the number of messages in the
// converted batch.
func (t *Table) NumRows() int { return int(t.rec.NumRows()) }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.columns) }

// Column returns the column of the named field, or nil if the schema has no
// such field.
func (t *Table) Column(name string) *Column { return t.byName[name] }

// Columns returns every column in schema field order.
func (t *Table) Columns() []*Column { return t.columns }

// Record returns the underlying arrow record. It stays valid until the Table
// is released; callers that keep it longer must Retain it.
func (t *Table) Record() arrow.RecordBatch { return t.rec }

// Release releases the memory held by the Table. Columns and records
// obtained from it must not be used afterwards.
func (t *Table) Release() { t.rec.Release() }

// Column is one converted field.
type Column struct {
	field schema.Field
	arr   arrow.Array
}

// Name returns the name of the field the column holds.
func (c *Column) Name() string { return c.field.Name }

// Field returns the schema field the column was decoded from.
func (c *Column) Field() schema.Field { return c.field }

// Kind returns the scalar kind of the column's values.
func (c *Column) Kind() schema.Kind { return c.field.Kind }

// Len returns the number of values, one per converted message.
func (c *Column) Len() int { return c.arr.Len() }

// Array returns the arrow array holding the column's values.
func (c *Column) Array() arrow.Array { return c.arr }

// Value returns the value at row i, typed as its kind's Default.
func (c *Column) Value(i int) any {
	switch arr := c.arr.(type) {
	case *array.Float64:
		return arr.Value(i)
	case *array.Float32:
		return arr.Value(i)
	case *array.Int32:
		return arr.Value(i)
	case *array.Int64:
		return arr.Value(i)
	case *array.Uint32:
		return arr.Value(i)
	case *array.Uint64:
		return arr.Value(i)
	case *array.Boolean:
		return arr.Value(i)
	// String and binary values alias the array's memory.
	case *array.String:
		return strings.Clone(arr.Value(i))
	case *array.Binary:
		return append([]byte{}, arr.Value(i)...)
	default:
		panic(fmt.Sprintf("protarrow: unexpected column array %T", c.arr))
	}
}

// Values returns every value of the column in row order.
func (c *Column) Values() []any {
	out := make([]any, c.Len())
	for i := range out {
		out[i] = c.Value(i)
	}
	return out
}
