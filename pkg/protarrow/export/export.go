// Package export writes converted tables out in standard columnar formats.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/pkg/errors"

	"github.com/grafana/protarrow/pkg/protarrow"
)

// Format is an output file format.
type Format string

const (
	FormatArrow   Format = "arrow"
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

// Formats lists every supported format.
var Formats = []Format{FormatArrow, FormatParquet, FormatCSV}

func (f Format) String() string { return string(f) }

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Write writes t to w in format f.
func Write(w io.Writer, f Format, t *protarrow.Table, mem memory.Allocator) error {
	switch f {
	case FormatArrow:
		return WriteIPC(w, t, mem)
	case FormatParquet:
		return WriteParquet(w, t)
	case FormatCSV:
		return WriteCSV(w, t)
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

// WriteIPC writes t to w as an arrow IPC stream holding a single record
// batch. The schema metadata, including the protobuf field numbers and kinds,
// is preserved.
func WriteIPC(w io.Writer, t *protarrow.Table, mem memory.Allocator) error {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	rec := t.Record()

	iw := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err := iw.Write(rec); err != nil {
		_ = iw.Close()
		return errors.Wrap(err, "writing arrow record")
	}
	return errors.Wrap(iw.Close(), "closing arrow stream")
}

// WriteCSV writes t to w as CSV with a header row. Bytes columns are base64
// encoded.
func WriteCSV(w io.Writer, t *protarrow.Table) error {
	rec := t.Record()

	cw := csv.NewWriter(w, rec.Schema(), csv.WithHeader(true))
	if err := cw.Write(rec); err != nil {
		return errors.Wrap(err, "writing csv")
	}
	if err := cw.Flush(); err != nil {
		return errors.Wrap(err, "flushing csv")
	}
	return errors.Wrap(cw.Error(), "writing csv")
}
