package protarrow

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/bits-and-blooms/bitset"
	"github.com/dolthub/swiss"
	"go.uber.org/atomic"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/grafana/protarrow/pkg/protarrow/schema"
	"github.com/grafana/protarrow/pkg/protarrow/wire"
)

// Keys of the arrow metadata attached to the schemas of converted Tables.
const (
	MetadataMessage     = "protobuf.message"
	MetadataFieldNumber = "protobuf.field_number"
	MetadataFieldKind   = "protobuf.kind"
)

// Handler converts batches of serialized messages of one schema into Tables.
//
// A Handler is immutable once built and safe for concurrent use; independent
// batches may be converted in parallel without coordination.
type Handler struct {
	name     string
	schema   schema.Schema
	plans    []fieldPlan
	byNumber *swiss.Map[protowire.Number, int]

	arrowSchema *arrow.Schema

	cfg     Config
	mem     memory.Allocator
	metrics *convertMetrics

	batches  atomic.Int64
	messages atomic.Int64
}

// HandlerStats counts the work a Handler has done since it was built.
type HandlerStats struct {
	Batches  int64
	Messages int64
}

// NewHandler builds a Handler for s. It fails with a *SchemaError if s
// declares a field that cannot be converted into a column.
//
// Columns are allocated from mem; a nil mem uses memory.DefaultAllocator.
func NewHandler(s schema.Schema, cfg Config, mem memory.Allocator) (*Handler, error) {
	plans, byNumber, err := buildPlans(s)
	if err != nil {
		return nil, err
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	fields := make([]arrow.Field, len(plans))
	for i, p := range plans {
		fields[i] = arrow.Field{
			Name:     p.field.Name,
			Type:     p.arrowType,
			Nullable: false,
			Metadata: arrow.NewMetadata(
				[]string{MetadataFieldNumber, MetadataFieldKind},
				[]string{strconv.Itoa(int(p.field.Number)), p.field.Kind.String()},
			),
		}
	}
	md := arrow.NewMetadata([]string{MetadataMessage}, []string{s.Name()})

	return &Handler{
		name:     s.Name(),
		schema:   s,
		plans:    plans,
		byNumber: byNumber,

		arrowSchema: arrow.NewSchema(fields, &md),

		cfg: cfg,
		mem: mem,
	}, nil
}

// Name returns the name of the message type h converts.
func (h *Handler) Name() string { return h.name }

// Schema returns the schema h was built from.
func (h *Handler) Schema() schema.Schema { return h.schema }

// Config returns the configuration h converts with.
func (h *Handler) Config() Config { return h.cfg }

// ArrowSchema returns the schema of the Tables h produces.
func (h *Handler) ArrowSchema() *arrow.Schema { return h.arrowSchema }

// Stats returns the number of batches and messages h converted successfully.
func (h *Handler) Stats() HandlerStats {
	return HandlerStats{Batches: h.batches.Load(), Messages: h.messages.Load()}
}

// Convert decodes msgs, each one independently serialized message, into a
// Table with one row per message in input order. Fields absent from a message
// hold their proto3 default in that row; a field present more than once
// holds its last value; unknown fields are skipped.
//
// Any decode failure aborts the whole batch with a *WireFormatError naming
// the offending message; no Table is returned in that case. The caller owns
// the returned Table and must Release it.
func (h *Handler) Convert(msgs [][]byte) (*Table, error) {
	start := time.Now()
	t, err := h.convert(msgs)
	if h.metrics != nil {
		h.metrics.observe(len(msgs), time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}

	h.batches.Inc()
	h.messages.Add(int64(len(msgs)))
	return t, nil
}

func (h *Handler) convert(msgs [][]byte) (*Table, error) {
	if h.cfg.MaxBatchSize > 0 && len(msgs) > h.cfg.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d messages, limit is %d", ErrBatchTooLarge, len(msgs), h.cfg.MaxBatchSize)
	}

	builders := make([]columnBuilder, 0, len(h.plans))
	defer func() {
		for _, b := range builders {
			b.release()
		}
	}()
	for _, p := range h.plans {
		b, err := newColumnBuilder(h.mem, p, len(msgs), h.cfg.ValidateUTF8)
		if err != nil {
			return nil, err
		}
		builders = append(builders, b)
	}

	var (
		seen = bitset.New(uint(len(h.plans)))
		r    wire.Reader
	)
	for i, msg := range msgs {
		if limit := uint64(h.cfg.MaxMessageSize); limit > 0 && uint64(len(msg)) > limit {
			return nil, &WireFormatError{Index: i, Err: fmt.Errorf("%w: %d bytes, limit is %d", ErrMessageTooLarge, len(msg), limit)}
		}

		seen.ClearAll()
		r.Reset(msg)
		if err := h.decodeMessage(&r, builders, seen); err != nil {
			err.Index = i
			return nil, err
		}

		for idx, b := range builders {
			if seen.Test(uint(idx)) {
				b.commit()
			} else {
				b.appendDefault()
			}
		}
	}

	arrs := make([]arrow.Array, len(builders))
	for i, b := range builders {
		arrs[i] = b.newArray()
	}
	rec := array.NewRecordBatch(h.arrowSchema, arrs, int64(len(msgs)))
	for _, arr := range arrs {
		arr.Release()
	}

	return newTable(rec, h.plans), nil
}

// decodeMessage walks one message and stages every known field's value into
// its builder. The returned error has every field but Index set.
func (h *Handler) decodeMessage(r *wire.Reader, builders []columnBuilder, seen *bitset.BitSet) *WireFormatError {
	for {
		offset := r.Offset()
		num, typ, err := r.ReadTag()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return &WireFormatError{Offset: offset, Err: err}
		}

		idx, ok := h.byNumber.Get(num)
		if !ok {
			if err := r.Skip(typ); err != nil {
				return &WireFormatError{Offset: offset, Number: num, Err: err}
			}
			continue
		}

		p := &h.plans[idx]
		if typ != p.wireType {
			return &WireFormatError{
				Offset:   offset,
				Field:    p.fieldCopy(),
				Number:   num,
				Expected: p.wireType,
				Actual:   typ,
				Err:      ErrWireTypeMismatch,
			}
		}

		v, err := r.ReadValue(typ)
		if err == nil {
			err = builders[idx].stage(v)
		}
		if err != nil {
			return &WireFormatError{Offset: offset, Field: p.fieldCopy(), Number: num, Err: err}
		}
		seen.Set(uint(idx))
	}
}
