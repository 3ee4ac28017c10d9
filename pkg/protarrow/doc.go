// Package protarrow converts batches of serialized protobuf messages into
// columnar arrow tables without decoding individual messages into Go values.
//
// A [Handler] is built once per message schema. Building walks the schema and
// derives, for every field, its expected wire type, its arrow type and its
// proto3 default. Converting a batch then walks each message's tag/value
// framing and appends payloads straight into typed arrow builders:
//
//	pool := protarrow.NewPool(cfg, memory.DefaultAllocator, logger, reg)
//	h, err := pool.GetForDescriptor(md)
//	...
//	table, err := h.Convert(payloads)
//	...
//	defer table.Release()
//	ids := table.Column("id")
//
// Only singular scalar fields are supported. Fields missing from a message
// take their proto3 default in that message's row, repeated occurrences of a
// field keep the last value, and unknown fields are skipped.
package protarrow
