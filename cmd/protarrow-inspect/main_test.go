package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kingpin/v2"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/grafana/protarrow/pkg/protarrow/envelope"
)

const eventSchema = `
name: example.Event
fields:
  - {number: 1, name: id, kind: int64}
  - {number: 2, name: payload, kind: bytes}
  - {number: 3, name: source, kind: string}
`

func event(id int64, source string) []byte {
	b := protowire.AppendTag(nil, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(id))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	return protowire.AppendString(b, source)
}

func writeFile(t *testing.T, name string, b []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func parseInputFlags(t *testing.T, args ...string) *inputFlags {
	t.Helper()
	app := kingpin.New("test", "")
	in := addInputFlags(app)
	app.Command("noop", "")
	_, err := app.Parse(append(args, "noop"))
	require.NoError(t, err)
	return in
}

func TestInputFlags_Convert(t *testing.T) {
	schemaFile := writeFile(t, "schema.yaml", []byte(eventSchema))

	for _, tc := range []struct {
		framing string
		data    []byte
		rows    int
	}{
		{framing: framingDelimited, data: envelope.AppendDelimited(nil, event(1, "a"), event(2, "b")), rows: 2},
		{framing: framingEnvelope, data: envelope.AppendBatch(nil, 1, event(1, "a"), event(2, "b"), event(3, "c")), rows: 3},
		{framing: framingSingle, data: event(7, "x"), rows: 1},
	} {
		t.Run(tc.framing, func(t *testing.T) {
			in := parseInputFlags(t, "--schema-file", schemaFile, "--framing", tc.framing)
			h, err := in.handler()
			require.NoError(t, err)
			require.Equal(t, "example.Event", h.Name())

			table, size, err := in.convert(h, writeFile(t, "input", tc.data))
			require.NoError(t, err)
			defer table.Release()

			require.Equal(t, len(tc.data), size)
			require.Equal(t, tc.rows, table.NumRows())
			require.Equal(t, []byte{}, table.Column("payload").Value(0))
		})
	}
}

func TestInputFlags_InvalidEnvelopeField(t *testing.T) {
	schemaFile := writeFile(t, "schema.yaml", []byte(eventSchema))
	input := writeFile(t, "input", envelope.AppendBatch(nil, 1, event(1, "a")))

	for _, field := range []string{"0", "-1", "536870912"} {
		t.Run(field, func(t *testing.T) {
			in := parseInputFlags(t, "--schema-file", schemaFile, "--framing", framingEnvelope, "--envelope-field", field)
			_, _, err := in.readMessages(input)
			require.ErrorContains(t, err, "invalid --envelope-field")
		})
	}
}

func TestInputFlags_Config(t *testing.T) {
	in := parseInputFlags(t)
	cfg, err := in.config()
	require.NoError(t, err)
	require.False(t, cfg.ValidateUTF8)

	configFile := writeFile(t, "config.yaml", []byte("protarrow:\n  validate_utf8: true\n  max_batch_size: 10\n"))
	in = parseInputFlags(t, "--config.file", configFile)
	cfg, err = in.config()
	require.NoError(t, err)
	require.True(t, cfg.ValidateUTF8)
	require.Equal(t, 10, cfg.MaxBatchSize)

	configFile = writeFile(t, "invalid.yaml", []byte("protarrow:\n  max_batch_size: -1\n"))
	in = parseInputFlags(t, "--config.file", configFile)
	_, err = in.config()
	require.Error(t, err)
}

func TestInputFlags_SchemaRequired(t *testing.T) {
	in := parseInputFlags(t)
	_, err := in.handler()
	require.ErrorContains(t, err, "--schema-file")
}

func TestFormatValue(t *testing.T) {
	require.Equal(t, "0x0102", formatValue([]byte{1, 2}))
	require.Equal(t, `"a\n"`, formatValue("a\n"))
	require.Equal(t, "-3", formatValue(int32(-3)))
	require.Equal(t, "true", formatValue(true))
}
