package schema_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/grafana/protarrow/pkg/protarrow/internal/testproto"
	"github.com/grafana/protarrow/pkg/protarrow/schema"
)

func TestKind_WireType(t *testing.T) {
	for kind, expect := range map[schema.Kind]protowire.Type{
		schema.KindDouble:   protowire.Fixed64Type,
		schema.KindFloat:    protowire.Fixed32Type,
		schema.KindInt32:    protowire.VarintType,
		schema.KindInt64:    protowire.VarintType,
		schema.KindUint32:   protowire.VarintType,
		schema.KindUint64:   protowire.VarintType,
		schema.KindSint32:   protowire.VarintType,
		schema.KindSint64:   protowire.VarintType,
		schema.KindFixed32:  protowire.Fixed32Type,
		schema.KindFixed64:  protowire.Fixed64Type,
		schema.KindSfixed32: protowire.Fixed32Type,
		schema.KindSfixed64: protowire.Fixed64Type,
		schema.KindBool:     protowire.VarintType,
		schema.KindString:   protowire.BytesType,
		schema.KindBytes:    protowire.BytesType,
	} {
		require.True(t, kind.IsScalar(), kind.String())
		require.Equal(t, expect, kind.WireType(), kind.String())
	}

	require.False(t, schema.KindMessage.IsScalar())
	require.False(t, schema.KindEnum.IsScalar())
	require.False(t, schema.KindInvalid.IsScalar())
}

func TestKind_Default(t *testing.T) {
	require.Equal(t, int64(0), schema.KindSint64.Default())
	require.Equal(t, uint32(0), schema.KindFixed32.Default())
	require.Equal(t, float32(0), schema.KindFloat.Default())
	require.Equal(t, false, schema.KindBool.Default())
	require.Equal(t, "", schema.KindString.Default())
	require.Equal(t, []byte{}, schema.KindBytes.Default())
	require.Nil(t, schema.KindMessage.Default())
}

func TestParseKind(t *testing.T) {
	k, err := schema.ParseKind("sfixed32")
	require.NoError(t, err)
	require.Equal(t, schema.KindSfixed32, k)

	_, err = schema.ParseKind("int128")
	require.Error(t, err)

	_, err = schema.ParseKind("invalid")
	require.Error(t, err)
}

func TestFromDescriptor(t *testing.T) {
	s := schema.FromDescriptor(testproto.SimpleMessage())
	require.Equal(t, "protarrow.test.SimpleMessage", s.Name())
	require.Len(t, s.Fields(), 15)

	first, last := s.Fields()[0], s.Fields()[14]
	require.Equal(t, schema.Field{Number: 1, Name: "double_value", Kind: schema.KindDouble}, first)
	require.Equal(t, schema.Field{Number: 15, Name: "bytes_value", Kind: schema.KindBytes}, last)
}

func TestFromDescriptor_Cardinality(t *testing.T) {
	for _, tc := range []struct {
		message string
		expect  schema.Field
	}{
		{"WithEnum", schema.Field{Number: 1, Name: "color", Kind: schema.KindEnum}},
		{"WithMessage", schema.Field{Number: 1, Name: "child", Kind: schema.KindMessage}},
		{"WithRepeated", schema.Field{Number: 1, Name: "values", Kind: schema.KindInt32, Repeated: true}},
		{"WithMap", schema.Field{Number: 1, Name: "counts", Kind: schema.KindMessage, Repeated: true, Map: true}},
		{"WithOneof", schema.Field{Number: 1, Name: "a", Kind: schema.KindInt32, Oneof: "choice"}},
		{"OptionalMessage", schema.Field{Number: 1, Name: "maybe", Kind: schema.KindInt64}},
	} {
		t.Run(tc.message, func(t *testing.T) {
			s := schema.FromDescriptor(testproto.Message(tc.message))
			require.Equal(t, tc.expect, s.Fields()[0])
		})
	}
}

func TestLoadDescriptorSet(t *testing.T) {
	md, err := schema.LoadDescriptorSet(testproto.DescriptorSet(), "protarrow.test.SimpleMessage")
	require.NoError(t, err)
	require.Equal(t, 15, md.Fields().Len())

	_, err = schema.LoadDescriptorSet(testproto.DescriptorSet(), "protarrow.test.Missing")
	require.Error(t, err)

	_, err = schema.LoadDescriptorSet(testproto.DescriptorSet(), "protarrow.test.Color")
	require.ErrorContains(t, err, "not a message")

	_, err = schema.LoadDescriptorSet([]byte{0xff}, "protarrow.test.SimpleMessage")
	require.Error(t, err)
}

func TestParseYAML(t *testing.T) {
	s, err := schema.ParseYAML([]byte(`
name: example.Event
fields:
  - {number: 1, name: id, kind: int64}
  - {number: 2, name: payload, kind: bytes}
  - {number: 3, name: tags, kind: string, repeated: true}
`))
	require.NoError(t, err)
	require.Equal(t, "example.Event", s.Name())
	require.Equal(t, []schema.Field{
		{Number: 1, Name: "id", Kind: schema.KindInt64},
		{Number: 2, Name: "payload", Kind: schema.KindBytes},
		{Number: 3, Name: "tags", Kind: schema.KindString, Repeated: true},
	}, s.Fields())

	_, err = schema.ParseYAML([]byte("fields: []"))
	require.ErrorContains(t, err, "missing name")

	_, err = schema.ParseYAML([]byte("name: x\nfields:\n  - {number: 1, name: a, kind: int128}"))
	require.ErrorContains(t, err, "int128")

	_, err = schema.ParseYAML([]byte("name: x\nunknown: true"))
	require.Error(t, err)
}

func TestFingerprintAndEqual(t *testing.T) {
	fromDescriptor := schema.FromDescriptor(testproto.SimpleMessage())
	again := schema.FromDescriptor(testproto.SimpleMessage())
	require.Equal(t, schema.Fingerprint(fromDescriptor), schema.Fingerprint(again))
	require.True(t, schema.Equal(fromDescriptor, again))

	static := schema.New(fromDescriptor.Name(), fromDescriptor.Fields()...)
	require.Equal(t, schema.Fingerprint(fromDescriptor), schema.Fingerprint(static))
	require.True(t, schema.Equal(fromDescriptor, static))

	a := schema.New("m", schema.Field{Number: 1, Name: "a", Kind: schema.KindInt32})
	for _, other := range []schema.Schema{
		schema.New("n", schema.Field{Number: 1, Name: "a", Kind: schema.KindInt32}),
		schema.New("m", schema.Field{Number: 2, Name: "a", Kind: schema.KindInt32}),
		schema.New("m", schema.Field{Number: 1, Name: "b", Kind: schema.KindInt32}),
		schema.New("m", schema.Field{Number: 1, Name: "a", Kind: schema.KindSint32}),
		schema.New("m", schema.Field{Number: 1, Name: "a", Kind: schema.KindInt32, Repeated: true}),
		schema.New("m"),
	} {
		require.NotEqual(t, schema.Fingerprint(a), schema.Fingerprint(other))
		require.False(t, schema.Equal(a, other))
	}
}
