package wire

import (
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestReader_AllWireTypes(t *testing.T) {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 300)
	buf = protowire.AppendTag(buf, 2, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, math.Float64bits(1.5))
	buf = protowire.AppendTag(buf, 3, protowire.BytesType)
	buf = protowire.AppendString(buf, "hello")
	buf = protowire.AppendTag(buf, 4, protowire.Fixed32Type)
	buf = protowire.AppendFixed32(buf, 0xdeadbeef)

	r := NewReader(buf)

	num, typ, err := r.ReadTag()
	require.NoError(t, err)
	require.Equal(t, protowire.Number(1), num)
	require.Equal(t, protowire.VarintType, typ)
	v, err := r.ReadValue(typ)
	require.NoError(t, err)
	require.Equal(t, uint64(300), v.Number)

	num, typ, err = r.ReadTag()
	require.NoError(t, err)
	require.Equal(t, protowire.Number(2), num)
	v, err = r.ReadValue(typ)
	require.NoError(t, err)
	require.Equal(t, 1.5, math.Float64frombits(v.Number))

	num, typ, err = r.ReadTag()
	require.NoError(t, err)
	require.Equal(t, protowire.Number(3), num)
	v, err = r.ReadValue(typ)
	require.NoError(t, err)
	require.Equal(t, "hello", string(v.Bytes))

	num, typ, err = r.ReadTag()
	require.NoError(t, err)
	require.Equal(t, protowire.Number(4), num)
	v, err = r.ReadValue(typ)
	require.NoError(t, err)
	require.Equal(t, uint64(0xdeadbeef), v.Number)

	require.True(t, r.EOF())
	_, _, err = r.ReadTag()
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, len(buf), r.Offset())
}

func TestReader_EmptyBuffer(t *testing.T) {
	r := NewReader(nil)
	_, _, err := r.ReadTag()
	require.ErrorIs(t, err, io.EOF)
}

func TestReader_Errors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		buf     []byte
		readTag bool
		typ     protowire.Type
		expect  error
	}{
		{
			name:    "truncated tag varint",
			buf:     []byte{0x80},
			readTag: true,
			expect:  ErrTruncatedVarint,
		},
		{
			name:    "zero field number",
			buf:     protowire.AppendVarint(nil, 0),
			readTag: true,
			expect:  ErrMalformedTag,
		},
		{
			name:    "overlong varint",
			buf:     []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01},
			readTag: true,
			expect:  ErrVarintOverflow,
		},
		{
			name:   "truncated varint payload",
			buf:    []byte{0xff, 0xff},
			typ:    protowire.VarintType,
			expect: ErrTruncatedVarint,
		},
		{
			name:   "truncated fixed32",
			buf:    []byte{1, 2, 3},
			typ:    protowire.Fixed32Type,
			expect: ErrTruncatedBytes,
		},
		{
			name:   "truncated fixed64",
			buf:    []byte{1, 2, 3, 4, 5, 6, 7},
			typ:    protowire.Fixed64Type,
			expect: ErrTruncatedBytes,
		},
		{
			name:   "length past end",
			buf:    append(protowire.AppendVarint(nil, 10), 'a', 'b'),
			typ:    protowire.BytesType,
			expect: ErrTruncatedBytes,
		},
		{
			name:   "truncated length",
			buf:    []byte{0x80},
			typ:    protowire.BytesType,
			expect: ErrTruncatedVarint,
		},
		{
			name:   "start group",
			buf:    []byte{0},
			typ:    protowire.StartGroupType,
			expect: ErrUnsupportedWireType,
		},
		{
			name:   "reserved wire type",
			buf:    []byte{0},
			typ:    protowire.Type(6),
			expect: ErrUnsupportedWireType,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := NewReader(tc.buf)
			var err error
			if tc.readTag {
				_, _, err = r.ReadTag()
			} else {
				_, err = r.ReadValue(tc.typ)
			}
			require.ErrorIs(t, err, tc.expect)
		})
	}
}

func TestReader_BytesAliasBuffer(t *testing.T) {
	buf := protowire.AppendBytes(nil, []byte("abc"))
	r := NewReader(buf)
	v, err := r.ReadValue(protowire.BytesType)
	require.NoError(t, err)
	require.Equal(t, 3, cap(v.Bytes))

	buf[1] = 'z'
	require.Equal(t, "zbc", string(v.Bytes))
}

func TestReader_Reset(t *testing.T) {
	r := NewReader(protowire.AppendTag(nil, 7, protowire.VarintType))
	_, _, err := r.ReadTag()
	require.NoError(t, err)
	require.True(t, r.EOF())

	r.Reset(protowire.AppendTag(nil, 9, protowire.Fixed32Type))
	require.Equal(t, 0, r.Offset())
	num, typ, err := r.ReadTag()
	require.NoError(t, err)
	require.Equal(t, protowire.Number(9), num)
	require.Equal(t, protowire.Fixed32Type, typ)
}

func TestTypeName(t *testing.T) {
	require.Equal(t, "varint", TypeName(protowire.VarintType))
	require.Equal(t, "length-delimited", TypeName(protowire.BytesType))
	require.Equal(t, "wire type 7", TypeName(protowire.Type(7)))
}
