package schema

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Kind is the protobuf type of a field. Only scalar kinds can be converted
// into columns; the remaining kinds exist so that schemas describing them can
// be represented and rejected with a useful error.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindDouble
	KindFloat
	KindInt32
	KindInt64
	KindUint32
	KindUint64
	KindSint32
	KindSint64
	KindFixed32
	KindFixed64
	KindSfixed32
	KindSfixed64
	KindBool
	KindString
	KindBytes

	// Non-scalar kinds.
	KindEnum
	KindMessage
	KindGroup
)

var kindNames = map[Kind]string{
	KindInvalid:  "invalid",
	KindDouble:   "double",
	KindFloat:    "float",
	KindInt32:    "int32",
	KindInt64:    "int64",
	KindUint32:   "uint32",
	KindUint64:   "uint64",
	KindSint32:   "sint32",
	KindSint64:   "sint64",
	KindFixed32:  "fixed32",
	KindFixed64:  "fixed64",
	KindSfixed32: "sfixed32",
	KindSfixed64: "sfixed64",
	KindBool:     "bool",
	KindString:   "string",
	KindBytes:    "bytes",
	KindEnum:     "enum",
	KindMessage:  "message",
	KindGroup:    "group",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind returns the Kind named by s, using the names of the .proto
// language ("int64", "sfixed32", ...).
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if k != KindInvalid && name == s {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown field kind %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (k *Kind) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (k Kind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// IsScalar reports whether k is one of the fifteen scalar kinds.
func (k Kind) IsScalar() bool {
	return k >= KindDouble && k <= KindBytes
}

// WireType returns the wire type a singular field of kind k is encoded with.
// The result is only meaningful for scalar kinds.
func (k Kind) WireType() protowire.Type {
	switch k {
	case KindInt32, KindInt64, KindUint32, KindUint64, KindSint32, KindSint64, KindBool, KindEnum:
		return protowire.VarintType
	case KindFloat, KindFixed32, KindSfixed32:
		return protowire.Fixed32Type
	case KindDouble, KindFixed64, KindSfixed64:
		return protowire.Fixed64Type
	case KindString, KindBytes, KindMessage:
		return protowire.BytesType
	case KindGroup:
		return protowire.StartGroupType
	default:
		return protowire.Type(-1)
	}
}

// Default returns the proto3 default value of a scalar kind, typed the way
// columns of that kind hold it. It returns nil for non-scalar kinds.
func (k Kind) Default() any {
	switch k {
	case KindDouble:
		return float64(0)
	case KindFloat:
		return float32(0)
	case KindInt32, KindSint32, KindSfixed32:
		return int32(0)
	case KindInt64, KindSint64, KindSfixed64:
		return int64(0)
	case KindUint32, KindFixed32:
		return uint32(0)
	case KindUint64, KindFixed64:
		return uint64(0)
	case KindBool:
		return false
	case KindString:
		return ""
	case KindBytes:
		return []byte{}
	default:
		return nil
	}
}
