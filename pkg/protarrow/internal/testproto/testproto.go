// Package testproto builds the descriptors and reference encodings used by
// protarrow's tests. Messages are described in code instead of generated from
// .proto files so the tests need no protoc step.
package testproto

import (
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Package is the protobuf package every test message lives in.
const Package = "protarrow.test"

// SimpleFields lists the fields of SimpleMessage in field number order:
// double_value is field 1, bytes_value is field 15.
var SimpleFields = []struct {
	Name string
	Type descriptorpb.FieldDescriptorProto_Type
}{
	{"double_value", descriptorpb.FieldDescriptorProto_TYPE_DOUBLE},
	{"float_value", descriptorpb.FieldDescriptorProto_TYPE_FLOAT},
	{"int32_value", descriptorpb.FieldDescriptorProto_TYPE_INT32},
	{"int64_value", descriptorpb.FieldDescriptorProto_TYPE_INT64},
	{"uint32_value", descriptorpb.FieldDescriptorProto_TYPE_UINT32},
	{"uint64_value", descriptorpb.FieldDescriptorProto_TYPE_UINT64},
	{"sint32_value", descriptorpb.FieldDescriptorProto_TYPE_SINT32},
	{"sint64_value", descriptorpb.FieldDescriptorProto_TYPE_SINT64},
	{"fixed32_value", descriptorpb.FieldDescriptorProto_TYPE_FIXED32},
	{"fixed64_value", descriptorpb.FieldDescriptorProto_TYPE_FIXED64},
	{"sfixed32_value", descriptorpb.FieldDescriptorProto_TYPE_SFIXED32},
	{"sfixed64_value", descriptorpb.FieldDescriptorProto_TYPE_SFIXED64},
	{"bool_value", descriptorpb.FieldDescriptorProto_TYPE_BOOL},
	{"string_value", descriptorpb.FieldDescriptorProto_TYPE_STRING},
	{"bytes_value", descriptorpb.FieldDescriptorProto_TYPE_BYTES},
}

var (
	buildOnce sync.Once
	file      protoreflect.FileDescriptor
	buildErr  error
)

// FileProto returns the descriptor proto of the test file. It declares:
//
//	enum Color { COLOR_UNSPECIFIED = 0; COLOR_RED = 1; }
//	message SimpleMessage { <SimpleFields>; }
//	message OptionalMessage { optional int64 maybe = 1; string name = 2; }
//	message WithEnum { Color color = 1; }
//	message WithMessage { SimpleMessage child = 1; }
//	message WithRepeated { repeated int32 values = 1; }
//	message WithMap { map<string, int64> counts = 1; }
//	message WithOneof { oneof choice { int32 a = 1; string b = 2; } }
func FileProto() *descriptorpb.FileDescriptorProto {
	simple := &descriptorpb.DescriptorProto{Name: proto.String("SimpleMessage")}
	for i, f := range SimpleFields {
		simple.Field = append(simple.Field, scalarField(f.Name, int32(i+1), f.Type))
	}

	optional := scalarField("maybe", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64)
	optional.Proto3Optional = proto.Bool(true)
	optional.OneofIndex = proto.Int32(0)

	oneofA := scalarField("a", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32)
	oneofA.OneofIndex = proto.Int32(0)
	oneofB := scalarField("b", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING)
	oneofB.OneofIndex = proto.Int32(0)

	repeated := scalarField("values", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32)
	repeated.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("protarrow/test.proto"),
		Package: proto.String(Package),
		Syntax:  proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("Color"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("COLOR_UNSPECIFIED"), Number: proto.Int32(0)},
				{Name: proto.String("COLOR_RED"), Number: proto.Int32(1)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{
			simple,
			{
				Name:      proto.String("OptionalMessage"),
				Field:     []*descriptorpb.FieldDescriptorProto{optional, scalarField("name", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING)},
				OneofDecl: []*descriptorpb.OneofDescriptorProto{{Name: proto.String("_maybe")}},
			},
			{
				Name:  proto.String("WithEnum"),
				Field: []*descriptorpb.FieldDescriptorProto{typedField("color", 1, descriptorpb.FieldDescriptorProto_TYPE_ENUM, ".protarrow.test.Color")},
			},
			{
				Name:  proto.String("WithMessage"),
				Field: []*descriptorpb.FieldDescriptorProto{typedField("child", 1, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".protarrow.test.SimpleMessage")},
			},
			{
				Name:  proto.String("WithRepeated"),
				Field: []*descriptorpb.FieldDescriptorProto{repeated},
			},
			withMap(),
			{
				Name:      proto.String("WithOneof"),
				Field:     []*descriptorpb.FieldDescriptorProto{oneofA, oneofB},
				OneofDecl: []*descriptorpb.OneofDescriptorProto{{Name: proto.String("choice")}},
			},
		},
	}
}

func withMap() *descriptorpb.DescriptorProto {
	entry := &descriptorpb.DescriptorProto{
		Name: proto.String("CountsEntry"),
		Field: []*descriptorpb.FieldDescriptorProto{
			scalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalarField("value", 2, descriptorpb.FieldDescriptorProto_TYPE_INT64),
		},
		Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
	}
	counts := typedField("counts", 1, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ".protarrow.test.WithMap.CountsEntry")
	counts.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()

	return &descriptorpb.DescriptorProto{
		Name:       proto.String("WithMap"),
		Field:      []*descriptorpb.FieldDescriptorProto{counts},
		NestedType: []*descriptorpb.DescriptorProto{entry},
	}
}

func scalarField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(name),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
	}
}

func typedField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalarField(name, number, typ)
	f.TypeName = proto.String(typeName)
	return f
}

// File returns the test file descriptor.
func File() protoreflect.FileDescriptor {
	buildOnce.Do(func() {
		file, buildErr = protodesc.NewFile(FileProto(), nil)
	})
	if buildErr != nil {
		panic(fmt.Sprintf("building test descriptors: %v", buildErr))
	}
	return file
}

// Message returns the descriptor of the named message, e.g. "SimpleMessage".
func Message(name string) protoreflect.MessageDescriptor {
	md := File().Messages().ByName(protoreflect.Name(name))
	if md == nil {
		panic(fmt.Sprintf("unknown test message %q", name))
	}
	return md
}

// SimpleMessage returns the descriptor of SimpleMessage.
func SimpleMessage() protoreflect.MessageDescriptor {
	return Message("SimpleMessage")
}

// Marshal encodes a message of type md with the given field values using the
// Go protobuf runtime. Values must have the Go type protoreflect.ValueOf
// expects for the field's kind (int32 for sint32, []byte for bytes, ...).
// Fields set to their zero value are omitted from the encoding, as in proto3.
func Marshal(md protoreflect.MessageDescriptor, values map[string]any) ([]byte, error) {
	msg := dynamicpb.NewMessage(md)
	for name, v := range values {
		fd := md.Fields().ByName(protoreflect.Name(name))
		if fd == nil {
			return nil, fmt.Errorf("%s has no field %q", md.FullName(), name)
		}
		msg.Set(fd, protoreflect.ValueOf(v))
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(msg)
}

// MustMarshal is Marshal that panics on error.
func MustMarshal(md protoreflect.MessageDescriptor, values map[string]any) []byte {
	b, err := Marshal(md, values)
	if err != nil {
		panic(err)
	}
	return b
}

// DescriptorSet returns the serialized FileDescriptorSet holding the test
// file.
func DescriptorSet() []byte {
	b, err := proto.Marshal(&descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{FileProto()},
	})
	if err != nil {
		panic(err)
	}
	return b
}
