package schema

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

var descriptorKinds = map[protoreflect.Kind]Kind{
	protoreflect.DoubleKind:   KindDouble,
	protoreflect.FloatKind:    KindFloat,
	protoreflect.Int32Kind:    KindInt32,
	protoreflect.Int64Kind:    KindInt64,
	protoreflect.Uint32Kind:   KindUint32,
	protoreflect.Uint64Kind:   KindUint64,
	protoreflect.Sint32Kind:   KindSint32,
	protoreflect.Sint64Kind:   KindSint64,
	protoreflect.Fixed32Kind:  KindFixed32,
	protoreflect.Fixed64Kind:  KindFixed64,
	protoreflect.Sfixed32Kind: KindSfixed32,
	protoreflect.Sfixed64Kind: KindSfixed64,
	protoreflect.BoolKind:     KindBool,
	protoreflect.StringKind:   KindString,
	protoreflect.BytesKind:    KindBytes,
	protoreflect.EnumKind:     KindEnum,
	protoreflect.MessageKind:  KindMessage,
	protoreflect.GroupKind:    KindGroup,
}

type descriptorSchema struct {
	md     protoreflect.MessageDescriptor
	fields []Field
}

// FromDescriptor adapts a message descriptor into a Schema. The field list is
// computed once, so the returned Schema is cheap to enumerate repeatedly.
func FromDescriptor(md protoreflect.MessageDescriptor) Schema {
	fds := md.Fields()
	fields := make([]Field, 0, fds.Len())
	for i := 0; i < fds.Len(); i++ {
		fd := fds.Get(i)
		f := Field{
			Number:   fd.Number(),
			Name:     string(fd.Name()),
			Kind:     descriptorKinds[fd.Kind()],
			Repeated: fd.IsList() || fd.IsMap(),
			Map:      fd.IsMap(),
		}
		if od := fd.ContainingOneof(); od != nil && !od.IsSynthetic() {
			f.Oneof = string(od.Name())
		}
		fields = append(fields, f)
	}
	return &descriptorSchema{md: md, fields: fields}
}

func (s *descriptorSchema) Name() string    { return string(s.md.FullName()) }
func (s *descriptorSchema) Fields() []Field { return s.fields }

// LoadDescriptorSet parses a serialized google.protobuf.FileDescriptorSet, as
// produced by `protoc --descriptor_set_out`, and returns the descriptor of the
// message with the given fully qualified name. The set must contain every
// file the message's file depends on (`protoc --include_imports`).
func LoadDescriptorSet(b []byte, name string) (protoreflect.MessageDescriptor, error) {
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(b, &set); err != nil {
		return nil, fmt.Errorf("decoding descriptor set: %w", err)
	}

	files, err := protodesc.NewFiles(&set)
	if err != nil {
		return nil, fmt.Errorf("building descriptor registry: %w", err)
	}

	desc, err := files.FindDescriptorByName(protoreflect.FullName(name))
	if err != nil {
		return nil, fmt.Errorf("finding message %q: %w", name, err)
	}
	md, ok := desc.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, fmt.Errorf("%q is not a message", name)
	}
	return md, nil
}
