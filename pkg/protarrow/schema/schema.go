// Package schema describes the message types protarrow converts.
//
// A [Schema] is a read-only, ordered enumeration of fields. Schemas can be
// declared directly with [New], adapted from a protobuf descriptor with
// [FromDescriptor], resolved from a serialized FileDescriptorSet with
// [LoadDescriptorSet], or parsed from YAML with [ParseYAML].
package schema

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"google.golang.org/protobuf/encoding/protowire"
	"gopkg.in/yaml.v2"
)

// Schema is an ordered set of fields describing one message type. Field
// numbers and names are expected to be unique; this is enforced when a
// handler is built from the schema, not here.
type Schema interface {
	// Name is the (usually fully qualified) message name.
	Name() string

	// Fields returns the fields in declaration order. Callers must not
	// modify the returned slice.
	Fields() []Field
}

// Field is one field of a Schema.
type Field struct {
	Number protowire.Number `yaml:"number"`
	Name   string           `yaml:"name"`
	Kind   Kind             `yaml:"kind"`

	// Repeated is set for repeated fields, including maps.
	Repeated bool `yaml:"repeated,omitempty"`
	// Map is set for map fields.
	Map bool `yaml:"map,omitempty"`
	// Oneof names the oneof the field belongs to, if any. proto3 optional
	// fields are not reported as oneof members.
	Oneof string `yaml:"oneof,omitempty"`
}

func (f Field) String() string {
	return fmt.Sprintf("%s (%d, %s)", f.Name, f.Number, f.Kind)
}

type static struct {
	name   string
	fields []Field
}

// New returns a Schema with the given name and fields.
func New(name string, fields ...Field) Schema {
	return &static{name: name, fields: fields}
}

func (s *static) Name() string    { return s.name }
func (s *static) Fields() []Field { return s.fields }

type yamlSchema struct {
	Name   string  `yaml:"name"`
	Fields []Field `yaml:"fields"`
}

// ParseYAML reads a schema of the form:
//
//	name: example.Event
//	fields:
//	  - {number: 1, name: id, kind: int64}
//	  - {number: 2, name: payload, kind: bytes}
func ParseYAML(b []byte) (Schema, error) {
	var ys yamlSchema
	if err := yaml.UnmarshalStrict(b, &ys); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	if ys.Name == "" {
		return nil, fmt.Errorf("parsing schema: missing name")
	}
	return New(ys.Name, ys.Fields...), nil
}

// Fingerprint hashes the identity of s: its name and, in order, every
// field's number, name, kind and cardinality. Schemas with equal fingerprints
// are almost certainly [Equal]; callers that need certainty must compare.
func Fingerprint(s Schema) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(s.Name())

	var scratch [16]byte
	for _, f := range s.Fields() {
		_, _ = h.Write([]byte{0xff})
		b := protowire.AppendVarint(scratch[:0], uint64(f.Number))
		b = append(b, byte(f.Kind), flag(f.Repeated), flag(f.Map))
		_, _ = h.Write(b)
		_, _ = h.WriteString(f.Name)
		_, _ = h.WriteString(f.Oneof)
	}
	return h.Sum64()
}

func flag(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Equal reports whether a and b describe the same message: same name and the
// same fields in the same order.
func Equal(a, b Schema) bool {
	if a.Name() != b.Name() {
		return false
	}
	af, bf := a.Fields(), b.Fields()
	if len(af) != len(bf) {
		return false
	}
	for i := range af {
		if af[i] != bf[i] {
			return false
		}
	}
	return true
}
