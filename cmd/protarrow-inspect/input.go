package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/flagext"
	"google.golang.org/protobuf/encoding/protowire"
	"gopkg.in/yaml.v2"

	"github.com/grafana/protarrow/pkg/protarrow"
	"github.com/grafana/protarrow/pkg/protarrow/envelope"
	"github.com/grafana/protarrow/pkg/protarrow/schema"
)

const (
	framingSingle    = "single"
	framingDelimited = "delimited"
	framingEnvelope  = "envelope"
)

// fileConfig is the layout of the file passed with --config.file.
type fileConfig struct {
	Protarrow protarrow.Config `yaml:"protarrow"`
}

// inputFlags are the flags shared by every command: where the message schema
// comes from and how input files frame their messages.
type inputFlags struct {
	descriptorSet *string
	message       *string
	schemaFile    *string
	configFile    *string
	framing       *string
	envelopeField *int
	verbose       *bool
}

func addInputFlags(app *kingpin.Application) *inputFlags {
	return &inputFlags{
		descriptorSet: app.Flag("descriptor-set", "A serialized FileDescriptorSet, as written by protoc --descriptor_set_out.").ExistingFile(),
		message:       app.Flag("message", "The full name of the message type in --descriptor-set.").String(),
		schemaFile:    app.Flag("schema-file", "A YAML schema file, used instead of --descriptor-set.").ExistingFile(),
		configFile:    app.Flag("config.file", "A YAML file with decode limits under the protarrow key.").ExistingFile(),
		framing:       app.Flag("framing", "How input files frame messages.").Default(framingDelimited).Enum(framingSingle, framingDelimited, framingEnvelope),
		envelopeField: app.Flag("envelope-field", "The repeated bytes field carrying the messages of an envelope.").Default("1").Int(),
		verbose:       app.Flag("verbose", "Log debug messages.").Short('v').Bool(),
	}
}

func (in *inputFlags) logger() log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	if *in.verbose {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowWarn())
}

func (in *inputFlags) config() (protarrow.Config, error) {
	var cfg fileConfig
	flagext.DefaultValues(&cfg.Protarrow)
	if *in.configFile == "" {
		return cfg.Protarrow, nil
	}

	b, err := os.ReadFile(*in.configFile)
	if err != nil {
		return protarrow.Config{}, err
	}
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return protarrow.Config{}, fmt.Errorf("parsing %s: %w", *in.configFile, err)
	}
	return cfg.Protarrow, cfg.Protarrow.Validate()
}

func (in *inputFlags) schema() (schema.Schema, error) {
	switch {
	case *in.schemaFile != "":
		b, err := os.ReadFile(*in.schemaFile)
		if err != nil {
			return nil, err
		}
		return schema.ParseYAML(b)
	case *in.descriptorSet != "":
		if *in.message == "" {
			return nil, fmt.Errorf("--message is required with --descriptor-set")
		}
		b, err := os.ReadFile(*in.descriptorSet)
		if err != nil {
			return nil, err
		}
		md, err := schema.LoadDescriptorSet(b, *in.message)
		if err != nil {
			return nil, err
		}
		return schema.FromDescriptor(md), nil
	default:
		return nil, fmt.Errorf("one of --schema-file or --descriptor-set is required")
	}
}

// handler returns the Handler for the configured schema.
func (in *inputFlags) handler() (*protarrow.Handler, error) {
	cfg, err := in.config()
	if err != nil {
		return nil, err
	}
	s, err := in.schema()
	if err != nil {
		return nil, err
	}
	return protarrow.NewPool(cfg, memory.DefaultAllocator, in.logger(), nil).GetForMessage(s)
}

// readMessages reads the messages held by one input file.
func (in *inputFlags) readMessages(name string) ([][]byte, int, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, 0, err
	}

	var msgs [][]byte
	switch *in.framing {
	case framingSingle:
		msgs = [][]byte{b}
	case framingDelimited:
		msgs, err = envelope.SplitDelimited(b, 0)
	case framingEnvelope:
		field := *in.envelopeField
		if field < int(protowire.MinValidNumber) || field > int(protowire.MaxValidNumber) {
			return nil, 0, fmt.Errorf("invalid --envelope-field %d", field)
		}
		msgs, err = envelope.SplitBatch(b, int32(field))
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", name, err)
	}
	return msgs, len(b), nil
}

// convert converts one input file. The caller releases the returned table.
func (in *inputFlags) convert(h *protarrow.Handler, name string) (*protarrow.Table, int, error) {
	msgs, size, err := in.readMessages(name)
	if err != nil {
		return nil, 0, err
	}
	t, err := h.Convert(msgs)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", name, err)
	}
	return t, size, nil
}
