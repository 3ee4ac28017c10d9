package kafka

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/grafana/dskit/flagext"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	SASLMechanismPlain       = "PLAIN"
	SASLMechanismScramSHA256 = "SCRAM-SHA-256"
	SASLMechanismScramSHA512 = "SCRAM-SHA-512"
)

var (
	ErrMissingAddress       = errors.New("the kafka address has not been configured")
	ErrMissingTopic         = errors.New("the kafka topic has not been configured")
	ErrMissingConsumerGroup = errors.New("the kafka consumer group has not been configured")
	ErrInvalidPollRecords   = errors.New("the maximum number of records per poll must be greater than zero")
	ErrInvalidEnvelopeField = errors.New("the envelope field number is out of range")
)

// Config configures the kafka Source.
type Config struct {
	Address       string        `yaml:"address"`
	Topic         string        `yaml:"topic"`
	ConsumerGroup string        `yaml:"consumer_group"`
	ClientID      string        `yaml:"client_id"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	FromBeginning bool          `yaml:"from_beginning"`

	// MaxPollRecords bounds the number of records fetched per poll.
	MaxPollRecords int `yaml:"max_poll_records"`

	// EnvelopeField, when set, is the field number of a repeated bytes field
	// every record value is wrapped in. Otherwise each record value is one
	// message.
	EnvelopeField int `yaml:"envelope_field"`

	SASLUsername  string         `yaml:"sasl_username"`
	SASLPassword  flagext.Secret `yaml:"sasl_password"`
	SASLMechanism string         `yaml:"sasl_mechanism"`
}

// RegisterFlags registers the config flags with the "kafka" prefix.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("kafka", f)
}

// RegisterFlagsWithPrefix registers the config flags with the given prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Address, prefix+".address", "localhost:9092", "The kafka broker address to bootstrap from.")
	f.StringVar(&cfg.Topic, prefix+".topic", "", "The kafka topic to consume serialized messages from.")
	f.StringVar(&cfg.ConsumerGroup, prefix+".consumer-group", "protarrow", "The consumer group offsets are committed to.")
	f.StringVar(&cfg.ClientID, prefix+".client-id", "protarrow", "The kafka client ID.")
	f.DurationVar(&cfg.DialTimeout, prefix+".dial-timeout", 2*time.Second, "The maximum time allowed to open a connection to a kafka broker.")
	f.BoolVar(&cfg.FromBeginning, prefix+".from-beginning", false, "Consume from the earliest offset when the consumer group has no committed offset.")
	f.IntVar(&cfg.MaxPollRecords, prefix+".max-poll-records", 1000, "The maximum number of records fetched per poll.")
	f.IntVar(&cfg.EnvelopeField, prefix+".envelope-field", 0, "If non-zero, record values are envelopes carrying messages in this repeated bytes field.")
	f.StringVar(&cfg.SASLUsername, prefix+".sasl-username", "", "The SASL username for authentication to kafka.")
	f.Var(&cfg.SASLPassword, prefix+".sasl-password", "The SASL password for authentication to kafka.")
	f.StringVar(&cfg.SASLMechanism, prefix+".sasl-mechanism", SASLMechanismPlain, fmt.Sprintf("The SASL mechanism. Supported: %s, %s, %s.", SASLMechanismPlain, SASLMechanismScramSHA256, SASLMechanismScramSHA512))
}

// Validate reports whether the config can be used to build a Source.
func (cfg *Config) Validate() error {
	if cfg.Address == "" {
		return ErrMissingAddress
	}
	if cfg.Topic == "" {
		return ErrMissingTopic
	}
	if cfg.ConsumerGroup == "" {
		return ErrMissingConsumerGroup
	}
	if cfg.MaxPollRecords <= 0 {
		return ErrInvalidPollRecords
	}
	if cfg.EnvelopeField < 0 || cfg.EnvelopeField > int(protowire.MaxValidNumber) {
		return fmt.Errorf("%w: %d", ErrInvalidEnvelopeField, cfg.EnvelopeField)
	}
	if cfg.SASLUsername != "" {
		switch cfg.SASLMechanism {
		case SASLMechanismPlain, SASLMechanismScramSHA256, SASLMechanismScramSHA512:
		default:
			return fmt.Errorf("unsupported SASL mechanism %q", cfg.SASLMechanism)
		}
	}
	return nil
}
