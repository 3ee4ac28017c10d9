package protarrow

import (
	"errors"
	"flag"

	"github.com/grafana/dskit/flagext"
)

// Config holds the decode limits and policies shared by every handler a Pool
// builds.
type Config struct {
	ValidateUTF8   bool          `yaml:"validate_utf8"`
	MaxMessageSize flagext.Bytes `yaml:"max_message_size"`
	MaxBatchSize   int           `yaml:"max_batch_size"`
}

// RegisterFlags registers the config flags with the "protarrow." prefix.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("protarrow.", f)
}

// RegisterFlagsWithPrefix registers the config flags with the given prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.BoolVar(&cfg.ValidateUTF8, prefix+"validate-utf8", false, "Fail a batch when a string field holds invalid UTF-8. When disabled, string payloads are passed through unchecked.")

	cfg.MaxMessageSize = 64 << 20
	f.Var(&cfg.MaxMessageSize, prefix+"max-message-size", "Maximum size of a single serialized message. 0 to disable.")

	f.IntVar(&cfg.MaxBatchSize, prefix+"max-batch-size", 0, "Maximum number of messages converted in one batch. 0 to disable.")
}

// Validate reports whether the limits are usable.
func (cfg *Config) Validate() error {
	if cfg.MaxBatchSize < 0 {
		return errors.New("max batch size must be positive or 0")
	}
	return nil
}
