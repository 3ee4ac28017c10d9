package protarrow

import (
	"flag"
	"testing"

	"github.com/grafana/dskit/flagext"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := defaultConfig()
	require.False(t, cfg.ValidateUTF8)
	require.Equal(t, flagext.Bytes(64<<20), cfg.MaxMessageSize)
	require.Equal(t, 0, cfg.MaxBatchSize)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Flags(t *testing.T) {
	var cfg Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"-protarrow.validate-utf8=true",
		"-protarrow.max-message-size=1MiB",
		"-protarrow.max-batch-size=100",
	}))
	require.True(t, cfg.ValidateUTF8)
	require.Equal(t, flagext.Bytes(1<<20), cfg.MaxMessageSize)
	require.Equal(t, 100, cfg.MaxBatchSize)
}

func TestConfig_Validate(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxBatchSize = -1
	require.Error(t, cfg.Validate())
}
