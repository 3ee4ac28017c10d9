package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/grafana/dskit/flagext"
	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kfake"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/goleak"

	"github.com/grafana/protarrow/pkg/protarrow"
	"github.com/grafana/protarrow/pkg/protarrow/envelope"
	"github.com/grafana/protarrow/pkg/protarrow/internal/testproto"
	"github.com/grafana/protarrow/pkg/protarrow/schema"
)

const testTopic = "messages"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// collector is a Sink keeping the names of every converted row.
type collector struct {
	mtx   sync.Mutex
	names []string
}

func (c *collector) Consume(_ context.Context, t *protarrow.Table) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for _, v := range t.Column("name").Values() {
		c.names = append(c.names, v.(string))
	}
	return nil
}

func (c *collector) Names() []string {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return append([]string(nil), c.names...)
}

func createCluster(t *testing.T) Config {
	t.Helper()

	cluster, err := kfake.NewCluster(kfake.NumBrokers(1), kfake.SeedTopics(1, testTopic))
	require.NoError(t, err)
	t.Cleanup(cluster.Close)

	cfg := validConfig()
	cfg.Address = cluster.ListenAddrs()[0]
	cfg.Topic = testTopic
	cfg.FromBeginning = true
	return cfg
}

func produce(t *testing.T, cfg Config, values ...[]byte) {
	t.Helper()

	client, err := kgo.NewClient(kgo.SeedBrokers(cfg.Address), kgo.DefaultProduceTopic(cfg.Topic))
	require.NoError(t, err)
	defer client.Close()

	records := make([]*kgo.Record, len(values))
	for i, v := range values {
		records[i] = &kgo.Record{Value: v}
	}
	require.NoError(t, client.ProduceSync(context.Background(), records...).FirstErr())
}

func newHandler(t *testing.T, maxBatchSize int) *protarrow.Handler {
	t.Helper()

	var cfg protarrow.Config
	flagext.DefaultValues(&cfg)
	cfg.MaxBatchSize = maxBatchSize

	h, err := protarrow.NewHandler(schema.FromDescriptor(testproto.Message("OptionalMessage")), cfg, nil)
	require.NoError(t, err)
	return h
}

func message(name string) []byte {
	return testproto.MustMarshal(testproto.Message("OptionalMessage"), map[string]any{"name": name})
}

func runSource(t *testing.T, cfg Config, h *protarrow.Handler, sink Sink, reg prometheus.Registerer) *Source {
	t.Helper()

	src, err := NewSource(cfg, h, sink, log.NewNopLogger(), reg)
	require.NoError(t, err)
	require.NoError(t, services.StartAndAwaitRunning(context.Background(), src))
	t.Cleanup(func() {
		require.NoError(t, services.StopAndAwaitTerminated(context.Background(), src))
	})
	return src
}

func TestSource_ConsumesRecords(t *testing.T) {
	cfg := createCluster(t)
	produce(t, cfg, message("a"), message("b"), message("c"))

	sink := &collector{}
	src := runSource(t, cfg, newHandler(t, 0), sink, prometheus.NewRegistry())

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(src.metrics.rows) == 3
	}, 10*time.Second, 50*time.Millisecond)
	require.Equal(t, []string{"a", "b", "c"}, sink.Names())
}

func TestSource_DropsUndecodableRecords(t *testing.T) {
	cfg := createCluster(t)
	produce(t, cfg, message("a"), []byte{0x80}, message("c"), []byte{0x0b})

	sink := &collector{}
	src := runSource(t, cfg, newHandler(t, 0), sink, prometheus.NewRegistry())

	require.Eventually(t, func() bool {
		return len(sink.Names()) == 2
	}, 10*time.Second, 50*time.Millisecond)
	require.Equal(t, []string{"a", "c"}, sink.Names())
	require.Equal(t, 2.0, testutil.ToFloat64(src.metrics.droppedRecords.WithLabelValues("decode")))
}

func TestSource_Envelopes(t *testing.T) {
	cfg := createCluster(t)
	cfg.EnvelopeField = 1
	produce(t, cfg,
		envelope.AppendBatch(nil, 1, message("a"), message("b")),
		envelope.AppendBatch(nil, 1, message("x"), []byte{0x80}),
		envelope.AppendBatch(nil, 1, message("c"), message("d"), message("e")),
	)

	sink := &collector{}
	runSource(t, cfg, newHandler(t, 2), sink, nil)

	require.Eventually(t, func() bool {
		return len(sink.Names()) == 5
	}, 10*time.Second, 50*time.Millisecond)
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, sink.Names())
}

func TestSource_SinkErrorDoesNotCommit(t *testing.T) {
	cfg := createCluster(t)
	produce(t, cfg, message("a"), message("b"))

	errSink := errors.New("sink unavailable")
	failing, err := NewSource(cfg, newHandler(t, 0), SinkFunc(func(context.Context, *protarrow.Table) error {
		return errSink
	}), nil, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, failing.StartAsync(ctx))
	require.Error(t, failing.AwaitTerminated(ctx))
	require.Equal(t, services.Failed, failing.State())
	require.ErrorIs(t, failing.FailureCase(), errSink)

	// Nothing was committed, so the group sees the records again.
	sink := &collector{}
	runSource(t, cfg, newHandler(t, 0), sink, nil)

	require.Eventually(t, func() bool {
		return len(sink.Names()) == 2
	}, 10*time.Second, 50*time.Millisecond)
	require.Equal(t, []string{"a", "b"}, sink.Names())
}

func TestDropOwner(t *testing.T) {
	msgs := [][]byte{{1}, {2}, {3}, {4}}
	owners := []int{0, 1, 1, 2}

	msgs, owners = dropOwner(msgs, owners, 1)
	require.Equal(t, [][]byte{{1}, {4}}, msgs)
	require.Equal(t, []int{0, 2}, owners)
}
