// Package kafka feeds batches of serialized messages polled from a kafka
// topic through a protarrow Handler.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
	"github.com/twmb/franz-go/plugin/kprom"

	"github.com/grafana/protarrow/pkg/protarrow"
	"github.com/grafana/protarrow/pkg/protarrow/envelope"
)

// Sink receives the tables converted from each poll. The table is released
// once Consume returns; sinks that keep data must copy or Retain it.
type Sink interface {
	Consume(ctx context.Context, t *protarrow.Table) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, t *protarrow.Table) error

func (f SinkFunc) Consume(ctx context.Context, t *protarrow.Table) error { return f(ctx, t) }

// Source is a service polling records from a kafka topic, converting them
// with a Handler and passing the resulting table to a Sink. Offsets are
// committed only once the sink accepted the table.
//
// Records that fail to decode are dropped and counted; the rest of the poll
// is converted without them.
type Source struct {
	services.Service

	cfg     Config
	handler *protarrow.Handler
	sink    Sink
	logger  log.Logger

	client  *kgo.Client
	metrics *sourceMetrics
}

// NewSource returns a Source. The kafka client is created immediately but
// only connects once the service is started. logger and reg may be nil.
func NewSource(cfg Config, handler *protarrow.Handler, sink Sink, logger log.Logger, reg prometheus.Registerer) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka config: %w", err)
	}

	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "component", "protarrow_kafka_source", "topic", cfg.Topic)

	opts, err := clientOptions(cfg, logger, reg)
	if err != nil {
		return nil, err
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating kafka client: %w", err)
	}

	s := &Source{
		cfg:     cfg,
		handler: handler,
		sink:    sink,
		logger:  logger,
		client:  client,
		metrics: newSourceMetrics(reg),
	}
	s.Service = services.NewBasicService(nil, s.running, s.stopping)
	return s, nil
}

func clientOptions(cfg Config, logger log.Logger, reg prometheus.Registerer) ([]kgo.Opt, error) {
	opts := []kgo.Opt{
		kgo.ClientID(cfg.ClientID),
		kgo.SeedBrokers(cfg.Address),
		kgo.DialTimeout(cfg.DialTimeout),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
		kgo.WithLogger(newLogger(logger)),
	}
	if cfg.FromBeginning {
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	} else {
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()))
	}

	if cfg.SASLUsername != "" && cfg.SASLPassword.String() != "" {
		user, pass := cfg.SASLUsername, cfg.SASLPassword.String()
		switch cfg.SASLMechanism {
		case SASLMechanismPlain:
			opts = append(opts, kgo.SASL(plain.Auth{User: user, Pass: pass}.AsMechanism()))
		case SASLMechanismScramSHA256:
			opts = append(opts, kgo.SASL(scram.Auth{User: user, Pass: pass}.AsSha256Mechanism()))
		case SASLMechanismScramSHA512:
			opts = append(opts, kgo.SASL(scram.Auth{User: user, Pass: pass}.AsSha512Mechanism()))
		default:
			return nil, fmt.Errorf("unsupported SASL mechanism %q", cfg.SASLMechanism)
		}
	}

	if reg != nil {
		metrics := kprom.NewMetrics("protarrow_kafka",
			kprom.Registerer(reg),
			kprom.FetchAndProduceDetail(kprom.Batches, kprom.Records, kprom.CompressedBytes, kprom.UncompressedBytes))
		opts = append(opts, kgo.WithHooks(metrics))
	}
	return opts, nil
}

func (s *Source) running(ctx context.Context) error {
	level.Info(s.logger).Log("msg", "consuming", "consumer_group", s.cfg.ConsumerGroup)

	for ctx.Err() == nil {
		fetches := s.client.PollRecords(ctx, s.cfg.MaxPollRecords)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.metrics.fetchErrors.Inc()
			level.Warn(s.logger).Log("msg", "fetch error", "partition", partition, "err", err)
		})

		records := fetches.Records()
		if len(records) == 0 {
			continue
		}
		s.metrics.records.Add(float64(len(records)))

		if err := s.process(ctx, records); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := s.client.CommitRecords(ctx, records...); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.metrics.commitFailures.Inc()
			level.Warn(s.logger).Log("msg", "failed to commit offsets", "records", len(records), "err", err)
		}
	}
	return nil
}

func (s *Source) stopping(_ error) error {
	s.client.Close()
	return nil
}

// process converts the messages of one poll, in chunks the handler accepts,
// and hands each table to the sink.
func (s *Source) process(ctx context.Context, records []*kgo.Record) error {
	msgs, owners := s.split(records)
	limit := s.handler.Config().MaxBatchSize

	for len(msgs) > 0 {
		n := len(msgs)
		if limit > 0 && n > limit {
			n = limit
		}
		if err := s.processChunk(ctx, records, msgs[:n], owners[:n]); err != nil {
			return err
		}
		msgs, owners = msgs[n:], owners[n:]
	}
	return nil
}

// processChunk converts msgs into one table. Records whose messages fail to
// decode are removed and the conversion is retried without them.
func (s *Source) processChunk(ctx context.Context, records []*kgo.Record, msgs [][]byte, owners []int) error {
	for len(msgs) > 0 {
		table, err := s.handler.Convert(msgs)

		var wfe *protarrow.WireFormatError
		if errors.As(err, &wfe) {
			owner := owners[wfe.Index]
			rec := records[owner]
			s.metrics.droppedRecords.WithLabelValues("decode").Inc()
			level.Warn(s.logger).Log("msg", "dropping record that failed to decode", "partition", rec.Partition, "offset", rec.Offset, "err", err)
			msgs, owners = dropOwner(msgs, owners, owner)
			continue
		}
		if err != nil {
			return fmt.Errorf("converting %d messages: %w", len(msgs), err)
		}

		err = s.sink.Consume(ctx, table)
		rows := table.NumRows()
		table.Release()
		if err != nil {
			return fmt.Errorf("sink: %w", err)
		}
		s.metrics.tables.Inc()
		s.metrics.rows.Add(float64(rows))
		return nil
	}
	return nil
}

// split returns the messages carried by records, and for each message the
// index of the record it came from.
func (s *Source) split(records []*kgo.Record) ([][]byte, []int) {
	msgs := make([][]byte, 0, len(records))
	owners := make([]int, 0, len(records))

	for i, rec := range records {
		if s.cfg.EnvelopeField == 0 {
			msgs = append(msgs, rec.Value)
			owners = append(owners, i)
			continue
		}

		batch, err := envelope.SplitBatch(rec.Value, int32(s.cfg.EnvelopeField))
		if err != nil {
			s.metrics.droppedRecords.WithLabelValues("envelope").Inc()
			level.Warn(s.logger).Log("msg", "dropping record with malformed envelope", "partition", rec.Partition, "offset", rec.Offset, "err", err)
			continue
		}
		for _, m := range batch {
			msgs = append(msgs, m)
			owners = append(owners, i)
		}
	}
	return msgs, owners
}

func dropOwner(msgs [][]byte, owners []int, owner int) ([][]byte, []int) {
	n := 0
	for i := range msgs {
		if owners[i] == owner {
			continue
		}
		msgs[n], owners[n] = msgs[i], owners[i]
		n++
	}
	return msgs[:n], owners[:n]
}
