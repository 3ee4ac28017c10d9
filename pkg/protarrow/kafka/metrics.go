package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type sourceMetrics struct {
	records        prometheus.Counter
	droppedRecords *prometheus.CounterVec
	tables         prometheus.Counter
	rows           prometheus.Counter
	commitFailures prometheus.Counter
	fetchErrors    prometheus.Counter
}

func newSourceMetrics(reg prometheus.Registerer) *sourceMetrics {
	return &sourceMetrics{
		records: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "protarrow_kafka_source_records_total",
			Help: "Total number of records polled from kafka.",
		}),
		droppedRecords: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "protarrow_kafka_source_dropped_records_total",
			Help: "Total number of records dropped because they could not be decoded.",
		}, []string{"reason"}),
		tables: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "protarrow_kafka_source_tables_total",
			Help: "Total number of tables handed to the sink.",
		}),
		rows: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "protarrow_kafka_source_rows_total",
			Help: "Total number of rows handed to the sink.",
		}),
		commitFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "protarrow_kafka_source_commit_failures_total",
			Help: "Total number of failed offset commits.",
		}),
		fetchErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "protarrow_kafka_source_fetch_errors_total",
			Help: "Total number of partition fetch errors.",
		}),
	}
}
