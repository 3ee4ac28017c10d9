package protarrow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type poolMetrics struct {
	lookups       *prometheus.CounterVec
	handlers      prometheus.Gauge
	buildFailures prometheus.Counter
}

func newPoolMetrics(reg prometheus.Registerer) *poolMetrics {
	return &poolMetrics{
		lookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "protarrow_handler_pool_lookups_total",
			Help: "Total number of handler lookups, by whether the handler was already cached.",
		}, []string{"result"}),
		handlers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "protarrow_handler_pool_handlers",
			Help: "Number of handlers held by the pool.",
		}),
		buildFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "protarrow_handler_pool_build_failures_total",
			Help: "Total number of schemas a handler could not be built for.",
		}),
	}
}

type convertMetrics struct {
	batches  *prometheus.CounterVec
	messages prometheus.Counter
	duration prometheus.Histogram
}

func newConvertMetrics(reg prometheus.Registerer) *convertMetrics {
	return &convertMetrics{
		batches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "protarrow_convert_batches_total",
			Help: "Total number of converted batches, by status.",
		}, []string{"status"}),
		messages: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "protarrow_convert_messages_total",
			Help: "Total number of messages converted into rows.",
		}),
		duration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "protarrow_convert_duration_seconds",
			Help:    "Time spent converting one batch.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
}

func (m *convertMetrics) observe(messages int, elapsed time.Duration, err error) {
	m.duration.Observe(elapsed.Seconds())
	if err != nil {
		m.batches.WithLabelValues("failure").Inc()
		return
	}
	m.batches.WithLabelValues("success").Inc()
	m.messages.Add(float64(messages))
}
