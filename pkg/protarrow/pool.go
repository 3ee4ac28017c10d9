package protarrow

import (
	"strconv"
	"sync"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/grafana/protarrow/pkg/protarrow/schema"
)

// Pool caches one Handler per schema. Handlers are built lazily on first
// request and kept for the lifetime of the Pool; nothing is evicted.
//
// Lookups may run concurrently. Concurrent requests for a schema that is not
// cached yet share a single build, and at most one Handler is ever retained
// per schema.
type Pool struct {
	cfg    Config
	mem    memory.Allocator
	logger log.Logger

	metrics        *poolMetrics
	convertMetrics *convertMetrics

	mtx      sync.RWMutex
	handlers map[uint64]*Handler
	builds   singleflight.Group
}

// NewPool returns an empty Pool. Handlers it builds use cfg and allocate
// columns from mem (memory.DefaultAllocator if nil). logger and reg may be
// nil.
func NewPool(cfg Config, mem memory.Allocator, logger log.Logger, reg prometheus.Registerer) *Pool {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Pool{
		cfg:    cfg,
		mem:    mem,
		logger: log.With(logger, "component", "protarrow_pool"),

		metrics:        newPoolMetrics(reg),
		convertMetrics: newConvertMetrics(reg),

		handlers: make(map[uint64]*Handler),
	}
}

// GetForDescriptor returns the Handler for the message type described by md.
func (p *Pool) GetForDescriptor(md protoreflect.MessageDescriptor) (*Handler, error) {
	return p.GetForMessage(schema.FromDescriptor(md))
}

// GetForMessage returns the Handler for s, building and caching it if this
// is the first request for s. Schemas are identified by their content, so two
// equal schemas share a Handler. If no Handler can be built, the *SchemaError
// is returned and nothing is cached.
func (p *Pool) GetForMessage(s schema.Schema) (*Handler, error) {
	key := schema.Fingerprint(s)

	if h, ok := p.lookup(key, s); ok {
		p.metrics.lookups.WithLabelValues("hit").Inc()
		return h, nil
	}
	p.metrics.lookups.WithLabelValues("miss").Inc()

	v, err, _ := p.builds.Do(strconv.FormatUint(key, 16), func() (interface{}, error) {
		return p.build(key, s)
	})
	if err != nil {
		return nil, err
	}

	h := v.(*Handler)
	if !schema.Equal(h.Schema(), s) {
		// Fingerprint collision with a schema being built concurrently.
		return p.build(key, s)
	}
	return h, nil
}

func (p *Pool) lookup(key uint64, s schema.Schema) (*Handler, bool) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	h, ok := p.handlers[key]
	if !ok || !schema.Equal(h.Schema(), s) {
		return nil, false
	}
	return h, true
}

func (p *Pool) build(key uint64, s schema.Schema) (*Handler, error) {
	h, err := NewHandler(s, p.cfg, p.mem)
	if err != nil {
		p.metrics.buildFailures.Inc()
		level.Warn(p.logger).Log("msg", "failed to build handler", "schema", s.Name(), "err", err)
		return nil, errors.Wrapf(err, "building handler for %s", s.Name())
	}
	h.metrics = p.convertMetrics

	p.mtx.Lock()
	defer p.mtx.Unlock()

	existing, ok := p.handlers[key]
	switch {
	case ok && schema.Equal(existing.Schema(), s):
		// Lost a race against a build that was not deduplicated by the
		// singleflight group; keep the published Handler.
		return existing, nil
	case ok:
		level.Warn(p.logger).Log("msg", "schema fingerprint collision, handler not cached", "schema", s.Name(), "cached", existing.Name())
		return h, nil
	}

	p.handlers[key] = h
	p.metrics.handlers.Set(float64(len(p.handlers)))
	level.Debug(p.logger).Log("msg", "built handler", "schema", s.Name(), "fields", len(h.plans))
	return h, nil
}

// Len returns the number of cached Handlers.
func (p *Pool) Len() int {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return len(p.handlers)
}
