package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type key struct {
	namespace string
	name      string
}

// Prometheus registers collectors lazily on first use.
// Values produced by WithPrefix share the same registry.
type Prometheus struct {
	prefix   string
	registry *prometheus.Registry
	entries  map[key]prometheus.Collector
	mu       *sync.RWMutex
}

func NewPrometheus() Prometheus {
	return Prometheus{
		registry: prometheus.NewRegistry(),
		entries:  make(map[key]prometheus.Collector),
		mu:       new(sync.RWMutex),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (p Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the text exposition format.
func (p Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p Prometheus) WithPrefix(prefix string) Metrics {
	if p.prefix != "" {
		p.prefix += "_" + prefix
	} else {
		p.prefix = prefix
	}

	return p
}

func (p Prometheus) Counter(name string, labels Labels) Counter {
	entry := p.entry(name, func() prometheus.Collector {
		opts := prometheus.CounterOpts{
			Namespace: p.prefix,
			Name:      name,
		}

		if labels == nil {
			return prometheus.NewCounter(opts)
		}

		return prometheus.NewCounterVec(opts, labels.Keys())
	})

	if vec, ok := entry.(*prometheus.CounterVec); ok {
		return vec.With(prometheus.Labels(labels))
	}

	return entry.(prometheus.Counter)
}

func (p Prometheus) Gauge(name string, labels Labels) Gauge {
	entry := p.entry(name, func() prometheus.Collector {
		opts := prometheus.GaugeOpts{
			Namespace: p.prefix,
			Name:      name,
		}

		if labels == nil {
			return prometheus.NewGauge(opts)
		}

		return prometheus.NewGaugeVec(opts, labels.Keys())
	})

	if vec, ok := entry.(*prometheus.GaugeVec); ok {
		return vec.With(prometheus.Labels(labels))
	}

	return entry.(prometheus.Gauge)
}

func (p Prometheus) entry(name string, create func() prometheus.Collector) prometheus.Collector {
	k := key{p.prefix, name}
	p.mu.RLock()
	entry, ok := p.entries[k]
	p.mu.RUnlock()
	if ok {
		return entry
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok = p.entries[k]; !ok {
		entry = create()
		p.registry.MustRegister(entry)
		p.entries[k] = entry
	}

	return entry
}
